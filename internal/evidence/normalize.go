package evidence

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// NormalizedSource is one source's payload mapped onto the canonical schema.
// Climate fields are empty for the pest source and vice versa.
type NormalizedSource struct {
	Source   SourceName
	IssuedAt time.Time

	Daily    []DailyRecord
	Hourly   []HourlyRecord
	Warnings []Warning

	Bulletins    []Bulletin
	Observations []Observation

	Provenance []string
	// Dropped describes records that were discarded as malformed.
	Dropped []string
}

// Normalize maps a raw payload to canonical records. Individual bad records
// are dropped and annotated; a payload with nothing usable left is a
// MalformedPayloadError.
func Normalize(p SourcePayload) (NormalizedSource, error) {
	switch v := p.(type) {
	case KMAPayload:
		return normalizeKMA(v)
	case *KMAPayload:
		return normalizeKMA(*v)
	case OpenMeteoPayload:
		return normalizeOpenMeteo(v)
	case *OpenMeteoPayload:
		return normalizeOpenMeteo(*v)
	case NPMSPayload:
		return normalizeNPMS(v)
	case *NPMSPayload:
		return normalizeNPMS(*v)
	case nil:
		return NormalizedSource{}, &MalformedPayloadError{Detail: "nil payload"}
	default:
		return NormalizedSource{}, &MalformedPayloadError{Source: p.Source(), Detail: fmt.Sprintf("unsupported payload %T", p)}
	}
}

func (n *NormalizedSource) drop(format string, args ...any) {
	n.Dropped = append(n.Dropped, fmt.Sprintf(format, args...))
}

func (n *NormalizedSource) empty() bool {
	return len(n.Daily) == 0 && len(n.Hourly) == 0 && len(n.Warnings) == 0 &&
		len(n.Bulletins) == 0 && len(n.Observations) == 0
}

// hasClimate reports whether the source contributed any weather data.
func (n NormalizedSource) hasClimate() bool {
	return len(n.Daily) > 0 || len(n.Hourly) > 0 || len(n.Warnings) > 0
}

func sortDaily(recs []DailyRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date < recs[j].Date })
}

func sortHourly(recs []HourlyRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].TS.Before(recs[j].TS) })
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}
