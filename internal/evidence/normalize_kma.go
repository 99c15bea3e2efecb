package evidence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/agri-evidence-aggregation/internal/common"
)

const kmaStampLayout = "200601021504"

// Values at or below this are the agency's "missing" sentinel (-999 and friends).
const kmaMissing = -900

var kmaWarningTypes = map[string]WarningType{
	"H": WarningHeat,
	"R": WarningRain,
	"W": WarningWind,
	"C": WarningCold,
	"T": WarningTyphoon,
}

var kmaWarningLevels = map[string]WarningLevel{
	"2": LevelWatch,
	"3": LevelWarning,
}

// Release commands end a warning rather than announce one.
var kmaReleaseCommands = map[string]bool{"3": true, "4": true, "7": true}

var kmaSky = map[string]string{"1": "맑음", "3": "구름많음", "4": "흐림"}
var kmaPrecipType = map[string]string{"1": "비", "2": "비/눈", "3": "눈", "4": "소나기"}

type kmaShortDay struct {
	tmax, tmin, wind, pop *float64
	precip                float64
	hasPrecip             bool
	sky, pty              map[string]int
}

func normalizeKMA(p KMAPayload) (NormalizedSource, error) {
	out := NormalizedSource{Source: SourceWeatherAgency, IssuedAt: p.IssuedAt}

	hours := map[time.Time]*HourlyRecord{}
	days := map[Date]*kmaShortDay{}
	for _, it := range p.ShortRange {
		stamp := it.FcstDate.String() + it.FcstTime.String()
		ts, err := time.ParseInLocation(kmaStampLayout, stamp, KST)
		if err != nil {
			out.drop("short-range %s: bad forecast time %q", it.Category, stamp)
			continue
		}
		day := DateOf(ts)
		sd, ok := days[day]
		if !ok {
			sd = &kmaShortDay{sky: map[string]int{}, pty: map[string]int{}}
			days[day] = sd
		}
		raw := it.FcstValue.String()
		switch it.Category {
		case "SKY":
			sd.sky[raw]++
			continue
		case "PTY":
			if raw != "0" {
				sd.pty[raw]++
			}
			continue
		case "TMP", "REH", "WSD", "PCP", "POP", "TMX", "TMN":
		default:
			continue
		}

		var v float64
		if it.Category == "PCP" {
			v, ok = parseKMAPrecip(raw)
		} else {
			v, ok = it.FcstValue.Float()
		}
		if !ok {
			out.drop("short-range %s at %s: unparseable value %q", it.Category, stamp, raw)
			continue
		}
		if v <= kmaMissing {
			continue
		}

		hr := hours[ts]
		if hr == nil && (it.Category == "TMP" || it.Category == "REH" || it.Category == "WSD" || it.Category == "PCP") {
			hr = &HourlyRecord{TS: ts, Src: SourceWeatherAgency}
			hours[ts] = hr
		}
		switch it.Category {
		case "TMP":
			hr.TC = float(v)
		case "REH":
			hr.RHPct = float(v)
		case "WSD":
			hr.WindMS = float(v)
			sd.wind = maxPtr(sd.wind, v)
		case "PCP":
			hr.PrecipMM = float(v)
			sd.precip += v
			sd.hasPrecip = true
		case "POP":
			sd.pop = maxPtr(sd.pop, v)
		case "TMX":
			sd.tmax = float(v)
		case "TMN":
			sd.tmin = float(v)
		}
	}
	for _, hr := range hours {
		out.Hourly = append(out.Hourly, *hr)
	}
	sortHourly(out.Hourly)

	daily := midTermDays(p, &out)
	for day, sd := range days {
		rec := DailyRecord{
			Date:                 day,
			TmaxC:                sd.tmax,
			TminC:                sd.tmin,
			WindMS:               sd.wind,
			PrecipProbabilityPct: sd.pop,
			Summary:              shortRangeSummary(sd),
			Src:                  SourceWeatherAgency,
		}
		if sd.hasPrecip {
			rec.PrecipMM = float(round2(sd.precip))
		}
		if rec.TmaxC == nil && rec.TminC == nil && rec.WindMS == nil && rec.PrecipMM == nil &&
			rec.PrecipProbabilityPct == nil && rec.Summary == "" {
			continue
		}
		if mid, ok := daily[day]; ok {
			rec = overlayMissing(rec, mid)
		}
		daily[day] = rec
	}
	for _, rec := range daily {
		out.Daily = append(out.Daily, rec)
	}
	sortDaily(out.Daily)

	for _, w := range p.Warnings {
		typ, ok := kmaWarningTypes[w.Wrn.String()]
		if !ok {
			continue
		}
		lvl, ok := kmaWarningLevels[w.Lvl.String()]
		if !ok || kmaReleaseCommands[w.Cmd.String()] {
			continue
		}
		start := common.FirstNonEmpty(w.TmEf.String(), w.TmFc.String())
		from, err := parseKMAStamp(start)
		if err != nil {
			out.drop("warning %s: bad effective time %q", w.Wrn, start)
			continue
		}
		warning := Warning{Type: typ, Level: lvl, From: from, Area: CleanText(w.RegName.String())}
		if end := w.TmEnd.String(); end != "" && end != "0" {
			if to, err := parseKMAStamp(end); err == nil && !to.Before(from) {
				warning.To = &to
			}
		}
		out.Warnings = append(out.Warnings, warning)
	}
	sort.SliceStable(out.Warnings, func(i, j int) bool { return out.Warnings[i].From.Before(out.Warnings[j].From) })

	if out.empty() && len(out.Dropped) > 0 {
		return out, &MalformedPayloadError{Source: SourceWeatherAgency, Detail: fmt.Sprintf("all %d records malformed", len(out.Dropped))}
	}

	issued := p.MidIssuedAt
	if issued.IsZero() {
		issued = p.IssuedAt
	}
	out.Provenance = []string{fmt.Sprintf("KMA(%s)", DateOf(issued))}
	return out, nil
}

// midTermDays turns the mid-term outlooks into daily records keyed by date.
func midTermDays(p KMAPayload, out *NormalizedSource) map[Date]DailyRecord {
	daily := map[Date]DailyRecord{}
	if p.MidIssuedAt.IsZero() {
		return daily
	}
	base := DateOf(p.MidIssuedAt)
	for _, d := range p.MidLand {
		if d.Offset < 0 {
			out.drop("mid-term land: negative day offset %d", d.Offset)
			continue
		}
		date := base.AddDays(d.Offset)
		rec := daily[date]
		rec.Date = date
		rec.Src = SourceWeatherAgency
		rec.Summary = midTermSummary(CleanText(d.WfAm), CleanText(d.WfPm))
		rec.PrecipProbabilityPct = meanPtr(d.RnStAm, d.RnStPm)
		daily[date] = rec
	}
	for _, d := range p.MidTemp {
		if d.Offset < 0 {
			out.drop("mid-term temperature: negative day offset %d", d.Offset)
			continue
		}
		date := base.AddDays(d.Offset)
		rec := daily[date]
		rec.Date = date
		rec.Src = SourceWeatherAgency
		rec.TminC = d.TaMin
		rec.TmaxC = d.TaMax
		daily[date] = rec
	}
	return daily
}

// overlayMissing fills unset fields of rec from fallback. Both are agency records.
func overlayMissing(rec, fallback DailyRecord) DailyRecord {
	if rec.TmaxC == nil {
		rec.TmaxC = fallback.TmaxC
	}
	if rec.TminC == nil {
		rec.TminC = fallback.TminC
	}
	if rec.PrecipProbabilityPct == nil {
		rec.PrecipProbabilityPct = fallback.PrecipProbabilityPct
	}
	if rec.Summary == "" {
		rec.Summary = fallback.Summary
	}
	return rec
}

func midTermSummary(am, pm string) string {
	switch {
	case am == "" || am == pm:
		return pm
	case pm == "":
		return am
	default:
		return fmt.Sprintf("오전 %s, 오후 %s", am, pm)
	}
}

func shortRangeSummary(sd *kmaShortDay) string {
	if label := mostFrequent(sd.pty, kmaPrecipType); label != "" {
		return label
	}
	return mostFrequent(sd.sky, kmaSky)
}

// mostFrequent returns the label of the most counted code; ties go to the lower code.
func mostFrequent(counts map[string]int, labels map[string]string) string {
	codes := make([]string, 0, len(counts))
	for code := range counts {
		if _, ok := labels[code]; ok {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return ""
	}
	sort.Strings(codes)
	best := codes[0]
	for _, code := range codes[1:] {
		if counts[code] > counts[best] {
			best = code
		}
	}
	return labels[best]
}

// parseKMAPrecip reads the textual PCP category. Ranges map to their lower
// bound and "less than 1mm" to 0.5.
func parseKMAPrecip(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return 0, false
	case s == "-" || common.HasAny(s, "강수없음", "적설없음"):
		return 0, true
	case strings.Contains(s, "미만"):
		return 0.5, true
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "이상"))
	if i := strings.Index(s, "~"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "mm"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseKMAStamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("2006010215") {
		s += "00"
	}
	return time.ParseInLocation(kmaStampLayout, s, KST)
}

func maxPtr(cur *float64, v float64) *float64 {
	if cur == nil || v > *cur {
		return float(v)
	}
	return cur
}

func meanPtr(vals ...*float64) *float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return float(round2(sum / float64(n)))
}
