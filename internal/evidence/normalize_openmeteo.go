package evidence

import (
	"fmt"
	"time"
)

const openMeteoHourLayout = "2006-01-02T15:04"

func normalizeOpenMeteo(p OpenMeteoPayload) (NormalizedSource, error) {
	out := NormalizedSource{Source: SourceNumericForecast, IssuedAt: p.IssuedAt}
	if len(p.Hourly.Time) == 0 && len(p.Daily.Time) == 0 {
		return out, &MalformedPayloadError{Source: SourceNumericForecast, Detail: "no hourly or daily time axis"}
	}

	h := p.Hourly
	for i, raw := range h.Time {
		ts, err := time.ParseInLocation(openMeteoHourLayout, raw, KST)
		if err != nil {
			out.drop("hourly[%d]: bad time %q", i, raw)
			continue
		}
		rec := HourlyRecord{
			TS:       ts,
			TC:       at(h.Temperature, i),
			RHPct:    at(h.RelativeHumidity, i),
			WindMS:   kmhToMS(at(h.WindSpeed, i)),
			GustMS:   kmhToMS(at(h.WindGusts, i)),
			PrecipMM: at(h.Precipitation, i),
			SWRadWM2: at(h.ShortwaveRadiation, i),
			Src:      SourceNumericForecast,
		}
		out.Hourly = append(out.Hourly, rec)
	}
	sortHourly(out.Hourly)

	d := p.Daily
	for i, raw := range d.Time {
		date, err := ParseDate(raw)
		if err != nil {
			out.drop("daily[%d]: bad date %q", i, raw)
			continue
		}
		out.Daily = append(out.Daily, DailyRecord{
			Date:                 date,
			TmaxC:                at(d.TemperatureMax, i),
			TminC:                at(d.TemperatureMin, i),
			PrecipMM:             at(d.PrecipitationSum, i),
			WindMS:               kmhToMS(at(d.WindSpeedMax, i)),
			PrecipProbabilityPct: at(d.PrecipitationProbabilityMax, i),
			Src:                  SourceNumericForecast,
		})
	}
	sortDaily(out.Daily)

	if out.empty() {
		return out, &MalformedPayloadError{Source: SourceNumericForecast, Detail: fmt.Sprintf("all %d records malformed", len(out.Dropped))}
	}
	out.Provenance = []string{fmt.Sprintf("Open-Meteo(%s)", DateOf(p.IssuedAt))}
	return out, nil
}

// at tolerates parallel arrays shorter than the time axis.
func at(vals []*float64, i int) *float64 {
	if i >= len(vals) || vals[i] == nil {
		return nil
	}
	v := *vals[i]
	return &v
}

func kmhToMS(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return float(round2(*v / 3.6))
}
