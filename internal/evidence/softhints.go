package evidence

import (
	"sort"
	"time"
)

// Soft-hint thresholds.
const (
	HeatThresholdC    = 33.0
	WindThresholdMS   = 10.0
	WetNightRHPct     = 90.0
	WetNightMinHours  = 3
	DefaultNightStart = 21
	DefaultNightEnd   = 6
)

// SoftHintCalculator derives advisory indicators from merged series. The
// night window runs from NightStart (inclusive) to NightEnd (exclusive),
// wrapping past midnight when NightStart > NightEnd; a night belongs to the
// calendar date on which it starts.
type SoftHintCalculator struct {
	NightStart int
	NightEnd   int
}

// DefaultSoftHints uses the 21:00 to 06:00 night window.
var DefaultSoftHints = SoftHintCalculator{NightStart: DefaultNightStart, NightEnd: DefaultNightEnd}

// Compute is pure: identical input always gives identical output.
func (c SoftHintCalculator) Compute(daily []DailyRecord, hourly []HourlyRecord, warnings []Warning) SoftHints {
	days := append([]DailyRecord(nil), daily...)
	sortDaily(days)
	hours := append([]HourlyRecord(nil), hourly...)
	sortHourly(hours)

	return SoftHints{
		RainRunMaxDays:   rainRunMaxDays(days),
		HeatHoursGE33C:   countHours(hours, func(h HourlyRecord) bool { return h.TC != nil && *h.TC >= HeatThresholdC }),
		WindHoursGE10MS:  countHours(hours, func(h HourlyRecord) bool { return h.WindMS != nil && *h.WindMS >= WindThresholdMS }),
		WetNightsCount:   c.wetNights(hours),
		DiurnalRangeMax:  diurnalRangeMax(days),
		FirstWarningType: firstWarningType(warnings),
	}
}

func rainRunMaxDays(days []DailyRecord) int {
	best, run := 0, 0
	for _, d := range days {
		if d.PrecipMM != nil && *d.PrecipMM > 0 {
			run++
			best = max(best, run)
		} else {
			run = 0
		}
	}
	return best
}

func countHours(hours []HourlyRecord, match func(HourlyRecord) bool) int {
	n := 0
	for _, h := range hours {
		if match(h) {
			n++
		}
	}
	return n
}

// nightOf reports which night ts belongs to, if any.
func (c SoftHintCalculator) nightOf(ts time.Time) (Date, bool) {
	local := ts.In(KST)
	h := local.Hour()
	day := DateOf(local)
	if c.NightStart <= c.NightEnd {
		return day, h >= c.NightStart && h < c.NightEnd
	}
	switch {
	case h >= c.NightStart:
		return day, true
	case h < c.NightEnd:
		return day.AddDays(-1), true
	default:
		return "", false
	}
}

// wetNights counts nights holding a run of consecutive humid hours.
func (c SoftHintCalculator) wetNights(hours []HourlyRecord) int {
	wet := map[Date]bool{}
	var (
		runNight Date
		runLen   int
		lastTS   time.Time
	)
	for _, h := range hours {
		night, inWindow := c.nightOf(h.TS)
		humid := h.RHPct != nil && *h.RHPct >= WetNightRHPct
		if !inWindow || !humid {
			runLen = 0
			continue
		}
		if runLen > 0 && night == runNight && h.TS.Sub(lastTS) == time.Hour {
			runLen++
		} else {
			runNight, runLen = night, 1
		}
		lastTS = h.TS
		if runLen >= WetNightMinHours {
			wet[night] = true
		}
	}
	return len(wet)
}

func diurnalRangeMax(days []DailyRecord) *float64 {
	var best *float64
	for _, d := range days {
		if d.TmaxC == nil || d.TminC == nil {
			continue
		}
		r := round2(*d.TmaxC - *d.TminC)
		if best == nil || r > *best {
			best = float(r)
		}
	}
	return best
}

func firstWarningType(warnings []Warning) *WarningType {
	if len(warnings) == 0 {
		return nil
	}
	sorted := append([]Warning(nil), warnings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].From.Before(sorted[j].From) })
	t := sorted[0].Type
	return &t
}
