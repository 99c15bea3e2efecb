package evidence

import "math"

// TemperatureTrend is the direction of daily maxima over the first days.
type TemperatureTrend string

const (
	TrendRising  TemperatureTrend = "rising"
	TrendFalling TemperatureTrend = "falling"
	TrendSteady  TemperatureTrend = "steady"
)

const (
	trendShiftC     = 3.0
	rainyDayPrecip  = 1.0
	trendWindowDays = 3
)

// PeriodStats summarizes the first N days of the merged daily series.
type PeriodStats struct {
	AvgTmaxC      *float64 `json:"avg_tmax_c"`
	MaxTmaxC      *float64 `json:"max_tmax_c"`
	MinTminC      *float64 `json:"min_tmin_c"`
	TotalPrecipMM float64  `json:"total_precip_mm"`
	RainyDays     int      `json:"rainy_days"`
}

// Trends are advisory period summaries. A period is present only when the
// series covers it in full.
type Trends struct {
	Next3Days        *PeriodStats     `json:"next_3days,omitempty"`
	Next7Days        *PeriodStats     `json:"next_7days,omitempty"`
	Next10Days       *PeriodStats     `json:"next_10days,omitempty"`
	TemperatureTrend TemperatureTrend `json:"temperature_trend,omitempty"`
}

// ComputeTrends summarizes a merged daily series, which holds one record per day.
func ComputeTrends(daily []DailyRecord) Trends {
	days := append([]DailyRecord(nil), daily...)
	sortDaily(days)

	var t Trends
	if len(days) >= 3 {
		t.Next3Days = periodStats(days[:3])
	}
	if len(days) >= 7 {
		t.Next7Days = periodStats(days[:7])
	}
	if len(days) >= 10 {
		t.Next10Days = periodStats(days[:10])
	}

	if len(days) >= trendWindowDays {
		var maxima []float64
		for _, d := range days[:trendWindowDays] {
			if d.TmaxC != nil {
				maxima = append(maxima, *d.TmaxC)
			}
		}
		if len(maxima) >= 2 {
			first, last := maxima[0], maxima[len(maxima)-1]
			switch {
			case last > first+trendShiftC:
				t.TemperatureTrend = TrendRising
			case last < first-trendShiftC:
				t.TemperatureTrend = TrendFalling
			default:
				t.TemperatureTrend = TrendSteady
			}
		}
	}
	return t
}

func periodStats(days []DailyRecord) *PeriodStats {
	var (
		stats     PeriodStats
		sumTmax   float64
		nTmax     int
		totalRain float64
	)
	for _, d := range days {
		if d.TmaxC != nil {
			sumTmax += *d.TmaxC
			nTmax++
			stats.MaxTmaxC = maxPtr(stats.MaxTmaxC, *d.TmaxC)
		}
		if d.TminC != nil && (stats.MinTminC == nil || *d.TminC < *stats.MinTminC) {
			stats.MinTminC = float(*d.TminC)
		}
		if d.PrecipMM != nil {
			totalRain += *d.PrecipMM
			if *d.PrecipMM > rainyDayPrecip {
				stats.RainyDays++
			}
		}
	}
	if nTmax > 0 {
		stats.AvgTmaxC = float(math.Round(sumTmax/float64(nTmax)*10) / 10)
	}
	stats.TotalPrecipMM = math.Round(totalRain*10) / 10
	return &stats
}
