package evidence

import (
	"time"
)

var issued = time.Date(2025, 10, 29, 9, 0, 0, 0, KST)

func ptr(v float64) *float64 { return &v }

func daily(src SourceName, date Date, tmax, tmin, precip float64) DailyRecord {
	return DailyRecord{Date: date, TmaxC: ptr(tmax), TminC: ptr(tmin), PrecipMM: ptr(precip), Src: src}
}

func hourly(src SourceName, ts time.Time, tc, rh float64) HourlyRecord {
	return HourlyRecord{TS: ts, TC: ptr(tc), RHPct: ptr(rh), Src: src}
}

func hoursFrom(start time.Time, temps ...float64) []HourlyRecord {
	out := make([]HourlyRecord, len(temps))
	for i, tc := range temps {
		out[i] = hourly(SourceNumericForecast, start.Add(time.Duration(i)*time.Hour), tc, 50)
	}
	return out
}

func precipDays(values ...float64) []DailyRecord {
	out := make([]DailyRecord, len(values))
	start := DateOf(issued)
	for i, v := range values {
		out[i] = DailyRecord{Date: start.AddDays(i), PrecipMM: ptr(v), Src: SourceNumericForecast}
	}
	return out
}
