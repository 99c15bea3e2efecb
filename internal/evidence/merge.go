package evidence

import (
	"sort"
	"time"
)

// Default merge bounds.
const (
	DefaultHorizonDays = 10
	DefaultHourlyHours = 72
)

var climateSources = []SourceName{SourceWeatherAgency, SourceNumericForecast}

// Merger combines normalized sources into one evidence structure. Every day
// and hour is taken whole from a single source; values are never blended.
type Merger struct {
	Policy      Policy
	HorizonDays int
	HourlyHours int
}

// MergeResult is the merged climate section plus pest pass-through.
type MergeResult struct {
	Climate        ClimateSection
	Bulletins      []Bulletin
	Observations   []Observation
	PestProvenance []string
}

// Merge picks, for each day in [D0, D0+horizon] and each hour in the hourly
// window, the best-ranked source that has a record for that slot. D0 is the
// KST date of anchor. Only sources that supplied at least one record get a
// provenance entry.
func (m Merger) Merge(bySource map[SourceName]NormalizedSource, anchor time.Time) MergeResult {
	policy := m.Policy
	if policy == nil {
		policy = AgencyNearTerm{NearTermDays: 3}
	}
	horizon := m.HorizonDays
	if horizon <= 0 || horizon > DefaultHorizonDays {
		horizon = DefaultHorizonDays
	}
	window := m.HourlyHours
	if window <= 0 || window > DefaultHourlyHours {
		window = DefaultHourlyHours
	}

	contributed := map[SourceName]bool{}
	res := MergeResult{
		Climate: ClimateSection{
			Daily:      []DailyRecord{},
			Hourly:     []HourlyRecord{},
			Warnings:   []Warning{},
			Provenance: []string{},
		},
		Bulletins:      []Bulletin{},
		Observations:   []Observation{},
		PestProvenance: []string{},
	}

	dailyBySource := map[SourceName]map[Date]DailyRecord{}
	for _, name := range climateSources {
		days := map[Date]DailyRecord{}
		for _, rec := range bySource[name].Daily {
			days[rec.Date] = rec
		}
		dailyBySource[name] = days
	}

	d0 := DateOf(anchor)
	for offset := 0; offset <= horizon; offset++ {
		date := d0.AddDays(offset)
		rec, ok := pickDaily(policy.DailyRank(offset), dailyBySource, date)
		if !ok {
			continue
		}
		contributed[rec.Src] = true
		if policy.OverlaySummary() && rec.Src != SourceWeatherAgency && rec.Summary == "" {
			if agency, ok := dailyBySource[SourceWeatherAgency][date]; ok && agency.Summary != "" {
				rec.Summary = agency.Summary
				rec.SummarySrc = SourceWeatherAgency
				contributed[SourceWeatherAgency] = true
			}
		}
		res.Climate.Daily = append(res.Climate.Daily, rec)
	}
	if n := len(res.Climate.Daily); n > 0 {
		res.Climate.HorizonDays = n - 1
	}

	res.Climate.Hourly = m.mergeHourly(policy, bySource, window, contributed)

	if agency, ok := bySource[SourceWeatherAgency]; ok && len(agency.Warnings) > 0 {
		res.Climate.Warnings = append(res.Climate.Warnings, agency.Warnings...)
		contributed[SourceWeatherAgency] = true
	}

	for _, name := range climateSources {
		if contributed[name] {
			res.Climate.Provenance = append(res.Climate.Provenance, bySource[name].Provenance...)
		}
	}

	if pest, ok := bySource[SourcePestBulletin]; ok {
		res.Bulletins = append(res.Bulletins, pest.Bulletins...)
		res.Observations = append(res.Observations, pest.Observations...)
		res.PestProvenance = append(res.PestProvenance, pest.Provenance...)
	}
	return res
}

func pickDaily(rank []SourceName, bySource map[SourceName]map[Date]DailyRecord, date Date) (DailyRecord, bool) {
	for _, name := range rank {
		if rec, ok := bySource[name][date]; ok {
			return rec, true
		}
	}
	return DailyRecord{}, false
}

// mergeHourly covers window hours starting at the earliest hour any climate
// source reports.
func (m Merger) mergeHourly(policy Policy, bySource map[SourceName]NormalizedSource, window int, contributed map[SourceName]bool) []HourlyRecord {
	hoursBySource := map[SourceName]map[time.Time]HourlyRecord{}
	var start time.Time
	for _, name := range climateSources {
		hours := map[time.Time]HourlyRecord{}
		for _, rec := range bySource[name].Hourly {
			ts := rec.TS.In(KST)
			hours[ts] = rec
			if start.IsZero() || ts.Before(start) {
				start = ts
			}
		}
		hoursBySource[name] = hours
	}
	out := []HourlyRecord{}
	if start.IsZero() {
		return out
	}
	end := start.Add(time.Duration(window) * time.Hour)

	seen := map[time.Time]bool{}
	var slots []time.Time
	for _, name := range climateSources {
		for ts := range hoursBySource[name] {
			if ts.Before(end) && !seen[ts] {
				seen[ts] = true
				slots = append(slots, ts)
			}
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	for _, ts := range slots {
		offset := int(ts.Sub(start) / time.Hour)
		for _, name := range policy.HourlyRank(offset) {
			if rec, ok := hoursBySource[name][ts]; ok {
				rec.TS = ts
				out = append(out, rec)
				contributed[name] = true
				break
			}
		}
	}
	return out
}
