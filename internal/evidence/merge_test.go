package evidence

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agencySource() NormalizedSource {
	src := NormalizedSource{Source: SourceWeatherAgency, IssuedAt: issued, Provenance: []string{"KMA(2025-10-29)"}}
	for i := 0; i <= 4; i++ {
		src.Daily = append(src.Daily, daily(SourceWeatherAgency, DateOf(issued).AddDays(i), 30+float64(i), 20, 1))
	}
	src.Daily = append(src.Daily, DailyRecord{Date: DateOf(issued).AddDays(6), Summary: "맑음", Src: SourceWeatherAgency})
	for i := 0; i < 6; i++ {
		src.Hourly = append(src.Hourly, hourly(SourceWeatherAgency, issued.Add(time.Duration(i)*time.Hour), 25, 60))
	}
	src.Warnings = []Warning{{Type: WarningHeat, Level: LevelWatch, From: issued, Area: "경북 안동시"}}
	return src
}

func numericSource() NormalizedSource {
	src := NormalizedSource{Source: SourceNumericForecast, IssuedAt: issued.Add(-time.Hour), Provenance: []string{"Open-Meteo(2025-10-29)"}}
	for i := 0; i <= 12; i++ {
		src.Daily = append(src.Daily, daily(SourceNumericForecast, DateOf(issued).AddDays(i), 20+float64(i), 10, 2))
	}
	for i := 0; i < 80; i++ {
		src.Hourly = append(src.Hourly, hourly(SourceNumericForecast, issued.Add(time.Duration(i)*time.Hour), 22, 70))
	}
	return src
}

func TestMerge_AgencyNearTerm(t *testing.T) {
	agency, numeric := agencySource(), numericSource()
	res := Merger{Policy: AgencyNearTerm{NearTermDays: 3}}.Merge(map[SourceName]NormalizedSource{
		SourceWeatherAgency:   agency,
		SourceNumericForecast: numeric,
	}, issued)

	require.Len(t, res.Climate.Daily, 11)
	assert.Equal(t, 10, res.Climate.HorizonDays)
	for i, rec := range res.Climate.Daily {
		want := SourceNumericForecast
		if i <= 3 {
			want = SourceWeatherAgency
		}
		assert.Equal(t, want, rec.Src, "day %d", i)
	}
	assert.Empty(t, res.Climate.Daily[6].Summary)

	require.Len(t, res.Climate.Hourly, 72)
	for i, rec := range res.Climate.Hourly {
		want := SourceNumericForecast
		if i < 6 {
			want = SourceWeatherAgency
		}
		assert.Equal(t, want, rec.Src, "hour %d", i)
	}

	assert.Equal(t, agency.Warnings, res.Climate.Warnings)
	assert.Equal(t, []string{"KMA(2025-10-29)", "Open-Meteo(2025-10-29)"}, res.Climate.Provenance)
}

func TestMerge_NoBlending(t *testing.T) {
	agency, numeric := agencySource(), numericSource()
	bySource := map[SourceName]NormalizedSource{SourceWeatherAgency: agency, SourceNumericForecast: numeric}
	res := Merger{Policy: AgencyNearTerm{NearTermDays: 3}}.Merge(bySource, issued)

	index := map[SourceName]map[Date]DailyRecord{}
	for name, src := range bySource {
		index[name] = map[Date]DailyRecord{}
		for _, rec := range src.Daily {
			index[name][rec.Date] = rec
		}
	}
	for _, rec := range res.Climate.Daily {
		orig, ok := index[rec.Src][rec.Date]
		require.True(t, ok, "record %s has no origin in %s", rec.Date, rec.Src)
		if diff := cmp.Diff(orig, rec); diff != "" {
			t.Errorf("record %s differs from its source (-want +got):\n%s", rec.Date, diff)
		}
	}
}

func TestMerge_NumericPrimaryOverlaysSummary(t *testing.T) {
	res := Merger{Policy: NumericPrimary{}}.Merge(map[SourceName]NormalizedSource{
		SourceWeatherAgency:   agencySource(),
		SourceNumericForecast: numericSource(),
	}, issued)

	for _, rec := range res.Climate.Daily {
		assert.Equal(t, SourceNumericForecast, rec.Src)
	}
	day6 := res.Climate.Daily[6]
	assert.Equal(t, "맑음", day6.Summary)
	assert.Equal(t, SourceWeatherAgency, day6.SummarySrc)
	assert.Equal(t, 26.0, *day6.TmaxC)
	assert.Empty(t, res.Climate.Daily[5].SummarySrc)
	assert.Equal(t, SourceNumericForecast, res.Climate.Hourly[0].Src)
	assert.Contains(t, res.Climate.Provenance, "KMA(2025-10-29)")
}

func TestMerge_NumericOnly(t *testing.T) {
	numeric := NormalizedSource{
		Source:     SourceNumericForecast,
		IssuedAt:   issued,
		Daily:      []DailyRecord{{Date: "2025-10-29", TmaxC: ptr(32.0), TminC: ptr(23.0), PrecipMM: ptr(5.0), WindMS: ptr(6.0), Src: SourceNumericForecast}},
		Provenance: []string{"Open-Meteo(2025-10-29)"},
	}
	res := Merger{}.Merge(map[SourceName]NormalizedSource{SourceNumericForecast: numeric}, issued)

	require.Len(t, res.Climate.Daily, 1)
	assert.Equal(t, SourceNumericForecast, res.Climate.Daily[0].Src)
	assert.Equal(t, 0, res.Climate.HorizonDays)
	assert.NotNil(t, res.Climate.Warnings)
	assert.Empty(t, res.Climate.Warnings)
	assert.Equal(t, []string{"Open-Meteo(2025-10-29)"}, res.Climate.Provenance)
	assert.NotNil(t, res.Bulletins)
	assert.NotNil(t, res.Observations)
}

func TestMerge_ProvenanceOnlyForContributors(t *testing.T) {
	agency := NormalizedSource{
		Source:     SourceWeatherAgency,
		IssuedAt:   issued,
		Daily:      []DailyRecord{daily(SourceWeatherAgency, DateOf(issued).AddDays(20), 1, 1, 1)},
		Provenance: []string{"KMA(2025-10-29)"},
	}
	res := Merger{}.Merge(map[SourceName]NormalizedSource{
		SourceWeatherAgency:   agency,
		SourceNumericForecast: numericSource(),
	}, issued)

	assert.Equal(t, []string{"Open-Meteo(2025-10-29)"}, res.Climate.Provenance)
	for _, rec := range res.Climate.Daily {
		assert.NotEqual(t, SourceWeatherAgency, rec.Src)
	}
}

func TestMerge_HorizonBounds(t *testing.T) {
	res := Merger{HorizonDays: 3, HourlyHours: 12}.Merge(map[SourceName]NormalizedSource{
		SourceNumericForecast: numericSource(),
	}, issued)
	assert.Len(t, res.Climate.Daily, 4)
	assert.Equal(t, 3, res.Climate.HorizonDays)
	assert.Len(t, res.Climate.Hourly, 12)
}

func TestMerge_PestPassThrough(t *testing.T) {
	pest := NormalizedSource{
		Source:       SourcePestBulletin,
		Bulletins:    []Bulletin{{Pest: "탄저병", Risk: RiskModerate, Since: "2025-10-25"}},
		Observations: []Observation{{Area: "안동시", Pest: "복숭아순나방", Code: PeachMothMetricCode, Value: 12.4}},
		Provenance:   []string{"NPMS SVC31(2025-10-27)"},
	}
	res := Merger{}.Merge(map[SourceName]NormalizedSource{SourcePestBulletin: pest}, issued)
	assert.Equal(t, pest.Bulletins, res.Bulletins)
	assert.Equal(t, pest.Observations, res.Observations)
	assert.Equal(t, pest.Provenance, res.PestProvenance)
	assert.Empty(t, res.Climate.Daily)
	assert.Empty(t, res.Climate.Provenance)
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("", 3)
	require.NoError(t, err)
	assert.Equal(t, PolicyAgencyNearTerm, p.Name())
	assert.Equal(t, []SourceName{SourceWeatherAgency, SourceNumericForecast}, p.DailyRank(3))
	assert.Equal(t, []SourceName{SourceNumericForecast, SourceWeatherAgency}, p.DailyRank(4))
	assert.False(t, p.OverlaySummary())

	p, err = PolicyByName(PolicyNumericPrimary, 0)
	require.NoError(t, err)
	assert.Equal(t, []SourceName{SourceNumericForecast, SourceWeatherAgency}, p.DailyRank(0))
	assert.True(t, p.OverlaySummary())

	_, err = PolicyByName("blend", 3)
	require.Error(t, err)
	_, err = PolicyByName(PolicyAgencyNearTerm, -1)
	require.Error(t, err)
}
