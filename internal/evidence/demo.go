package evidence

import (
	"strings"
	"time"
)

type demoKey struct{ region, crop string }

type demoSite struct {
	area      string
	bulletins []Bulletin
	survey    []Observation
	runKey    string
}

var demoSites = map[demoKey]demoSite{
	{"andong-si", "apple"}: {
		area: "경북 안동시",
		bulletins: []Bulletin{
			{Pest: "갈색무늬병", Risk: RiskHigh, Since: "2025-10-27", Summary: "잦은 강우로 감염 위험 높음, 강우 전 보호살균제 살포 권장"},
			{Pest: "탄저병", Risk: RiskModerate, Since: "2025-10-25", Summary: "고온 다습 시 과실 병반 증가 가능, 이병과 제거 및 예찰 강화"},
		},
		survey: []Observation{
			{Area: "안동시", Pest: "복숭아순나방", Metric: "트랩당마리수", Code: PeachMothMetricCode, Value: 12.4},
			{Area: "안동시", Pest: "사과굴나방", Metric: "트랩당마리수", Code: "SS0125", Value: 3.5},
		},
		runKey: "202500209FT01060101322008",
	},
	{"gimcheon-si", "tomato"}: {
		area: "경북 김천시",
		bulletins: []Bulletin{
			{Pest: "잿빛곰팡이병", Risk: RiskModerate, Since: "2025-10-27", Summary: "낮 최고 30°C 이상 지속, 시설 내 환기 및 방제 준비 필요"},
			{Pest: "담배가루이", Risk: RiskLow, Since: "2025-10-25", Summary: "고온 다습한 환경에서 밀도가 증가할 수 있어 점검 권장"},
		},
	},
}

// demoIssuedAt is the fixed issuance instant of every scripted bundle.
var demoIssuedAt = time.Date(2025, 10, 29, 9, 0, 0, 0, KST)

// DemoSources returns scripted normalized sources for a demo profile. The
// bundle goes through the same merge and hint pipeline as live data.
func DemoSources(region, crop string) (map[SourceName]NormalizedSource, bool) {
	site, ok := demoSites[demoKey{normalizeKey(region), normalizeKey(crop)}]
	if !ok {
		return nil, false
	}
	return map[SourceName]NormalizedSource{
		SourceWeatherAgency:   demoAgency(site),
		SourceNumericForecast: demoNumeric(),
		SourcePestBulletin:    demoPest(site),
	}, true
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func demoAgency(site demoSite) NormalizedSource {
	type day struct {
		date                  Date
		tmax, tmin, rain, wnd float64
	}
	near := []day{
		{"2025-10-29", 31.2, 22.5, 3.0, 5.1},
		{"2025-10-30", 32.1, 23.4, 0.0, 4.6},
		{"2025-10-31", 33.5, 24.0, 5.2, 5.8},
		{"2025-11-01", 29.8, 21.7, 12.3, 6.4},
	}
	src := NormalizedSource{Source: SourceWeatherAgency, IssuedAt: demoIssuedAt}
	for _, d := range near {
		src.Daily = append(src.Daily, DailyRecord{
			Date: d.date, TmaxC: float(d.tmax), TminC: float(d.tmin),
			PrecipMM: float(d.rain), WindMS: float(d.wnd), Src: SourceWeatherAgency,
		})
	}
	outlook := []struct {
		date    Date
		summary string
		pop     float64
	}{
		{"2025-11-02", "오전 흐림, 오후 비", 60},
		{"2025-11-03", "구름많음", 30},
		{"2025-11-04", "맑음", 10},
		{"2025-11-05", "오전 구름많음, 오후 흐림", 40},
		{"2025-11-06", "맑음", 10},
		{"2025-11-07", "맑음", 0},
	}
	for _, o := range outlook {
		src.Daily = append(src.Daily, DailyRecord{
			Date: o.date, Summary: o.summary, PrecipProbabilityPct: float(o.pop), Src: SourceWeatherAgency,
		})
	}

	temps := []float64{28.5, 29.3, 30.2, 31.0, 32.5, 33.2, 33.5, 32.8, 31.1, 29.4, 27.8, 26.5}
	rhs := []float64{58, 55, 54, 52, 50, 48, 46, 52, 60, 68, 74, 80}
	winds := []float64{4.2, 4.5, 4.8, 5.1, 5.6, 6.2, 6.5, 6.0, 5.3, 4.8, 4.5, 4.2}
	gusts := []float64{6.8, 7.1, 7.4, 7.6, 8.2, 8.5, 8.7, 8.4, 7.9, 7.2, 6.9, 6.5}
	rain := []float64{0, 0, 0, 0, 0, 0.2, 0.4, 0.4, 0.6, 0.8, 1.0, 0.6}
	for i := range temps {
		src.Hourly = append(src.Hourly, HourlyRecord{
			TS:       demoIssuedAt.Add(time.Duration(i) * time.Hour),
			TC:       float(temps[i]),
			RHPct:    float(rhs[i]),
			WindMS:   float(winds[i]),
			GustMS:   float(gusts[i]),
			PrecipMM: float(rain[i]),
			Src:      SourceWeatherAgency,
		})
	}

	to := demoIssuedAt.Add(10 * time.Hour)
	src.Warnings = []Warning{{
		Type: WarningHeat, Level: LevelWatch,
		From: demoIssuedAt.Add(-2 * time.Hour), To: &to,
		Area: site.area,
	}}
	src.Provenance = []string{"KMA(" + string(DateOf(demoIssuedAt)) + ")"}
	return src
}

func demoNumeric() NormalizedSource {
	issued := demoIssuedAt.Add(-time.Hour)
	src := NormalizedSource{Source: SourceNumericForecast, IssuedAt: issued}

	daily := []struct {
		date                  Date
		tmax, tmin, rain, wnd float64
	}{
		{"2025-10-29", 30.7, 22.1, 2.6, 4.8},
		{"2025-10-30", 31.6, 23.0, 0.0, 4.3},
		{"2025-10-31", 33.0, 23.6, 4.8, 5.5},
		{"2025-11-01", 29.1, 21.2, 11.7, 6.1},
		{"2025-11-02", 27.4, 20.9, 8.5, 5.9},
		{"2025-11-03", 26.8, 19.5, 0.4, 4.8},
		{"2025-11-04", 25.2, 18.8, 0.0, 3.6},
		{"2025-11-05", 24.6, 17.9, 2.2, 3.8},
		{"2025-11-06", 23.5, 16.7, 0.0, 3.3},
		{"2025-11-07", 22.6, 16.2, 0.0, 3.1},
		{"2025-11-08", 21.9, 15.4, 0.0, 2.9},
	}
	for _, d := range daily {
		src.Daily = append(src.Daily, DailyRecord{
			Date: d.date, TmaxC: float(d.tmax), TminC: float(d.tmin),
			PrecipMM: float(d.rain), WindMS: float(d.wnd), Src: SourceNumericForecast,
		})
	}

	temps := []float64{
		28.0, 28.8, 29.7, 30.5, 32.0, 32.7, 33.0, 32.3, 30.6, 28.9, 27.3, 26.0,
		25.2, 24.6, 24.1, 23.7, 23.3, 23.0, 22.8, 22.6, 22.5, 22.9, 24.0, 25.6,
	}
	rhs := []float64{
		62, 59, 58, 56, 54, 52, 50, 56, 64, 72, 78, 84,
		86, 90, 92, 94, 95, 95, 93, 90, 88, 84, 78, 70,
	}
	for i := range temps {
		ts := demoIssuedAt.Add(time.Duration(i) * time.Hour)
		swrad := 80.0
		if h := ts.Hour(); h >= 9 && h <= 15 {
			swrad = 650
		}
		src.Hourly = append(src.Hourly, HourlyRecord{
			TS:       ts,
			TC:       float(temps[i]),
			RHPct:    float(rhs[i]),
			WindMS:   float(3.9 + float64(i%6)*0.3),
			GustMS:   float(6.6 + float64(i%6)*0.3),
			PrecipMM: float(0),
			SWRadWM2: float(swrad),
			Src:      SourceNumericForecast,
		})
	}
	src.Provenance = []string{"Open-Meteo(" + string(DateOf(issued)) + ")"}
	return src
}

func demoPest(site demoSite) NormalizedSource {
	issued := demoIssuedAt.AddDate(0, 0, -2)
	src := NormalizedSource{
		Source:       SourcePestBulletin,
		IssuedAt:     issued,
		Bulletins:    append([]Bulletin(nil), site.bulletins...),
		Observations: append([]Observation(nil), site.survey...),
		Provenance:   []string{"NPMS SVC31(" + string(DateOf(issued)) + ")"},
	}
	if site.runKey != "" {
		src.Provenance = append(src.Provenance, "NPMS SVC53(run "+site.runKey+")")
	}
	return src
}
