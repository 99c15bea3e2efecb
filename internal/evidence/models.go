package evidence

import (
	"strings"
	"time"
)

// KST is the canonical zone for every instant in an evidence pack.
var KST = time.FixedZone("KST", 9*60*60)

// SourceName identifies one upstream feed.
type SourceName string

const (
	SourceWeatherAgency   SourceName = "weather_agency"
	SourceNumericForecast SourceName = "numeric_forecast"
	SourcePestBulletin    SourceName = "pest_bulletin"
)

// AllSources lists the feeds in the order they are reported in diagnostics.
var AllSources = []SourceName{SourceWeatherAgency, SourceNumericForecast, SourcePestBulletin}

// Profile is the immutable request key.
type Profile struct {
	Region string `json:"region" validate:"required"`
	Crop   string `json:"crop" validate:"required"`
	Stage  string `json:"stage" validate:"required"`
}

// AggregateRequest asks the Service for one evidence pack.
type AggregateRequest struct {
	Profile
	Demo bool `json:"demo"`
}

// Identity holds every identifier the source clients need for one profile.
// Resolution either fills all of it or fails.
type Identity struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	GridX          int     `json:"grid_x"`
	GridY          int     `json:"grid_y"`
	AreaCode       string  `json:"area_code"`
	TempAreaCode   string  `json:"temp_area_code"`
	WarnAreaCode   string  `json:"warn_area_code"`
	CropCode       string  `json:"crop_code"`
	PestSidoCode   string  `json:"pest_sido_code"`
	PestRegionCode string  `json:"pest_region_code"`
	PestRegionName string  `json:"pest_region_name"`
}

// Key returns a canonical string for cache indexing.
func (id Identity) Key() string {
	return strings.Join([]string{
		formatCoord(id.Lat), formatCoord(id.Lon),
		id.AreaCode, id.TempAreaCode, id.WarnAreaCode,
		id.CropCode, id.PestSidoCode, id.PestRegionCode,
	}, "|")
}

// Window is the forward range requested from each source.
type Window struct {
	Days  int
	Hours int
}

// Date is a calendar day in KST, formatted YYYY-MM-DD.
type Date string

const dateLayout = "2006-01-02"

// DateOf returns the KST calendar day containing t.
func DateOf(t time.Time) Date {
	return Date(t.In(KST).Format(dateLayout))
}

// ParseDate validates s as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), KST)
	if err != nil {
		return "", err
	}
	return DateOf(t), nil
}

// Time returns midnight KST of d. Invalid dates yield the zero time.
func (d Date) Time() time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), KST)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays shifts d by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DailyRecord is one day of forecast from exactly one source.
// Unset numeric fields were not reported upstream.
type DailyRecord struct {
	Date                 Date       `json:"date"`
	TmaxC                *float64   `json:"tmax_c,omitempty"`
	TminC                *float64   `json:"tmin_c,omitempty"`
	PrecipMM             *float64   `json:"precip_mm,omitempty"`
	WindMS               *float64   `json:"wind_ms,omitempty"`
	Summary              string     `json:"summary,omitempty"`
	PrecipProbabilityPct *float64   `json:"precip_probability_pct,omitempty"`
	Src                  SourceName `json:"src"`
	// SummarySrc is set when Summary was overlaid from another source.
	SummarySrc SourceName `json:"summary_src,omitempty"`
}

// HourlyRecord is one forecast hour from exactly one source.
type HourlyRecord struct {
	TS       time.Time  `json:"ts"`
	TC       *float64   `json:"t_c,omitempty"`
	RHPct    *float64   `json:"rh_pct,omitempty"`
	WindMS   *float64   `json:"wind_ms,omitempty"`
	GustMS   *float64   `json:"gust_ms,omitempty"`
	PrecipMM *float64   `json:"precip_mm,omitempty"`
	SWRadWM2 *float64   `json:"swrad_wm2,omitempty"`
	Src      SourceName `json:"src"`
}

// WarningType is the hazard class of an agency warning.
type WarningType string

const (
	WarningHeat    WarningType = "HEAT"
	WarningRain    WarningType = "RAIN"
	WarningWind    WarningType = "WIND"
	WarningCold    WarningType = "COLD"
	WarningTyphoon WarningType = "TYPHOON"
)

// WarningLevel is the severity of an agency warning.
type WarningLevel string

const (
	LevelWatch   WarningLevel = "WATCH"
	LevelWarning WarningLevel = "WARNING"
)

// Warning is an official weather-agency advisory. It is never synthesized.
type Warning struct {
	Type  WarningType  `json:"type"`
	Level WarningLevel `json:"level"`
	From  time.Time    `json:"from"`
	// To is unset while the warning has no announced end.
	To   *time.Time `json:"to,omitempty"`
	Area string     `json:"area"`
}

// RiskLevel grades a pest bulletin.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskAlert    RiskLevel = "ALERT"
)

// Bulletin is a crop-level pest/disease forecast.
type Bulletin struct {
	Pest    string    `json:"pest"`
	Risk    RiskLevel `json:"risk"`
	Since   Date      `json:"since"`
	Summary string    `json:"summary"`
}

// Observation is one field survey measurement in the resolved region.
type Observation struct {
	Area   string  `json:"area"`
	Pest   string  `json:"pest"`
	Metric string  `json:"metric"`
	Code   string  `json:"code"`
	Value  float64 `json:"value"`
}

// SoftHints are advisory indicators derived from merged data. They never
// replace the raw series or warnings they were computed from.
type SoftHints struct {
	RainRunMaxDays   int          `json:"rain_run_max_days"`
	HeatHoursGE33C   int          `json:"heat_hours_ge_33c"`
	WindHoursGE10MS  int          `json:"wind_hours_ge_10ms"`
	WetNightsCount   int          `json:"wet_nights_count"`
	DiurnalRangeMax  *float64     `json:"diurnal_range_max"`
	FirstWarningType *WarningType `json:"first_warning_type"`
}

// ClimateSection is the merged weather part of an evidence pack.
type ClimateSection struct {
	HorizonDays int            `json:"horizon_days"`
	Daily       []DailyRecord  `json:"daily"`
	Hourly      []HourlyRecord `json:"hourly"`
	Warnings    []Warning      `json:"warnings"`
	Provenance  []string       `json:"provenance"`
}

// PestSection is the pest part of an evidence pack.
type PestSection struct {
	Crop         string        `json:"crop"`
	Bulletins    []Bulletin    `json:"bulletins"`
	Observations []Observation `json:"observations"`
	Provenance   []string      `json:"provenance"`
}

// EvidencePack is the terminal aggregate handed to text generation.
type EvidencePack struct {
	Profile   Profile        `json:"profile"`
	IssuedAt  time.Time      `json:"issued_at"`
	Climate   ClimateSection `json:"climate"`
	Pest      PestSection    `json:"pest"`
	PestHints []string       `json:"pest_hints"`
	SoftHints SoftHints      `json:"soft_hints"`
	Trends    Trends         `json:"trends"`
}

// FetchOutcome is the per-source result reported in diagnostics.
type FetchOutcome string

const (
	FetchOK          FetchOutcome = "ok"
	FetchCacheHit    FetchOutcome = "cache_hit"
	FetchUnavailable FetchOutcome = "unavailable"
	FetchDemo        FetchOutcome = "demo"
)

func float(v float64) *float64 { return &v }
