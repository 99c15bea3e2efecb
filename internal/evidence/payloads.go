package evidence

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SourcePayload is the raw, source-specific response of one fetch.
// The concrete variants are KMAPayload, OpenMeteoPayload and NPMSPayload.
type SourcePayload interface {
	Source() SourceName
	Issued() time.Time
	sourcePayload()
}

// FlexString decodes JSON strings and numbers alike. Upstream feeds are not
// consistent about quoting codes and values.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return strings.TrimSpace(string(f)) }

// Float parses the value, reporting false when it is empty or not numeric.
func (f FlexString) Float() (float64, bool) {
	v, err := strconv.ParseFloat(f.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// KMAPayload bundles the weather agency's short-range grid forecast,
// mid-term outlooks and active warnings. Each part may be missing when
// its endpoint failed; the payload is still usable if any part arrived.
type KMAPayload struct {
	IssuedAt time.Time
	// MidIssuedAt is the tmFc of the mid-term products; day offsets count from it.
	MidIssuedAt time.Time

	ShortRange []KMAShortItem
	MidLand    []KMAMidLandDay
	MidTemp    []KMAMidTempDay
	Warnings   []KMAWarningItem
}

func (KMAPayload) Source() SourceName  { return SourceWeatherAgency }
func (p KMAPayload) Issued() time.Time { return p.IssuedAt }
func (KMAPayload) sourcePayload()      {}

// KMAShortItem is one category/value cell of the short-range grid forecast.
type KMAShortItem struct {
	Category  string     `json:"category"`
	FcstDate  FlexString `json:"fcstDate"`
	FcstTime  FlexString `json:"fcstTime"`
	FcstValue FlexString `json:"fcstValue"`
}

// KMAMidLandDay is the mid-term sky and precipitation outlook for day Offset
// after MidIssuedAt. Days beyond the seventh carry a single half-day.
type KMAMidLandDay struct {
	Offset int
	WfAm   string
	WfPm   string
	RnStAm *float64
	RnStPm *float64
}

// KMAMidTempDay is the mid-term temperature outlook for day Offset.
type KMAMidTempDay struct {
	Offset int
	TaMin  *float64
	TaMax  *float64
}

// KMAWarningItem is one row of the agency's warning list.
type KMAWarningItem struct {
	RegName FlexString `json:"regName"`
	TmFc    FlexString `json:"tmFc"`
	TmEf    FlexString `json:"tmEf"`
	TmEnd   FlexString `json:"tmEnd"`
	Wrn     FlexString `json:"wrn"`
	Lvl     FlexString `json:"lvl"`
	Cmd     FlexString `json:"cmd"`
}

// OpenMeteoPayload is the numeric-model forecast as returned upstream.
type OpenMeteoPayload struct {
	IssuedAt time.Time       `json:"-"`
	Timezone string          `json:"timezone"`
	Hourly   OpenMeteoHourly `json:"hourly"`
	Daily    OpenMeteoDaily  `json:"daily"`
}

func (OpenMeteoPayload) Source() SourceName  { return SourceNumericForecast }
func (p OpenMeteoPayload) Issued() time.Time { return p.IssuedAt }
func (OpenMeteoPayload) sourcePayload()      {}

// OpenMeteoHourly holds parallel arrays indexed by Time. Wind is km/h.
type OpenMeteoHourly struct {
	Time               []string   `json:"time"`
	Temperature        []*float64 `json:"temperature_2m"`
	RelativeHumidity   []*float64 `json:"relative_humidity_2m"`
	WindSpeed          []*float64 `json:"wind_speed_10m"`
	WindGusts          []*float64 `json:"wind_gusts_10m"`
	Precipitation      []*float64 `json:"precipitation"`
	ShortwaveRadiation []*float64 `json:"shortwave_radiation"`
}

// OpenMeteoDaily holds parallel arrays indexed by Time. Wind is km/h.
type OpenMeteoDaily struct {
	Time                        []string   `json:"time"`
	TemperatureMax              []*float64 `json:"temperature_2m_max"`
	TemperatureMin              []*float64 `json:"temperature_2m_min"`
	PrecipitationSum            []*float64 `json:"precipitation_sum"`
	WindSpeedMax                []*float64 `json:"wind_speed_10m_max"`
	PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
}

// NPMSPayload carries the pest service's crop forecast models and the
// regional field survey. Either part may be missing.
type NPMSPayload struct {
	IssuedAt   time.Time
	CropCode   string
	RegionCode string
	RegionName string

	Models   []NPMSPestModel
	ModelsOK bool

	// RunKey identifies the survey run the observations came from.
	RunKey         string
	RunKeyFallback bool
	Observations   []NPMSObservation
	ObservationsOK bool
}

func (NPMSPayload) Source() SourceName  { return SourcePestBulletin }
func (p NPMSPayload) Issued() time.Time { return p.IssuedAt }
func (NPMSPayload) sourcePayload()      {}

// NPMSPestModel is one forecast model row. Text fields are URL-encoded
// and may contain HTML markup.
type NPMSPestModel struct {
	KncrCode           FlexString `json:"kncrCode"`
	DbyhsMdlNm         FlexString `json:"dbyhsMdlNm"`
	ValidAlarmRiskIdex FlexString `json:"validAlarmRiskIdex"`
	PestConfigStr      FlexString `json:"pestConfigStr"`
	NowDrveDatetm      FlexString `json:"nowDrveDatetm"`
}

// NPMSObservation is one survey measurement row.
type NPMSObservation struct {
	SidoCode    FlexString `json:"sidoCode"`
	SigunguCode FlexString `json:"sigunguCode"`
	SigunguNm   FlexString `json:"sigunguNm"`
	// DbyhsNm reads "pest(metric)".
	DbyhsNm        FlexString `json:"dbyhsNm"`
	InqireCnClCode FlexString `json:"inqireCnClCode"`
	InqireValue    FlexString `json:"inqireValue"`
}
