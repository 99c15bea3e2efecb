package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
)

const defaultKMAURL = "https://apihub.kma.go.kr/api/typ02/openApi"

const (
	kmaResultOK     = "00"
	kmaResultNoData = "03"

	// Forecasts become available some minutes after their nominal base time.
	kmaShortLag = 10 * time.Minute
	kmaMidLag   = 30 * time.Minute
)

var kmaShortBaseHours = []int{23, 20, 17, 14, 11, 8, 5, 2}

// KMA is the weather-agency source client. One fetch calls the short-range,
// two mid-term and the warning endpoints concurrently; the payload is usable
// when at least one of them answered.
type KMA struct {
	baseURL string
	apiKey  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock
	logger  *slog.Logger
}

func NewKMA(cfg ClientConfig) *KMA {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultKMAURL
	}
	logger := cfg.logger()
	return &KMA{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		httpCfg: cfg.httpConfig(),
		circuit: newCircuitBreaker("kma", logger),
		clock:   cfg.clock(),
		logger:  logger,
	}
}

func (c *KMA) Name() evidence.SourceName {
	return evidence.SourceWeatherAgency
}

type kmaHeader struct {
	ResultCode string `json:"resultCode"`
	ResultMsg  string `json:"resultMsg"`
}

// kmaItems tolerates the empty string the API sends in place of an object
// when there are no rows.
type kmaItems[T any] struct {
	Item []T `json:"item"`
}

func (i *kmaItems[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		i.Item = nil
		return nil
	}
	var raw struct {
		Item oneOrMany[T] `json:"item"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.Item = raw.Item
	return nil
}

type kmaEnvelope[T any] struct {
	Response struct {
		Header kmaHeader `json:"header"`
		Body   struct {
			Items kmaItems[T] `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

func (c *KMA) Fetch(ctx context.Context, id evidence.Identity, window evidence.Window) (evidence.SourcePayload, error) {
	now := c.clock.Now().In(evidence.KST)
	shortBase := kmaShortBase(now)
	midBase := kmaMidBase(now)

	payload := evidence.KMAPayload{IssuedAt: shortBase}
	var wg sync.WaitGroup
	var shortErr, landErr, tempErr, wrnErr error
	wg.Add(4)
	go func() {
		defer wg.Done()
		payload.ShortRange, shortErr = c.fetchShortRange(ctx, id, shortBase)
	}()
	go func() {
		defer wg.Done()
		payload.MidLand, landErr = c.fetchMidLand(ctx, id, midBase)
	}()
	go func() {
		defer wg.Done()
		payload.MidTemp, tempErr = c.fetchMidTemp(ctx, id, midBase)
	}()
	go func() {
		defer wg.Done()
		payload.Warnings, wrnErr = c.fetchWarnings(ctx, id, now)
	}()
	wg.Wait()

	parts := map[string]error{"short_range": shortErr, "mid_land": landErr, "mid_temp": tempErr, "warnings": wrnErr}
	var failed []error
	for part, err := range parts {
		if err != nil {
			c.logger.Warn("kma call failed", "part", part, "grid_x", id.GridX, "grid_y", id.GridY, "error", err)
			failed = append(failed, fmt.Errorf("%s: %w", part, err))
		}
	}
	if len(failed) == len(parts) {
		return nil, evidence.Unavailable(c.Name(), errors.Join(failed...))
	}
	if landErr == nil || tempErr == nil {
		payload.MidIssuedAt = midBase
	}
	if shortErr != nil {
		payload.IssuedAt = midBase
	}
	return payload, nil
}

func (c *KMA) fetchShortRange(ctx context.Context, id evidence.Identity, base time.Time) ([]evidence.KMAShortItem, error) {
	values := c.values(1000)
	values.Set("base_date", base.Format("20060102"))
	values.Set("base_time", base.Format("1504"))
	values.Set("nx", strconv.Itoa(id.GridX))
	values.Set("ny", strconv.Itoa(id.GridY))
	return kmaCall[evidence.KMAShortItem](ctx, c, "VilageFcstInfoService_2.0/getVilageFcst", values, false)
}

func (c *KMA) fetchMidLand(ctx context.Context, id evidence.Identity, tmFc time.Time) ([]evidence.KMAMidLandDay, error) {
	values := c.values(10)
	values.Set("regId", id.AreaCode)
	values.Set("tmFc", tmFc.Format("200601021504"))
	rows, err := kmaCall[map[string]any](ctx, c, "MidFcstInfoService/getMidLandFcst", values, false)
	if err != nil {
		return nil, err
	}
	var days []evidence.KMAMidLandDay
	for _, row := range rows {
		for n := 3; n <= 10; n++ {
			d := evidence.KMAMidLandDay{Offset: n}
			if n <= 7 {
				d.WfAm = stringField(row, fmt.Sprintf("wf%dAm", n))
				d.WfPm = stringField(row, fmt.Sprintf("wf%dPm", n))
				d.RnStAm = numberField(row, fmt.Sprintf("rnSt%dAm", n))
				d.RnStPm = numberField(row, fmt.Sprintf("rnSt%dPm", n))
			} else {
				d.WfAm = stringField(row, fmt.Sprintf("wf%d", n))
				d.RnStAm = numberField(row, fmt.Sprintf("rnSt%d", n))
			}
			if d.WfAm == "" && d.WfPm == "" && d.RnStAm == nil && d.RnStPm == nil {
				continue
			}
			days = append(days, d)
		}
	}
	return days, nil
}

func (c *KMA) fetchMidTemp(ctx context.Context, id evidence.Identity, tmFc time.Time) ([]evidence.KMAMidTempDay, error) {
	values := c.values(10)
	values.Set("regId", id.TempAreaCode)
	values.Set("tmFc", tmFc.Format("200601021504"))
	rows, err := kmaCall[map[string]any](ctx, c, "MidFcstInfoService/getMidTa", values, false)
	if err != nil {
		return nil, err
	}
	var days []evidence.KMAMidTempDay
	for _, row := range rows {
		for n := 3; n <= 10; n++ {
			d := evidence.KMAMidTempDay{
				Offset: n,
				TaMin:  numberField(row, fmt.Sprintf("taMin%d", n)),
				TaMax:  numberField(row, fmt.Sprintf("taMax%d", n)),
			}
			if d.TaMin == nil && d.TaMax == nil {
				continue
			}
			days = append(days, d)
		}
	}
	return days, nil
}

func (c *KMA) fetchWarnings(ctx context.Context, id evidence.Identity, now time.Time) ([]evidence.KMAWarningItem, error) {
	values := c.values(100)
	values.Set("areaCode", id.WarnAreaCode)
	values.Set("fromTmFc", now.AddDate(0, 0, -1).Format("20060102"))
	values.Set("toTmFc", now.Format("20060102"))
	return kmaCall[evidence.KMAWarningItem](ctx, c, "WthrWrnInfoService/getWthrWrnList", values, true)
}

func (c *KMA) values(rows int) url.Values {
	values := url.Values{}
	values.Set("authKey", c.apiKey)
	values.Set("dataType", "JSON")
	values.Set("pageNo", "1")
	values.Set("numOfRows", strconv.Itoa(rows))
	return values
}

// kmaCall fetches one endpoint and checks the result header. With
// noDataOK, the NO_DATA result is an empty success.
func kmaCall[T any](ctx context.Context, c *KMA, path string, values url.Values, noDataOK bool) ([]T, error) {
	var env kmaEnvelope[T]
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, path, values.Encode())
	if err := getJSON(ctx, c.httpCfg, c.circuit, u, &env); err != nil {
		return nil, err
	}
	h := env.Response.Header
	switch {
	case h.ResultCode == kmaResultOK:
		return env.Response.Body.Items.Item, nil
	case h.ResultCode == kmaResultNoData && noDataOK:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s resultCode=%q %s", errUpstream, path, h.ResultCode, h.ResultMsg)
	}
}

// kmaShortBase returns the latest short-range issuance old enough to be published.
func kmaShortBase(now time.Time) time.Time {
	t := now.Add(-kmaShortLag)
	for _, h := range kmaShortBaseHours {
		if t.Hour() >= h {
			return time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, evidence.KST)
		}
	}
	prev := t.AddDate(0, 0, -1)
	return time.Date(prev.Year(), prev.Month(), prev.Day(), 23, 0, 0, 0, evidence.KST)
}

// kmaMidBase returns the latest 06:00 or 18:00 mid-term issuance.
func kmaMidBase(now time.Time) time.Time {
	t := now.Add(-kmaMidLag)
	switch {
	case t.Hour() >= 18:
		return time.Date(t.Year(), t.Month(), t.Day(), 18, 0, 0, 0, evidence.KST)
	case t.Hour() >= 6:
		return time.Date(t.Year(), t.Month(), t.Day(), 6, 0, 0, 0, evidence.KST)
	default:
		prev := t.AddDate(0, 0, -1)
		return time.Date(prev.Year(), prev.Month(), prev.Day(), 18, 0, 0, 0, evidence.KST)
	}
}

func stringField(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func numberField(row map[string]any, key string) *float64 {
	var f float64
	switch v := row[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
