package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
)

const defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

const (
	openMeteoHourly = "temperature_2m,relative_humidity_2m,wind_speed_10m,wind_gusts_10m,precipitation,shortwave_radiation"
	openMeteoDaily  = "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max,precipitation_probability_max"
)

// OpenMeteo is the numeric-forecast source client.
type OpenMeteo struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock
	logger  *slog.Logger
}

func NewOpenMeteo(cfg ClientConfig) *OpenMeteo {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenMeteoURL
	}
	logger := cfg.logger()
	return &OpenMeteo{
		baseURL: baseURL,
		httpCfg: cfg.httpConfig(),
		circuit: newCircuitBreaker("open-meteo", logger),
		clock:   cfg.clock(),
		logger:  logger,
	}
}

func (c *OpenMeteo) Name() evidence.SourceName {
	return evidence.SourceNumericForecast
}

func (c *OpenMeteo) Fetch(ctx context.Context, id evidence.Identity, window evidence.Window) (evidence.SourcePayload, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(id.Lat, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(id.Lon, 'f', 4, 64))
	values.Set("hourly", openMeteoHourly)
	values.Set("daily", openMeteoDaily)
	values.Set("forecast_days", strconv.Itoa(window.Days+1))
	values.Set("forecast_hours", strconv.Itoa(window.Hours))
	values.Set("timezone", "Asia/Seoul")

	var payload evidence.OpenMeteoPayload
	u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
	if err := getJSON(ctx, c.httpCfg, c.circuit, u, &payload); err != nil {
		c.logger.Warn("open-meteo fetch failed", "lat", id.Lat, "lon", id.Lon, "error", err)
		return nil, evidence.Unavailable(c.Name(), err)
	}
	payload.IssuedAt = c.clock.Now().In(evidence.KST)
	return payload, nil
}
