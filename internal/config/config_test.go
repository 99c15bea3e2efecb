package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
	"github.com/i474232898/agri-evidence-aggregation/internal/evidence/sources"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://apihub.kma.go.kr/api/typ02/openApi", cfg.KMA.BaseURL)
	assert.Equal(t, sources.DefaultFallbackRunKey, cfg.NPMSFallbackRunKey)
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL[evidence.SourceWeatherAgency])
	assert.Equal(t, 3*time.Hour, cfg.CacheTTL[evidence.SourceNumericForecast])
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL[evidence.SourcePestBulletin])
	assert.Equal(t, 10*time.Second, cfg.Timeouts[evidence.SourcePestBulletin])
	assert.Equal(t, evidence.PolicyAgencyNearTerm, cfg.MergePolicy)
	assert.Equal(t, 3, cfg.AgencyNearTermDays)
	assert.Equal(t, 10, cfg.HorizonDays)
	assert.Equal(t, 72, cfg.HourlyWindowHours)
	assert.Equal(t, 21, cfg.NightStartHour)
	assert.Equal(t, 6, cfg.NightEndHour)
	assert.Zero(t, cfg.WarmInterval)
	assert.Empty(t, cfg.WarmProfiles)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KMA_API_KEY", "kma-key")
	t.Setenv("CACHE_TTL_WEATHER_AGENCY", "90m")
	t.Setenv("CACHE_TTL_PEST_BULLETIN", "24h")
	t.Setenv("MERGE_POLICY", "numeric_primary")
	t.Setenv("HORIZON_DAYS", "7")
	t.Setenv("WARM_INTERVAL", "30m")
	t.Setenv("WARM_PROFILES", "Andong-si:apple:flowering, Gimcheon-si:tomato:fruiting")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "kma-key", cfg.KMA.APIKey)
	assert.Equal(t, 90*time.Minute, cfg.CacheTTL[evidence.SourceWeatherAgency])
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL[evidence.SourcePestBulletin])
	assert.Equal(t, evidence.PolicyNumericPrimary, cfg.MergePolicy)
	assert.Equal(t, 7, cfg.HorizonDays)
	assert.Equal(t, 30*time.Minute, cfg.WarmInterval)
	assert.Equal(t, []evidence.Profile{
		{Region: "Andong-si", Crop: "apple", Stage: "flowering"},
		{Region: "Gimcheon-si", Crop: "tomato", Stage: "fruiting"},
	}, cfg.WarmProfiles)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CACHE_TTL_WEATHER_AGENCY", "4h"},
		{"CACHE_TTL_WEATHER_AGENCY", "30m"},
		{"CACHE_TTL_PEST_BULLETIN", "6h"},
		{"CACHE_TTL_NUMERIC_FORECAST", "0s"},
		{"TIMEOUT_NUMERIC_FORECAST", "soon"},
		{"HORIZON_DAYS", "11"},
		{"HOURLY_WINDOW_HOURS", "96"},
		{"CACHE_MAX_ENTRIES", "many"},
		{"MERGE_POLICY", "blend"},
		{"NIGHT_END_HOUR", "21"},
		{"WARM_PROFILES", "Andong-si:apple"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestFromEnv_ReportsEveryBadVariable(t *testing.T) {
	t.Setenv("HORIZON_DAYS", "0")
	t.Setenv("SHUTDOWN_TIMEOUT", "later")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HORIZON_DAYS")
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}
