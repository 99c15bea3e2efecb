package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
	"github.com/i474232898/agri-evidence-aggregation/internal/evidence/sources"
)

// Allowed cache freshness windows.
const (
	minAgencyTTL = 1 * time.Hour
	maxAgencyTTL = 3 * time.Hour
	minPestTTL   = 12 * time.Hour
	maxPestTTL   = 24 * time.Hour
)

// SourceConfig addresses one upstream API.
type SourceConfig struct {
	APIKey  string
	BaseURL string
}

type AppConfig struct {
	Port            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KMA                SourceConfig
	OpenMeteo          SourceConfig
	NPMS               SourceConfig
	NPMSFallbackRunKey string

	// Timeouts bounds each source fetch.
	Timeouts map[evidence.SourceName]time.Duration

	CacheTTL        map[evidence.SourceName]time.Duration
	CacheMaxEntries int

	MergePolicy        string
	AgencyNearTermDays int
	HorizonDays        int
	HourlyWindowHours  int
	NightStartHour     int
	NightEndHour       int

	// ResolverTable is a YAML table path; empty uses the embedded table.
	ResolverTable  string
	GeocoderAPIKey string

	// WarmInterval refreshes WarmProfiles in the background; 0 disables it.
	WarmInterval time.Duration
	WarmProfiles []evidence.Profile
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	var e env
	cfg := &AppConfig{
		Port:            getenvDefault("PORT", "8080"),
		LogLevel:        getenvDefault("LOG_LEVEL", "info"),
		LogFormat:       getenvDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		KMA: SourceConfig{
			APIKey:  os.Getenv("KMA_API_KEY"),
			BaseURL: getenvDefault("KMA_BASE_URL", "https://apihub.kma.go.kr/api/typ02/openApi"),
		},
		OpenMeteo: SourceConfig{
			BaseURL: getenvDefault("OPEN_METEO_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		},
		NPMS: SourceConfig{
			APIKey:  os.Getenv("NPMS_API_KEY"),
			BaseURL: getenvDefault("NPMS_BASE_URL", "http://ncpms.rda.go.kr/npmsAPI/service"),
		},
		NPMSFallbackRunKey: getenvDefault("NPMS_FALLBACK_RUN_KEY", sources.DefaultFallbackRunKey),

		Timeouts: map[evidence.SourceName]time.Duration{
			evidence.SourceWeatherAgency:   e.positiveDuration("TIMEOUT_WEATHER_AGENCY", 8*time.Second),
			evidence.SourceNumericForecast: e.positiveDuration("TIMEOUT_NUMERIC_FORECAST", 8*time.Second),
			evidence.SourcePestBulletin:    e.positiveDuration("TIMEOUT_PEST_BULLETIN", 10*time.Second),
		},
		CacheTTL: map[evidence.SourceName]time.Duration{
			evidence.SourceWeatherAgency:   e.durationWithin("CACHE_TTL_WEATHER_AGENCY", 2*time.Hour, minAgencyTTL, maxAgencyTTL),
			evidence.SourceNumericForecast: e.positiveDuration("CACHE_TTL_NUMERIC_FORECAST", 3*time.Hour),
			evidence.SourcePestBulletin:    e.durationWithin("CACHE_TTL_PEST_BULLETIN", 12*time.Hour, minPestTTL, maxPestTTL),
		},
		CacheMaxEntries: e.intWithin("CACHE_MAX_ENTRIES", 256, 1, 1<<20),

		MergePolicy:        getenvDefault("MERGE_POLICY", evidence.PolicyAgencyNearTerm),
		AgencyNearTermDays: e.intWithin("AGENCY_NEAR_TERM_DAYS", 3, 0, evidence.DefaultHorizonDays),
		HorizonDays:        e.intWithin("HORIZON_DAYS", evidence.DefaultHorizonDays, 1, evidence.DefaultHorizonDays),
		HourlyWindowHours:  e.intWithin("HOURLY_WINDOW_HOURS", evidence.DefaultHourlyHours, 1, evidence.DefaultHourlyHours),
		NightStartHour:     e.intWithin("NIGHT_START_HOUR", evidence.DefaultNightStart, 0, 23),
		NightEndHour:       e.intWithin("NIGHT_END_HOUR", evidence.DefaultNightEnd, 0, 23),

		ResolverTable:  os.Getenv("RESOLVER_TABLE"),
		GeocoderAPIKey: os.Getenv("GEOCODER_API_KEY"),
		WarmInterval:   e.duration("WARM_INTERVAL", 0),
	}

	if _, err := evidence.PolicyByName(cfg.MergePolicy, cfg.AgencyNearTermDays); err != nil {
		e.fail("MERGE_POLICY", err)
	}
	if cfg.NightStartHour == cfg.NightEndHour {
		e.fail("NIGHT_END_HOUR", fmt.Errorf("must differ from NIGHT_START_HOUR (%d)", cfg.NightStartHour))
	}
	profiles, err := parseProfiles(os.Getenv("WARM_PROFILES"))
	if err != nil {
		e.fail("WARM_PROFILES", err)
	}
	cfg.WarmProfiles = profiles

	if err := e.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseProfiles reads a comma list of region:crop:stage triples.
func parseProfiles(raw string) ([]evidence.Profile, error) {
	var profiles []evidence.Profile
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("profile %q must be region:crop:stage", item)
		}
		p := evidence.Profile{
			Region: strings.TrimSpace(parts[0]),
			Crop:   strings.TrimSpace(parts[1]),
			Stage:  strings.TrimSpace(parts[2]),
		}
		if p.Region == "" || p.Crop == "" || p.Stage == "" {
			return nil, fmt.Errorf("profile %q has an empty field", item)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// env collects parse failures so that one Load reports every bad variable.
type env struct {
	errs []error
}

func (e *env) fail(key string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
}

func (e *env) err() error {
	return errors.Join(e.errs...)
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	d, err := getenvDuration(key, def)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *env) positiveDuration(key string, def time.Duration) time.Duration {
	d := e.duration(key, def)
	if d <= 0 {
		e.fail(key, fmt.Errorf("must be positive, got %s", d))
		return def
	}
	return d
}

func (e *env) durationWithin(key string, def, lo, hi time.Duration) time.Duration {
	d := e.duration(key, def)
	if d < lo || d > hi {
		e.fail(key, fmt.Errorf("must be within %s and %s, got %s", lo, hi, d))
		return def
	}
	return d
}

func (e *env) intWithin(key string, def, lo, hi int) int {
	n, err := getenvInt(key, def)
	if err != nil {
		e.fail(key, err)
		return def
	}
	if n < lo || n > hi {
		e.fail(key, fmt.Errorf("must be within %d and %d, got %d", lo, hi, n))
		return def
	}
	return n
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(strings.TrimSpace(v))
}
