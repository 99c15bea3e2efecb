// Package app assembles the evidence service from configuration. Both the
// HTTP server and the probe CLI build through it.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/agri-evidence-aggregation/internal/cache"
	"github.com/i474232898/agri-evidence-aggregation/internal/config"
	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
	"github.com/i474232898/agri-evidence-aggregation/internal/evidence/sources"
	"github.com/i474232898/agri-evidence-aggregation/internal/observability"
	"github.com/i474232898/agri-evidence-aggregation/internal/resolver"
)

// Components is everything Build wires together.
type Components struct {
	Resolver *resolver.Resolver
	Cache    *cache.Cache
	Service  *evidence.Service
}

// Build loads the resolver table, constructs the source clients, the payload
// cache and the orchestrator.
func Build(cfg *config.AppConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Components, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	res, err := loadResolver(cfg, logger)
	if err != nil {
		return nil, err
	}

	payloadCache, err := cache.New(cache.Config{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheMaxEntries}, clock, metrics)
	if err != nil {
		return nil, fmt.Errorf("payload cache: %w", err)
	}

	policy, err := evidence.PolicyByName(cfg.MergePolicy, cfg.AgencyNearTermDays)
	if err != nil {
		return nil, err
	}

	// Per-source deadlines come from the service; the client timeout is a backstop.
	httpClient := &http.Client{Timeout: 2 * maxTimeout(cfg)}
	clientCfg := func(src config.SourceConfig, name string) sources.ClientConfig {
		return sources.ClientConfig{
			HTTPClient: httpClient,
			BaseURL:    src.BaseURL,
			APIKey:     src.APIKey,
			Clock:      clock,
			Logger:     logger.With("source", name),
		}
	}
	srcs := []evidence.Source{
		sources.NewKMA(clientCfg(cfg.KMA, string(evidence.SourceWeatherAgency))),
		sources.NewOpenMeteo(clientCfg(cfg.OpenMeteo, string(evidence.SourceNumericForecast))),
		sources.NewNPMS(clientCfg(cfg.NPMS, string(evidence.SourcePestBulletin)), cfg.NPMSFallbackRunKey),
	}
	if cfg.KMA.APIKey == "" {
		logger.Warn("KMA_API_KEY not set; weather agency requests will be rejected upstream")
	}
	if cfg.NPMS.APIKey == "" {
		logger.Warn("NPMS_API_KEY not set; pest bulletin requests will be rejected upstream")
	}

	svc := evidence.NewService(res, srcs, payloadCache, evidence.Config{
		Policy:      policy,
		HorizonDays: cfg.HorizonDays,
		HourlyHours: cfg.HourlyWindowHours,
		Timeouts:    cfg.Timeouts,
		SoftHints:   evidence.SoftHintCalculator{NightStart: cfg.NightStartHour, NightEnd: cfg.NightEndHour},
	}, clock, logger, metrics)

	return &Components{Resolver: res, Cache: payloadCache, Service: svc}, nil
}

func loadResolver(cfg *config.AppConfig, logger *slog.Logger) (*resolver.Resolver, error) {
	var (
		table resolver.Table
		err   error
	)
	if cfg.ResolverTable != "" {
		table, err = resolver.LoadTableFile(cfg.ResolverTable)
	} else {
		table, err = resolver.DefaultTable()
	}
	if err != nil {
		return nil, fmt.Errorf("resolver table: %w", err)
	}
	if cfg.GeocoderAPIKey != "" {
		if err := resolver.FillCoordinates(&table, resolver.NewGoogleGeocoder(cfg.GeocoderAPIKey)); err != nil {
			return nil, fmt.Errorf("geocode resolver table: %w", err)
		}
	}
	res, err := resolver.New(table)
	if err != nil {
		return nil, fmt.Errorf("resolver table: %w", err)
	}
	logger.Info("resolver table loaded", "version", res.Version(), "records", len(table.Records))
	return res, nil
}

func maxTimeout(cfg *config.AppConfig) time.Duration {
	longest := 10 * time.Second
	for _, d := range cfg.Timeouts {
		longest = max(longest, d)
	}
	return longest
}
