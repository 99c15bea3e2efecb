package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/agri-evidence-aggregation/internal/api/http"
	"github.com/i474232898/agri-evidence-aggregation/internal/app"
	"github.com/i474232898/agri-evidence-aggregation/internal/config"
	"github.com/i474232898/agri-evidence-aggregation/internal/observability"
	"github.com/i474232898/agri-evidence-aggregation/internal/scheduler"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logr)

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	// Resolver, source clients, payload cache and orchestrator.
	components, err := app.Build(cfg, nil, logr, metrics)
	if err != nil {
		logr.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	// Scheduler that keeps the cache warm for configured profiles.
	sched := scheduler.New(cfg.WarmProfiles, cfg.WarmInterval, components.Service, logr)
	if err := sched.Start(); err != nil {
		logr.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Aggregation waits on upstream deadlines, so the write timeout leaves room for them.
	server := fiber.New(fiber.Config{
		AppName:               "agri-evidence-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	server.Use(logger.New())
	server.Use(recover.New())

	// API routes.
	httpapi.RegisterRoutes(server, components.Service)
	httpapi.RegisterMetrics(server, promhttp.Handler())

	go func() {
		logr.Info("listening", "port", cfg.Port)
		if err := server.Listen(":" + cfg.Port); err != nil {
			logr.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logr.Error("error during shutdown", "error", err)
	}
}
