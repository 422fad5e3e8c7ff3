// Package main provides the entrypoint for the groundwatch API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/api"
	"github.com/groundwatch/groundwatch/internal/api/middleware"
	"github.com/groundwatch/groundwatch/internal/config"
	"github.com/groundwatch/groundwatch/internal/database"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/groundwater/dwlr"
	"github.com/groundwatch/groundwatch/internal/provider/resilience"
	"github.com/groundwatch/groundwatch/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "groundwatch-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Str("snapshot_source", cfg.SnapshotSource).
		Msg("starting groundwatch API")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	estimateMetrics, err := middleware.NewEstimateMetrics(telemetry.Meter(serviceName))
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize estimate metrics")
		os.Exit(1)
	}

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.Database.Redacted()).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("database", cfg.Database.Redacted()).
		Msg("database connected")

	clock := clockwork.NewRealClock()
	feeds := resilience.NewRegistry()
	stations := groundwater.NewPostgresRepository(pool)

	var provider groundwater.Provider
	switch cfg.SnapshotSource {
	case config.SourceDWLR:
		provider = dwlr.NewClient(dwlr.ClientConfig{
			BaseURL:        cfg.DWLR.BaseURL,
			APIKey:         cfg.DWLR.APIKey,
			Registry:       feeds,
			Timeout:        cfg.DWLR.Timeout,
			SnapshotWindow: cfg.DWLR.SnapshotWindow,
			Clock:          clock,
		})
	default:
		provider = groundwater.NewRepositoryProvider(stations, clock)
	}

	groundwaterService := groundwater.NewService(groundwater.ServiceConfig{
		Provider:        provider,
		Logger:          log.With().Str("component", "groundwater").Logger(),
		CacheTTL:        cfg.CacheTTL,
		StaleIfErrorTTL: cfg.StaleIfErrorTTL,
		Interpolation:   cfg.Interpolation,
		History:         stations,
		Clock:           clock,
	})
	log.Info().Msg("groundwater service initialized")

	alertService := alert.NewService(alert.ServiceConfig{
		Repository: alert.NewPostgresRepository(pool),
		Logger:     log.With().Str("component", "alert").Logger(),
	})
	log.Info().Msg("alert service initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		EstimateMetrics:    estimateMetrics,
		GroundwaterService: groundwaterService,
		AlertService:       alertService,
		Districts:          stations,
		Database:           pool,
		Feeds:              feeds,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequireTLS:         cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
