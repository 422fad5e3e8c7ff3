// Package main provides the entrypoint for the groundwatch worker, which
// ingests DWLR readings, raises alerts and refreshes district estimates.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/config"
	"github.com/groundwatch/groundwatch/internal/database"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/groundwater/dwlr"
	"github.com/groundwatch/groundwatch/internal/provider/resilience"
	"github.com/groundwatch/groundwatch/internal/telemetry"
	"github.com/groundwatch/groundwatch/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// localJobInterval paces jobs when no Pub/Sub subscription is configured.
const localJobInterval = 15 * time.Minute

func main() {
	const serviceName = "groundwatch-worker"

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
		Msg("starting groundwatch worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	jobMetrics, err := telemetry.NewJobMetrics(telemetry.Meter(serviceName))
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize job metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.Database.Redacted()).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().Str("database", cfg.Database.Redacted()).Msg("database connected")

	clock := clockwork.NewRealClock()
	feeds := resilience.NewRegistry()
	stations := groundwater.NewPostgresRepository(pool)

	feed := dwlr.NewClient(dwlr.ClientConfig{
		BaseURL:        cfg.DWLR.BaseURL,
		APIKey:         cfg.DWLR.APIKey,
		Registry:       feeds,
		Timeout:        cfg.DWLR.Timeout,
		SnapshotWindow: cfg.DWLR.SnapshotWindow,
		Clock:          clock,
	})

	alertService := alert.NewService(alert.ServiceConfig{
		Repository: alert.NewPostgresRepository(pool),
		Logger:     log.With().Str("component", "alert").Logger(),
	})

	groundwaterService := groundwater.NewService(groundwater.ServiceConfig{
		Provider:        groundwater.NewRepositoryProvider(stations, clock),
		Logger:          log.With().Str("component", "groundwater").Logger(),
		CacheTTL:        cfg.CacheTTL,
		StaleIfErrorTTL: cfg.StaleIfErrorTTL,
		Interpolation:   cfg.Interpolation,
		Clock:           clock,
	})

	ingestJob := worker.NewIngestJob(worker.IngestJobConfig{
		Config:     worker.DefaultIngestConfig(),
		Feed:       feed,
		Repository: stations,
		Alerts:     alertService,
		Metrics:    jobMetrics,
		Logger:     log.With().Str("job", worker.JobIngestReadings).Logger(),
		Clock:      clock,
	})

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    worker.DefaultRefreshConfig(),
		Logger:    log.With().Str("job", worker.JobRefreshEstimates).Logger(),
		Estimator: groundwaterService,
		Summaries: stations,
		Clock:     clock,
	})

	dispatcher := worker.NewDispatcher(ingestJob, refreshJob, log)

	mux := http.NewServeMux()
	mux.Handle("/health", worker.HealthHandler(worker.HealthConfig{
		Version: Version,
		Feeds:   feeds,
		Refresh: refreshJob,
	}))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSubProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Dispatcher:       dispatcher,
			Metrics:          jobMetrics,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().
			Dur("interval", localJobInterval).
			Msg("PUBSUB_PROJECT_ID not set, running jobs on a local ticker")
		go runLocal(ctx, clock, dispatcher, jobMetrics, log)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runLocal runs ingest followed by refresh on every tick until ctx is done.
func runLocal(ctx context.Context, clock clockwork.Clock, d *worker.Dispatcher, metrics *telemetry.JobMetrics, log zerolog.Logger) {
	run := func() {
		for _, job := range []string{worker.JobIngestReadings, worker.JobRefreshEstimates} {
			start := clock.Now()
			payload, _ := json.Marshal(worker.JobMessage{JobType: job})
			_, err := d.Dispatch(ctx, payload)
			metrics.RecordJob(ctx, job, clock.Since(start), err)
			if err != nil {
				log.Error().Err(err).Str("job_type", job).Msg("job failed")
			}
		}
	}

	run()
	ticker := clock.NewTicker(localJobInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			run()
		}
	}
}
