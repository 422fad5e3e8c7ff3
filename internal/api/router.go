// Package api provides the HTTP API for groundwatch.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/api/handler"
	"github.com/groundwatch/groundwatch/internal/api/middleware"
	"github.com/groundwatch/groundwatch/internal/database"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics and EstimateMetrics are optional.
	Metrics         *middleware.Metrics
	EstimateMetrics *middleware.EstimateMetrics

	GroundwaterService *groundwater.Service

	// AlertService is optional; without it the alert routes are not mounted.
	AlertService *alert.Service

	// Districts is optional; without it /v1/districts is not mounted.
	Districts handler.DistrictLister

	// Database and Feeds are optional and feed the ops endpoints.
	Database database.Pinger
	Feeds    *resilience.Registry

	// RateLimitPerMinute is the per-IP limit for standard endpoints
	// (default: middleware.StandardRateLimit).
	RateLimitPerMinute int

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "groundwatch-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	opsCfg := handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Database:  cfg.Database,
		Feeds:     cfg.Feeds,
		Logger:    cfg.Logger,
	}
	if cfg.GroundwaterService != nil {
		opsCfg.Cache = cfg.GroundwaterService
	}
	opsHandler := handler.NewOpsHandler(opsCfg)
	metadataHandler := handler.NewMetadataHandler()

	standard := middleware.StandardRateLimit
	if cfg.RateLimitPerMinute > 0 {
		standard = middleware.PerMinute(cfg.RateLimitPerMinute)
	}
	standardRateLimit := middleware.RateLimitByIP(standard)
	estimateRateLimit := middleware.RateLimitByIP(middleware.EstimateRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/enums", metadataHandler.GetEnums)
		})

		if cfg.GroundwaterService != nil {
			groundwaterHandler := handler.NewGroundwaterHandler(handler.GroundwaterHandlerConfig{
				Service: cfg.GroundwaterService,
				Metrics: cfg.EstimateMetrics,
				Logger:  cfg.Logger,
			})

			stationCfg := handler.StationHandlerConfig{
				Stations: cfg.GroundwaterService,
				Logger:   cfg.Logger,
			}
			if cfg.AlertService != nil {
				stationCfg.Alerts = cfg.AlertService
			}
			stationHandler := handler.NewStationHandler(stationCfg)

			r.Route("/groundwater", func(r chi.Router) {
				r.With(standardRateLimit).Get("/estimate", groundwaterHandler.Estimate)

				// Multi-point requests share a stricter limit
				r.Group(func(r chi.Router) {
					r.Use(estimateRateLimit)
					r.With(middleware.RequireJSON).Post("/estimates:batch", groundwaterHandler.BatchEstimate)
					r.Get("/transect", groundwaterHandler.Transect)
				})
			})

			r.Route("/stations", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", stationHandler.ListNearest)
				r.Get("/summary", stationHandler.Summary)
				r.Route("/{stationId}", func(r chi.Router) {
					r.Get("/", stationHandler.Get)
					r.Get("/alerts", stationHandler.ListAlerts)
				})
			})
		}

		if cfg.Districts != nil {
			districtHandler := handler.NewDistrictHandler(cfg.Districts, cfg.Logger)
			r.With(standardRateLimit).Get("/districts", districtHandler.List)
		}

		if cfg.AlertService != nil {
			alertHandler := handler.NewAlertHandler(cfg.AlertService, cfg.Logger)

			r.Route("/alerts", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", alertHandler.List)
				r.Post("/{alertId}/acknowledge", alertHandler.Acknowledge)
			})
		}
	})

	return r
}
