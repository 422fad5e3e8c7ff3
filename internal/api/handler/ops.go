package handler

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/api/models"
	"github.com/groundwatch/groundwatch/internal/api/response"
	"github.com/groundwatch/groundwatch/internal/database"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/provider/resilience"
)

// readyTimeout bounds the database ping in readiness checks.
const readyTimeout = 2 * time.Second

// CacheReporter reports the snapshot cache state.
type CacheReporter interface {
	CacheStatus() groundwater.CacheStatus
}

// OpsHandlerConfig holds dependencies for OpsHandler. Every dependency
// except the build info is optional.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	Database database.Pinger
	Feeds    *resilience.Registry
	Cache    CacheReporter

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        database.Pinger
	feeds     *resilience.Registry
	cache     CacheReporter
	clock     clockwork.Clock
	logger    zerolog.Logger
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		db:        cfg.Database,
		feeds:     cfg.Feeds,
		cache:     cfg.Cache,
		clock:     clock,
		logger:    cfg.Logger,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
	}

	if h.db != nil {
		if err := database.CheckReady(r.Context(), h.db, readyTimeout); err != nil {
			h.logger.Warn().Err(err).Msg("readiness check failed")
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem, feed and snapshot
// status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.clock.Now()),
		Subsystems: []models.SubsystemStatus{},
		Feeds:      []models.FeedStatus{},
	}

	if h.db != nil {
		sub := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
		if err := database.CheckReady(r.Context(), h.db, readyTimeout); err != nil {
			sub.Status = models.HealthStatusFail
			detail := err.Error()
			sub.Detail = &detail
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.feeds != nil {
		for _, fh := range h.feeds.GetAllHealth() {
			status.Feeds = append(status.Feeds, toFeedStatus(fh))
		}
	}

	if h.cache != nil {
		cs := h.cache.CacheStatus()
		status.Snapshot = models.SnapshotStatus{
			HasData:      cs.HasData,
			Source:       cs.Provider,
			StationCount: cs.StationCount,
			FetchedAt:    models.TimestampPtr(cs.FetchedAt),
			ExpiresAt:    models.TimestampPtr(cs.ExpiresAt),
			Expired:      cs.IsExpired,
			Stale:        cs.IsStale,
		}

		sub := models.SubsystemStatus{Name: "snapshot-cache", Status: models.HealthStatusOK}
		switch {
		case !cs.HasData:
			sub.Status = models.HealthStatusDegraded
			detail := "no snapshot loaded yet"
			sub.Detail = &detail
		case cs.IsStale:
			sub.Status = models.HealthStatusDegraded
			detail := "snapshot is older than the stale-if-error window"
			sub.Detail = &detail
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	for _, sub := range status.Subsystems {
		status.Status = worse(status.Status, sub.Status)
	}
	for _, feed := range status.Feeds {
		status.Status = worse(status.Status, feed.Status)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func toFeedStatus(fh *resilience.FeedHealth) models.FeedStatus {
	fs := models.FeedStatus{
		Feed:                fh.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        fh.CircuitState.String(),
		ConsecutiveFailures: int(fh.Counts.ConsecutiveFailures),
	}
	if fh.LastSuccessAt != nil {
		fs.LastSuccessAt = models.TimestampPtr(*fh.LastSuccessAt)
	}
	if fh.LastFailureAt != nil {
		fs.LastFailureAt = models.TimestampPtr(*fh.LastFailureAt)
	}
	if fh.LastError != "" {
		msg := fh.LastError
		fs.Message = &msg
	}

	switch fh.Status() {
	case resilience.HealthStatusUnhealthy:
		fs.Status = models.HealthStatusFail
	case resilience.HealthStatusDegraded:
		fs.Status = models.HealthStatusDegraded
	}
	return fs
}

// worse folds a component status into the overall one. The overall status
// never goes below DEGRADED.
func worse(current, next models.HealthStatus) models.HealthStatus {
	if next == models.HealthStatusOK || current == models.HealthStatusDegraded {
		return current
	}
	return models.HealthStatusDegraded
}
