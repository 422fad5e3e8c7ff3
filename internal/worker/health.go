package worker

import (
	"encoding/json"
	"net/http"

	"github.com/groundwatch/groundwatch/internal/provider/resilience"
)

// HealthConfig holds what the worker health endpoint reports.
type HealthConfig struct {
	Version string

	// Feeds and Refresh are optional.
	Feeds   *resilience.Registry
	Refresh *RefreshJob
}

// HealthHandler serves the worker's liveness endpoint: its version, the
// status of each upstream feed and the refresh job's running totals.
func HealthHandler(cfg HealthConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]interface{}{
			"status":  "healthy",
			"version": cfg.Version,
		}
		if cfg.Feeds != nil {
			feeds := make(map[string]string, cfg.Feeds.FeedCount())
			for _, h := range cfg.Feeds.GetAllHealth() {
				feeds[h.Name] = h.Status()
			}
			body["feeds"] = feeds
		}
		if cfg.Refresh != nil {
			body["refresh"] = cfg.Refresh.MetricsSnapshot()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	})
}
