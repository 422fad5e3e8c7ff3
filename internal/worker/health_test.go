package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/provider/resilience"
	"github.com/groundwatch/groundwatch/internal/worker"
)

func TestHealthHandler(t *testing.T) {
	feeds := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "dwlr", Registry: feeds})

	job := newRefreshJob(&fakeEstimator{},
		worker.RefreshTarget{Name: "Pune", Points: []geo.Point{{Lat: 21, Lon: 73.8}}},
	)
	_ = job.Run(context.Background())

	h := worker.HealthHandler(worker.HealthConfig{Version: "v1.2.3", Feeds: feeds, Refresh: job})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status  string            `json:"status"`
		Version string            `json:"version"`
		Feeds   map[string]string `json:"feeds"`
		Refresh map[string]any    `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "v1.2.3", body.Version)
	assert.Equal(t, map[string]string{"dwlr": resilience.HealthStatusHealthy}, body.Feeds)
	require.NotNil(t, body.Refresh)
	assert.EqualValues(t, 1, body.Refresh["total_refreshes"])
	assert.EqualValues(t, 1, body.Refresh["critical_estimates"])
	assert.Contains(t, body.Refresh, "last_refresh_at")
}

func TestHealthHandler_Minimal(t *testing.T) {
	rec := httptest.NewRecorder()
	worker.HealthHandler(worker.HealthConfig{Version: "dev"}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotContains(t, body, "feeds")
	assert.NotContains(t, body, "refresh")
}
