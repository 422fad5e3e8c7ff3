package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/groundwatch/groundwatch/internal/api/middleware"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			return sum.DataPoints
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestNewMetrics(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func TestMetrics_Middleware_LabelsByRoute(t *testing.T) {
	reader, mp := newTestMeter(t)
	metrics, err := middleware.NewMetricsWithMeter(mp.Meter("test"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/stations/{stationId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"W001", "W002", "W003"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/stations/"+id, http.NoBody))
	}

	points := collectSum(t, reader, "http.server.request.total")
	require.Len(t, points, 1, "station IDs must not create separate series")
	assert.Equal(t, int64(3), points[0].Value)

	route, ok := points[0].Attributes.Value(attribute.Key("http.route"))
	require.True(t, ok)
	assert.Equal(t, "/v1/stations/{stationId}", route.AsString())

	isErr, ok := points[0].Attributes.Value(attribute.Key("error"))
	require.True(t, ok)
	assert.True(t, isErr.AsBool())
}

func TestMetrics_Middleware_DefaultStatusCode(t *testing.T) {
	reader, mp := newTestMeter(t)
	metrics, err := middleware.NewMetricsWithMeter(mp.Meter("test"))
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("response"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)

	points := collectSum(t, reader, "http.server.request.total")
	require.Len(t, points, 1)
	status, _ := points[0].Attributes.Value(attribute.Key("http.status_code"))
	assert.Equal(t, "200", status.AsString())
}

func TestEstimateMetrics(t *testing.T) {
	reader, mp := newTestMeter(t)
	metrics, err := middleware.NewEstimateMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordEstimate(ctx, "high", "safe", false)
	metrics.RecordEstimate(ctx, "high", "safe", false)
	metrics.RecordEstimate(ctx, "low", "critical", true)
	metrics.RecordRequestPoints(ctx, "batch", 12)

	points := collectSum(t, reader, "groundwater.estimate.total")
	require.Len(t, points, 2)

	var total int64
	for _, p := range points {
		total += p.Value
	}
	assert.Equal(t, int64(3), total)
}
