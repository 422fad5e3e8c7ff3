package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/groundwatch/groundwatch/internal/api/middleware"

// Metrics holds the HTTP server instruments.
type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
	responseSize     metric.Int64Histogram
}

// NewMetrics creates HTTP server instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates HTTP server instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var errs [4]error
	m.requestDuration, errs[0] = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"))
	m.requestTotal, errs[1] = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests completed"),
		metric.WithUnit("{request}"))
	m.requestsInFlight, errs[2] = meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithDescription("HTTP server requests being handled"),
		metric.WithUnit("{request}"))
	m.responseSize, errs[3] = meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, fmt.Errorf("creating http metrics: %w", err)
	}
	return &m, nil
}

// Middleware records duration, count and size for each request, labelled
// by method, matched route and status.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			inFlight := metric.WithAttributes(attribute.String("http.method", r.Method))
			m.requestsInFlight.Add(ctx, 1, inFlight)
			defer m.requestsInFlight.Add(ctx, -1, inFlight)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			done := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.String("http.status_code", strconv.Itoa(rw.statusCode)),
				attribute.Bool("error", rw.statusCode >= http.StatusBadRequest),
			)
			m.requestDuration.Record(ctx, time.Since(start).Seconds(), done)
			m.requestTotal.Add(ctx, 1, done)
			m.responseSize.Record(ctx, rw.written, done)
		})
	}
}

// EstimateMetrics records groundwater estimate outcomes.
type EstimateMetrics struct {
	estimates metric.Int64Counter
	points    metric.Int64Histogram
}

// NewEstimateMetrics creates estimate instruments on meter.
func NewEstimateMetrics(meter metric.Meter) (*EstimateMetrics, error) {
	estimates, err := meter.Int64Counter(
		"groundwater.estimate.total",
		metric.WithDescription("Groundwater level estimates served"),
		metric.WithUnit("{estimate}"),
	)
	if err != nil {
		return nil, err
	}

	points, err := meter.Int64Histogram(
		"groundwater.estimate.request_points",
		metric.WithDescription("Points per batch or transect request"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return nil, err
	}

	return &EstimateMetrics{estimates: estimates, points: points}, nil
}

// RecordEstimate records one estimate.
func (m *EstimateMetrics) RecordEstimate(ctx context.Context, confidence, status string, fallback bool) {
	m.estimates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("confidence", confidence),
		attribute.String("status", status),
		attribute.Bool("fallback", fallback),
	))
}

// RecordRequestPoints records the size of a multi-point request.
func (m *EstimateMetrics) RecordRequestPoints(ctx context.Context, kind string, points int) {
	m.points.Record(ctx, int64(points), metric.WithAttributes(attribute.String("kind", kind)))
}
