package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// JobMetrics records worker job runs.
type JobMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	readings metric.Int64Counter
	alerts   metric.Int64Counter
}

// NewJobMetrics creates job instruments on meter.
func NewJobMetrics(meter metric.Meter) (*JobMetrics, error) {
	duration, err := meter.Float64Histogram(
		"worker.job.duration",
		metric.WithDescription("Duration of worker jobs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"worker.job.total",
		metric.WithDescription("Total number of worker jobs run"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	readings, err := meter.Int64Counter(
		"worker.ingest.readings",
		metric.WithDescription("Readings stored by ingest runs"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	alerts, err := meter.Int64Counter(
		"worker.ingest.alerts",
		metric.WithDescription("Alerts raised by ingest runs"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	return &JobMetrics{duration: duration, total: total, readings: readings, alerts: alerts}, nil
}

// RecordJob records one job run.
func (m *JobMetrics) RecordJob(ctx context.Context, jobType string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("job.type", jobType),
		attribute.Bool("error", err != nil),
	)
	m.duration.Record(ctx, d.Seconds(), attrs)
	m.total.Add(ctx, 1, attrs)
}

// RecordIngest records the output of an ingest run.
func (m *JobMetrics) RecordIngest(ctx context.Context, readings, alerts int) {
	m.readings.Add(ctx, int64(readings))
	m.alerts.Add(ctx, int64(alerts))
}
