package telemetry_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/groundwatch/groundwatch/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "groundwatch-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)

	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestTracerAndMeter(t *testing.T) {
	assert.NotNil(t, telemetry.Tracer("groundwatch"))
	assert.NotNil(t, telemetry.Meter("groundwatch"))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		root  string
	}{
		{name: "unset keeps everything", ratio: 0, root: "root:AlwaysOnSampler"},
		{name: "full ratio", ratio: 1, root: "root:AlwaysOnSampler"},
		{name: "out of range", ratio: 3, root: "root:AlwaysOnSampler"},
		{name: "fraction", ratio: 0.25, root: "root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := telemetry.Sampler(tt.ratio).Description()
			assert.True(t, strings.HasPrefix(desc, "ParentBased{"), desc)
			assert.Contains(t, desc, tt.root)
		})
	}
}

func TestJobMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := telemetry.NewJobMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordJob(ctx, "ingest_readings", 2*time.Second, nil)
	metrics.RecordJob(ctx, "ingest_readings", time.Second, errors.New("feed down"))
	metrics.RecordIngest(ctx, 40, 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := make(map[string]int64)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), sums["worker.job.total"])
	assert.Equal(t, int64(40), sums["worker.ingest.readings"])
	assert.Equal(t, int64(3), sums["worker.ingest.alerts"])
}
