package config_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwatch/groundwatch/internal/config"
)

var configKeys = []string{
	"APP_ENV", "APP_PORT", "LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENABLED", "OTEL_TRACE_SAMPLE_RATIO",
	"SNAPSHOT_SOURCE", "CACHE_TTL", "STALE_IF_ERROR_TTL", "DWLR_BASE_URL", "DWLR_API_KEY",
	"DWLR_TIMEOUT", "DWLR_SNAPSHOT_WINDOW", "IDW_MAX_STATIONS", "IDW_POWER",
	"RATE_LIMIT_PER_MINUTE", "PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION", "DB_NAME",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.TelemetryEnabled)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
	assert.Equal(t, config.SourceDatabase, cfg.SnapshotSource)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.StaleIfErrorTTL)
	assert.Equal(t, 5, cfg.Interpolation.MaxStations)
	assert.Equal(t, 2.0, cfg.Interpolation.Power)
	assert.Equal(t, 10*time.Second, cfg.DWLR.Timeout)
	assert.Equal(t, 7*24*time.Hour, cfg.DWLR.SnapshotWindow)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, "groundwatch-worker", cfg.PubSubSubscription)
	assert.Equal(t, "groundwatch", cfg.Database.Database)
}

func TestLoad_CustomEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_TRACE_SAMPLE_RATIO", "0.25")
	t.Setenv("SNAPSHOT_SOURCE", "DWLR")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("DWLR_BASE_URL", "http://feed.local")
	t.Setenv("DWLR_API_KEY", "secret")
	t.Setenv("DWLR_SNAPSHOT_WINDOW", "48h")
	t.Setenv("IDW_MAX_STATIONS", "8")
	t.Setenv("IDW_POWER", "1.5")
	t.Setenv("PUBSUB_PROJECT_ID", "groundwatch-prod")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, 0.25, cfg.TraceSampleRatio)
	assert.Equal(t, config.SourceDWLR, cfg.SnapshotSource)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "http://feed.local", cfg.DWLR.BaseURL)
	assert.Equal(t, "secret", cfg.DWLR.APIKey)
	assert.Equal(t, 48*time.Hour, cfg.DWLR.SnapshotWindow)
	assert.Equal(t, 8, cfg.Interpolation.MaxStations)
	assert.Equal(t, 1.5, cfg.Interpolation.Power)
	assert.Equal(t, "groundwatch-prod", cfg.PubSubProjectID)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "IDW_MAX_STATIONS", value: "0"},
		{key: "IDW_MAX_STATIONS", value: "five"},
		{key: "IDW_POWER", value: "-2"},
		{key: "IDW_POWER", value: "steep"},
		{key: "CACHE_TTL", value: "soon"},
		{key: "STALE_IF_ERROR_TTL", value: "-1m"},
		{key: "SNAPSHOT_SOURCE", value: "carrier-pigeon"},
		{key: "LOG_LEVEL", value: "loud"},
		{key: "RATE_LIMIT_PER_MINUTE", value: "-5"},
		{key: "OTEL_TRACE_SAMPLE_RATIO", value: "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
