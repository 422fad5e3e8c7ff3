// Package config loads groundwatch runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/database"
	"github.com/groundwatch/groundwatch/internal/interpolation"
)

// Snapshot sources.
const (
	SourceDatabase = "database"
	SourceDWLR     = "dwlr"
)

// Config holds runtime configuration shared by the API and the worker.
type Config struct {
	Env      string
	Port     string
	LogLevel zerolog.Level

	OTLPEndpoint     string
	TelemetryEnabled bool

	// TraceSampleRatio is the fraction of root traces exported.
	TraceSampleRatio float64

	Database database.Config

	// SnapshotSource selects where the API reads stations from: the
	// database filled by the worker, or the DWLR feed directly.
	SnapshotSource  string
	CacheTTL        time.Duration
	StaleIfErrorTTL time.Duration

	// Interpolation holds the service-wide IDW defaults.
	Interpolation interpolation.Options

	DWLR DWLRConfig

	// RateLimitPerMinute is the per-IP request budget.
	RateLimitPerMinute int

	PubSubProjectID    string
	PubSubSubscription string
}

// DWLRConfig holds settings for the DWLR feed.
type DWLRConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	SnapshotWindow time.Duration
}

// Load reads configuration from environment variables, loading .env first
// when present. Variables already set take precedence over .env.
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Env:                getEnv("APP_ENV", "development"),
		Port:               getEnv("APP_PORT", "8080"),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled:   parseBool(os.Getenv("OTEL_ENABLED")),
		Database:           database.ConfigFromEnv(),
		SnapshotSource:     strings.ToLower(getEnv("SNAPSHOT_SOURCE", SourceDatabase)),
		DWLR:               DWLRConfig{BaseURL: getEnv("DWLR_BASE_URL", "https://indiawris.gov.in/api/dwlr"), APIKey: os.Getenv("DWLR_API_KEY")},
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnv("PUBSUB_SUBSCRIPTION", "groundwatch-worker"),
	}

	var err error
	if cfg.LogLevel, err = zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return cfg, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	switch cfg.SnapshotSource {
	case SourceDatabase, SourceDWLR:
	default:
		return cfg, fmt.Errorf("invalid SNAPSHOT_SOURCE %q", cfg.SnapshotSource)
	}

	if cfg.CacheTTL, err = parseDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.StaleIfErrorTTL, err = parseDuration("STALE_IF_ERROR_TTL", 30*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.DWLR.Timeout, err = parseDuration("DWLR_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.DWLR.SnapshotWindow, err = parseDuration("DWLR_SNAPSHOT_WINDOW", 7*24*time.Hour); err != nil {
		return cfg, err
	}

	if cfg.Interpolation.MaxStations, err = parsePositiveInt("IDW_MAX_STATIONS", interpolation.DefaultMaxStations); err != nil {
		return cfg, err
	}
	if cfg.RateLimitPerMinute, err = parsePositiveInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return cfg, err
	}

	cfg.Interpolation.Power = interpolation.DefaultPower
	if v := strings.TrimSpace(os.Getenv("IDW_POWER")); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p <= 0 {
			return cfg, fmt.Errorf("invalid IDW_POWER %q: must be a positive number", v)
		}
		cfg.Interpolation.Power = p
	}

	cfg.TraceSampleRatio = 1
	if v := strings.TrimSpace(os.Getenv("OTEL_TRACE_SAMPLE_RATIO")); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 || r > 1 {
			return cfg, fmt.Errorf("invalid OTEL_TRACE_SAMPLE_RATIO %q: must be in (0, 1]", v)
		}
		cfg.TraceSampleRatio = r
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func parsePositiveInt(key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}
