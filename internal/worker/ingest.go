package worker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/telemetry"
)

// Feed is an upstream source of stations and readings.
type Feed interface {
	FetchStations(ctx context.Context) ([]*groundwater.Station, error)
	FetchReadings(ctx context.Context, since time.Time) ([]*groundwater.Reading, error)
}

// AlertRecorder stores alerts raised by new readings.
type AlertRecorder interface {
	Record(ctx context.Context, pairs []alert.ReadingPair) ([]*alert.Alert, error)
}

// IngestJobConfig holds configuration for creating an IngestJob.
type IngestJobConfig struct {
	Config     IngestConfig
	Feed       Feed
	Repository groundwater.Repository

	// Alerts is optional.
	Alerts AlertRecorder

	// Metrics is optional.
	Metrics *telemetry.JobMetrics

	Logger zerolog.Logger
	Clock  clockwork.Clock
}

// IngestJob copies stations and readings from the feed into the repository
// and raises alerts for readings newer than those already stored.
type IngestJob struct {
	config  IngestConfig
	feed    Feed
	repo    groundwater.Repository
	alerts  AlertRecorder
	metrics *telemetry.JobMetrics
	logger  zerolog.Logger
	clock   clockwork.Clock

	mu      sync.Mutex
	lastRun time.Time
}

// IngestResult summarises an ingest run.
type IngestResult struct {
	Since    time.Time
	Stations int
	Readings int
	Alerts   int
	Duration time.Duration

	// Errors lists non-fatal problems.
	Errors []string
}

// NewIngestJob creates a new ingest job.
func NewIngestJob(cfg IngestJobConfig) *IngestJob {
	config := cfg.Config
	defaults := DefaultIngestConfig()
	if config.InitialWindow <= 0 {
		config.InitialWindow = defaults.InitialWindow
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &IngestJob{
		config:  config,
		feed:    cfg.Feed,
		repo:    cfg.Repository,
		alerts:  cfg.Alerts,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		clock:   clock,
	}
}

// Run performs one ingest. Runs are serialised.
func (j *IngestJob) Run(ctx context.Context) (*IngestResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := j.clock.Now()
	since := start.Add(-j.config.InitialWindow)
	if !j.lastRun.IsZero() {
		since = j.lastRun.Add(-j.config.Overlap)
	}
	result := &IngestResult{Since: since}

	j.logger.Info().Time("since", since).Msg("starting ingest job")

	stations, err := j.feed.FetchStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}
	if err := j.repo.UpsertStations(ctx, stations); err != nil {
		return nil, fmt.Errorf("upsert stations: %w", err)
	}
	result.Stations = len(stations)

	readings, err := j.feed.FetchReadings(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetch readings: %w", err)
	}

	stored, err := j.repo.LatestReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest readings: %w", err)
	}

	valid := make([]*groundwater.Reading, 0, len(readings))
	for _, r := range readings {
		if math.IsNaN(r.Level) || math.IsInf(r.Level, 0) {
			result.Errors = append(result.Errors, fmt.Sprintf("station %s: non-finite level at %s", r.StationID, r.MeasuredAt.Format(time.RFC3339)))
			continue
		}
		valid = append(valid, r)
	}

	if err := j.repo.SaveReadings(ctx, valid); err != nil {
		return nil, fmt.Errorf("save readings: %w", err)
	}
	result.Readings = len(valid)

	if j.alerts != nil {
		pairs := newReadingPairs(stored, valid)
		created, err := j.alerts.Record(ctx, pairs)
		if err != nil {
			j.logger.Error().Err(err).Msg("failed to record alerts")
			result.Errors = append(result.Errors, err.Error())
		}
		result.Alerts = len(created)
	}

	j.lastRun = start
	result.Duration = j.clock.Since(start)
	if j.metrics != nil {
		j.metrics.RecordIngest(ctx, result.Readings, result.Alerts)
	}

	j.logger.Info().
		Int("stations", result.Stations).
		Int("readings", result.Readings).
		Int("alerts", result.Alerts).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("ingest job completed")

	return result, nil
}

// newReadingPairs pairs each reading newer than the stored latest with the
// reading before it, taken from the batch or from storage.
func newReadingPairs(stored, incoming []*groundwater.Reading) []alert.ReadingPair {
	latest := make(map[string]*groundwater.Reading)
	for _, r := range stored {
		if cur, ok := latest[r.StationID]; !ok || r.MeasuredAt.After(cur.MeasuredAt) {
			latest[r.StationID] = r
		}
	}

	sorted := make([]*groundwater.Reading, len(incoming))
	copy(sorted, incoming)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].StationID != sorted[b].StationID {
			return sorted[a].StationID < sorted[b].StationID
		}
		return sorted[a].MeasuredAt.Before(sorted[b].MeasuredAt)
	})

	var pairs []alert.ReadingPair
	for _, r := range sorted {
		prev := latest[r.StationID]
		if prev != nil && !r.MeasuredAt.After(prev.MeasuredAt) {
			continue
		}
		pairs = append(pairs, alert.ReadingPair{Current: r, Previous: prev})
		latest[r.StationID] = r
	}
	return pairs
}
