package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/interpolation"
)

// Estimator is the part of groundwater.Service the refresh job needs.
type Estimator interface {
	RefreshSnapshot(ctx context.Context) error
	EstimateAt(ctx context.Context, p geo.Point, opts interpolation.Options) (*groundwater.LiveEstimate, error)
}

// SummaryStore persists district summaries.
type SummaryStore interface {
	SaveDistrictSummaries(ctx context.Context, summaries []*groundwater.DistrictSummary) error
}

// RefreshJob refreshes the station snapshot and estimates every district
// target point against it.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	estimator Estimator
	summaries SummaryStore
	clock     clockwork.Clock

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes     int64
	SuccessfulEstimate int64
	FailedEstimates    int64
	CriticalEstimates  int64
	SummarySaveErrors  int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Logger    zerolog.Logger
	Estimator Estimator

	// Summaries is optional; without it district summaries are only logged.
	Summaries SummaryStore

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultRefreshTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &RefreshJob{
		config:    config,
		logger:    cfg.Logger,
		estimator: cfg.Estimator,
		summaries: cfg.Summaries,
		clock:     clock,
		metrics:   &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int
	Critical    int
	Districts   []groundwater.DistrictSummary
	Errors      []RefreshError

	// SaveErr is set when the district summaries could not be stored.
	SaveErr error
}

// RefreshError represents a failed estimate.
type RefreshError struct {
	Target string
	Point  geo.Point
	Error  string
}

type pointResult struct {
	target   string
	state    string
	point    geo.Point
	estimate *groundwater.LiveEstimate
	err      error
}

// Run refreshes the snapshot and estimates all configured points.
// A failed snapshot refresh fails every point; single estimates may fail
// without stopping the run.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := j.clock.Now()
	points := j.config.orderedPoints()
	result := &RefreshResult{
		StartTime:   startTime,
		TotalPoints: len(points),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting estimate refresh job")

	if err := j.estimator.RefreshSnapshot(ctx); err != nil {
		j.logger.Error().Err(err).Msg("snapshot refresh failed")
		for _, tp := range points {
			result.Errors = append(result.Errors, RefreshError{
				Target: tp.target,
				Point:  tp.point,
				Error:  fmt.Sprintf("refresh snapshot: %v", err),
			})
		}
		result.Failed = len(points)
		j.finish(result)
		return result
	}

	pointsChan := make(chan targetPoint, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, pointsChan, resultsChan)
		}()
	}

	for _, tp := range points {
		pointsChan <- tp
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	summaries := make(map[string]*districtAccumulator)
	for pr := range resultsChan {
		if pr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				Target: pr.target,
				Point:  pr.point,
				Error:  pr.err.Error(),
			})
			continue
		}

		result.Successful++
		if pr.estimate.Status == groundwater.StatusCritical {
			result.Critical++
		}

		acc, ok := summaries[pr.target]
		if !ok {
			acc = &districtAccumulator{state: pr.state}
			summaries[pr.target] = acc
		}
		acc.add(pr.estimate)
	}

	// Points skipped after cancellation never report back.
	if skipped := result.TotalPoints - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	computedAt := j.clock.Now()
	result.Districts = make([]groundwater.DistrictSummary, 0, len(summaries))
	for name, acc := range summaries {
		result.Districts = append(result.Districts, acc.summary(name, computedAt))
	}
	sort.Slice(result.Districts, func(a, b int) bool {
		return result.Districts[a].District < result.Districts[b].District
	})

	result.SaveErr = j.saveSummaries(ctx, result.Districts)

	j.finish(result)
	return result
}

// saveSummaries stores the run's district summaries. Cancellation is
// ignored so that a run cut short still records what it estimated.
func (j *RefreshJob) saveSummaries(ctx context.Context, districts []groundwater.DistrictSummary) error {
	if j.summaries == nil || len(districts) == 0 {
		return nil
	}

	out := make([]*groundwater.DistrictSummary, 0, len(districts))
	for i := range districts {
		out = append(out, &districts[i])
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.config.Timeout)
	defer cancel()
	if err := j.summaries.SaveDistrictSummaries(saveCtx, out); err != nil {
		return fmt.Errorf("save district summaries: %w", err)
	}
	return nil
}

func (j *RefreshJob) finish(result *RefreshResult) {
	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.updateMetrics(result)

	for _, d := range result.Districts {
		if d.WorstStatus == groundwater.StatusCritical {
			j.logger.Warn().
				Str("district", d.District).
				Float64("mean_level", d.MeanLevel).
				Msg("district has critical groundwater estimates")
		}
	}
	if result.SaveErr != nil {
		j.logger.Error().Err(result.SaveErr).Int("districts", len(result.Districts)).Msg("failed to store district summaries")
	}

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("critical", result.Critical).
		Msg("estimate refresh job completed")
}

func (j *RefreshJob) refreshWorker(ctx context.Context, points <-chan targetPoint, results chan<- pointResult) {
	for tp := range points {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.refreshPoint(ctx, tp)
		}
	}
}

func (j *RefreshJob) refreshPoint(ctx context.Context, tp targetPoint) pointResult {
	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	est, err := j.estimator.EstimateAt(pointCtx, tp.point, interpolation.Options{})
	return pointResult{target: tp.target, state: tp.state, point: tp.point, estimate: est, err: err}
}

type districtAccumulator struct {
	state string
	count int
	sum   float64
	worst groundwater.Status
}

func (a *districtAccumulator) add(est *groundwater.LiveEstimate) {
	a.count++
	a.sum += est.Value
	if statusRank(est.Status) > statusRank(a.worst) {
		a.worst = est.Status
	}
}

func (a *districtAccumulator) summary(name string, at time.Time) groundwater.DistrictSummary {
	mean := 0.0
	if a.count > 0 {
		mean = a.sum / float64(a.count)
	}
	return groundwater.DistrictSummary{
		District:    name,
		State:       a.state,
		Points:      a.count,
		MeanLevel:   mean,
		WorstStatus: a.worst,
		ComputedAt:  at,
	}
}

func statusRank(s groundwater.Status) int {
	switch s {
	case groundwater.StatusCritical:
		return 3
	case groundwater.StatusSemiCritical:
		return 2
	case groundwater.StatusSafe:
		return 1
	default:
		return 0
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulEstimate += int64(result.Successful)
	j.metrics.FailedEstimates += int64(result.Failed)
	j.metrics.CriticalEstimates += int64(result.Critical)
	if result.SaveErr != nil {
		j.metrics.SummarySaveErrors++
	}
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulEstimate:  j.metrics.SuccessfulEstimate,
		FailedEstimates:     j.metrics.FailedEstimates,
		CriticalEstimates:   j.metrics.CriticalEstimates,
		SummarySaveErrors:   j.metrics.SummarySaveErrors,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for the worker's
// health endpoint.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_estimates":  m.SuccessfulEstimate,
		"failed_estimates":      m.FailedEstimates,
		"critical_estimates":    m.CriticalEstimates,
		"summary_save_errors":   m.SummarySaveErrors,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
