package groundwater

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/interpolation"
	"github.com/groundwatch/groundwatch/pkg/polyline"
)

// Estimate errors.
var (
	ErrInvalidTransect = errors.New("invalid transect")
	ErrTransectTooLong = errors.New("transect has too many sample points")
	ErrTooManyPoints   = errors.New("too many points")
)

const (
	// MaxEstimatePoints caps the number of points in a single batch or transect.
	MaxEstimatePoints = 200

	// DefaultStationLimit is the nearest-stations page size.
	DefaultStationLimit = 20

	// HistoryLimit caps the readings a station's recharge and health are
	// computed from.
	HistoryLimit = 30

	// NearbyRadiusKm bounds the stations an area summary covers.
	NearbyRadiusKm = 50

	// NearbyStationLimit caps the stations an area summary covers.
	NearbyStationLimit = 6
)

// Provider supplies groundwater snapshots.
type Provider interface {
	// FetchSnapshot fetches all stations with their latest and previous readings.
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// ServiceConfig holds configuration for the groundwater service.
type ServiceConfig struct {
	// Provider is the snapshot source.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache the snapshot (default: 5 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 30 minutes).
	StaleIfErrorTTL time.Duration

	// Interpolation holds the default IDW options. Per-call options override
	// fields that are set.
	Interpolation interpolation.Options

	// History is optional. Without it station insights use the snapshot's
	// latest and previous readings.
	History HistoryRepository

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock
}

// Service provides cached station data and live level estimates.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	defaults        interpolation.Options
	history         HistoryRepository
	clock           clockwork.Clock

	mu          sync.RWMutex
	snapshot    *Snapshot
	cacheExpiry time.Time
}

// NewService creates a new groundwater service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		defaults:        cfg.Interpolation,
		history:         cfg.History,
		clock:           clock,
	}
}

// LiveEstimate is an estimated groundwater level at a point.
type LiveEstimate struct {
	Point geo.Point

	interpolation.Result

	// Status classifies the estimated level.
	Status Status

	// TrendPercent is the change from the estimate built on previous
	// readings. Zero when there is no previous estimate.
	TrendPercent float64

	// PreviousValue is the estimate built on previous readings, if any.
	PreviousValue *float64

	// SnapshotAt is when the underlying data was fetched.
	SnapshotAt time.Time
}

// Transect holds estimates sampled along a path.
type Transect struct {
	LengthKm   float64
	IntervalKm float64

	// Points are the sampled positions. Samples[i] is the estimate at
	// Points[i], or nil when none could be made there.
	Points  []geo.Point
	Samples []*LiveEstimate
}

// StationLevel is a station with its latest reading and derived status.
type StationLevel struct {
	Station  *Station
	Latest   *Reading
	Previous *Reading

	// Status is empty when the station has no reading.
	Status Status

	// DistanceKm is the distance from the query point, if any.
	DistanceKm float64
}

// GetSnapshot returns the current snapshot.
// It uses a cached version if available and not expired.
func (s *Service) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.clock.Now().Before(s.cacheExpiry) {
		snapshot := s.snapshot
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	return s.refreshSnapshot(ctx)
}

// EstimateAt estimates the groundwater level at p.
// Zero-valued fields of opts take the service defaults.
func (s *Service) EstimateAt(ctx context.Context, p geo.Point, opts interpolation.Options) (*LiveEstimate, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.estimate(snapshot, p, s.options(opts))
}

// EstimateMany estimates levels at several points against a single snapshot.
// Points that cannot be estimated yield a nil entry.
func (s *Service) EstimateMany(ctx context.Context, points []geo.Point, opts interpolation.Options) ([]*LiveEstimate, error) {
	if len(points) > MaxEstimatePoints {
		return nil, ErrTooManyPoints
	}

	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	opts = s.options(opts)
	results := make([]*LiveEstimate, 0, len(points))
	for _, p := range points {
		est, err := s.estimate(snapshot, p, opts)
		if err != nil {
			results = append(results, nil)
			continue
		}
		results = append(results, est)
	}

	return results, nil
}

// EstimateAlong estimates levels at points sampled every intervalKm along an
// encoded polyline.
func (s *Service) EstimateAlong(ctx context.Context, encoded string, intervalKm float64, opts interpolation.Options) (*Transect, error) {
	vertices, err := polyline.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransect, err)
	}
	if len(vertices) == 0 {
		return nil, fmt.Errorf("%w: no points", ErrInvalidTransect)
	}
	for _, v := range vertices {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTransect, err)
		}
	}

	samples := polyline.Sample(vertices, intervalKm)
	if len(samples) > MaxEstimatePoints {
		return nil, ErrTransectTooLong
	}

	estimates, err := s.EstimateMany(ctx, samples, opts)
	if err != nil {
		return nil, err
	}

	return &Transect{
		LengthKm:   polyline.LengthKm(vertices),
		IntervalKm: intervalKm,
		Points:     samples,
		Samples:    estimates,
	}, nil
}

// NearestStations returns up to limit located stations ordered by distance
// from p.
func (s *Service) NearestStations(ctx context.Context, p geo.Point, limit int) ([]*StationLevel, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultStationLimit
	}

	levels := make([]*StationLevel, 0, len(snapshot.Stations))
	for _, station := range snapshot.StationList() {
		if !station.HasValidLocation() {
			continue
		}
		level := stationLevel(snapshot, station)
		level.DistanceKm = geo.DistanceKm(p, station.Point())
		levels = append(levels, level)
	}

	sort.SliceStable(levels, func(a, b int) bool {
		return levels[a].DistanceKm < levels[b].DistanceKm
	})
	if len(levels) > limit {
		levels = levels[:limit]
	}

	return levels, nil
}

// GetStation returns a station with its latest reading.
func (s *Service) GetStation(ctx context.Context, stationID string) (*StationLevel, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	station, ok := snapshot.Stations[stationID]
	if !ok {
		return nil, ErrStationNotFound
	}
	return stationLevel(snapshot, station), nil
}

// StationInsights is a station with its recharge and health derived from
// its recent readings.
type StationInsights struct {
	*StationLevel

	// Readings are the readings the insights were derived from, oldest
	// first.
	Readings []*Reading

	SpecificYield   float64
	Recharge        []RechargeEvent
	RechargeTotalMM float64
	HealthScore     int
}

// StationInsights returns a station with its recharge events and health
// score. Readings come from the history repository when one is configured,
// otherwise from the snapshot.
func (s *Service) StationInsights(ctx context.Context, stationID string) (*StationInsights, error) {
	level, err := s.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	readings := snapshotReadings(level)
	if s.history != nil {
		history, err := s.history.ReadingHistory(ctx, stationID, HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		if len(history) > 0 {
			readings = history
		}
	}

	recharge := RechargeEvents(readings, DefaultSpecificYield)
	return &StationInsights{
		StationLevel:    level,
		Readings:        readings,
		SpecificYield:   DefaultSpecificYield,
		Recharge:        recharge,
		RechargeTotalMM: TotalRechargeMM(recharge),
		HealthScore:     HealthScore(level.Status, readings),
	}, nil
}

// AreaSummary summarizes the located stations within NearbyRadiusKm of p,
// nearest first and at most NearbyStationLimit of them. When none is that
// close it falls back to the nearest NearbyStationLimit stations.
func (s *Service) AreaSummary(ctx context.Context, p geo.Point) (*AreaSummary, []*StationLevel, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	all, err := s.NearestStations(ctx, p, len(snapshot.Stations)+1)
	if err != nil {
		return nil, nil, err
	}

	nearby := make([]*StationLevel, 0, NearbyStationLimit)
	for _, l := range all {
		if l.DistanceKm > NearbyRadiusKm {
			break
		}
		nearby = append(nearby, l)
	}
	if len(nearby) == 0 {
		nearby = all
	}
	if len(nearby) > NearbyStationLimit {
		nearby = nearby[:NearbyStationLimit]
	}

	summary := SummarizeArea(nearby)
	return &summary, nearby, nil
}

func snapshotReadings(level *StationLevel) []*Reading {
	var readings []*Reading
	if level.Previous != nil {
		readings = append(readings, level.Previous)
	}
	if level.Latest != nil {
		readings = append(readings, level.Latest)
	}
	return readings
}

// RefreshSnapshot forces a cache refresh.
func (s *Service) RefreshSnapshot(ctx context.Context) error {
	s.InvalidateCache()
	_, err := s.refreshSnapshot(ctx)
	return err
}

// InvalidateCache clears the cache expiry so the next read refetches. The
// old snapshot is kept for stale-if-error fallback.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheExpiry = time.Time{}
}

// CacheStatus represents the current state of the cache.
type CacheStatus struct {
	HasData      bool
	FetchedAt    time.Time
	ExpiresAt    time.Time
	IsExpired    bool
	IsStale      bool
	StationCount int
	Provider     string
}

// CacheStatus returns information about the current cache state.
func (s *Service) CacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return CacheStatus{}
	}

	now := s.clock.Now()
	return CacheStatus{
		HasData:      true,
		FetchedAt:    s.snapshot.FetchedAt,
		ExpiresAt:    s.cacheExpiry,
		IsExpired:    !now.Before(s.cacheExpiry),
		IsStale:      now.After(s.snapshot.FetchedAt.Add(s.staleIfErrorTTL)),
		StationCount: len(s.snapshot.Stations),
		Provider:     s.snapshot.Provider,
	}
}

func (s *Service) options(opts interpolation.Options) interpolation.Options {
	if opts.MaxStations <= 0 {
		opts.MaxStations = s.defaults.MaxStations
	}
	if opts.Power <= 0 {
		opts.Power = s.defaults.Power
	}
	return opts
}

func (s *Service) estimate(snapshot *Snapshot, p geo.Point, opts interpolation.Options) (*LiveEstimate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	observations := snapshot.Observations()
	if len(observations) == 0 {
		return nil, ErrNoReadings
	}

	result := interpolation.Interpolate(p, observations, opts)
	est := &LiveEstimate{
		Point:      p,
		Result:     result,
		Status:     ClassifyLevel(result.Value),
		SnapshotAt: snapshot.FetchedAt,
	}

	if previous := snapshot.PreviousObservations(); len(previous) > 0 {
		prev := interpolation.Interpolate(p, previous, opts).Value
		est.PreviousValue = &prev
		est.TrendPercent = interpolation.TrendPercent(result.Value, prev)
	}

	return est, nil
}

func stationLevel(snapshot *Snapshot, station *Station) *StationLevel {
	level := &StationLevel{Station: station}
	if r, ok := snapshot.Latest[station.ID]; ok {
		level.Latest = r
		level.Status = ClassifyLevel(r.Level)
	}
	level.Previous = snapshot.Previous[station.ID]
	return level
}

// refreshSnapshot fetches fresh data from the provider.
func (s *Service) refreshSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if s.snapshot != nil && s.clock.Now().Before(s.cacheExpiry) {
		return s.snapshot, nil
	}

	s.logger.Debug().Msg("refreshing groundwater snapshot")

	snapshot, err := s.provider.FetchSnapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch groundwater snapshot")

		if s.snapshot != nil && s.clock.Now().Before(s.snapshot.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", s.snapshot.FetchedAt).
				Msg("serving stale groundwater data due to provider error")
			return s.snapshot, nil
		}

		return nil, ErrProviderUnavailable
	}

	s.snapshot = snapshot
	s.cacheExpiry = s.clock.Now().Add(s.cacheTTL)

	s.logger.Info().
		Int("stations", len(snapshot.Stations)).
		Int("readings", len(snapshot.Latest)).
		Time("expires_at", s.cacheExpiry).
		Msg("groundwater snapshot refreshed")

	return snapshot, nil
}
