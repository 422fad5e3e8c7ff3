package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/groundwater"
)

// Default page sizes.
const (
	DefaultListLimit        = 10
	DefaultStationListLimit = 5
	MaxListLimit            = 100
)

// ReadingPair is a new reading together with the station's reading before it.
type ReadingPair struct {
	Current  *groundwater.Reading
	Previous *groundwater.Reading
}

// ServiceConfig holds configuration for the alert service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// NewID generates alert IDs (default: "alt_" plus a UUID prefix).
	NewID func() string
}

// Service raises, lists and acknowledges alerts.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	newID  func() string
}

// NewService creates a new alert service.
func NewService(cfg ServiceConfig) *Service {
	newID := cfg.NewID
	if newID == nil {
		newID = func() string {
			return "alt_" + uuid.New().String()[:22]
		}
	}
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		newID:  newID,
	}
}

// Record evaluates each pair and stores the alerts it raises. It returns the
// alerts that were new.
func (s *Service) Record(ctx context.Context, pairs []ReadingPair) ([]*Alert, error) {
	var raised []*Alert
	for _, p := range pairs {
		for _, a := range Evaluate(p.Current, p.Previous) {
			a.ID = s.newID()
			raised = append(raised, a)
		}
	}
	if len(raised) == 0 {
		return nil, nil
	}

	created, err := s.repo.Create(ctx, raised)
	if err != nil {
		return nil, fmt.Errorf("store alerts: %w", err)
	}

	for _, a := range created {
		s.logger.Info().
			Str("alert_id", a.ID).
			Str("station_id", a.StationID).
			Str("type", string(a.Type)).
			Str("severity", string(a.Severity)).
			Float64("water_level", a.WaterLevel).
			Msg("groundwater alert raised")
	}

	return created, nil
}

// List returns the newest alerts. A non-positive limit uses DefaultListLimit.
func (s *Service) List(ctx context.Context, limit int, onlyUnacknowledged bool) ([]*Alert, error) {
	return s.repo.List(ctx, ListOptions{
		Limit:              clampLimit(limit, DefaultListLimit),
		OnlyUnacknowledged: onlyUnacknowledged,
	})
}

// ListForStation returns the newest unacknowledged alerts for a station.
// A non-positive limit uses DefaultStationListLimit.
func (s *Service) ListForStation(ctx context.Context, stationID string, limit int) ([]*Alert, error) {
	return s.repo.List(ctx, ListOptions{
		Limit:              clampLimit(limit, DefaultStationListLimit),
		StationID:          stationID,
		OnlyUnacknowledged: true,
	})
}

// Acknowledge marks an alert as acknowledged.
func (s *Service) Acknowledge(ctx context.Context, id string) error {
	if err := s.repo.Acknowledge(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("alert_id", id).Msg("alert acknowledged")
	return nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
