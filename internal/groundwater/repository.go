package groundwater

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
)

// Repository defines the interface for station and reading persistence.
type Repository interface {
	// ListStations retrieves every station ordered by ID.
	ListStations(ctx context.Context) ([]*Station, error)

	// GetStation retrieves a station by ID.
	// Returns ErrStationNotFound if the station doesn't exist.
	GetStation(ctx context.Context, id string) (*Station, error)

	// LatestReadings retrieves up to the two most recent readings per station,
	// newest first within a station.
	LatestReadings(ctx context.Context) ([]*Reading, error)

	// SaveReadings stores readings. A reading for a station and timestamp
	// that already exists is overwritten.
	SaveReadings(ctx context.Context, readings []*Reading) error

	// UpsertStations creates or updates stations.
	UpsertStations(ctx context.Context, stations []*Station) error
}

// RepositoryProvider serves snapshots from a Repository.
type RepositoryProvider struct {
	repo  Repository
	clock clockwork.Clock
}

// NewRepositoryProvider creates a snapshot provider backed by repo.
func NewRepositoryProvider(repo Repository, clock clockwork.Clock) *RepositoryProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RepositoryProvider{repo: repo, clock: clock}
}

// FetchSnapshot loads all stations with their latest two readings.
func (p *RepositoryProvider) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	stations, err := p.repo.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	readings, err := p.repo.LatestReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest readings: %w", err)
	}

	snapshot := NewSnapshot("database", p.clock.Now())
	for _, s := range stations {
		snapshot.Stations[s.ID] = s
	}
	for _, r := range readings {
		if _, ok := snapshot.Stations[r.StationID]; !ok {
			continue
		}
		snapshot.AddReading(r)
	}

	return snapshot, nil
}
