package groundwater

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	stations  map[string]*Station
	readings  map[string][]*Reading
	districts map[string]*DistrictSummary
}

// NewInMemoryRepository creates a new in-memory station repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		stations:  make(map[string]*Station),
		readings:  make(map[string][]*Reading),
		districts: make(map[string]*DistrictSummary),
	}
}

// ListStations retrieves every station ordered by ID.
func (r *InMemoryRepository) ListStations(_ context.Context) ([]*Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stations := make([]*Station, 0, len(r.stations))
	for _, s := range r.stations {
		cpy := *s
		stations = append(stations, &cpy)
	}
	sort.Slice(stations, func(a, b int) bool {
		return stations[a].ID < stations[b].ID
	})
	return stations, nil
}

// GetStation retrieves a station by ID.
func (r *InMemoryRepository) GetStation(_ context.Context, id string) (*Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stations[id]
	if !ok {
		return nil, ErrStationNotFound
	}
	cpy := *s
	return &cpy, nil
}

// LatestReadings retrieves up to two readings per station, newest first.
func (r *InMemoryRepository) LatestReadings(_ context.Context) ([]*Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.readings))
	for id := range r.readings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*Reading
	for _, id := range ids {
		history := r.readings[id]
		// history is kept oldest first.
		for i := len(history) - 1; i >= 0 && i >= len(history)-2; i-- {
			cpy := *history[i]
			out = append(out, &cpy)
		}
	}
	return out, nil
}

// SaveReadings stores readings, replacing any with the same station and time.
func (r *InMemoryRepository) SaveReadings(_ context.Context, readings []*Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reading := range readings {
		cpy := *reading
		history := r.readings[reading.StationID]

		replaced := false
		for i, existing := range history {
			if existing.MeasuredAt.Equal(cpy.MeasuredAt) {
				history[i] = &cpy
				replaced = true
				break
			}
		}
		if !replaced {
			history = append(history, &cpy)
			sort.Slice(history, func(a, b int) bool {
				return history[a].MeasuredAt.Before(history[b].MeasuredAt)
			})
		}
		r.readings[reading.StationID] = history
	}
	return nil
}

// UpsertStations creates or updates stations.
func (r *InMemoryRepository) UpsertStations(_ context.Context, stations []*Station) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range stations {
		cpy := *s
		r.stations[s.ID] = &cpy
	}
	return nil
}

// ReadingHistory returns up to limit of the station's most recent readings,
// oldest first.
func (r *InMemoryRepository) ReadingHistory(_ context.Context, stationID string, limit int) ([]*Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.readings[stationID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]*Reading, 0, len(history))
	for _, reading := range history {
		cpy := *reading
		out = append(out, &cpy)
	}
	return out, nil
}

// SaveDistrictSummaries replaces the stored summary of each district.
func (r *InMemoryRepository) SaveDistrictSummaries(_ context.Context, summaries []*DistrictSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range summaries {
		cpy := *d
		r.districts[d.State+"/"+d.District] = &cpy
	}
	return nil
}

// DistrictSummaries returns every stored district summary.
func (r *InMemoryRepository) DistrictSummaries(_ context.Context) ([]*DistrictSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*DistrictSummary, 0, len(r.districts))
	for _, d := range r.districts {
		cpy := *d
		out = append(out, &cpy)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].State != out[b].State {
			return out[a].State < out[b].State
		}
		return out[a].District < out[b].District
	})
	return out, nil
}
