package alert

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	keys   map[alertKey]struct{}
}

type alertKey struct {
	stationID   string
	alertType   Type
	triggeredAt time.Time
}

func keyOf(a *Alert) alertKey {
	return alertKey{stationID: a.StationID, alertType: a.Type, triggeredAt: a.TriggeredAt.UTC()}
}

// NewInMemoryRepository creates a new in-memory alert repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		alerts: make(map[string]*Alert),
		keys:   make(map[alertKey]struct{}),
	}
}

// Create stores new alerts, skipping duplicates.
func (r *InMemoryRepository) Create(_ context.Context, alerts []*Alert) ([]*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var created []*Alert
	for _, a := range alerts {
		key := keyOf(a)
		if _, exists := r.keys[key]; exists {
			continue
		}
		cpy := *a
		r.alerts[a.ID] = &cpy
		r.keys[key] = struct{}{}
		created = append(created, a)
	}
	return created, nil
}

// List returns alerts matching opts, newest first.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Alert
	for _, a := range r.alerts {
		if opts.StationID != "" && a.StationID != opts.StationID {
			continue
		}
		if opts.OnlyUnacknowledged && a.Acknowledged {
			continue
		}
		cpy := *a
		out = append(out, &cpy)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Acknowledge marks an alert as acknowledged.
func (r *InMemoryRepository) Acknowledge(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}
	a.Acknowledged = true
	return nil
}
