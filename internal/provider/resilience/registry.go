package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// Health summaries reported by FeedHealth.Status.
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

// FeedHealth represents the health status of an upstream feed.
type FeedHealth struct {
	// Name is the feed identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful request.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed request.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the feed is considered healthy.
func (h *FeedHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the feed is in a degraded state (half-open).
func (h *FeedHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the feed is unhealthy (circuit open).
func (h *FeedHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Status summarises the circuit state as healthy, degraded or unhealthy.
func (h *FeedHealth) Status() string {
	switch {
	case h.IsUnhealthy():
		return HealthStatusUnhealthy
	case h.IsDegraded():
		return HealthStatusDegraded
	default:
		return HealthStatusHealthy
	}
}

// Registry tracks feed clients and their health status.
type Registry struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	feeds map[string]*registeredFeed
}

type registeredFeed struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates a new feed registry.
func NewRegistry() *Registry {
	return NewRegistryWithClock(clockwork.NewRealClock())
}

// NewRegistryWithClock creates a registry that timestamps events with clock.
func NewRegistryWithClock(clock clockwork.Clock) *Registry {
	return &Registry{
		clock: clock,
		feeds: make(map[string]*registeredFeed),
	}
}

// Register adds a feed client to the registry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[name] = &registeredFeed{client: client}
}

// Unregister removes a feed from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.feeds, name)
}

// RecordSuccess records a successful request for a feed.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[name]; ok {
		now := r.clock.Now()
		f.lastSuccessAt = &now
	}
}

// RecordFailure records a failed request for a feed.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[name]; ok {
		now := r.clock.Now()
		f.lastFailureAt = &now
		if err != nil {
			f.lastError = err.Error()
		}
	}
}

// GetHealth returns the health status of a specific feed, or nil.
func (r *Registry) GetHealth(name string) *FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.feeds[name]
	if !ok {
		return nil
	}
	return f.health(name)
}

// GetAllHealth returns the health status of all registered feeds, ordered by name.
func (r *Registry) GetAllHealth() []*FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*FeedHealth, 0, len(r.feeds))
	for name, f := range r.feeds {
		health = append(health, f.health(name))
	}
	sort.Slice(health, func(a, b int) bool {
		return health[a].Name < health[b].Name
	})

	return health
}

// GetFeedNames returns the names of all registered feeds, sorted.
func (r *Registry) GetFeedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.feeds))
	for name := range r.feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeedCount returns the number of registered feeds.
func (r *Registry) FeedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.feeds)
}

func (f *registeredFeed) health(name string) *FeedHealth {
	return &FeedHealth{
		Name:          name,
		CircuitState:  f.client.CircuitBreakerState(),
		Counts:        f.client.CircuitBreakerCounts(),
		LastSuccessAt: f.lastSuccessAt,
		LastFailureAt: f.lastFailureAt,
		LastError:     f.lastError,
	}
}
