package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level is a coarse health rating for a vendor.
type Level int

const (
	LevelHealthy Level = iota
	LevelDegraded
	LevelDown
)

func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelDegraded:
		return "degraded"
	default:
		return "down"
	}
}

// ProviderHealth is a point-in-time view of one vendor client.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time

	// LastError survives later successes so operators can see what broke.
	LastError string

	// ConsecutiveFailures resets on every success.
	ConsecutiveFailures int
}

// Level is down while the breaker is open and degraded while it is half-open or
// the most recent call failed.
func (h ProviderHealth) Level() Level {
	switch {
	case h.CircuitState == gobreaker.StateOpen:
		return LevelDown
	case h.CircuitState == gobreaker.StateHalfOpen, h.ConsecutiveFailures > 0:
		return LevelDegraded
	default:
		return LevelHealthy
	}
}

// Registry tracks vendor clients and the outcome of their calls.
type Registry struct {
	mu      sync.RWMutex
	vendors map[string]*vendor
	now     func() time.Time
}

type vendor struct {
	client *Client
	health ProviderHealth
}

// GlobalRegistry is shared by the process-wide vendor clients.
var GlobalRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		vendors: make(map[string]*vendor),
		now:     time.Now,
	}
}

// Register tracks c under its name, replacing an earlier client of that name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vendors[c.Name()] = &vendor{client: c, health: ProviderHealth{Name: c.Name()}}
}

// Record notes the outcome of one call; a nil err is a success. Calls for
// unknown names are ignored.
func (r *Registry) Record(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vendors[name]
	if !ok {
		return
	}
	now := r.now()
	if err == nil {
		v.health.LastSuccessAt = &now
		v.health.ConsecutiveFailures = 0
		return
	}
	v.health.LastFailureAt = &now
	v.health.LastError = err.Error()
	v.health.ConsecutiveFailures++
}

func (v *vendor) snapshot() ProviderHealth {
	h := v.health
	h.CircuitState = v.client.BreakerState()
	h.Counts = v.client.BreakerCounts()
	return h
}

// Health returns the current view of one vendor.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.vendors[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return v.snapshot(), true
}

// Snapshot returns every vendor's health ordered by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.vendors))
	for _, v := range r.vendors {
		out = append(out, v.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered vendor names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.vendors))
	for name := range r.vendors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
