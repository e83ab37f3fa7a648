package circuitbreaker

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry owns the named breaker instances for one recovery domain. Breakers
// are created on demand and live until the process exits; every caller naming
// the same dependency shares one instance.
type Registry struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	breakers map[string]*Breaker
}

// NewRegistry returns an empty breaker registry. New breakers inherit logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Create returns the breaker registered under name, creating it with the
// given settings if absent. Settings are ignored when the breaker already
// exists; use Breaker.UpdateSettings to change a live breaker.
func (r *Registry) Create(name string, settings Settings) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, settings, r.logger)
	r.breakers[name] = b
	return b
}

// Get returns the breaker registered under name, if any.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Status returns a snapshot of the named breaker, or false if unknown.
func (r *Registry) Status(name string) (Status, bool) {
	b, ok := r.Get(name)
	if !ok {
		return Status{}, false
	}
	return b.Status(), true
}

// Statuses returns snapshots of every registered breaker, sorted by name.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		statuses = append(statuses, b.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
