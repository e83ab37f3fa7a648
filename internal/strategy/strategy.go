// Package strategy provides named recovery policies that govern how an
// operation is retried, timed out, or degraded on failure, plus a registry
// from which callers select a policy at invocation time.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Operation is a caller-supplied unit of work. Its internals are opaque to
// the strategies; it either produces a value or fails.
type Operation func(ctx context.Context) (any, error)

// Strategy is a reusable policy wrapping the execution of an Operation.
// Strategies hold configuration only; all per-call state is local to Execute,
// so a single instance is safe for concurrent use.
type Strategy interface {
	// Name returns the identifier the strategy is registered under.
	Name() string

	// Execute runs op under the policy and returns its result. Except for
	// Fallback, the operation's final error is returned unwrapped so callers
	// can match on the original failure.
	Execute(ctx context.Context, op Operation) (any, error)
}

// ErrNotRegistered is returned by Registry.Get for unknown strategy names.
// This is a configuration error: it is fatal to the call and never retried.
var ErrNotRegistered = errors.New("strategy not registered")

// Registry is a name-keyed collection of strategies. The zero value is not
// usable; create one with NewRegistry.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register stores s under its name, replacing any previous registration.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get returns the strategy registered under name, or an error wrapping
// ErrNotRegistered if absent.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return s, nil
}

// Names returns the registered strategy names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
