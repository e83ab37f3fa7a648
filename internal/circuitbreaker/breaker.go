// Package circuitbreaker provides a per-dependency circuit breaker that stops
// invoking a failing dependency once a consecutive-failure threshold is
// crossed, avoiding retry storms while the dependency recovers.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jstrand/chatctl/internal/metrics"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation; calls pass through.
	StateOpen                  // Failing; calls are rejected immediately.
	StateHalfOpen              // Probing; trial calls allowed to test recovery.
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker is open and the call was rejected
// without invoking the operation.
var ErrOpen = errors.New("circuit breaker open")

// IsOpen reports whether err is a rejection by an open breaker, letting
// callers tell "dependency is down" apart from "operation failed".
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}

// Default settings applied by New when a field is zero.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 2
	DefaultCooldown         = 30 * time.Second
)

// Operation is a caller-supplied unit of work guarded by the breaker.
type Operation func(ctx context.Context) (any, error)

// Settings configures a Breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state that trips the breaker open.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in the
	// half-open state required to close the breaker again.
	SuccessThreshold int

	// Cooldown is the minimum time the breaker stays open before the next
	// call is allowed through as a trial.
	Cooldown time.Duration

	// OnStateChange, if set, is called after every state transition.
	OnStateChange func(name string, from, to State)
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = DefaultSuccessThreshold
	}
	if s.Cooldown <= 0 {
		s.Cooldown = DefaultCooldown
	}
	return s
}

// Status is a point-in-time snapshot of a breaker.
type Status struct {
	Name             string        `json:"name"`
	State            string        `json:"state"`
	FailureCount     int           `json:"failure_count"`
	SuccessCount     int           `json:"success_count"`
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Cooldown         time.Duration `json:"cooldown"`
}

// Breaker is a three-state circuit breaker guarding one dependency.
// It is created once per dependency and shared by every caller; all state is
// mutated under a single mutex so the transition table is applied atomically.
type Breaker struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	settings  Settings
	state     State
	failures  int // consecutive failures; meaningful only while closed
	successes int // consecutive successes; meaningful only while half-open
	openedAt  time.Time

	now func() time.Time // injectable clock for tests
}

// New creates a closed breaker for the named dependency.
func New(name string, settings Settings, logger *slog.Logger) *Breaker {
	return &Breaker{
		name:     name,
		logger:   logger,
		settings: settings.withDefaults(),
		state:    StateClosed,
		now:      time.Now,
	}
}

// Name returns the dependency name the breaker guards.
func (b *Breaker) Name() string { return b.name }

// Execute runs op under the breaker. When the breaker is open and the
// cooldown has not elapsed, it returns ErrOpen without invoking op. The
// open to half-open transition is lazy: it happens here, on the first call
// after the cooldown, not on a background timer.
func (b *Breaker) Execute(ctx context.Context, op Operation) (any, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}

	v, err := op(ctx)
	b.record(err)
	return v, err
}

// allow applies the pre-call half of the transition table atomically.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.settings.Cooldown {
			b.transitionTo(StateHalfOpen)
			return nil
		}
		metrics.BreakerRejections.WithLabelValues(b.name).Inc()
		return fmt.Errorf("%q: %w", b.name, ErrOpen)
	default:
		return nil
	}
}

// record applies the post-call half of the transition table atomically.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		switch b.state {
		case StateClosed:
			b.failures++
			if b.failures >= b.settings.FailureThreshold {
				b.transitionTo(StateOpen)
			}
		case StateHalfOpen:
			b.transitionTo(StateOpen)
		}
		return
	}

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.transitionTo(StateClosed)
		}
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns a snapshot of the breaker's counters and thresholds.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Name:             b.name,
		State:            b.state.String(),
		FailureCount:     b.failures,
		SuccessCount:     b.successes,
		FailureThreshold: b.settings.FailureThreshold,
		SuccessThreshold: b.settings.SuccessThreshold,
		Cooldown:         b.settings.Cooldown,
	}
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(StateClosed)
}

// UpdateSettings replaces the thresholds and cooldown at runtime (e.g. on
// config hot-reload). The state-change hook is left untouched.
func (b *Breaker) UpdateSettings(settings Settings) {
	settings = settings.withDefaults()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings.FailureThreshold = settings.FailureThreshold
	b.settings.SuccessThreshold = settings.SuccessThreshold
	b.settings.Cooldown = settings.Cooldown
}

// transitionTo changes the breaker state, emitting metrics, logging, and the
// state-change hook. Must be called with b.mu held.
func (b *Breaker) transitionTo(newState State) {
	if b.state == newState {
		return
	}

	from := b.state
	b.state = newState

	metrics.BreakerStateChanges.WithLabelValues(b.name, from.String(), newState.String()).Inc()
	metrics.BreakerState.WithLabelValues(b.name).Set(float64(newState))

	b.logger.Info("circuit breaker state change",
		"breaker", b.name,
		"from", from.String(),
		"to", newState.String(),
	)

	switch newState {
	case StateClosed:
		b.failures = 0
		b.successes = 0
	case StateOpen:
		b.openedAt = b.now()
		b.successes = 0
	case StateHalfOpen:
		b.successes = 0
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, newState)
	}
}
