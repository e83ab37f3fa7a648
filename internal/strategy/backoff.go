package strategy

import (
	"context"
	"math/rand"
	"time"

	"github.com/jstrand/chatctl/internal/metrics"
)

// ExponentialBackoff retries a failing operation up to MaxRetries times,
// doubling the delay before each retry and adding up to 10% random jitter to
// avoid synchronized retry storms. The error of the final attempt is returned
// unwrapped; intermediate failures are swallowed.
type ExponentialBackoff struct {
	name         string
	maxRetries   int
	initialDelay time.Duration
}

// NewExponentialBackoff returns an exponential backoff strategy registered
// under name. The operation is attempted at most maxRetries+1 times; the
// delay before retry i (1-indexed) is initialDelay * 2^(i-1) plus jitter.
func NewExponentialBackoff(name string, maxRetries int, initialDelay time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		name:         name,
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
	}
}

func (s *ExponentialBackoff) Name() string { return s.name }

func (s *ExponentialBackoff) Execute(ctx context.Context, op Operation) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.initialDelay << (attempt - 1)
			delay += withJitter(delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			metrics.RetriesTotal.WithLabelValues(s.name).Inc()
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// LinearBackoff retries like ExponentialBackoff but grows the delay linearly
// (delay * attempt) with no jitter.
type LinearBackoff struct {
	name       string
	maxRetries int
	delay      time.Duration
}

// NewLinearBackoff returns a linear backoff strategy registered under name.
func NewLinearBackoff(name string, maxRetries int, delay time.Duration) *LinearBackoff {
	return &LinearBackoff{name: name, maxRetries: maxRetries, delay: delay}
}

func (s *LinearBackoff) Name() string { return s.name }

func (s *LinearBackoff) Execute(ctx context.Context, op Operation) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, s.delay*time.Duration(attempt)); err != nil {
				return nil, err
			}
			metrics.RetriesTotal.WithLabelValues(s.name).Inc()
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// withJitter returns a random duration in [0, d/10).
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * 0.1 * float64(d))
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
