package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by the Timeout strategy when the deadline elapses
// before the operation resolves. It is distinct from any operation error so
// callers can tell "too slow" apart from "failed".
var ErrTimeout = errors.New("operation timed out")

// IsTimeout reports whether err was produced by the Timeout strategy.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Timeout races the operation against a deadline. The deadline is propagated
// into the operation as a context timeout, so a cooperating operation is
// cancelled rather than left running when it loses the race.
type Timeout struct {
	name  string
	limit time.Duration
}

// NewTimeout returns a timeout strategy registered under name.
func NewTimeout(name string, limit time.Duration) *Timeout {
	return &Timeout{name: name, limit: limit}
}

func (s *Timeout) Name() string { return s.name }

func (s *Timeout) Execute(ctx context.Context, op Operation) (any, error) {
	tctx, cancel := context.WithTimeout(ctx, s.limit)
	defer cancel()

	type result struct {
		v   any
		err error
	}

	// Buffered so the operation goroutine can always deliver and exit, even
	// after the deadline has won the race.
	ch := make(chan result, 1)
	go func() {
		v, err := op(tctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			// The caller's context ended first; report that, not a timeout.
			return nil, err
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, s.limit)
	}
}
