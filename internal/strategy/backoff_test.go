package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// failingOp returns an operation that fails with a distinct error on every
// attempt and counts invocations.
func failingOp(calls *int, errs *[]error) Operation {
	return func(ctx context.Context) (any, error) {
		*calls++
		err := fmt.Errorf("attempt %d failed", *calls)
		*errs = append(*errs, err)
		return nil, err
	}
}

func TestExponentialBackoff_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	s := NewExponentialBackoff("exp", 3, time.Millisecond)

	var calls int
	var errs []error
	_, err := s.Execute(context.Background(), failingOp(&calls, &errs))

	if calls != 4 {
		t.Fatalf("expected 4 attempts (maxRetries+1), got %d", calls)
	}
	// The final error must be the 4th attempt's error, unwrapped.
	if err != errs[3] {
		t.Fatalf("expected last attempt's error by identity, got %v", err)
	}
}

func TestExponentialBackoff_SucceedsAfterRetries(t *testing.T) {
	s := NewExponentialBackoff("exp", 5, time.Millisecond)

	calls := 0
	v, err := s.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Fatalf("expected %q, got %v", "ok", v)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExponentialBackoff_ZeroRetriesSingleAttempt(t *testing.T) {
	s := NewExponentialBackoff("exp", 0, time.Millisecond)

	var calls int
	var errs []error
	_, err := s.Execute(context.Background(), failingOp(&calls, &errs))
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", calls)
	}
	if err != errs[0] {
		t.Fatalf("expected the single attempt's error, got %v", err)
	}
}

func TestExponentialBackoff_CancelledContextStopsRetrying(t *testing.T) {
	s := NewExponentialBackoff("exp", 3, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := s.Execute(ctx, func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected retry loop to stop after 1 attempt, got %d", calls)
	}
}

func TestLinearBackoff_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	s := NewLinearBackoff("lin", 2, time.Millisecond)

	var calls int
	var errs []error
	_, err := s.Execute(context.Background(), failingOp(&calls, &errs))
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if err != errs[2] {
		t.Fatalf("expected last attempt's error by identity, got %v", err)
	}
}

func TestLinearBackoff_DelayGrowsLinearly(t *testing.T) {
	// delay*1 + delay*2 = 30ms minimum total wait for 2 retries.
	s := NewLinearBackoff("lin", 2, 10*time.Millisecond)

	start := time.Now()
	var calls int
	var errs []error
	s.Execute(context.Background(), failingOp(&calls, &errs)) //nolint:errcheck
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected at least 30ms of linear delays, got %s", elapsed)
	}
}

func TestWithJitter_Bounds(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		j := withJitter(d)
		if j < 0 || j >= d/10 {
			t.Fatalf("jitter %s out of [0, %s)", j, d/10)
		}
	}
	if j := withJitter(0); j != 0 {
		t.Fatalf("expected zero jitter for zero delay, got %s", j)
	}
}
