// Package recovery is the entry point callers use to run operations under a
// named strategy or circuit breaker. Every resolution is appended to a
// bounded in-memory outcome ledger from which aggregated statistics are
// computed on demand.
package recovery

import (
	"sync"
	"time"

	"github.com/jstrand/chatctl/internal/metrics"
)

// Outcome classifies how an operation resolved.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Record is one strategy invocation's result. Immutable once appended.
type Record struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Function  string        `json:"function"`
	Strategy  string        `json:"strategy"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// DefaultLedgerCapacity bounds the ledger when no capacity is configured.
const DefaultLedgerCapacity = 1000

// Ledger is an ordered, capacity-bounded record of operation outcomes.
// Insertion evicts the oldest entry once full. Appending never fails and
// never blocks the caller's result.
type Ledger struct {
	mu      sync.Mutex
	entries []Record
	head    int // next write position
	count   int // number of live entries (up to capacity)
}

// NewLedger returns an empty ledger holding at most capacity records.
// Non-positive capacities fall back to DefaultLedgerCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &Ledger{entries: make([]Record, capacity)}
}

// Append inserts r, evicting the oldest record if the ledger is full.
func (l *Ledger) Append(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.head] = r
	l.head = (l.head + 1) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	}
	metrics.LedgerSize.Set(float64(l.count))
}

// Len returns the number of records currently held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Recent returns up to limit records, newest first.
func (l *Ledger) Recent(limit int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > l.count {
		limit = l.count
	}
	out := make([]Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.head - i + len(l.entries)) % len(l.entries)
		out = append(out, l.entries[idx])
	}
	return out
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.head = 0
	l.count = 0
	metrics.LedgerSize.Set(0)
}

// snapshot returns the live records oldest first. Used by stats computation.
func (l *Ledger) snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, l.count)
	start := (l.head - l.count + len(l.entries)) % len(l.entries)
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(start+i)%len(l.entries)])
	}
	return out
}
