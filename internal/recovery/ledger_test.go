package recovery

import (
	"strconv"
	"testing"
	"time"
)

func record(i int) Record {
	return Record{
		ID:        strconv.Itoa(i),
		Timestamp: time.Unix(int64(i), 0),
		Function:  "fn",
		Strategy:  "s",
		Outcome:   OutcomeSuccess,
	}
}

func TestLedger_BoundedEviction(t *testing.T) {
	l := NewLedger(1000)

	for i := 0; i < 1500; i++ {
		l.Append(record(i))
	}

	if l.Len() != 1000 {
		t.Fatalf("expected ledger capped at 1000, got %d", l.Len())
	}

	recent := l.Recent(1500)
	if len(recent) != 1000 {
		t.Fatalf("Recent(1500) returned %d records, want 1000", len(recent))
	}
	// Newest first: record 1499 leads, record 500 is the oldest survivor.
	if recent[0].ID != "1499" {
		t.Fatalf("newest record ID = %s, want 1499", recent[0].ID)
	}
	if recent[len(recent)-1].ID != "500" {
		t.Fatalf("oldest surviving record ID = %s, want 500", recent[len(recent)-1].ID)
	}
}

func TestLedger_RecentLimit(t *testing.T) {
	l := NewLedger(10)
	for i := 0; i < 5; i++ {
		l.Append(record(i))
	}

	recent := l.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	for i, want := range []string{"4", "3", "2"} {
		if recent[i].ID != want {
			t.Fatalf("recent[%d].ID = %s, want %s", i, recent[i].ID, want)
		}
	}

	// Non-positive limit means everything.
	if got := len(l.Recent(0)); got != 5 {
		t.Fatalf("Recent(0) returned %d records, want 5", got)
	}
}

func TestLedger_Clear(t *testing.T) {
	l := NewLedger(10)
	for i := 0; i < 5; i++ {
		l.Append(record(i))
	}

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d", l.Len())
	}
	if got := len(l.Recent(10)); got != 0 {
		t.Fatalf("expected no records after Clear, got %d", got)
	}

	// The ledger stays usable after clearing.
	l.Append(record(9))
	if l.Len() != 1 {
		t.Fatalf("expected 1 record after re-append, got %d", l.Len())
	}
}

func TestLedger_SnapshotOldestFirst(t *testing.T) {
	l := NewLedger(3)
	for i := 0; i < 5; i++ {
		l.Append(record(i))
	}

	snap := l.snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 records, got %d", len(snap))
	}
	for i, want := range []string{"2", "3", "4"} {
		if snap[i].ID != want {
			t.Fatalf("snapshot[%d].ID = %s, want %s", i, snap[i].ID, want)
		}
	}
}

func TestLedger_NonPositiveCapacityFallsBack(t *testing.T) {
	l := NewLedger(0)
	if cap := len(l.entries); cap != DefaultLedgerCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultLedgerCapacity, cap)
	}
}
