package recovery

import (
	"context"
	"log/slog"
	"path"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jstrand/chatctl/internal/circuitbreaker"
	"github.com/jstrand/chatctl/internal/metrics"
	"github.com/jstrand/chatctl/internal/strategy"
)

// Manager is the recovery facade. It owns one strategy registry, one breaker
// registry, and one outcome ledger, so tests and independent recovery domains
// can each construct their own.
type Manager struct {
	logger     *slog.Logger
	strategies *strategy.Registry
	breakers   *circuitbreaker.Registry
	ledger     *Ledger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLedgerCapacity bounds the outcome ledger. Default is
// DefaultLedgerCapacity.
func WithLedgerCapacity(n int) Option {
	return func(m *Manager) {
		m.ledger = NewLedger(n)
	}
}

// NewManager returns a Manager with empty registries and an empty ledger.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:     logger,
		strategies: strategy.NewRegistry(),
		breakers:   circuitbreaker.NewRegistry(logger),
		ledger:     NewLedger(DefaultLedgerCapacity),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterStrategy makes s selectable by name through Execute.
func (m *Manager) RegisterStrategy(s strategy.Strategy) {
	m.strategies.Register(s)
}

// Strategies returns the registered strategy names.
func (m *Manager) Strategies() []string {
	return m.strategies.Names()
}

// CallOption adjusts a single Execute call.
type CallOption func(*callConfig)

type callConfig struct {
	functionName string
}

// WithFunctionName overrides the function name recorded in the ledger.
// By default the name is inferred from the operation's function identity.
func WithFunctionName(name string) CallOption {
	return func(c *callConfig) {
		c.functionName = name
	}
}

// Execute runs op under the named strategy, records the outcome, and returns
// the operation's value or its error unchanged. An unknown strategy name
// fails fast with strategy.ErrNotRegistered and records nothing.
func (m *Manager) Execute(ctx context.Context, strategyName string, op strategy.Operation, opts ...CallOption) (any, error) {
	s, err := m.strategies.Get(strategyName)
	if err != nil {
		return nil, err
	}

	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.functionName == "" {
		cfg.functionName = functionName(op)
	}

	start := time.Now()
	v, err := s.Execute(ctx, op)
	m.observe(cfg.functionName, strategyName, start, err)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// BreakerHandle wraps a circuit breaker so that its outcomes are recorded to
// the manager's ledger like any strategy execution.
type BreakerHandle struct {
	m *Manager
	b *circuitbreaker.Breaker
}

// CreateBreaker returns a handle to the breaker registered under name,
// creating it with the given settings if absent.
func (m *Manager) CreateBreaker(name string, settings circuitbreaker.Settings) *BreakerHandle {
	return &BreakerHandle{m: m, b: m.breakers.Create(name, settings)}
}

// Execute runs op through the breaker and records the resolution under the
// pseudo-strategy name "breaker:<name>".
func (h *BreakerHandle) Execute(ctx context.Context, op strategy.Operation, opts ...CallOption) (any, error) {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.functionName == "" {
		cfg.functionName = functionName(op)
	}

	start := time.Now()
	v, err := h.b.Execute(ctx, circuitbreaker.Operation(op))
	h.m.observe(cfg.functionName, "breaker:"+h.b.Name(), start, err)
	return v, err
}

// Status returns a snapshot of the underlying breaker.
func (h *BreakerHandle) Status() circuitbreaker.Status {
	return h.b.Status()
}

// Breakers exposes the breaker registry, e.g. for config hot-reload wiring.
func (m *Manager) Breakers() *circuitbreaker.Registry {
	return m.breakers
}

// BreakerStatus returns the named breaker's snapshot, or false if unknown.
func (m *Manager) BreakerStatus(name string) (circuitbreaker.Status, bool) {
	return m.breakers.Status(name)
}

// Stats recomputes aggregated statistics from the ledger and every
// registered breaker.
func (m *Manager) Stats() Stats {
	return computeStats(m.ledger.snapshot(), m.breakers.Statuses())
}

// Log returns up to limit ledger records, newest first.
func (m *Manager) Log(limit int) []Record {
	return m.ledger.Recent(limit)
}

// ClearLog empties the ledger. Breakers are unaffected.
func (m *Manager) ClearLog() {
	m.ledger.Clear()
}

// observe appends an outcome record and updates metrics. Recording is
// best-effort and never alters the caller's result.
func (m *Manager) observe(fn, strategyName string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.OperationDuration.WithLabelValues(strategyName).Observe(elapsed.Seconds())

	r := Record{
		ID:        uuid.NewString(),
		Timestamp: start,
		Function:  fn,
		Strategy:  strategyName,
		Outcome:   OutcomeSuccess,
		Duration:  elapsed,
	}
	if err != nil {
		r.Outcome = OutcomeError
		r.Error = err.Error()
	}
	metrics.OperationsTotal.WithLabelValues(strategyName, string(r.Outcome)).Inc()
	m.ledger.Append(r)
}

// functionName derives a readable name from the operation's function
// identity. Anonymous functions keep their funcN suffix, which is still
// enough to group repeated call sites in the stats.
func functionName(op strategy.Operation) string {
	pc := reflect.ValueOf(op).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "unknown"
	}
	name := path.Base(f.Name())
	return strings.TrimSuffix(name, "-fm")
}
