// Package metrics provides Prometheus instrumentation for the recovery
// subsystem and the provider client. All metric collectors are registered
// via the Init function and exposed through the Handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OperationsTotal counts completed operations by strategy and outcome.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatctl_operations_total",
			Help: "Total operations executed through the recovery facade",
		},
		[]string{"strategy", "outcome"},
	)

	// OperationDuration observes operation latency in seconds by strategy.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatctl_operation_duration_seconds",
			Help:    "Operation latency in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// RetriesTotal counts retry attempts by strategy.
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatctl_retries_total",
			Help: "Total retry attempts performed by retrying strategies",
		},
		[]string{"strategy"},
	)

	// BreakerState reports the current state of each circuit breaker
	// (0=closed, 1=open, 2=half-open).
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatctl_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	// BreakerStateChanges counts breaker transitions by breaker, from, and to.
	BreakerStateChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatctl_breaker_state_changes_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	// BreakerRejections counts calls rejected while a breaker is open.
	BreakerRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatctl_breaker_rejections_total",
			Help: "Total calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)

	// LedgerSize tracks the number of records currently in the outcome ledger.
	LedgerSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatctl_ledger_records",
			Help: "Number of records currently held by the outcome ledger",
		},
	)

	// ProviderRequestsTotal counts provider HTTP requests by model and status.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatctl_provider_requests_total",
			Help: "Total chat-completion requests sent to the provider",
		},
		[]string{"model", "status"},
	)

	// ProviderRequestDuration observes provider request latency in seconds.
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatctl_provider_request_duration_seconds",
			Help:    "Provider request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)

// Init registers all metric collectors with the default Prometheus registry.
// Must be called once at startup before executing operations.
func Init() {
	prometheus.MustRegister(
		OperationsTotal,
		OperationDuration,
		RetriesTotal,
		BreakerState,
		BreakerStateChanges,
		BreakerRejections,
		LedgerSize,
		ProviderRequestsTotal,
		ProviderRequestDuration,
	)
}

// Handler returns an http.Handler that serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
