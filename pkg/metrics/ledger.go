package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ledger operation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeReplay  = "replay"
	OutcomeError   = "error"
)

// LedgerMetrics counts coordinator operations by outcome and error code.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics. A nil registerer yields a
// no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Ledger operations by name and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operation_duration_seconds",
		Help:      "Ledger operation latency including the atomic unit.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"operation"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operation_errors_total",
		Help:      "Failed ledger operations by error code.",
	}, []string{"operation", "code"})
	reg.MustRegister(operations, duration, errs)
	return &LedgerMetrics{
		operations: operations,
		duration:   duration,
		errors:     errs,
	}
}

// Observe records one finished operation. code is empty on success.
func (m *LedgerMetrics) Observe(operation, outcome, code string, elapsed time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if outcome == OutcomeError {
		m.errors.WithLabelValues(operation, normalizeLabel(code)).Inc()
	}
}
