package action

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSubmittedTotal   = "ledger_transactions_submitted_total"
	MetricSignedTotal      = "ledger_signatures_accepted_total"
	MetricExecutedTotal    = "ledger_transactions_executed_total"
	MetricCancelledTotal   = "ledger_transactions_cancelled_total"
	MetricExpiredTotal     = "ledger_transactions_expired_total"
	MetricRejectedTotal    = "ledger_operations_rejected_total"
	MetricDispatchFailures = "ledger_dispatch_failures_total"
)

// Metrics contains Prometheus metrics for ledger operations.
// All operations are thread-safe.
type Metrics struct {
	submittedTotal   prometheus.Counter
	signedTotal      prometheus.Counter
	executedTotal    prometheus.Counter
	cancelledTotal   prometheus.Counter
	expiredTotal     prometheus.Counter
	rejectedTotal    *prometheus.CounterVec
	dispatchFailures prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		submittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSubmittedTotal,
			Help: "Total number of transactions submitted",
		}),
		signedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSignedTotal,
			Help: "Total number of signatures accepted",
		}),
		executedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricExecutedTotal,
			Help: "Total number of transactions executed",
		}),
		cancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCancelledTotal,
			Help: "Total number of transactions cancelled",
		}),
		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricExpiredTotal,
			Help: "Total number of transactions expired",
		}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRejectedTotal,
			Help: "Total number of rejected ledger operations by reason",
		}, []string{"reason"}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDispatchFailures,
			Help: "Total number of executed transactions whose dispatch failed",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.submittedTotal,
		m.signedTotal,
		m.executedTotal,
		m.cancelledTotal,
		m.expiredTotal,
		m.rejectedTotal,
		m.dispatchFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) recordSubmitted() {
	if m != nil {
		m.submittedTotal.Inc()
	}
}

func (m *Metrics) recordSigned() {
	if m != nil {
		m.signedTotal.Inc()
	}
}

func (m *Metrics) recordExecuted(dispatchOK bool) {
	if m == nil {
		return
	}
	m.executedTotal.Inc()
	if !dispatchOK {
		m.dispatchFailures.Inc()
	}
}

func (m *Metrics) recordCancelled() {
	if m != nil {
		m.cancelledTotal.Inc()
	}
}

func (m *Metrics) recordExpired() {
	if m != nil {
		m.expiredTotal.Inc()
	}
}

func (m *Metrics) recordRejected(reason string) {
	if m != nil {
		m.rejectedTotal.WithLabelValues(reason).Inc()
	}
}
