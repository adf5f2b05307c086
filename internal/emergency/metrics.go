package emergency

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricActivationsTotal   = "emergency_activations_total"
	MetricDeactivationsTotal = "emergency_deactivations_total"
)

// Metrics contains Prometheus metrics for emergency state transitions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	activationsTotal   *prometheus.CounterVec
	deactivationsTotal prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		activationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricActivationsTotal,
			Help: "Total number of emergency activations by level",
		}, []string{"level"}),
		deactivationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDeactivationsTotal,
			Help: "Total number of emergency deactivations",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.activationsTotal, m.deactivationsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) recordActivated(level int) {
	if m != nil {
		m.activationsTotal.WithLabelValues(strconv.Itoa(level)).Inc()
	}
}

func (m *Metrics) recordDeactivated() {
	if m != nil {
		m.deactivationsTotal.Inc()
	}
}
