package action

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue reads the current value of a counter.
func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_RecordCounters(t *testing.T) {
	m := NewMetrics()

	m.recordSubmitted()
	m.recordSubmitted()
	m.recordSigned()
	m.recordExecuted(true)
	m.recordExecuted(false)
	m.recordCancelled()
	m.recordExpired()
	m.recordRejected("quorum_not_met")
	m.recordRejected("quorum_not_met")
	m.recordRejected("expired")

	if got := counterValue(t, m.submittedTotal); got != 2 {
		t.Errorf("submitted = %v, want 2", got)
	}
	if got := counterValue(t, m.signedTotal); got != 1 {
		t.Errorf("signed = %v, want 1", got)
	}
	if got := counterValue(t, m.executedTotal); got != 2 {
		t.Errorf("executed = %v, want 2", got)
	}
	if got := counterValue(t, m.dispatchFailures); got != 1 {
		t.Errorf("dispatch failures = %v, want 1", got)
	}
	if got := counterValue(t, m.rejectedTotal.WithLabelValues("quorum_not_met")); got != 2 {
		t.Errorf("rejected[quorum_not_met] = %v, want 2", got)
	}
	if got := counterValue(t, m.rejectedTotal.WithLabelValues("expired")); got != 1 {
		t.Errorf("rejected[expired] = %v, want 1", got)
	}
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.recordSubmitted()
	m.recordSigned()
	m.recordExecuted(false)
	m.recordCancelled()
	m.recordExpired()
	m.recordRejected("anything")
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// Double registration must surface the conflict.
	if err := m.Register(reg); err == nil {
		t.Error("expected error on duplicate registration")
	}
}
