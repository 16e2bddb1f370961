package fulfillment

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts fulfillment runs and line outcomes.
type Metrics struct {
	runsTotal  *prometheus.CounterVec
	linesTotal *prometheus.CounterVec
}

// NewMetrics registers the fulfillment collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmanet_fulfillment_runs_total",
		Help: "Fulfillment runs by final result (completed or failed).",
	}, []string{"result"})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmanet_fulfillment_lines_total",
		Help: "Prescription line outcomes by status.",
	}, []string{"status"})
	reg.MustRegister(runs, lines)
	return &Metrics{runsTotal: runs, linesTotal: lines}
}

func (m *Metrics) runCompleted() {
	if m != nil {
		m.runsTotal.WithLabelValues("completed").Inc()
	}
}

func (m *Metrics) runFailed() {
	if m != nil {
		m.runsTotal.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) line(status LineStatus) {
	if m != nil {
		m.linesTotal.WithLabelValues(string(status)).Inc()
	}
}
