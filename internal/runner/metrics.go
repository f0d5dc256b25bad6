package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts submissions of one CLI invocation. The registry is private
// so counters start from zero for every runner.
type Metrics struct {
	registry      *prometheus.Registry
	submittedRuns *prometheus.CounterVec
	skippedRuns   *prometheus.CounterVec
	submitErrors  *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		submittedRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowlab",
			Subsystem: "runs",
			Name:      "submitted_total",
			Help:      "Runs accepted by the submitter",
		}, []string{"kind", "status"}),
		skippedRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowlab",
			Subsystem: "runs",
			Name:      "skipped_total",
			Help:      "Runs found in the ledger and not submitted again",
		}, []string{"kind"}),
		submitErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowlab",
			Subsystem: "runs",
			Name:      "submit_errors_total",
			Help:      "Submissions rejected with an error",
		}, []string{"kind"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowlab",
			Subsystem: "runs",
			Name:      "submit_duration_seconds",
			Help:      "Time spent in the submitter per run",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the metrics in the node-exporter textfile format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) submitted(kind, status string) {
	m.submittedRuns.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) skipped(kind string) {
	m.skippedRuns.WithLabelValues(kind).Inc()
}

func (m *Metrics) failed(kind string) {
	m.submitErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) observe(kind string, d time.Duration) {
	m.latency.WithLabelValues(kind).Observe(d.Seconds())
}
