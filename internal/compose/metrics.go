package compose

import (
	"github.com/prometheus/client_golang/prometheus"

	"kanso-verify/internal/report"
)

const metricsNamespace = "kanso_verify"

// Metrics are the counters of one or more runs. They use their own
// registry so that a run can be written out as a node exporter textfile.
type Metrics struct {
	registry *prometheus.Registry

	verdicts     *prometheus.CounterVec
	solverChecks *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	obligations  prometheus.Counter
	taskSeconds  prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verdicts_total",
			Help:      "Function verdicts by kind",
		}, []string{"verdict"}),
		solverChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "solver_checks_total",
			Help:      "Solver queries by answer",
		}, []string{"status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Verdict cache lookups by result",
		}, []string{"result"}),
		obligations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "obligations_total",
			Help:      "Proof obligations generated",
		}),
		taskSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "task_duration_seconds",
			Help:      "Wall-clock time of one verification task",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
	}
	m.registry.MustRegister(m.verdicts, m.solverChecks, m.cacheLookups, m.obligations, m.taskSeconds)
	return m
}

// WriteTextfile writes the current values in Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) verdict(k report.Kind) {
	if m != nil {
		m.verdicts.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) solverCheck(status string) {
	if m != nil {
		m.solverChecks.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) generated(n int) {
	if m != nil {
		m.obligations.Add(float64(n))
	}
}

func (m *Metrics) observeTask(seconds float64) {
	if m != nil {
		m.taskSeconds.Observe(seconds)
	}
}
