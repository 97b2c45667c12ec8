// Package metrics exposes batch counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"complaintsync/internal/reconcile"
)

const namespace = "complaintsync"

// Run statuses.
const (
	StatusOK      = "ok"      // batch completed, possibly with failed records
	StatusFailed  = "failed"  // batch could not start or the source failed
	StatusSkipped = "skipped" // another run held the guard
)

// Metrics holds the collectors on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Records     *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Records reconciled, by driver and outcome",
			},
			[]string{"driver", "outcome"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Batch runs, by driver and status",
			},
			[]string{"driver", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of batch runs",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"driver"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.Records, m.Runs, m.RunDuration)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished batch.
func (m *Metrics) ObserveRun(s *reconcile.Summary, status string) {
	if m == nil || s == nil {
		return
	}
	for kind, n := range map[reconcile.Kind]int{
		reconcile.Inserted: s.Inserted,
		reconcile.Updated:  s.Updated,
		reconcile.Skipped:  s.Skipped,
		reconcile.Failed:   s.Failed,
	} {
		if n > 0 {
			m.Records.WithLabelValues(s.Driver, kind.String()).Add(float64(n))
		}
	}
	m.Runs.WithLabelValues(s.Driver, status).Inc()
	m.RunDuration.WithLabelValues(s.Driver).Observe(s.Duration().Seconds())
}

// ObserveSkippedRun counts a run that did not start.
func (m *Metrics) ObserveSkippedRun(driver string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(driver, StatusSkipped).Inc()
}
