// Package metrics exposes Prometheus instrumentation for statistics runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastSuccess      prometheus.Gauge
	GroupsTotal      *prometheus.CounterVec
	GroupFailures    prometheus.Counter
	PostingsRejected prometheus.Counter
}

// New registers the calculator metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "days_to_hire_runs_total",
			Help: "Statistics runs by result (ok, partial, failed)",
		}, []string{"result"}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "days_to_hire_run_duration_seconds",
			Help:    "Wall time of one statistics run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "days_to_hire_last_success_timestamp_seconds",
			Help: "Unix time of the last run that finished without failed keys",
		}),

		GroupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "days_to_hire_groups_total",
			Help: "Groups processed by persistence action",
		}, []string{"action"}),

		GroupFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "days_to_hire_group_failures_total",
			Help: "Groups whose statistics could not be persisted",
		}),

		PostingsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "days_to_hire_postings_rejected_total",
			Help: "Postings dropped for carrying an invalid days-to-hire value or country code",
		}),
	}
}

func (m *Metrics) ObserveRun(result string, took time.Duration, at time.Time) {
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(took.Seconds())
	if result == "ok" {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}

func (m *Metrics) ObserveGroup(action string) {
	m.GroupsTotal.WithLabelValues(action).Inc()
}
