// Package metrics exposes scenario outcomes as Prometheus metrics.
//
// A Recorder owns a private registry, so nothing leaks into the global
// default registry and tests can create as many recorders as they like.
// The CLI writes the registry out in the node_exporter textfile format
// after a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/formcheck/internal/harness"
)

const namespace = "formcheck"

// Result label values for formcheck_scenarios_total.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Recorder accumulates metrics for scenario runs.
type Recorder struct {
	registry    *prometheus.Registry
	scenarios   *prometheus.CounterVec
	submissions prometheus.Counter
	delta       *prometheus.GaugeVec
	duration    prometheus.Histogram
	lastRun     prometheus.Gauge
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Scenario runs by result.",
		}, []string{"result"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Form submissions that returned a response.",
		}),
		delta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracking_delta",
			Help:      "Tracking events observed by the last run of each scenario.",
		}, []string{"scenario"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of a scenario run, settle delay included.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last scenario finished.",
		}),
	}

	r.registry.MustRegister(r.scenarios, r.submissions, r.delta, r.duration, r.lastRun)

	// Pre-create both result series so a clean run still exports fail=0.
	r.scenarios.WithLabelValues(ResultPass)
	r.scenarios.WithLabelValues(ResultFail)

	return r
}

// Observe records one scenario result.
func (r *Recorder) Observe(result *harness.Result) {
	if result.Pass {
		r.scenarios.WithLabelValues(ResultPass).Inc()
	} else {
		r.scenarios.WithLabelValues(ResultFail).Inc()
	}
	r.submissions.Add(float64(result.Submissions))

	// A run that never reconciled has no meaningful delta.
	if result.After.Subject != "" {
		r.delta.WithLabelValues(result.Scenario).Set(float64(result.Delta))
	}

	if !result.StartedAt.IsZero() && !result.FinishedAt.IsZero() {
		r.duration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
		r.lastRun.Set(float64(result.FinishedAt.Unix()))
	}
}

// Gatherer returns the registry backing the recorder.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is written to a temporary name and renamed into place.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
