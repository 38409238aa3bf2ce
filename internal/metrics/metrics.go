// Package metrics records smoke runs as Prometheus metrics and writes them
// in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/motion-backend/motion-smoke/internal/smoke"
)

const namespace = "motion_smoke"

// Recorder holds the metrics for smoke runs in a private registry.
type Recorder struct {
	Registry *prometheus.Registry

	steps       *prometheus.CounterVec
	stepSeconds *prometheus.GaugeVec
	runSeconds  prometheus.Gauge
	success     prometheus.Gauge
	lastRun     prometheus.Gauge
	records     prometheus.Gauge
	aiCaptured  prometheus.Gauge

	now func() time.Time
}

// New creates a Recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		now:      time.Now,
	}
	r.steps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "steps_total",
		Help:      "Workflow steps by outcome.",
	}, []string{"step", "outcome"})
	r.stepSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Round-trip time of the last execution of each step.",
	}, []string{"step", "status"})
	r.runSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run.",
	})
	r.success = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_success",
		Help:      "1 if the last run passed, 0 otherwise.",
	})
	r.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last run.",
	})
	r.records = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "log_records",
		Help:      "Records written to the log artifact by the last run.",
	})
	r.aiCaptured = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ai_event_captured",
		Help:      "1 if the last run captured an AI event id.",
	})

	r.Registry.MustRegister(
		r.steps, r.stepSeconds, r.runSeconds,
		r.success, r.lastRun, r.records, r.aiCaptured,
	)
	return r
}

// Record updates the metrics from res.
func (r *Recorder) Record(res *smoke.Result) {
	for _, sr := range res.Steps {
		r.steps.WithLabelValues(sr.Name, string(sr.Outcome)).Inc()
		if sr.Outcome == smoke.OutcomePassed || sr.Outcome == smoke.OutcomeFailed {
			r.stepSeconds.WithLabelValues(sr.Name, fmt.Sprint(sr.Status)).Set(sr.Duration.Seconds())
		}
	}
	r.runSeconds.Set(res.Duration.Seconds())
	r.success.Set(boolToFloat(res.Passed))
	r.lastRun.Set(float64(r.now().Unix()))
	r.records.Set(float64(res.Records))
	r.aiCaptured.Set(boolToFloat(res.AIEventID != smoke.NotCaptured))
}

// WriteTextfile writes every metric to path, replacing it atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
