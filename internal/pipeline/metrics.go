package pipeline

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records run and stage outcomes as prometheus series.
type Metrics struct {
	runs       *prometheus.CounterVec
	stages     *prometheus.HistogramVec
	discarded  *prometheus.CounterVec
	generation prometheus.Gauge
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenlight",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Finished pipeline runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "greenlight",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage latency by stage and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage", "outcome"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenlight",
			Subsystem: "pipeline",
			Name:      "discarded_results_total",
			Help:      "Stage results dropped because a newer run superseded them.",
		}, []string{"stage"}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "greenlight",
			Subsystem: "pipeline",
			Name:      "generation",
			Help:      "Generation of the most recently started run.",
		}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.stages, m.discarded, m.generation} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) OnEvent(_ context.Context, event Event) {
	mode := string(event.Mode)
	switch event.Type {
	case EventRunStart:
		m.generation.Set(float64(event.Generation))
	case EventRunComplete:
		m.runs.WithLabelValues(mode, "succeeded").Inc()
	case EventRunFailed:
		m.runs.WithLabelValues(mode, "failed").Inc()
	case EventRunSuperseded:
		m.runs.WithLabelValues(mode, "superseded").Inc()
	case EventStageComplete:
		m.stages.WithLabelValues(string(event.Stage), "complete").Observe(event.Duration.Seconds())
	case EventStageFailed:
		m.stages.WithLabelValues(string(event.Stage), "failed").Observe(event.Duration.Seconds())
	case EventStageDiscarded:
		m.discarded.WithLabelValues(string(event.Stage)).Inc()
	}
}
