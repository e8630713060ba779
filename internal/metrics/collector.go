// Package metrics exposes Prometheus instrumentation for generation calls and task polling.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records generation and polling metrics.
type Collector struct {
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	pollAttemptsTotal  *prometheus.CounterVec
	degradedEditsTotal *prometheus.CounterVec
}

// NewCollector registers the collector's metrics against reg under namespace.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of orchestrated generate/edit calls",
			},
			[]string{"provider", "mode", "outcome"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Wall time of orchestrated calls including polling",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"provider", "mode"},
		),
		pollAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_attempts_total",
				Help:      "Total number of task status queries",
			},
			[]string{"provider", "result"}, // result: pending, succeeded, failed, error
		),
		degradedEditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_edits_total",
				Help:      "Edits serviced by re-generation without the source image",
			},
			[]string{"provider"},
		),
	}
}

// RecordGeneration records one orchestrated call. outcome is "success", "text_only",
// "empty" or an error kind.
func (c *Collector) RecordGeneration(provider, mode, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.generationsTotal.WithLabelValues(provider, mode, outcome).Inc()
	c.generationDuration.WithLabelValues(provider, mode).Observe(duration.Seconds())
}

// RecordPollAttempt records one task status query.
func (c *Collector) RecordPollAttempt(provider, result string) {
	if c == nil {
		return
	}
	c.pollAttemptsTotal.WithLabelValues(provider, result).Inc()
}

// RecordDegradedEdit records an edit serviced as a generation.
func (c *Collector) RecordDegradedEdit(provider string) {
	if c == nil {
		return
	}
	c.degradedEditsTotal.WithLabelValues(provider).Inc()
}
