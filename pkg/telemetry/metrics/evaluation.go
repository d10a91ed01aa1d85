package metrics

import (
	"time"

	"mercator-hq/mixpolicy/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EvaluationMetrics tracks matching evaluations.
//
// Metrics:
//   - mixpolicy_evaluations_total: evaluations by stream class and outcome
//   - mixpolicy_evaluation_duration_seconds: evaluation latency by class
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
}

// NewEvaluationMetrics creates and registers evaluation metrics.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of stream evaluations",
			},
			[]string{"class", "outcome"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of stream evaluations in seconds",
				Buckets:   cfg.EvaluationBuckets,
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(em.evaluationsTotal, em.evaluationDuration)
	return em
}

// RecordEvaluation records one evaluation.
func (em *EvaluationMetrics) RecordEvaluation(class, outcome string, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(class, outcome).Inc()
	em.evaluationDuration.WithLabelValues(class).Observe(duration.Seconds())
}
