package metrics

import (
	"mercator-hq/mixpolicy/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics tracks journal retention.
//
// Metrics:
//   - mixpolicy_journal_prune_runs_total: pruning runs by outcome
//   - mixpolicy_journal_pruned_records_total: records deleted by pruning
type JournalMetrics struct {
	pruneRuns     *prometheus.CounterVec
	prunedRecords prometheus.Counter
}

// NewJournalMetrics creates and registers journal metrics.
func NewJournalMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JournalMetrics {
	jm := &JournalMetrics{
		pruneRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_prune_runs_total",
				Help:      "Total number of journal pruning runs",
			},
			[]string{"outcome"},
		),
		prunedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_pruned_records_total",
				Help:      "Total number of journal records deleted by pruning",
			},
		),
	}

	registry.MustRegister(jm.pruneRuns, jm.prunedRecords)
	return jm
}

// RecordPrune records one pruning run.
func (jm *JournalMetrics) RecordPrune(deleted int64, err error) {
	if err != nil {
		jm.pruneRuns.WithLabelValues("error").Inc()
		return
	}
	jm.pruneRuns.WithLabelValues("success").Inc()
	if deleted > 0 {
		jm.prunedRecords.Add(float64(deleted))
	}
}
