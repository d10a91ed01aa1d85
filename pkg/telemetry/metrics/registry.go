package metrics

import (
	"mercator-hq/mixpolicy/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RegistryMetrics tracks the mix registry and activity notifications.
//
// Metrics:
//   - mixpolicy_registry_operations_total: mutations by operation and outcome
//   - mixpolicy_registered_mixes: mixes currently registered
//   - mixpolicy_active_streams: streams currently attached to a mix
//   - mixpolicy_notifications_total: activity events by delivery outcome
type RegistryMetrics struct {
	operationsTotal    *prometheus.CounterVec
	registeredMixes    prometheus.Gauge
	activeStreams      prometheus.Gauge
	notificationsTotal *prometheus.CounterVec
}

// NewRegistryMetrics creates and registers registry metrics.
func NewRegistryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RegistryMetrics {
	rm := &RegistryMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registry_operations_total",
				Help:      "Total number of registry operations",
			},
			[]string{"operation", "outcome"},
		),
		registeredMixes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registered_mixes",
				Help:      "Number of registered mixes",
			},
		),
		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_streams",
				Help:      "Number of active streams routed into a mix",
			},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "notifications_total",
				Help:      "Total number of mix activity notifications",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		rm.operationsTotal,
		rm.registeredMixes,
		rm.activeStreams,
		rm.notificationsTotal,
	)
	return rm
}

// RecordOperation records a registry mutation.
func (rm *RegistryMetrics) RecordOperation(operation, outcome string) {
	rm.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// SetRegistered sets the registered mix gauge.
func (rm *RegistryMetrics) SetRegistered(n int) {
	rm.registeredMixes.Set(float64(n))
}

// SetActiveStreams sets the active stream gauge.
func (rm *RegistryMetrics) SetActiveStreams(n int) {
	rm.activeStreams.Set(float64(n))
}

// RecordNotification records a notification delivery outcome.
func (rm *RegistryMetrics) RecordNotification(outcome string) {
	rm.notificationsTotal.WithLabelValues(outcome).Inc()
}
