package metrics

import (
	"strconv"
	"sync"
	"time"

	"mercator-hq/mixpolicy/pkg/config"
	"mercator-hq/mixpolicy/pkg/policy/mix"

	"github.com/prometheus/client_golang/prometheus"
)

// otherLabel replaces label values once the cardinality limit is reached.
const otherLabel = "other"

// Collector owns every Prometheus metric of the service. It implements
// engine.Recorder, manager.Metrics and retention.Recorder so the policy
// components can report into it without importing Prometheus.
//
// All methods are no-ops when metrics are disabled.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluation *EvaluationMetrics
	mixes      *RegistryMetrics
	journal    *JournalMetrics
	http       *HTTPMetrics

	routeLimiter *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics on registry.
// If registry is nil a fresh registry is created.
//
// Example:
//
//	cfg := config.Default().Telemetry.Metrics
//	collector := metrics.NewCollector(&cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.EvaluationBuckets) == 0 {
		cfg.EvaluationBuckets = append([]float64(nil), config.DefaultEvaluationBuckets...)
	}

	return &Collector{
		config:       cfg,
		registry:     registry,
		evaluation:   NewEvaluationMetrics(cfg, registry),
		mixes:        NewRegistryMetrics(cfg, registry),
		journal:      NewJournalMetrics(cfg, registry),
		http:         NewHTTPMetrics(cfg, registry),
		routeLimiter: NewCardinalityLimiter(256),
	}
}

// Enabled reports whether the collector records anything.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordEvaluation records one matching evaluation.
func (c *Collector) RecordEvaluation(class mix.StreamClass, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.evaluation.RecordEvaluation(class.String(), outcome, duration)
}

// RecordRegistryOperation records a registry mutation and its outcome.
func (c *Collector) RecordRegistryOperation(operation, outcome string) {
	if !c.config.Enabled {
		return
	}
	c.mixes.RecordOperation(operation, outcome)
}

// SetRegisteredMixes updates the registered mix gauge.
func (c *Collector) SetRegisteredMixes(n int) {
	if !c.config.Enabled {
		return
	}
	c.mixes.SetRegistered(n)
}

// SetActiveStreams updates the tracked stream gauge.
func (c *Collector) SetActiveStreams(n int) {
	if !c.config.Enabled {
		return
	}
	c.mixes.SetActiveStreams(n)
}

// RecordNotification records the delivery outcome of an activity event.
func (c *Collector) RecordNotification(outcome string) {
	if !c.config.Enabled {
		return
	}
	c.mixes.RecordNotification(outcome)
}

// RecordPrune records one journal pruning run.
func (c *Collector) RecordPrune(deleted int64, err error) {
	if !c.config.Enabled {
		return
	}
	c.journal.RecordPrune(deleted, err)
}

// RecordHTTPRequest records a served HTTP request. Routes beyond the
// cardinality limit are reported as "other".
func (c *Collector) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if route == "" || !c.routeLimiter.Allow(route) {
		route = otherLabel
	}
	c.http.RecordRequest(route, method, strconv.Itoa(status), duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct values a label may take.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits under the
// limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
