// Package metrics provides Prometheus metrics for the mix policy service.
//
// # Metrics Categories
//
//   - Evaluation: evaluation count and latency by stream class and outcome
//   - Registry: mutations, registered mixes, active streams, notifications
//   - Journal: retention pruning runs and deleted records
//   - HTTP: requests served by the policy channel
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	mgr := manager.NewManager(managerCfg, manager.Options{Metrics: collector})
//	pruner := retention.NewPruner(journal, retentionCfg, collector)
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Metric names are prefixed with the configured namespace (default
// "mixpolicy") and optional subsystem. HTTP route labels are bounded by a
// CardinalityLimiter; overflow is reported as "other".
package metrics
