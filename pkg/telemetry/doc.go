// Package telemetry groups the observability packages of the mix policy
// service:
//
//   - logging: log/slog construction, context attributes, token redaction
//   - metrics: Prometheus collector for evaluations, registry, journal and HTTP
//   - health: liveness and readiness probes
package telemetry
