package config

import (
	"slices"
	"time"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)

	// Policy defaults
	DefaultMaxMixes          = 50
	DefaultMaxCriteriaPerMix = 20
	DefaultDebounceInterval  = 100 * time.Millisecond
	DefaultNotifyBuffer      = 256
	DefaultMailboxSize       = 64

	// Store defaults
	DefaultStoreEnabled      = true
	DefaultStoreDriver       = "sqlite"
	DefaultStorePath         = "data/mixpolicy.db"
	DefaultStoreWALMode      = true
	DefaultStoreBusyTimeout  = 5 * time.Second
	DefaultStoreMaxOpenConns = 1
	DefaultRetentionDays     = 30
	DefaultRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultRedactTokens     = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "mixpolicy"
	DefaultLivenessPath     = "/health"
	DefaultReadinessPath    = "/ready"
	DefaultCheckTimeout     = 2 * time.Second
)

// DefaultEvaluationBuckets are the evaluation latency histogram buckets.
var DefaultEvaluationBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01}

// Default returns a configuration holding every default value. Files are
// decoded on top of it, so booleans that default to true can still be
// switched off explicitly.
func Default() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Enabled: DefaultStoreEnabled,
			WALMode: DefaultStoreWALMode,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactTokens: DefaultRedactTokens},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyPolicyDefaults(&cfg.Policy)
	applyStoreDefaults(&cfg.Store)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func applyPolicyDefaults(p *PolicyConfig) {
	if p.MaxMixes == 0 {
		p.MaxMixes = DefaultMaxMixes
	}
	if p.MaxCriteriaPerMix == 0 {
		p.MaxCriteriaPerMix = DefaultMaxCriteriaPerMix
	}
	if p.DebounceInterval == 0 {
		p.DebounceInterval = DefaultDebounceInterval
	}
	if p.NotifyBuffer == 0 {
		p.NotifyBuffer = DefaultNotifyBuffer
	}
	if p.MailboxSize == 0 {
		p.MailboxSize = DefaultMailboxSize
	}
}

func applyStoreDefaults(s *StoreConfig) {
	if s.Driver == "" {
		s.Driver = DefaultStoreDriver
	}
	if s.Path == "" {
		s.Path = DefaultStorePath
	}
	if s.BusyTimeout == 0 {
		s.BusyTimeout = DefaultStoreBusyTimeout
	}
	if s.MaxOpenConns == 0 {
		s.MaxOpenConns = DefaultStoreMaxOpenConns
	}
	if s.Retention.RetentionDays == 0 {
		s.Retention.RetentionDays = DefaultRetentionDays
	}
	if s.Retention.PruneSchedule == "" {
		s.Retention.PruneSchedule = DefaultRetentionSchedule
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.EvaluationBuckets) == 0 {
		t.Metrics.EvaluationBuckets = slices.Clone(DefaultEvaluationBuckets)
	}
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultCheckTimeout
	}
}
