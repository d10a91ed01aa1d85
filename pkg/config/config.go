package config

import "time"

// Config is the root configuration structure of the mix policy service.
type Config struct {
	// Server contains the HTTP listener configuration.
	Server ServerConfig `yaml:"server"`

	// Policy contains registry limits, the optional mix file and
	// activity notification settings.
	Policy PolicyConfig `yaml:"policy"`

	// Store contains the journal database and retention settings.
	Store StoreConfig `yaml:"store"`

	// Telemetry contains logging, metrics and health check settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of request bodies.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// PolicyConfig contains configuration for the mix registry.
type PolicyConfig struct {
	// MaxMixes is the maximum number of registered mixes.
	// Range: 1-50. Default: 50
	MaxMixes int `yaml:"max_mixes"`

	// MaxCriteriaPerMix is the maximum number of criteria per mix.
	// Range: 1-20. Default: 20
	MaxCriteriaPerMix int `yaml:"max_criteria_per_mix"`

	// MixFile is an optional YAML file of mixes registered at startup.
	MixFile string `yaml:"mix_file"`

	// Watch reloads MixFile when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period before a changed mix file is
	// reloaded.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// NotifyBuffer is the capacity of the activity notification channel.
	// Default: 256
	NotifyBuffer int `yaml:"notify_buffer"`

	// MailboxSize is the number of activity events queued per owner.
	// Default: 64
	MailboxSize int `yaml:"mailbox_size"`
}

// StoreConfig contains configuration for the journal database.
type StoreConfig struct {
	// Enabled controls whether registrations, activity and decisions are
	// journaled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Driver selects the SQLite driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file.
	// Default: "data/mixpolicy.db"
	Path string `yaml:"path"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a writer waits for a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns"`

	// Retention contains journal pruning settings.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains configuration for journal pruning.
type RetentionConfig struct {
	// RetentionDays is how many days of records to keep. A negative value
	// keeps records forever.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// MaxRecords is the maximum number of records kept per table
	// (0 = unlimited).
	// Default: 0
	MaxRecords int `yaml:"max_records"`

	// PruneSchedule is a standard 5-field cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactTokens masks owner capability tokens in log entries.
	// Default: true
	RedactTokens bool `yaml:"redact_tokens"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "mixpolicy"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: ""
	Subsystem string `yaml:"subsystem"`

	// EvaluationBuckets defines histogram buckets for evaluation latency
	// (seconds).
	// Default: [0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01]
	EvaluationBuckets []float64 `yaml:"evaluation_buckets"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
