// Package config provides configuration management for the mix policy
// service.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// Files are decoded on top of Default(), so omitted keys keep their default
// and unknown keys are rejected.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MIXPOLICY_SECTION_FIELD.
// For example:
//
//   - MIXPOLICY_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - MIXPOLICY_POLICY_MAX_MIXES overrides policy.max_mixes
//   - MIXPOLICY_STORE_RETENTION_DAYS overrides store.retention.retention_days
//   - MIXPOLICY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//	  max_body_bytes: 1048576
//
//	policy:
//	  max_mixes: 50
//	  max_criteria_per_mix: 20
//	  mix_file: "mixes.yaml"
//	  watch: true
//
//	store:
//	  enabled: true
//	  driver: "sqlite"
//	  path: "data/mixpolicy.db"
//	  retention:
//	    retention_days: 30
//	    prune_schedule: "0 3 * * *"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//	  metrics:
//	    enabled: true
//	    path: "/metrics"
//
// # Validation
//
// Validate collects every problem into a ValidationError of FieldErrors.
// Registry limits may not exceed the wire contract (50 mixes, 20 criteria
// per mix) and the prune schedule must be a standard cron expression.
//
// # Current Configuration
//
// Publish and Current hold the configuration of the running server. Reload
// re-reads the file on SIGHUP, publishes the result and reports the sections
// whose changes need a restart (RestartRequired). Only the log level is
// applied live. Prefer passing *Config explicitly in library code.
package config
