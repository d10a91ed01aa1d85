package config

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

var current atomic.Pointer[Config]

// Current returns the configuration last published, or nil.
func Current() *Config {
	return current.Load()
}

// Publish makes cfg the current configuration.
func Publish(cfg *Config) {
	current.Store(cfg)
}

// Reload loads path with environment overrides, applies adjust when it is
// not nil and publishes the result. It also returns the sections in which the
// new configuration differs from the previous one in settings that are only
// read at startup. On error the current configuration stays in place.
func Reload(path string, adjust func(*Config)) (*Config, []string, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reload configuration: %w", err)
	}
	if adjust != nil {
		adjust(cfg)
		if err := Validate(cfg); err != nil {
			return nil, nil, fmt.Errorf("reload configuration: %w", err)
		}
	}

	var pending []string
	if prev := current.Swap(cfg); prev != nil {
		pending = RestartRequired(prev, cfg)
	}
	return cfg, pending, nil
}

// RestartRequired lists the sections of next that differ from prev in
// settings a running server does not pick up. The log level is applied live
// and is ignored.
func RestartRequired(prev, next *Config) []string {
	a, b := *prev, *next
	a.Telemetry.Logging.Level, b.Telemetry.Logging.Level = "", ""

	sections := []struct {
		name string
		x, y any
	}{
		{"server", a.Server, b.Server},
		{"policy", a.Policy, b.Policy},
		{"store", a.Store, b.Store},
		{"telemetry.logging", a.Telemetry.Logging, b.Telemetry.Logging},
		{"telemetry.metrics", a.Telemetry.Metrics, b.Telemetry.Metrics},
		{"telemetry.health", a.Telemetry.Health, b.Telemetry.Health},
	}
	var changed []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.x, s.y) {
			changed = append(changed, s.name)
		}
	}
	return changed
}
