package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"mercator-hq/mixpolicy/pkg/cli"
	"mercator-hq/mixpolicy/pkg/config"
	"mercator-hq/mixpolicy/pkg/policy/manager"
	"mercator-hq/mixpolicy/pkg/server"
	"mercator-hq/mixpolicy/pkg/store"
	"mercator-hq/mixpolicy/pkg/store/retention"
	"mercator-hq/mixpolicy/pkg/telemetry/health"
	"mercator-hq/mixpolicy/pkg/telemetry/logging"
	"mercator-hq/mixpolicy/pkg/telemetry/metrics"
)

// app holds the wired components of a running policy server.
type app struct {
	config  *config.Config
	level   *slog.LevelVar
	logger  *slog.Logger
	metrics *metrics.Collector
	journal *store.SQLiteJournal
	pruner  *retention.Pruner
	manager *manager.Manager
	health  *health.Checker
	server  *server.Server

	// configPath and adjust rebuild the configuration on SIGHUP; adjust
	// reapplies command line overrides.
	configPath string
	adjust     func(*config.Config)
}

// newApp builds every component from cfg and publishes cfg as the current
// configuration. Logs go to logOut.
func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	level := new(slog.LevelVar)
	logCfg := logging.FromConfig(&cfg.Telemetry.Logging, logOut)
	logCfg.LevelVar = level
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	config.Publish(cfg)

	a := &app{
		config:  cfg,
		level:   level,
		logger:  logger.With("component", "app"),
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		health:  health.New(cfg.Telemetry.Health.CheckTimeout),
	}

	opts := manager.Options{Logger: logger, Metrics: a.metrics}
	if cfg.Store.Enabled {
		if err := a.openJournal(); err != nil {
			return nil, err
		}
		opts.Journal = a.journal
	}

	a.manager = manager.NewManager(managerConfig(cfg), opts)

	if cfg.Policy.MixFile != "" {
		a.health.RegisterCheck("mix_file", health.MixFileCheck(a.manager))
	}
	if a.journal != nil {
		a.health.RegisterCheck("journal", health.JournalCheck(a.journal))
	}

	a.server = server.NewServer(cfg, a.manager, server.Options{
		Logger:  logger,
		Metrics: a.metrics,
		Health:  a.health,
		Build:   server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
	})
	return a, nil
}

func (a *app) openJournal() error {
	sc := a.config.Store
	journal, err := store.NewSQLiteJournal(&store.SQLiteConfig{
		Driver:       sc.Driver,
		Path:         sc.Path,
		WALMode:      sc.WALMode,
		BusyTimeout:  sc.BusyTimeout,
		MaxOpenConns: sc.MaxOpenConns,
	})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	a.journal = journal

	days := sc.Retention.RetentionDays
	if days < 0 {
		days = 0
	}
	a.pruner = retention.NewPruner(journal, &retention.Config{
		RetentionDays: days,
		MaxRecords:    sc.Retention.MaxRecords,
		PruneSchedule: sc.Retention.PruneSchedule,
	}, a.metrics)
	return nil
}

func managerConfig(cfg *config.Config) manager.Config {
	return manager.Config{
		Registry: manager.RegistryConfig{
			MaxMixes:          cfg.Policy.MaxMixes,
			MaxCriteriaPerMix: cfg.Policy.MaxCriteriaPerMix,
		},
		MixFile:          cfg.Policy.MixFile,
		DebounceInterval: cfg.Policy.DebounceInterval,
		NotifyBuffer:     cfg.Policy.NotifyBuffer,
		MailboxSize:      cfg.Policy.MailboxSize,
	}
}

// Run loads the mix file, starts the background workers and serves until
// ctx is cancelled.
func (a *app) Run(ctx context.Context) error {
	if err := a.manager.LoadMixFile(ctx); err != nil {
		return fmt.Errorf("load mix file: %w", err)
	}

	if a.pruner != nil && a.config.Store.Retention.PruneSchedule != "" {
		if err := a.pruner.Start(ctx); err != nil {
			a.logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer a.pruner.Stop()
			if next := a.pruner.NextPruning(); next != nil {
				a.logger.Debug("retention scheduler started", "next_pruning", next)
			}
		}
	}

	if a.config.Policy.MixFile != "" && a.config.Policy.Watch {
		go a.watch(ctx)
	}
	reload, stop := cli.NotifyReload()
	defer stop()
	go a.reloadOnSignal(ctx, reload)

	return a.server.Start(ctx)
}

func (a *app) watch(ctx context.Context) {
	if err := a.manager.Watch(ctx); err != nil && ctx.Err() == nil {
		a.logger.Error("mix file watcher stopped", "error", err)
	}
}

func (a *app) reloadOnSignal(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			a.reload(ctx)
		}
	}
}

// reload re-reads the configuration and the mix file. The log level takes
// effect immediately; other configuration changes are reported and wait for
// a restart.
func (a *app) reload(ctx context.Context) {
	cfg, pending, err := config.Reload(a.configPath, a.adjust)
	switch {
	case err != nil:
		a.logger.Warn("configuration reload failed", "error", err)
	default:
		if level, err := logging.ParseLevel(cfg.Telemetry.Logging.Level); err == nil {
			a.level.Set(level)
		}
		if len(pending) > 0 {
			a.logger.Warn("configuration changes take effect after restart", "sections", pending)
		}
		a.logger.Info("configuration reloaded", "level", cfg.Telemetry.Logging.Level)
	}

	if a.config.Policy.MixFile != "" {
		a.logger.Info("reloading mix file")
		// Failures are logged by the manager and surface on /ready.
		_ = a.manager.LoadMixFile(ctx)
	}
}

// Close releases the manager and the journal.
func (a *app) Close() error {
	var errs []error
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	return errors.Join(errs...)
}
