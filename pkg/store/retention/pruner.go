package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/mixpolicy/pkg/store"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain journal records.
	// 0 keeps records forever.
	RetentionDays int

	// MaxRecords is the maximum number of records kept per journal stream.
	// 0 means unlimited.
	MaxRecords int

	// PruneSchedule is a cron expression for scheduled pruning.
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 30,
		MaxRecords:    0,
		PruneSchedule: "0 3 * * *",
	}
}

// Recorder receives pruning telemetry.
type Recorder interface {
	RecordPrune(deleted int64, err error)
}

// Pruner enforces retention on a journal.
type Pruner struct {
	journal   store.Journal
	config    *Config
	recorder  Recorder
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a pruner. recorder may be nil.
func NewPruner(journal store.Journal, config *Config, recorder Recorder) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		journal:  journal,
		config:   config,
		recorder: recorder,
		logger:   slog.Default().With("component", "store.retention"),
		now:      time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes records older than the retention period, then trims every
// journal stream to MaxRecords. It returns the number of deleted records.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var cutoff time.Time
	if p.config.RetentionDays > 0 {
		cutoff = p.now().AddDate(0, 0, -p.config.RetentionDays)
	}

	if cutoff.IsZero() && p.config.MaxRecords <= 0 {
		p.logger.Debug("retention disabled, nothing to prune")
		return 0, nil
	}

	deleted, err := p.journal.Prune(ctx, cutoff, p.config.MaxRecords)
	if p.recorder != nil {
		p.recorder.RecordPrune(deleted, err)
	}
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}

	if deleted > 0 {
		p.logger.Info("journal pruning completed",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("no records pruned",
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	}

	return deleted, nil
}

// Start starts scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
