package logindex

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls how long indexed records are kept.
type RetentionConfig struct {
	// RetentionDays is how many days of records to retain. 0 disables pruning.
	RetentionDays int

	// PruneSchedule is a cron expression for when pruning runs.
	// Default: "0 3 * * *" (daily at 3 AM).
	PruneSchedule string
}

// DefaultRetentionConfig returns sane defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{RetentionDays: 90, PruneSchedule: "0 3 * * *"}
}

// Pruner deletes indexed records older than the configured retention window
// on a cron schedule.
type Pruner struct {
	storage Storage
	config  *RetentionConfig
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewPruner creates a retention pruner backed by the given storage.
func NewPruner(storage Storage, config *RetentionConfig) *Pruner {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	return &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "logindex.retention"),
	}
}

// PruneOnce deletes records older than the retention window now, returning
// the number of records deleted. A zero RetentionDays is a no-op.
func (p *Pruner) PruneOnce() (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-time.Duration(p.config.RetentionDays) * 24 * time.Hour)
	deleted, err := p.storage.Delete(&Query{EndTime: &cutoff})
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		p.logger.Info("pruned log index records", "count", deleted, "cutoff", cutoff)
	}

	return deleted, nil
}

// Start schedules PruneOnce on the configured cron expression. It returns an
// error if the schedule cannot be parsed.
func (p *Pruner) Start() error {
	if p.config.RetentionDays <= 0 {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(p.config.PruneSchedule, func() {
		if _, err := p.PruneOnce(); err != nil {
			p.logger.Error("log index prune failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	p.cron = c
	return nil
}

// Stop halts the cron scheduler, if running.
func (p *Pruner) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}
