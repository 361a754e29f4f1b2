// Package maintenance hosts the background sweeper that keeps the local
// database from growing without bound.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/puffless/engage/internal/models"
	"github.com/puffless/engage/internal/services"
	"github.com/puffless/engage/pkg/logger"
)

const (
	defaultFeedRetention = 30 * 24 * time.Hour
	defaultFeedSpec      = "@every 6h"
	defaultScheduleSpec  = "@daily"
)

// Cleaner coordinates background maintenance tasks: pruning read feed
// entries past retention and dropping one-shot scheduler rows that can never
// fire again.
type Cleaner struct {
	db        *gorm.DB
	feed      *services.FeedService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration

	feedSchedule     string
	scheduleSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithFeedRetention adjusts how long read feed entries are kept.
func WithFeedRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.retention = d
		}
	}
}

// WithFeedSchedule overrides the cron specification for feed pruning.
func WithFeedSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.feedSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil feed service
// skips feed pruning.
func NewCleaner(db *gorm.DB, feed *services.FeedService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:               db,
		feed:             feed,
		now:              time.Now,
		retention:        defaultFeedRetention,
		feedSchedule:     defaultFeedSpec,
		scheduleSchedule: defaultScheduleSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.feed != nil {
		if _, err := c.cron.AddFunc(c.feedSchedule, func() {
			ctx := context.Background()
			if _, err := c.feed.PruneOlderThan(ctx, c.now().Add(-c.retention)); err != nil {
				c.log.Warn("feed prune failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.scheduleSchedule, func() {
			ctx := context.Background()
			if _, err := CleanupStaleSchedules(ctx, c.db, c.now()); err != nil {
				c.log.Warn("schedule cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Primarily used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.feed != nil {
		if _, err := c.feed.PruneOlderThan(ctx, c.now().Add(-c.retention)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil {
		if _, err := CleanupStaleSchedules(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupStaleSchedules removes one-shot scheduler rows whose fire instant is
// more than a week in the past. The dispatcher normally destroys these on
// delivery; rows this old survived a crash between fire and destroy.
func CleanupStaleSchedules(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	cutoff := now.Add(-7 * 24 * time.Hour)

	result := db.WithContext(ctx).
		Where("kind IN ?", []string{models.TriggerImmediate, models.TriggerDelay}).
		Where("next_fire_at < ?", cutoff).
		Delete(&models.ScheduledNotification{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
