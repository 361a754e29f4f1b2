package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/puffless/engage/internal/models"
	"github.com/puffless/engage/pkg/logger"
	"github.com/puffless/engage/pkg/metrics"
)

const defaultTickSpec = "@every 30s"

// Delivery is a fired notification handed to the sink.
type Delivery struct {
	Tag      string
	Title    string
	Body     string
	Severity string
	Payload  map[string]any
	FiredAt  time.Time
}

// Sink receives fired notifications. The engine wires it to the local feed
// and the realtime stream.
type Sink interface {
	Deliver(ctx context.Context, d Delivery) error
}

// QuietHours defers one-shot deliveries that come due inside the window.
// Start == End disables the window. Windows may cross midnight.
type QuietHours struct {
	Enabled   bool
	StartHour int
	EndHour   int
}

func (q QuietHours) contains(t time.Time) bool {
	if !q.Enabled || q.StartHour == q.EndHour {
		return false
	}
	h := t.Hour()
	if q.StartHour < q.EndHour {
		return h >= q.StartHour && h < q.EndHour
	}
	return h >= q.StartHour || h < q.EndHour
}

func (q QuietHours) end(t time.Time) time.Time {
	end := time.Date(t.Year(), t.Month(), t.Day(), q.EndHour, 0, 0, 0, t.Location())
	if !end.After(t) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// Dispatcher scans for due scheduler entries on a cron tick and delivers them.
// One-shot entries are destroyed after firing; daily and weekly entries have
// their next-fire instant advanced instead.
type Dispatcher struct {
	db    *gorm.DB
	sink  Sink
	cron  *cron.Cron
	now   func() time.Time
	log   *zap.Logger
	quiet QuietHours
	spec  string
}

// DispatcherOption customises the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherClock overrides the clock used for due checks.
func WithDispatcherClock(clock func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.cron = c
		}
	}
}

// WithQuietHours configures the delivery deferral window.
func WithQuietHours(q QuietHours) DispatcherOption {
	return func(d *Dispatcher) {
		d.quiet = q
	}
}

// WithTickSpec overrides the cron specification for the scan loop.
func WithTickSpec(spec string) DispatcherOption {
	return func(d *Dispatcher) {
		if spec != "" {
			d.spec = spec
		}
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(db *gorm.DB, sink Sink, opts ...DispatcherOption) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("dispatcher: db is required")
	}
	if sink == nil {
		return nil, errors.New("dispatcher: sink is required")
	}

	d := &Dispatcher{
		db:   db,
		sink: sink,
		now:  time.Now,
		log:  logger.WithModule("dispatcher"),
		spec: defaultTickSpec,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.cron == nil {
		d.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return d, nil
}

// Start registers the scan job and launches the scheduler.
func (d *Dispatcher) Start() error {
	if _, err := d.cron.AddFunc(d.spec, func() {
		if err := d.RunOnce(context.Background()); err != nil {
			d.log.Warn("dispatch tick failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	d.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for running jobs to finish.
func (d *Dispatcher) Stop() context.Context {
	if d.cron == nil {
		return context.Background()
	}
	return d.cron.Stop()
}

// RunOnce delivers every entry that has come due. Exposed for tests and for
// the foreground re-evaluation path on app focus.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	now := d.now()

	var due []models.ScheduledNotification
	if err := d.db.WithContext(ctx).
		Where("next_fire_at <= ?", now).
		Order("next_fire_at ASC").
		Find(&due).Error; err != nil {
		return fmt.Errorf("dispatcher: scan due: %w", err)
	}

	var errs error
	for _, row := range due {
		if err := d.fire(ctx, row, now); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (d *Dispatcher) fire(ctx context.Context, row models.ScheduledNotification, now time.Time) error {
	oneShot := row.Kind == models.TriggerImmediate || row.Kind == models.TriggerDelay

	if oneShot && d.quiet.contains(now) {
		// Push the entry to the end of the quiet window instead of dropping it.
		deferred := d.quiet.end(now)
		if err := d.db.WithContext(ctx).
			Model(&models.ScheduledNotification{}).
			Where("id = ?", row.ID).
			Update("next_fire_at", deferred).Error; err != nil {
			return fmt.Errorf("dispatcher: defer %s: %w", row.Tag, err)
		}
		d.log.Debug("deferred for quiet hours", zap.String("tag", row.Tag), zap.Time("until", deferred))
		return nil
	}

	delivery := Delivery{
		Tag:     row.Tag,
		Title:   row.Title,
		Body:    row.Body,
		FiredAt: now,
	}
	if len(row.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(row.Payload, &payload); err == nil {
			delivery.Payload = payload
			if sev, ok := payload["severity"].(string); ok {
				delivery.Severity = sev
			}
		}
	}

	if err := d.sink.Deliver(ctx, delivery); err != nil {
		return fmt.Errorf("dispatcher: deliver %s: %w", row.Tag, err)
	}
	metrics.NotificationsDelivered.WithLabelValues(row.Tag).Inc()

	if oneShot {
		if err := d.db.WithContext(ctx).
			Where("id = ?", row.ID).
			Delete(&models.ScheduledNotification{}).Error; err != nil {
			return fmt.Errorf("dispatcher: destroy %s: %w", row.Tag, err)
		}
		metrics.ScheduledOutstanding.Dec()
		return nil
	}

	next := advance(row, now)
	if err := d.db.WithContext(ctx).
		Model(&models.ScheduledNotification{}).
		Where("id = ?", row.ID).
		Update("next_fire_at", next).Error; err != nil {
		return fmt.Errorf("dispatcher: advance %s: %w", row.Tag, err)
	}
	return nil
}

func advance(row models.ScheduledNotification, now time.Time) time.Time {
	switch row.Kind {
	case models.TriggerWeekly:
		return nextWeekly(now, time.Weekday(row.Weekday), row.Hour, row.Minute)
	default:
		return nextDaily(now, row.Hour, row.Minute)
	}
}
