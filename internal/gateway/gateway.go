package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/puffless/engage/internal/models"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/pkg/logger"
	"github.com/puffless/engage/pkg/metrics"
)

// ErrUnavailable is the sentinel returned by every gateway method when the
// platform notification capability could not be loaded. Callers treat it as a
// silent feature-disable, never as a crash.
var ErrUnavailable = errors.New("gateway: notification capability unavailable")

// EnabledKey is the persisted flag stamped on the first successful permission
// grant. Trigger modules consult it before scheduling.
const EnabledKey = "notify:enabled"

// Input describes the notification content a trigger module wants scheduled.
// The logical tag is embedded into the stored payload so cancellation can
// filter on it later.
type Input struct {
	Tag      string
	Title    string
	Body     string
	Severity string
	Payload  map[string]any
}

// Entry is one outstanding scheduler entry as observed by callers.
type Entry struct {
	ID         string
	Tag        string
	Title      string
	Body       string
	Kind       string
	NextFireAt time.Time
	Hour       int
	Minute     int
	Weekday    time.Weekday
	Payload    map[string]any
}

// Gateway persists scheduled notifications and emulates the platform
// scheduler contract: immediate, delayed, daily and weekly triggers, with
// cancellation implemented as list-then-filter since no native cancel-by-tag
// primitive exists.
type Gateway struct {
	db        *gorm.DB
	store     store.Store
	available bool
	now       func() time.Time
	log       *zap.Logger
}

// Option customises the Gateway.
type Option func(*Gateway)

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithAvailability toggles the underlying platform capability. When false the
// gateway degrades to a no-op that returns ErrUnavailable from every method.
func WithAvailability(available bool) Option {
	return func(g *Gateway) {
		g.available = available
	}
}

// New constructs a Gateway.
func New(db *gorm.DB, st store.Store, opts ...Option) (*Gateway, error) {
	if db == nil {
		return nil, errors.New("gateway: db is required")
	}
	if st == nil {
		return nil, errors.New("gateway: store is required")
	}

	g := &Gateway{
		db:        db,
		store:     st,
		available: true,
		now:       time.Now,
		log:       logger.WithModule("gateway"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Available reports whether the platform capability loaded.
func (g *Gateway) Available() bool {
	return g.available
}

// RequestPermission records the outcome of the platform permission prompt.
// The enabled flag is persisted on the first grant and gates every subsequent
// scheduling attempt.
func (g *Gateway) RequestPermission(ctx context.Context, granted bool) (bool, error) {
	if !g.available {
		return false, ErrUnavailable
	}

	if err := g.store.Set(ctx, EnabledKey, fmt.Sprintf("%t", granted)); err != nil {
		return false, fmt.Errorf("gateway: persist permission: %w", err)
	}

	return granted, nil
}

// Enabled reports whether notifications were granted. Store failures read as
// disabled; a missing flag means the prompt never succeeded.
func (g *Gateway) Enabled(ctx context.Context) bool {
	if !g.available {
		return false
	}

	value, ok, err := g.store.Get(ctx, EnabledKey)
	if err != nil {
		g.log.Warn("read enabled flag failed", zap.Error(err))
		return false
	}
	return ok && value == "true"
}

// ScheduleImmediate stores an entry due right now.
func (g *Gateway) ScheduleImmediate(ctx context.Context, in Input) (string, error) {
	return g.create(ctx, in, models.TriggerImmediate, g.now(), 0, 0, 0)
}

// ScheduleAfterDelay stores an entry due after the supplied number of seconds.
func (g *Gateway) ScheduleAfterDelay(ctx context.Context, seconds int64, in Input) (string, error) {
	if seconds < 0 {
		return "", fmt.Errorf("gateway: negative delay %d", seconds)
	}
	return g.create(ctx, in, models.TriggerDelay, g.now().Add(time.Duration(seconds)*time.Second), 0, 0, 0)
}

// ScheduleDaily stores a repeating entry firing every day at hour:minute.
func (g *Gateway) ScheduleDaily(ctx context.Context, hour, minute int, in Input) (string, error) {
	if err := validateClock(hour, minute); err != nil {
		return "", err
	}
	return g.create(ctx, in, models.TriggerDaily, nextDaily(g.now(), hour, minute), hour, minute, 0)
}

// ScheduleWeekly stores a repeating entry firing weekly on the given weekday.
func (g *Gateway) ScheduleWeekly(ctx context.Context, weekday time.Weekday, hour, minute int, in Input) (string, error) {
	if err := validateClock(hour, minute); err != nil {
		return "", err
	}
	return g.create(ctx, in, models.TriggerWeekly, nextWeekly(g.now(), weekday, hour, minute), hour, minute, int(weekday))
}

// ListScheduled enumerates every outstanding entry. Cancellation logic relies
// on this since the contract has no lookup-by-tag.
func (g *Gateway) ListScheduled(ctx context.Context) ([]Entry, error) {
	if !g.available {
		return nil, ErrUnavailable
	}

	var rows []models.ScheduledNotification
	if err := g.db.WithContext(ctx).Order("next_fire_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gateway: list scheduled: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, mapEntry(row))
	}
	return entries, nil
}

// CancelWhere removes every outstanding entry matching the predicate and
// returns how many were cancelled. The scan is O(n) over all entries.
func (g *Gateway) CancelWhere(ctx context.Context, predicate func(Entry) bool) (int, error) {
	if !g.available {
		return 0, ErrUnavailable
	}
	if predicate == nil {
		return 0, errors.New("gateway: predicate is required")
	}

	entries, err := g.ListScheduled(ctx)
	if err != nil {
		return 0, err
	}

	var (
		cancelled int
		errs      error
	)
	for _, entry := range entries {
		if !predicate(entry) {
			continue
		}
		if err := g.db.WithContext(ctx).
			Where("id = ?", entry.ID).
			Delete(&models.ScheduledNotification{}).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("gateway: cancel %s: %w", entry.ID, err))
			continue
		}
		metrics.NotificationsCancelled.WithLabelValues(entry.Tag).Inc()
		cancelled++
	}

	if cancelled > 0 {
		metrics.ScheduledOutstanding.Sub(float64(cancelled))
	}
	return cancelled, errs
}

// CancelByTag removes all entries carrying one of the supplied logical tags.
func (g *Gateway) CancelByTag(ctx context.Context, tags ...string) (int, error) {
	wanted := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		wanted[tag] = struct{}{}
	}
	return g.CancelWhere(ctx, func(e Entry) bool {
		_, ok := wanted[e.Tag]
		return ok
	})
}

func (g *Gateway) create(ctx context.Context, in Input, kind string, fireAt time.Time, hour, minute, weekday int) (string, error) {
	if !g.available {
		return "", ErrUnavailable
	}
	if in.Tag == "" {
		return "", errors.New("gateway: tag is required")
	}
	if in.Title == "" {
		return "", errors.New("gateway: title is required")
	}

	payload := map[string]any{"type": in.Tag}
	if in.Severity != "" {
		payload["severity"] = in.Severity
	}
	for k, v := range in.Payload {
		payload[k] = v
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gateway: marshal payload: %w", err)
	}

	row := models.ScheduledNotification{
		Tag:        in.Tag,
		Title:      in.Title,
		Body:       in.Body,
		Payload:    datatypes.JSON(encoded),
		Kind:       kind,
		NextFireAt: fireAt,
		Hour:       hour,
		Minute:     minute,
		Weekday:    weekday,
	}

	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("gateway: schedule %s: %w", in.Tag, err)
	}

	metrics.NotificationsScheduled.WithLabelValues(in.Tag).Inc()
	metrics.ScheduledOutstanding.Inc()
	g.log.Debug("scheduled",
		zap.String("tag", in.Tag),
		zap.String("kind", kind),
		zap.Time("next_fire_at", fireAt),
	)

	return row.ID, nil
}

func validateClock(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("gateway: invalid time %02d:%02d", hour, minute)
	}
	return nil
}

func nextDaily(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func nextWeekly(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func mapEntry(row models.ScheduledNotification) Entry {
	entry := Entry{
		ID:         row.ID,
		Tag:        row.Tag,
		Title:      row.Title,
		Body:       row.Body,
		Kind:       row.Kind,
		NextFireAt: row.NextFireAt,
		Hour:       row.Hour,
		Minute:     row.Minute,
		Weekday:    time.Weekday(row.Weekday),
	}
	if len(row.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(row.Payload, &payload); err == nil {
			entry.Payload = payload
		}
	}
	return entry
}
