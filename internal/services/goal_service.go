package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/internal/triggers"
	"github.com/puffless/engage/pkg/logger"
)

const goalHandleKey = "goal:handle"

// GoalServiceOption customises the GoalCountdownService.
type GoalServiceOption func(*GoalCountdownService)

// WithGoalClock injects a custom time source.
func WithGoalClock(clock func() time.Time) GoalServiceOption {
	return func(s *GoalCountdownService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// GoalCountdownService schedules the single goal-completion celebration at
// the plan's computed end instant. Rescheduling is idempotent: any previous
// countdown is cancelled before a new one is created.
type GoalCountdownService struct {
	store store.Store
	gw    *gateway.Gateway
	cat   *catalog.Catalog
	now   func() time.Time
	log   *zap.Logger
}

// NewGoalCountdownService constructs a GoalCountdownService.
func NewGoalCountdownService(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog, opts ...GoalServiceOption) (*GoalCountdownService, error) {
	if st == nil {
		return nil, errors.New("goal service: store is required")
	}
	if gw == nil {
		return nil, errors.New("goal service: gateway is required")
	}
	if cat == nil {
		return nil, errors.New("goal service: catalog is required")
	}

	s := &GoalCountdownService{
		store: st,
		gw:    gw,
		cat:   cat,
		now:   time.Now,
		log:   logger.WithModule("goal"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Reschedule cancels any outstanding countdown and, when the plan end is
// still in the future, schedules the celebration at that instant. A plan
// already past its end schedules nothing.
func (s *GoalCountdownService) Reschedule(ctx context.Context, planCreatedAt time.Time, goalDays int) error {
	if err := s.Cancel(ctx); err != nil {
		return err
	}
	if goalDays <= 0 {
		return nil
	}

	end := planCreatedAt.Add(time.Duration(goalDays) * 24 * time.Hour)
	remaining := end.Sub(s.now())
	if remaining <= 0 {
		return nil
	}

	msg := s.cat.Pick(catalog.TriggerGoalCompleted, catalog.SeverityCelebration)
	id, err := s.gw.ScheduleAfterDelay(ctx, int64(remaining/time.Second), gateway.Input{
		Tag:      triggers.TagGoalCompleted,
		Title:    msg.Title,
		Body:     msg.Body,
		Severity: string(catalog.SeverityCelebration),
	})
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return nil
		}
		return fmt.Errorf("goal service: schedule countdown: %w", err)
	}

	if err := s.store.Set(ctx, goalHandleKey, id); err != nil {
		s.log.Warn("persist goal handle failed", zap.Error(err))
	}
	s.log.Info("goal countdown scheduled", zap.Time("fires_at", end))
	return nil
}

// Cancel removes any outstanding countdown and its persisted handle.
func (s *GoalCountdownService) Cancel(ctx context.Context) error {
	if _, err := s.gw.CancelByTag(ctx, triggers.TagGoalCompleted); err != nil && !errors.Is(err, gateway.ErrUnavailable) {
		return fmt.Errorf("goal service: cancel countdown: %w", err)
	}
	if err := s.store.Remove(ctx, goalHandleKey); err != nil {
		s.log.Warn("remove goal handle failed", zap.Error(err))
	}
	return nil
}

// Outstanding reports whether a countdown is currently scheduled.
func (s *GoalCountdownService) Outstanding(ctx context.Context) (bool, error) {
	entries, err := s.gw.ListScheduled(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return false, nil
		}
		return false, fmt.Errorf("goal service: list scheduled: %w", err)
	}
	for _, e := range entries {
		if e.Tag == triggers.TagGoalCompleted {
			return true, nil
		}
	}
	return false, nil
}
