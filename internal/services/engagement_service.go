package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/puffless/engage/internal/triggers"
	"github.com/puffless/engage/pkg/logger"
)

// Snapshot carries the plan progress figures evaluated after each logged
// event. The client computes them from its local plan state.
type Snapshot struct {
	PlanPercent float64 `json:"plan_percent" validate:"gte=0"`
	MoneySaved  float64 `json:"money_saved" validate:"gte=0"`
	Currency    string  `json:"currency"`
	PuffFreeDay bool    `json:"puff_free_day"`
}

// EngagementResult reports which thresholds a snapshot evaluation announced.
type EngagementResult struct {
	PercentAnnounced []float64 `json:"percent_announced,omitempty"`
	MoneyAnnounced   []int64   `json:"money_announced,omitempty"`
	FirstDay         bool      `json:"first_day,omitempty"`
}

// EngagementService orchestrates the per-event trigger evaluation: every
// logged puff (or any user activity) refreshes the inactivity ladder, then
// the milestone modules are checked against the snapshot. Module failures are
// collected rather than short-circuiting, so one broken trigger never
// silences the others.
type EngagementService struct {
	activity *ActivityService
	percent  *triggers.PercentMilestone
	money    *triggers.MoneyMilestone
	firstDay *triggers.FirstPuffFreeDay
	goal     *GoalCountdownService
	log      *zap.Logger
}

// NewEngagementService constructs the orchestrator.
func NewEngagementService(activity *ActivityService, percent *triggers.PercentMilestone, money *triggers.MoneyMilestone, firstDay *triggers.FirstPuffFreeDay, goal *GoalCountdownService) (*EngagementService, error) {
	if activity == nil {
		return nil, errors.New("engagement service: activity service is required")
	}
	if percent == nil || money == nil || firstDay == nil {
		return nil, errors.New("engagement service: milestone modules are required")
	}
	if goal == nil {
		return nil, errors.New("engagement service: goal service is required")
	}

	return &EngagementService{
		activity: activity,
		percent:  percent,
		money:    money,
		firstDay: firstDay,
		goal:     goal,
		log:      logger.WithModule("engagement"),
	}, nil
}

// HandleActivity records plain user activity: the timestamp is stamped and
// the inactivity ladder rescheduled, nothing else is evaluated.
func (s *EngagementService) HandleActivity(ctx context.Context) error {
	return s.activity.UpdateLastActivity(ctx)
}

// HandlePuffLogged runs the full evaluation for a logged event. The activity
// stamp always happens first so the inactivity ladder restarts even when a
// milestone check fails.
func (s *EngagementService) HandlePuffLogged(ctx context.Context, snap Snapshot) (EngagementResult, error) {
	var (
		result EngagementResult
		errs   error
	)

	if err := s.activity.UpdateLastActivity(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engagement service: activity: %w", err))
	}

	announced, err := s.percent.Check(ctx, snap.PlanPercent)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engagement service: percent milestones: %w", err))
	}
	result.PercentAnnounced = announced

	moneyHit, err := s.money.Check(ctx, snap.MoneySaved, snap.Currency)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engagement service: money milestones: %w", err))
	}
	result.MoneyAnnounced = moneyHit

	first, err := s.firstDay.Check(ctx, snap.PuffFreeDay)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engagement service: first puff-free day: %w", err))
	}
	result.FirstDay = first

	if errs != nil {
		s.log.Warn("snapshot evaluation finished with errors", zap.Error(errs))
	}
	return result, errs
}

// ResetPlan wipes all milestone memory and cancels the goal countdown. Called
// when the user restarts or replaces their quit plan.
func (s *EngagementService) ResetPlan(ctx context.Context) error {
	var errs error

	if err := s.percent.Reset(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engagement service: reset percent: %w", err))
	}
	if err := s.money.Reset(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engagement service: reset money: %w", err))
	}
	if err := s.firstDay.Reset(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engagement service: reset first day: %w", err))
	}
	if err := s.goal.Cancel(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engagement service: cancel goal: %w", err))
	}

	if errs == nil {
		s.log.Info("plan milestone state reset")
	}
	return errs
}
