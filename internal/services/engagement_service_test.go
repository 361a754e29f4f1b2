package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/puffless/engage/internal/triggers"
)

func newEngagementFixture(t *testing.T) (*serviceFixture, *EngagementService) {
	t.Helper()

	f := newServiceFixture(t)

	inactivity, err := triggers.NewInactivity(f.store, f.gw, f.cat)
	require.NoError(t, err)
	activity, err := NewActivityService(f.store, inactivity, WithActivityClock(f.clock()))
	require.NoError(t, err)
	percent, err := triggers.NewPercentMilestone(f.store, f.gw, f.cat)
	require.NoError(t, err)
	money, err := triggers.NewMoneyMilestone(f.store, f.gw, f.cat)
	require.NoError(t, err)
	firstDay, err := triggers.NewFirstPuffFreeDay(f.store, f.gw, f.cat)
	require.NoError(t, err)
	goal, err := NewGoalCountdownService(f.store, f.gw, f.cat, WithGoalClock(f.clock()))
	require.NoError(t, err)

	svc, err := NewEngagementService(activity, percent, money, firstDay, goal)
	require.NoError(t, err)
	return f, svc
}

func TestHandlePuffLoggedEvaluatesEverything(t *testing.T) {
	f, svc := newEngagementFixture(t)
	ctx := context.Background()

	result, err := svc.HandlePuffLogged(ctx, Snapshot{
		PlanPercent: 52,
		MoneySaved:  150,
		Currency:    "PLN",
		PuffFreeDay: true,
	})
	require.NoError(t, err)
	require.Equal(t, []float64{10, 25, 50}, result.PercentAnnounced)
	require.Equal(t, []int64{100}, result.MoneyAnnounced)
	require.True(t, result.FirstDay)

	counts := scheduledTags(t, f.gw)
	require.Equal(t, 1, counts[triggers.TagInactivity24h])
	require.Equal(t, 3, counts[triggers.TagMilestonePercent])
	require.Equal(t, 1, counts[triggers.TagMilestoneMoney])
	require.Equal(t, 1, counts[triggers.TagFirstPuffFree])
}

func TestHandlePuffLoggedIsIdempotentAcrossEvents(t *testing.T) {
	_, svc := newEngagementFixture(t)
	ctx := context.Background()

	snap := Snapshot{PlanPercent: 30, MoneySaved: 30, Currency: "USD", PuffFreeDay: true}

	first, err := svc.HandlePuffLogged(ctx, snap)
	require.NoError(t, err)
	require.NotEmpty(t, first.PercentAnnounced)
	require.True(t, first.FirstDay)

	second, err := svc.HandlePuffLogged(ctx, snap)
	require.NoError(t, err)
	require.Empty(t, second.PercentAnnounced)
	require.Empty(t, second.MoneyAnnounced)
	require.False(t, second.FirstDay)
}

func TestHandleActivityRestartsInactivityLadder(t *testing.T) {
	f, svc := newEngagementFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleActivity(ctx))
	f.advance(50 * time.Hour)
	require.NoError(t, svc.HandleActivity(ctx))

	// After 50 silent hours a new event restarts the ladder from scratch.
	entries, err := f.gw.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		require.True(t, entry.NextFireAt.After(f.now), "ladder must be relative to the newest activity")
	}
}

func TestResetPlanClearsMilestoneMemory(t *testing.T) {
	f, svc := newEngagementFixture(t)
	ctx := context.Background()

	_, err := svc.HandlePuffLogged(ctx, Snapshot{PlanPercent: 52, MoneySaved: 150, Currency: "PLN", PuffFreeDay: true})
	require.NoError(t, err)
	require.NoError(t, svc.ResetPlan(ctx))

	result, err := svc.HandlePuffLogged(ctx, Snapshot{PlanPercent: 52, MoneySaved: 150, Currency: "PLN", PuffFreeDay: true})
	require.NoError(t, err)
	require.Equal(t, []float64{10, 25, 50}, result.PercentAnnounced)
	require.Equal(t, []int64{100}, result.MoneyAnnounced)
	require.True(t, result.FirstDay)

	// Goal countdown is gone after a plan reset.
	require.Zero(t, scheduledTags(t, f.gw)[triggers.TagGoalCompleted])
}
