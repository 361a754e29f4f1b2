package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/puffless/engage/internal/triggers"
)

func newGoalFixture(t *testing.T) (*serviceFixture, *GoalCountdownService) {
	t.Helper()

	f := newServiceFixture(t)
	svc, err := NewGoalCountdownService(f.store, f.gw, f.cat, WithGoalClock(f.clock()))
	require.NoError(t, err)
	return f, svc
}

func TestGoalCountdownSchedulesAtPlanEnd(t *testing.T) {
	f, svc := newGoalFixture(t)
	ctx := context.Background()

	createdAt := f.now.Add(-10 * 24 * time.Hour)
	require.NoError(t, svc.Reschedule(ctx, createdAt, 30))

	outstanding, err := svc.Outstanding(ctx)
	require.NoError(t, err)
	require.True(t, outstanding)

	entries, err := f.gw.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, triggers.TagGoalCompleted, entries[0].Tag)
	require.WithinDuration(t, createdAt.Add(30*24*time.Hour), entries[0].NextFireAt, time.Second)
}

func TestGoalCountdownSkipsCompletedPlan(t *testing.T) {
	f, svc := newGoalFixture(t)
	ctx := context.Background()

	createdAt := f.now.Add(-40 * 24 * time.Hour)
	require.NoError(t, svc.Reschedule(ctx, createdAt, 30))

	outstanding, err := svc.Outstanding(ctx)
	require.NoError(t, err)
	require.False(t, outstanding)
}

func TestGoalCountdownRescheduleReplaces(t *testing.T) {
	f, svc := newGoalFixture(t)
	ctx := context.Background()

	createdAt := f.now
	require.NoError(t, svc.Reschedule(ctx, createdAt, 30))
	require.NoError(t, svc.Reschedule(ctx, createdAt, 60))

	entries, err := f.gw.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.WithinDuration(t, createdAt.Add(60*24*time.Hour), entries[0].NextFireAt, time.Second)
}

func TestGoalCountdownCancel(t *testing.T) {
	f, svc := newGoalFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Reschedule(ctx, f.now, 30))
	require.NoError(t, svc.Cancel(ctx))

	outstanding, err := svc.Outstanding(ctx)
	require.NoError(t, err)
	require.False(t, outstanding)
	require.Empty(t, scheduledTags(t, f.gw))
}
