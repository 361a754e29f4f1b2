package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/puffless/engage/internal/triggers"
)

func newActivityFixture(t *testing.T) (*serviceFixture, *ActivityService) {
	t.Helper()

	f := newServiceFixture(t)
	inactivity, err := triggers.NewInactivity(f.store, f.gw, f.cat)
	require.NoError(t, err)

	svc, err := NewActivityService(f.store, inactivity, WithActivityClock(f.clock()))
	require.NoError(t, err)
	return f, svc
}

func TestUpdateLastActivitySchedulesLadder(t *testing.T) {
	f, svc := newActivityFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateLastActivity(ctx))

	counts := scheduledTags(t, f.gw)
	require.Equal(t, 1, counts[triggers.TagInactivity24h])
	require.Equal(t, 1, counts[triggers.TagInactivity48h])
	require.Equal(t, 1, counts[triggers.TagInactivity72h])

	require.True(t, svc.LastActivity(ctx).Equal(f.now))
}

func TestUpdateLastActivityReplacesLadder(t *testing.T) {
	f, svc := newActivityFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateLastActivity(ctx))
	f.advance(5 * time.Hour)
	require.NoError(t, svc.UpdateLastActivity(ctx))

	// Still exactly one entry per rung, all relative to the newest stamp.
	entries, err := f.gw.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.WithinDuration(t, f.now.Add(24*time.Hour), entries[0].NextFireAt, time.Second)
}

func TestUpdateLastActivityStampsEvenWhenDisabled(t *testing.T) {
	f, svc := newActivityFixture(t)
	ctx := context.Background()

	_, err := f.gw.RequestPermission(ctx, false)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateLastActivity(ctx))
	require.Empty(t, scheduledTags(t, f.gw))
	require.True(t, svc.LastActivity(ctx).Equal(f.now))
}

func TestLastActivityFallsBackToNow(t *testing.T) {
	f, svc := newActivityFixture(t)
	ctx := context.Background()

	// Nothing recorded yet.
	require.True(t, svc.LastActivity(ctx).Equal(f.now))

	// A corrupt value also reads as now.
	require.NoError(t, f.store.Set(ctx, "activity:last", "not-a-timestamp"))
	require.True(t, svc.LastActivity(ctx).Equal(f.now))
}
