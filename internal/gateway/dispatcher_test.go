package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/puffless/engage/internal/models"
	"github.com/puffless/engage/internal/store"
)

type recordingSink struct {
	deliveries []Delivery
}

func (s *recordingSink) Deliver(ctx context.Context, d Delivery) error {
	s.deliveries = append(s.deliveries, d)
	return nil
}

func TestDispatcherFiresDueOneShotExactlyOnce(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db := openGatewayTestDB(t)
	g, err := New(db, store.NewDatabaseStore(db), WithClock(fixedClock(now)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = g.ScheduleAfterDelay(ctx, 60, Input{Tag: "goal-completed", Title: "Plan complete!", Severity: "celebration"})
	require.NoError(t, err)

	sink := &recordingSink{}
	later := now.Add(2 * time.Minute)
	d, err := NewDispatcher(db, sink, WithDispatcherClock(fixedClock(later)))
	require.NoError(t, err)

	require.NoError(t, d.RunOnce(ctx))
	require.Len(t, sink.deliveries, 1)
	require.Equal(t, "goal-completed", sink.deliveries[0].Tag)
	require.Equal(t, "celebration", sink.deliveries[0].Severity)

	// The fired one-shot is destroyed; a second scan delivers nothing.
	require.NoError(t, d.RunOnce(ctx))
	require.Len(t, sink.deliveries, 1)

	var count int64
	require.NoError(t, db.Model(&models.ScheduledNotification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDispatcherSkipsEntriesNotYetDue(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db := openGatewayTestDB(t)
	g, err := New(db, store.NewDatabaseStore(db), WithClock(fixedClock(now)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = g.ScheduleAfterDelay(ctx, 3600, Input{Tag: "inactivity-24h", Title: "a"})
	require.NoError(t, err)

	sink := &recordingSink{}
	d, err := NewDispatcher(db, sink, WithDispatcherClock(fixedClock(now.Add(time.Minute))))
	require.NoError(t, err)

	require.NoError(t, d.RunOnce(ctx))
	require.Empty(t, sink.deliveries)
}

func TestDispatcherAdvancesDailyEntries(t *testing.T) {
	now := time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)
	db := openGatewayTestDB(t)
	g, err := New(db, store.NewDatabaseStore(db), WithClock(fixedClock(now)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = g.ScheduleDaily(ctx, 20, 0, Input{Tag: "daily-achievement", Title: "Today's win"})
	require.NoError(t, err)

	sink := &recordingSink{}
	fireTime := time.Date(2024, 3, 1, 20, 0, 30, 0, time.UTC)
	d, err := NewDispatcher(db, sink, WithDispatcherClock(fixedClock(fireTime)))
	require.NoError(t, err)

	require.NoError(t, d.RunOnce(ctx))
	require.Len(t, sink.deliveries, 1)

	// The recurring entry survives with an advanced fire instant.
	entries, err := g.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, time.Date(2024, 3, 2, 20, 0, 0, 0, time.UTC), entries[0].NextFireAt)
}

func TestDispatcherDefersDuringQuietHours(t *testing.T) {
	now := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	db := openGatewayTestDB(t)
	g, err := New(db, store.NewDatabaseStore(db), WithClock(fixedClock(now)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = g.ScheduleImmediate(ctx, Input{Tag: "milestone-percent", Title: "Milestone reached!"})
	require.NoError(t, err)

	sink := &recordingSink{}
	quiet := QuietHours{Enabled: true, StartHour: 22, EndHour: 8}
	tick := now.Add(time.Minute)
	d, err := NewDispatcher(db, sink,
		WithDispatcherClock(fixedClock(tick)),
		WithQuietHours(quiet),
	)
	require.NoError(t, err)

	require.NoError(t, d.RunOnce(ctx))
	require.Empty(t, sink.deliveries)

	entries, err := g.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), entries[0].NextFireAt)
}

func TestQuietHoursWindow(t *testing.T) {
	q := QuietHours{Enabled: true, StartHour: 22, EndHour: 8}

	require.True(t, q.contains(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)))
	require.True(t, q.contains(time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)))
	require.False(t, q.contains(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.False(t, QuietHours{}.contains(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)))
}
