package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/pkg/metrics"
)

func newFeedFixture(t *testing.T) (*serviceFixture, *FeedService) {
	t.Helper()

	f := newServiceFixture(t)
	svc, err := NewFeedService(f.db, nil)
	require.NoError(t, err)
	return f, svc
}

func deliverSample(t *testing.T, svc *FeedService, tag string) {
	t.Helper()

	err := svc.Deliver(context.Background(), gateway.Delivery{
		Tag:      tag,
		Title:    "Milestone reached",
		Body:     "You are halfway there.",
		Severity: "celebration",
		Payload:  map[string]any{"type": tag},
		FiredAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestFeedDeliverStoresRecord(t *testing.T) {
	_, svc := newFeedFixture(t)
	ctx := context.Background()

	deliverSample(t, svc, "milestone-percent")

	records, total, err := svc.List(ctx, false, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, records, 1)
	require.Equal(t, "milestone-percent", records[0].Tag)
	require.Equal(t, "Milestone reached", records[0].Title)
	require.False(t, records[0].IsRead)
	require.NotEmpty(t, records[0].Metadata)
}

func TestDispatchedDeliveryCountedOnce(t *testing.T) {
	f, svc := newFeedFixture(t)
	ctx := context.Background()

	_, err := f.gw.ScheduleImmediate(ctx, gateway.Input{Tag: "milestone-money", Title: "Money saved"})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.NotificationsDelivered.WithLabelValues("milestone-money"))

	later := f.now.Add(time.Minute)
	d, err := gateway.NewDispatcher(f.db, svc, gateway.WithDispatcherClock(func() time.Time { return later }))
	require.NoError(t, err)
	require.NoError(t, d.RunOnce(ctx))

	// The dispatcher owns the delivered counter; the sink storing the record
	// must not advance it a second time.
	after := testutil.ToFloat64(metrics.NotificationsDelivered.WithLabelValues("milestone-money"))
	require.Equal(t, before+1, after)

	_, total, err := svc.List(ctx, false, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestFeedMarkReadLifecycle(t *testing.T) {
	_, svc := newFeedFixture(t)
	ctx := context.Background()

	deliverSample(t, svc, "milestone-percent")
	deliverSample(t, svc, "daily-achievement")

	unread, err := svc.UnreadCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, unread)

	records, _, err := svc.List(ctx, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, svc.MarkRead(ctx, records[0].ID))
	unread, err = svc.UnreadCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)

	// Re-marking an already-read record is a no-op, not an error.
	require.NoError(t, svc.MarkRead(ctx, records[0].ID))

	changed, err := svc.MarkAllRead(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)

	unread, err = svc.UnreadCount(ctx)
	require.NoError(t, err)
	require.Zero(t, unread)
}

func TestFeedMarkReadUnknownID(t *testing.T) {
	_, svc := newFeedFixture(t)

	err := svc.MarkRead(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestFeedDelete(t *testing.T) {
	_, svc := newFeedFixture(t)
	ctx := context.Background()

	deliverSample(t, svc, "milestone-percent")
	records, _, err := svc.List(ctx, false, 10, 0)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, records[0].ID))
	require.ErrorIs(t, svc.Delete(ctx, records[0].ID), ErrRecordNotFound)

	_, total, err := svc.List(ctx, false, 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestFeedPruneRemovesOnlyReadRows(t *testing.T) {
	_, svc := newFeedFixture(t)
	ctx := context.Background()

	deliverSample(t, svc, "milestone-percent")
	deliverSample(t, svc, "daily-achievement")

	records, _, err := svc.List(ctx, false, 10, 0)
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, records[0].ID))

	removed, err := svc.PruneOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, total, err := svc.List(ctx, false, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}
