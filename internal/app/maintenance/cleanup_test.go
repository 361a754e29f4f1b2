package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/models"
	"github.com/puffless/engage/internal/services"
)

func openMaintenanceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ScheduledNotification{},
		&models.NotificationRecord{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func TestCleanupStaleSchedules(t *testing.T) {
	db := openMaintenanceDB(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []models.ScheduledNotification{
		{Tag: "stale", Kind: models.TriggerDelay, NextFireAt: now.Add(-8 * 24 * time.Hour)},
		{Tag: "recent", Kind: models.TriggerDelay, NextFireAt: now.Add(-time.Hour)},
		{Tag: "recurring", Kind: models.TriggerDaily, NextFireAt: now.Add(-8 * 24 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	removed, err := CleanupStaleSchedules(context.Background(), db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining []models.ScheduledNotification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	for _, row := range remaining {
		require.NotEqual(t, "stale", row.Tag)
	}
}

func TestCleanerRunOncePrunesFeed(t *testing.T) {
	db := openMaintenanceDB(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	feed, err := services.NewFeedService(db, nil)
	require.NoError(t, err)

	require.NoError(t, feed.Deliver(context.Background(), gateway.Delivery{
		Tag: "old", Title: "t", Body: "b", Severity: "gentle",
	}))
	records, _, err := feed.List(context.Background(), false, 10, 0)
	require.NoError(t, err)
	require.NoError(t, feed.MarkRead(context.Background(), records[0].ID))

	// Age the row past retention.
	require.NoError(t, db.Model(&models.NotificationRecord{}).
		Where("id = ?", records[0].ID).
		Update("created_at", now.Add(-60*24*time.Hour)).Error)

	cleaner := NewCleaner(db, feed, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	_, total, err := feed.List(context.Background(), false, 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
}
