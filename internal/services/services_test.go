package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/models"
	"github.com/puffless/engage/internal/store"
)

// serviceFixture wires a full engine over an in-memory database with a
// mutable clock so tests can jump across the multi-day windows.
type serviceFixture struct {
	db    *gorm.DB
	store *store.DatabaseStore
	gw    *gateway.Gateway
	cat   *catalog.Catalog
	now   time.Time
}

func (f *serviceFixture) clock() func() time.Time {
	return func() time.Time { return f.now }
}

func (f *serviceFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.StateEntry{},
		&models.ScheduledNotification{},
		&models.NotificationRecord{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	f := &serviceFixture{
		db:  db,
		cat: catalog.New(catalog.WithRandSource(rand.NewSource(1))),
		now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store = store.NewDatabaseStore(db)

	gw, err := gateway.New(db, f.store, gateway.WithClock(f.clock()))
	require.NoError(t, err)
	f.gw = gw

	_, err = gw.RequestPermission(context.Background(), true)
	require.NoError(t, err)

	return f
}

func scheduledTags(t *testing.T, gw *gateway.Gateway) map[string]int {
	t.Helper()

	entries, err := gw.ListScheduled(context.Background())
	require.NoError(t, err)

	counts := map[string]int{}
	for _, entry := range entries {
		counts[entry.Tag]++
	}
	return counts
}
