package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/puffless/engage/internal/models"
)

// DatabaseStore implements Store on top of the engine's SQL database.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

// Get retrieves the value stored under key. The boolean reports presence so
// callers can distinguish "absent" from "empty".
func (s *DatabaseStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil {
		return "", false, errors.New("store: not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var entry models.StateEntry
	err := s.db.WithContext(ctx).Take(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return entry.Value, true, nil
}

// Set upserts the value for a given key.
func (s *DatabaseStore) Set(ctx context.Context, key, value string) error {
	if s == nil {
		return errors.New("store: not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	entry := models.StateEntry{
		Key:   key,
		Value: value,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entry).Error
}

// Remove deletes a single key.
func (s *DatabaseStore) Remove(ctx context.Context, key string) error {
	return s.MultiRemove(ctx, key)
}

// MultiRemove deletes all supplied keys in one statement.
func (s *DatabaseStore) MultiRemove(ctx context.Context, keys ...string) error {
	if s == nil {
		return errors.New("store: not initialised")
	}
	if len(keys) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&models.StateEntry{}).Error
}
