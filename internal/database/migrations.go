package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/puffless/engage/internal/models"
)

// AutoMigrate creates or updates the database schema for all engine models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.StateEntry{},
		&models.ScheduledNotification{},
		&models.NotificationRecord{},
	)
}

// Migrate is the convenience helper used during start-up.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
