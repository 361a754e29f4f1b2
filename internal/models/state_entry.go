package models

import (
	"time"
)

// StateEntry is a single durable key/value pair owned by one engine module.
// Values are always strings; structured state is JSON-encoded by the caller.
type StateEntry struct {
	Key       string `gorm:"primaryKey;size:256"`
	Value     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
