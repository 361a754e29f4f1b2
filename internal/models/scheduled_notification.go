package models

import (
	"time"

	"gorm.io/datatypes"
)

// Trigger kinds supported by the scheduler.
const (
	TriggerImmediate = "immediate"
	TriggerDelay     = "delay"
	TriggerDaily     = "daily"
	TriggerWeekly    = "weekly"
)

// ScheduledNotification is one outstanding scheduler entry. The logical
// trigger tag lives in the payload so cancellation can filter on it, mirroring
// platforms that offer no native cancel-by-tag primitive.
type ScheduledNotification struct {
	BaseModel

	Tag     string         `gorm:"type:varchar(64);index" json:"tag"`
	Title   string         `gorm:"type:varchar(255);not null" json:"title"`
	Body    string         `gorm:"type:text" json:"body"`
	Payload datatypes.JSON `json:"payload"`

	Kind string `gorm:"type:varchar(16);not null" json:"kind"`

	// NextFireAt is the next instant the entry is due. One-shot entries are
	// removed after firing; daily/weekly entries advance it instead.
	NextFireAt time.Time `gorm:"index" json:"next_fire_at"`

	Hour    int `json:"hour"`
	Minute  int `json:"minute"`
	Weekday int `json:"weekday"`
}
