package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationRecord is a delivered notification kept in the local feed so the
// client can render an inbox even when the OS banner was missed.
type NotificationRecord struct {
	BaseModel

	Tag      string         `gorm:"type:varchar(64);index" json:"tag"`
	Title    string         `gorm:"type:varchar(255);not null" json:"title"`
	Body     string         `gorm:"type:text" json:"body"`
	Severity string         `gorm:"type:varchar(32);default:'info'" json:"severity"`
	Metadata datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
