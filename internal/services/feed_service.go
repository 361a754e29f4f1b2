package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/models"
	"github.com/puffless/engage/internal/realtime"
)

// ErrRecordNotFound is returned when a feed entry does not exist.
var ErrRecordNotFound = errors.New("feed service: record not found")

// FeedService persists delivered notifications into the local inbox and fans
// them out over the realtime stream. It is the gateway's delivery sink.
type FeedService struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewFeedService constructs a FeedService. The hub is optional; without one
// deliveries are stored but not streamed.
func NewFeedService(db *gorm.DB, hub *realtime.Hub) (*FeedService, error) {
	if db == nil {
		return nil, errors.New("feed service: database is required")
	}
	return &FeedService{db: db, hub: hub}, nil
}

// Deliver implements gateway.Sink.
func (s *FeedService) Deliver(ctx context.Context, d gateway.Delivery) error {
	record := models.NotificationRecord{
		Tag:      d.Tag,
		Title:    d.Title,
		Body:     d.Body,
		Severity: d.Severity,
	}
	if len(d.Payload) > 0 {
		encoded, err := json.Marshal(d.Payload)
		if err != nil {
			return fmt.Errorf("feed service: encode payload: %w", err)
		}
		record.Metadata = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("feed service: store delivery: %w", err)
	}

	if s.hub != nil {
		s.hub.Broadcast(realtime.StreamNotifications, realtime.Message{
			Stream: realtime.StreamNotifications,
			Event:  "notification.delivered",
			Data:   record,
		})
	}
	return nil
}

// List returns feed entries newest-first. unreadOnly narrows to unread rows;
// limit <= 0 applies a sane default.
func (s *FeedService) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]models.NotificationRecord, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := s.db.WithContext(ctx).Model(&models.NotificationRecord{})
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("feed service: count: %w", err)
	}

	var records []models.NotificationRecord
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("feed service: list: %w", err)
	}
	return records, total, nil
}

// UnreadCount returns the number of unread feed entries.
func (s *FeedService) UnreadCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("is_read = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("feed service: unread count: %w", err)
	}
	return count, nil
}

// MarkRead flags a single entry as read.
func (s *FeedService) MarkRead(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return fmt.Errorf("feed service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var exists int64
		s.db.WithContext(ctx).Model(&models.NotificationRecord{}).Where("id = ?", id).Count(&exists)
		if exists == 0 {
			return ErrRecordNotFound
		}
	}
	return nil
}

// MarkAllRead flags every unread entry as read and reports how many changed.
func (s *FeedService) MarkAllRead(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("is_read = ?", false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("feed service: mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes a single feed entry.
func (s *FeedService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.NotificationRecord{})
	if result.Error != nil {
		return fmt.Errorf("feed service: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// PruneOlderThan removes read entries created before the cutoff. The
// maintenance sweeper calls this on a schedule.
func (s *FeedService) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.NotificationRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("feed service: prune: %w", result.Error)
	}
	return result.RowsAffected, nil
}
