package triggers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/pkg/logger"
)

const dailyScheduledKey = "daily:scheduled"

// DailyAchievement owns the recurring end-of-day check-in reminder.
type DailyAchievement struct {
	base
}

// NewDailyAchievement constructs the daily achievement module.
func NewDailyAchievement(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog) (*DailyAchievement, error) {
	if st == nil || gw == nil || cat == nil {
		return nil, errors.New("daily achievement: store, gateway and catalog are required")
	}

	return &DailyAchievement{
		base: base{
			store: st,
			gw:    gw,
			cat:   cat,
			log:   logger.WithModule("triggers.daily"),
		},
	}, nil
}

// Schedule installs the daily reminder at hour:minute, replacing any prior
// handle. Re-invoking with the same time is a cheap no-op thanks to the
// persisted schedule marker.
func (m *DailyAchievement) Schedule(ctx context.Context, hour, minute int) error {
	if !m.gw.Enabled(ctx) {
		m.log.Debug("notifications disabled, skipping daily schedule")
		return nil
	}

	slot := fmt.Sprintf("%02d:%02d", hour, minute)
	if current, ok, _ := m.store.Get(ctx, dailyScheduledKey); ok && current == slot {
		return nil
	}

	if err := m.Cancel(ctx); err != nil {
		return err
	}

	msg := m.cat.Pick(catalog.TriggerDailyAchievement, catalog.SeverityGentle)
	_, err := m.gw.ScheduleDaily(ctx, hour, minute, gateway.Input{
		Tag:      TagDailyAchievement,
		Title:    msg.Title,
		Body:     msg.Body,
		Severity: string(catalog.SeverityGentle),
	})
	if err := m.tolerate(err); err != nil {
		return fmt.Errorf("daily achievement: schedule: %w", err)
	}

	if err := m.store.Set(ctx, dailyScheduledKey, slot); err != nil {
		m.log.Warn("persist daily schedule marker failed", zap.Error(err))
	}
	return nil
}

// SendNow fires the reminder immediately, bypassing the schedule.
func (m *DailyAchievement) SendNow(ctx context.Context) error {
	msg := m.cat.Pick(catalog.TriggerDailyAchievement, catalog.SeverityGentle)
	_, err := m.gw.ScheduleImmediate(ctx, gateway.Input{
		Tag:      TagDailyAchievement,
		Title:    msg.Title,
		Body:     msg.Body,
		Severity: string(catalog.SeverityGentle),
	})
	return m.tolerate(err)
}

// Cancel removes the recurring reminder and its schedule marker.
func (m *DailyAchievement) Cancel(ctx context.Context) error {
	if _, err := m.gw.CancelByTag(ctx, TagDailyAchievement); err != nil {
		if err := m.tolerate(err); err != nil {
			return fmt.Errorf("daily achievement: cancel: %w", err)
		}
	}
	return m.store.Remove(ctx, dailyScheduledKey)
}
