package triggers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/pkg/logger"
)

const weeklyScheduledKey = "weekly:scheduled"

// WeeklySummary owns the recurring week-in-review notification.
type WeeklySummary struct {
	base
}

// NewWeeklySummary constructs the weekly summary module.
func NewWeeklySummary(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog) (*WeeklySummary, error) {
	if st == nil || gw == nil || cat == nil {
		return nil, errors.New("weekly summary: store, gateway and catalog are required")
	}

	return &WeeklySummary{
		base: base{
			store: st,
			gw:    gw,
			cat:   cat,
			log:   logger.WithModule("triggers.weekly"),
		},
	}, nil
}

// Schedule installs the weekly summary at the given weekday and time,
// replacing any prior handle.
func (m *WeeklySummary) Schedule(ctx context.Context, weekday time.Weekday, hour, minute int) error {
	if !m.gw.Enabled(ctx) {
		m.log.Debug("notifications disabled, skipping weekly schedule")
		return nil
	}

	slot := fmt.Sprintf("%d@%02d:%02d", weekday, hour, minute)
	if current, ok, _ := m.store.Get(ctx, weeklyScheduledKey); ok && current == slot {
		return nil
	}

	if err := m.Cancel(ctx); err != nil {
		return err
	}

	msg := m.cat.Pick(catalog.TriggerWeeklySummary, catalog.SeverityGentle)
	_, err := m.gw.ScheduleWeekly(ctx, weekday, hour, minute, gateway.Input{
		Tag:      TagWeeklySummary,
		Title:    msg.Title,
		Body:     msg.Body,
		Severity: string(catalog.SeverityGentle),
	})
	if err := m.tolerate(err); err != nil {
		return fmt.Errorf("weekly summary: schedule: %w", err)
	}

	if err := m.store.Set(ctx, weeklyScheduledKey, slot); err != nil {
		m.log.Warn("persist weekly schedule marker failed", zap.Error(err))
	}
	return nil
}

// SendNow fires the summary immediately, bypassing the schedule.
func (m *WeeklySummary) SendNow(ctx context.Context) error {
	msg := m.cat.Pick(catalog.TriggerWeeklySummary, catalog.SeverityGentle)
	_, err := m.gw.ScheduleImmediate(ctx, gateway.Input{
		Tag:      TagWeeklySummary,
		Title:    msg.Title,
		Body:     msg.Body,
		Severity: string(catalog.SeverityGentle),
	})
	return m.tolerate(err)
}

// Cancel removes the recurring summary and its schedule marker.
func (m *WeeklySummary) Cancel(ctx context.Context) error {
	if _, err := m.gw.CancelByTag(ctx, TagWeeklySummary); err != nil {
		if err := m.tolerate(err); err != nil {
			return fmt.Errorf("weekly summary: cancel: %w", err)
		}
	}
	return m.store.Remove(ctx, weeklyScheduledKey)
}
