package triggers

import (
	"context"
	"errors"
	"fmt"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/pkg/logger"
)

const firstDayMarkerKey = "firstday:notified"

// FirstPuffFreeDay celebrates the first full day logged without a puff. A
// once-ever notification: the marker survives plan edits and only an explicit
// plan restart clears it.
type FirstPuffFreeDay struct {
	base
}

// NewFirstPuffFreeDay constructs the first-clean-day module.
func NewFirstPuffFreeDay(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog) (*FirstPuffFreeDay, error) {
	if st == nil || gw == nil || cat == nil {
		return nil, errors.New("first puff-free day: store, gateway and catalog are required")
	}

	return &FirstPuffFreeDay{
		base: base{
			store: st,
			gw:    gw,
			cat:   cat,
			log:   logger.WithModule("triggers.firstday"),
		},
	}, nil
}

// Check fires the celebration once when puffFreeDay is true and the marker is
// unset. Returns whether this call announced it.
func (m *FirstPuffFreeDay) Check(ctx context.Context, puffFreeDay bool) (bool, error) {
	if !puffFreeDay || !m.gw.Enabled(ctx) {
		return false, nil
	}

	if value, ok, _ := m.store.Get(ctx, firstDayMarkerKey); ok && value == "true" {
		return false, nil
	}

	msg := m.cat.Pick(catalog.TriggerFirstPuffFreeDay, catalog.SeverityCelebration)
	_, err := m.gw.ScheduleImmediate(ctx, gateway.Input{
		Tag:      TagFirstPuffFree,
		Title:    msg.Title,
		Body:     msg.Body,
		Severity: string(catalog.SeverityCelebration),
	})
	if err := m.tolerate(err); err != nil {
		return false, fmt.Errorf("first puff-free day: notify: %w", err)
	}

	if err := m.store.Set(ctx, firstDayMarkerKey, "true"); err != nil {
		m.log.Warn("persist first-day marker failed")
	}
	return true, nil
}

// Reset clears the marker on an explicit plan restart.
func (m *FirstPuffFreeDay) Reset(ctx context.Context) error {
	return m.store.Remove(ctx, firstDayMarkerKey)
}
