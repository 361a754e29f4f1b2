package triggers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/pkg/logger"
)

// Default offsets from the last activity instant.
var defaultInactivityOffsets = []time.Duration{24 * time.Hour, 48 * time.Hour, 72 * time.Hour}

// Inactivity nudges the user back after 24, 48 and 72 hours of silence. The
// platform scheduler has no update-in-place, so a reschedule is always
// cancel-then-create per tag.
type Inactivity struct {
	base
	offsets []time.Duration
}

// InactivityOption customises the Inactivity module.
type InactivityOption func(*Inactivity)

// WithInactivityOffsets overrides the delay ladder, primarily for tests.
func WithInactivityOffsets(offsets []time.Duration) InactivityOption {
	return func(m *Inactivity) {
		if len(offsets) > 0 {
			m.offsets = offsets
		}
	}
}

// NewInactivity constructs the inactivity module.
func NewInactivity(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog, opts ...InactivityOption) (*Inactivity, error) {
	if st == nil || gw == nil || cat == nil {
		return nil, errors.New("inactivity: store, gateway and catalog are required")
	}

	m := &Inactivity{
		base: base{
			store: st,
			gw:    gw,
			cat:   cat,
			log:   logger.WithModule("triggers.inactivity"),
		},
		offsets: defaultInactivityOffsets,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Reschedule cancels any outstanding inactivity handles and creates one
// delayed notification per offset, measured from now. Skipped entirely when
// notifications are disabled.
func (m *Inactivity) Reschedule(ctx context.Context) error {
	if err := m.Cancel(ctx); err != nil {
		return err
	}

	if !m.gw.Enabled(ctx) {
		m.log.Debug("notifications disabled, skipping inactivity schedule")
		return nil
	}

	var errs error
	for i, offset := range m.offsets {
		tag, severity := m.slot(i)
		msg := m.cat.Pick(catalog.TriggerInactivity, severity)

		_, err := m.gw.ScheduleAfterDelay(ctx, int64(offset/time.Second), gateway.Input{
			Tag:      tag,
			Title:    msg.Title,
			Body:     msg.Body,
			Severity: string(severity),
		})
		if err := m.tolerate(err); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("inactivity: schedule %s: %w", tag, err))
		}
	}
	return errs
}

// SendNow fires the nudge for the supplied offset index immediately.
func (m *Inactivity) SendNow(ctx context.Context, slot int) error {
	if slot < 0 || slot >= len(m.offsets) {
		return fmt.Errorf("inactivity: invalid slot %d", slot)
	}

	tag, severity := m.slot(slot)
	msg := m.cat.Pick(catalog.TriggerInactivity, severity)

	_, err := m.gw.ScheduleImmediate(ctx, gateway.Input{
		Tag:      tag,
		Title:    msg.Title,
		Body:     msg.Body,
		Severity: string(severity),
	})
	return m.tolerate(err)
}

// Cancel removes every outstanding inactivity handle.
func (m *Inactivity) Cancel(ctx context.Context) error {
	_, err := m.gw.CancelByTag(ctx, TagInactivity24h, TagInactivity48h, TagInactivity72h)
	if err := m.tolerate(err); err != nil {
		return fmt.Errorf("inactivity: cancel: %w", err)
	}
	return nil
}

// Outstanding reports how many inactivity handles are currently scheduled.
func (m *Inactivity) Outstanding(ctx context.Context) (int, error) {
	entries, err := m.gw.ListScheduled(ctx)
	if err := m.tolerate(err); err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		switch entry.Tag {
		case TagInactivity24h, TagInactivity48h, TagInactivity72h:
			count++
		}
	}
	return count, nil
}

func (m *Inactivity) slot(i int) (string, catalog.Severity) {
	switch i {
	case 0:
		return TagInactivity24h, catalog.SeverityGentle
	case 1:
		return TagInactivity48h, catalog.SeverityFirm
	default:
		return TagInactivity72h, catalog.SeverityUrgent
	}
}
