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

// Reminder hours for the two verification families.
const (
	verificationReminderHour   = 12
	verificationReminderMinute = 0
)

// VerificationReminder nags about an unverified account once a day while the
// verification stays pending, switching to urgent copy once mandatory.
type VerificationReminder struct {
	base
}

// NewVerificationReminder constructs the account verification reminder module.
func NewVerificationReminder(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog) (*VerificationReminder, error) {
	if st == nil || gw == nil || cat == nil {
		return nil, errors.New("verification reminder: store, gateway and catalog are required")
	}

	return &VerificationReminder{
		base: base{
			store: st,
			gw:    gw,
			cat:   cat,
			log:   logger.WithModule("triggers.verification"),
		},
	}, nil
}

// Schedule installs the daily reminder for the supplied address, replacing any
// prior handle. Mandatory state upgrades the copy to the urgent pool.
func (m *VerificationReminder) Schedule(ctx context.Context, email string, mandatory bool) error {
	if _, err := m.gw.CancelByTag(ctx, TagVerification); err != nil {
		if err := m.tolerate(err); err != nil {
			return fmt.Errorf("verification reminder: cancel: %w", err)
		}
	}

	if !m.gw.Enabled(ctx) {
		return nil
	}

	severity := catalog.SeverityGentle
	if mandatory {
		severity = catalog.SeverityUrgent
	}
	msg := m.cat.Pick(catalog.TriggerVerification, severity)

	_, err := m.gw.ScheduleDaily(ctx, verificationReminderHour, verificationReminderMinute, gateway.Input{
		Tag:      TagVerification,
		Title:    render(msg.Title, email),
		Body:     render(msg.Body, email),
		Severity: string(severity),
	})
	if err := m.tolerate(err); err != nil {
		return fmt.Errorf("verification reminder: schedule: %w", err)
	}
	return nil
}

// SendNow fires the reminder immediately.
func (m *VerificationReminder) SendNow(ctx context.Context, email string, mandatory bool) error {
	severity := catalog.SeverityGentle
	if mandatory {
		severity = catalog.SeverityUrgent
	}
	msg := m.cat.Pick(catalog.TriggerVerification, severity)

	_, err := m.gw.ScheduleImmediate(ctx, gateway.Input{
		Tag:      TagVerification,
		Title:    render(msg.Title, email),
		Body:     render(msg.Body, email),
		Severity: string(severity),
	})
	return m.tolerate(err)
}

// Cancel removes the reminder schedule.
func (m *VerificationReminder) Cancel(ctx context.Context) error {
	_, err := m.gw.CancelByTag(ctx, TagVerification)
	if err := m.tolerate(err); err != nil {
		return fmt.Errorf("verification reminder: cancel: %w", err)
	}
	return nil
}

// EmailChangeReminder nags about an unconfirmed email change and announces
// its expiry when the 7-day window lapses.
type EmailChangeReminder struct {
	base
}

// NewEmailChangeReminder constructs the email-change reminder module.
func NewEmailChangeReminder(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog) (*EmailChangeReminder, error) {
	if st == nil || gw == nil || cat == nil {
		return nil, errors.New("email change reminder: store, gateway and catalog are required")
	}

	return &EmailChangeReminder{
		base: base{
			store: st,
			gw:    gw,
			cat:   cat,
			log:   logger.WithModule("triggers.email_change"),
		},
	}, nil
}

// Schedule installs the daily reminder for the pending address.
func (m *EmailChangeReminder) Schedule(ctx context.Context, email string) error {
	if _, err := m.gw.CancelByTag(ctx, TagEmailChange); err != nil {
		if err := m.tolerate(err); err != nil {
			return fmt.Errorf("email change reminder: cancel: %w", err)
		}
	}

	if !m.gw.Enabled(ctx) {
		return nil
	}

	msg := m.cat.Pick(catalog.TriggerEmailChange, catalog.SeverityGentle)
	_, err := m.gw.ScheduleDaily(ctx, verificationReminderHour, verificationReminderMinute, gateway.Input{
		Tag:      TagEmailChange,
		Title:    render(msg.Title, email),
		Body:     render(msg.Body, email),
		Severity: string(catalog.SeverityGentle),
	})
	if err := m.tolerate(err); err != nil {
		return fmt.Errorf("email change reminder: schedule: %w", err)
	}
	return nil
}

// SendExpired fires the one-shot expiry notice when the change window lapses
// unconfirmed, then drops the reminder schedule.
func (m *EmailChangeReminder) SendExpired(ctx context.Context, email string) error {
	if err := m.Cancel(ctx); err != nil {
		return err
	}

	if !m.gw.Enabled(ctx) {
		return nil
	}

	msg := m.cat.Pick(catalog.TriggerVerificationExpired, catalog.SeverityFirm)
	_, err := m.gw.ScheduleImmediate(ctx, gateway.Input{
		Tag:      TagVerificationExp,
		Title:    render(msg.Title, email),
		Body:     render(msg.Body, email),
		Severity: string(catalog.SeverityFirm),
	})
	if err := m.tolerate(err); err != nil {
		return fmt.Errorf("email change reminder: expiry notice: %w", err)
	}
	return nil
}

// Cancel removes the reminder schedule.
func (m *EmailChangeReminder) Cancel(ctx context.Context) error {
	_, err := m.gw.CancelByTag(ctx, TagEmailChange)
	if err := m.tolerate(err); err != nil {
		return fmt.Errorf("email change reminder: cancel: %w", err)
	}
	return nil
}
