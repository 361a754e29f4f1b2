package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/internal/triggers"
	"github.com/puffless/engage/pkg/logger"
	"github.com/puffless/engage/pkg/metrics"
)

// VerificationType distinguishes the two pending-verification families.
type VerificationType string

const (
	// VerificationAccount is the post-signup account confirmation. It never
	// expires; after the mandatory window it blocks the app instead.
	VerificationAccount VerificationType = "account"
	// VerificationEmailChange confirms a new address and lapses after the
	// expiry window.
	VerificationEmailChange VerificationType = "email_change"
)

// Verification state machine constants.
const (
	defaultMandatoryAfter = 7 * 24 * time.Hour
	defaultRecheckWindow  = 10 * time.Hour
)

// Persisted keys owned by the verification lifecycle.
const (
	pendingKey     = "verification:pending"
	lastCheckedKey = "verification:last_checked"
	modalDateKey   = "verification:modal_date"
	escalatedKey   = "verification:escalated"
)

// ErrVerificationPending signals an existing record blocks a new request.
var ErrVerificationPending = errors.New("verification service: a request is already pending")

// PendingVerification is the single outstanding verification record.
// Immutable once created; it is only ever cleared.
type PendingVerification struct {
	Type        VerificationType `json:"type"`
	Email       string           `json:"email"`
	RequestedAt time.Time        `json:"requested_at"`
}

// VerificationState is the caller-visible lifecycle position.
type VerificationState string

const (
	StateNone      VerificationState = "none"
	StatePending   VerificationState = "pending"
	StateMandatory VerificationState = "mandatory"
)

// Status captures the resolved lifecycle snapshot returned to callers.
type Status struct {
	State       VerificationState    `json:"state"`
	Pending     *PendingVerification `json:"pending,omitempty"`
	ElapsedDays int                  `json:"elapsed_days"`
	Mandatory   bool                 `json:"mandatory"`
	Expired     bool                 `json:"expired"`
	Cleared     bool                 `json:"cleared"`
}

// VerificationServiceOption customises the VerificationService.
type VerificationServiceOption func(*VerificationService)

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationServiceOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithMandatoryAfter overrides the window after which an unverified account
// becomes mandatory (and an email change expires).
func WithMandatoryAfter(d time.Duration) VerificationServiceOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.mandatoryAfter = d
		}
	}
}

// WithRecheckWindow overrides the manual recheck cooldown.
func WithRecheckWindow(d time.Duration) VerificationServiceOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.recheckWindow = d
		}
	}
}

// VerificationService owns the pending-verification state machine, the
// manual-recheck cooldown and the daily modal gate. The 7-day and 10-hour
// windows are wall-clock comparisons against persisted instants, so they stay
// correct across arbitrarily long app shutdowns.
type VerificationService struct {
	store          store.Store
	account        *triggers.VerificationReminder
	emailChange    *triggers.EmailChangeReminder
	now            func() time.Time
	mandatoryAfter time.Duration
	recheckWindow  time.Duration
	log            *zap.Logger
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(st store.Store, account *triggers.VerificationReminder, emailChange *triggers.EmailChangeReminder, opts ...VerificationServiceOption) (*VerificationService, error) {
	if st == nil {
		return nil, errors.New("verification service: store is required")
	}
	if account == nil || emailChange == nil {
		return nil, errors.New("verification service: reminder modules are required")
	}

	s := &VerificationService{
		store:          st,
		account:        account,
		emailChange:    emailChange,
		now:            time.Now,
		mandatoryAfter: defaultMandatoryAfter,
		recheckWindow:  defaultRecheckWindow,
		log:            logger.WithModule("verification"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Request records a new pending verification. An existing record of the same
// type is replaced (the old one is cleared first); reminders are scheduled.
func (s *VerificationService) Request(ctx context.Context, typ VerificationType, email string) (*PendingVerification, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, errors.New("verification service: email is required")
	}
	if typ != VerificationAccount && typ != VerificationEmailChange {
		return nil, fmt.Errorf("verification service: unknown type %q", typ)
	}

	if existing, err := s.load(ctx); err == nil && existing != nil && existing.Type != typ {
		return nil, ErrVerificationPending
	}

	pending := &PendingVerification{
		Type:        typ,
		Email:       email,
		RequestedAt: s.now().UTC(),
	}
	if err := s.save(ctx, pending); err != nil {
		return nil, fmt.Errorf("verification service: persist pending: %w", err)
	}

	switch typ {
	case VerificationAccount:
		if err := s.account.Schedule(ctx, email, false); err != nil {
			s.log.Warn("schedule account reminder failed", zap.Error(err))
		}
	case VerificationEmailChange:
		if err := s.emailChange.Schedule(ctx, email); err != nil {
			s.log.Warn("schedule email-change reminder failed", zap.Error(err))
		}
	}

	return pending, nil
}

// Evaluate resolves the state machine against the current authenticated
// identity: clears on match, expires lapsed email changes, surfaces the
// mandatory flag for week-old account verifications.
func (s *VerificationService) Evaluate(ctx context.Context, currentEmail string, emailVerified bool) (Status, error) {
	pending, err := s.load(ctx)
	if err != nil {
		return Status{State: StateNone}, err
	}
	if pending == nil {
		return Status{State: StateNone}, nil
	}

	now := s.now()
	age := now.Sub(pending.RequestedAt)
	elapsedDays := int(age / (24 * time.Hour))

	if s.matched(pending, currentEmail, emailVerified) {
		if err := s.clear(ctx, pending); err != nil {
			return Status{}, err
		}
		metrics.VerificationChecks.WithLabelValues("matched").Inc()
		return Status{State: StateNone, ElapsedDays: elapsedDays, Cleared: true}, nil
	}

	if pending.Type == VerificationEmailChange && age >= s.mandatoryAfter {
		// The change window lapsed unconfirmed: clear with an expiry notice,
		// never escalate to mandatory.
		if err := s.emailChange.SendExpired(ctx, pending.Email); err != nil {
			s.log.Warn("expiry notice failed", zap.Error(err))
		}
		if err := s.clear(ctx, pending); err != nil {
			return Status{}, err
		}
		metrics.VerificationChecks.WithLabelValues("expired").Inc()
		return Status{State: StateNone, ElapsedDays: elapsedDays, Expired: true}, nil
	}

	if pending.Type == VerificationAccount && age >= s.mandatoryAfter {
		s.escalateOnce(ctx, pending.Email)
		return Status{
			State:       StateMandatory,
			Pending:     pending,
			ElapsedDays: elapsedDays,
			Mandatory:   true,
		}, nil
	}

	return Status{State: StatePending, Pending: pending, ElapsedDays: elapsedDays}, nil
}

// CheckNow is the user-initiated recheck. Within the cooldown window it is a
// no-op returning allowed=false; otherwise it evaluates, stamping a fresh
// cooldown window when the check does not clear the record.
func (s *VerificationService) CheckNow(ctx context.Context, currentEmail string, emailVerified bool) (bool, Status, error) {
	now := s.now()

	if last, ok := s.lastChecked(ctx); ok && now.Sub(last) < s.recheckWindow {
		metrics.VerificationChecks.WithLabelValues("cooldown").Inc()
		status, err := s.Status(ctx)
		return false, status, err
	}

	status, err := s.Evaluate(ctx, currentEmail, emailVerified)
	if err != nil {
		return false, status, err
	}

	// Nothing pending means nothing to rate limit.
	if status.State == StateNone && !status.Cleared && !status.Expired {
		return true, status, nil
	}

	if !status.Cleared {
		if err := s.store.Set(ctx, lastCheckedKey, now.UTC().Format(time.RFC3339)); err != nil {
			s.log.Warn("persist cooldown stamp failed", zap.Error(err))
		}
		metrics.VerificationChecks.WithLabelValues("pending").Inc()
	}

	return true, status, nil
}

// OnFocus is the automatic display gate invoked on every screen-focus event.
// Mandatory state always surfaces; otherwise the modal shows at most once per
// calendar date while in-memory state is still refreshed.
func (s *VerificationService) OnFocus(ctx context.Context, currentEmail string, emailVerified bool) (bool, Status, error) {
	status, err := s.Evaluate(ctx, currentEmail, emailVerified)
	if err != nil {
		return false, status, err
	}

	if status.Mandatory {
		return true, status, nil
	}
	if status.State != StatePending {
		return false, status, nil
	}

	today := s.now().Format(time.DateOnly)
	if shown, ok, _ := s.store.Get(ctx, modalDateKey); ok && shown == today {
		return false, status, nil
	}

	if err := s.store.Set(ctx, modalDateKey, today); err != nil {
		s.log.Warn("persist modal gate failed", zap.Error(err))
	}
	return true, status, nil
}

// Status resolves the current snapshot without side effects.
func (s *VerificationService) Status(ctx context.Context) (Status, error) {
	pending, err := s.load(ctx)
	if err != nil || pending == nil {
		return Status{State: StateNone}, err
	}

	age := s.now().Sub(pending.RequestedAt)
	status := Status{
		State:       StatePending,
		Pending:     pending,
		ElapsedDays: int(age / (24 * time.Hour)),
	}
	if pending.Type == VerificationAccount && age >= s.mandatoryAfter {
		status.State = StateMandatory
		status.Mandatory = true
	}
	return status, nil
}

// RecheckAvailableAt reports when the manual recheck unlocks again.
func (s *VerificationService) RecheckAvailableAt(ctx context.Context) time.Time {
	if last, ok := s.lastChecked(ctx); ok {
		return last.Add(s.recheckWindow)
	}
	return s.now()
}

func (s *VerificationService) matched(pending *PendingVerification, currentEmail string, emailVerified bool) bool {
	currentEmail = strings.TrimSpace(strings.ToLower(currentEmail))
	if currentEmail == "" || currentEmail != pending.Email {
		return false
	}
	if pending.Type == VerificationAccount {
		return emailVerified
	}
	// An email change is confirmed once the session identity switched to the
	// target address.
	return true
}

func (s *VerificationService) load(ctx context.Context) (*PendingVerification, error) {
	raw, ok, err := s.store.Get(ctx, pendingKey)
	if err != nil {
		return nil, fmt.Errorf("verification service: read pending: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var pending PendingVerification
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		s.log.Warn("corrupt pending record, dropping", zap.Error(err))
		_ = s.store.Remove(ctx, pendingKey)
		return nil, nil
	}
	return &pending, nil
}

func (s *VerificationService) save(ctx context.Context, pending *PendingVerification) error {
	encoded, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, pendingKey, string(encoded))
}

func (s *VerificationService) clear(ctx context.Context, pending *PendingVerification) error {
	switch pending.Type {
	case VerificationAccount:
		if err := s.account.Cancel(ctx); err != nil {
			s.log.Warn("cancel account reminder failed", zap.Error(err))
		}
	case VerificationEmailChange:
		if err := s.emailChange.Cancel(ctx); err != nil {
			s.log.Warn("cancel email-change reminder failed", zap.Error(err))
		}
	}

	if err := s.store.MultiRemove(ctx, pendingKey, lastCheckedKey, modalDateKey, escalatedKey); err != nil {
		return fmt.Errorf("verification service: clear pending: %w", err)
	}
	return nil
}

// escalateOnce swaps the daily reminder to its urgent form the first time the
// record crosses the mandatory threshold.
func (s *VerificationService) escalateOnce(ctx context.Context, email string) {
	if _, ok, _ := s.store.Get(ctx, escalatedKey); ok {
		return
	}
	if err := s.account.Schedule(ctx, email, true); err != nil {
		s.log.Warn("escalate account reminder failed", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, escalatedKey, "1"); err != nil {
		s.log.Warn("persist escalation marker failed", zap.Error(err))
	}
}

func (s *VerificationService) lastChecked(ctx context.Context) (time.Time, bool) {
	raw, ok, err := s.store.Get(ctx, lastCheckedKey)
	if err != nil || !ok {
		return time.Time{}, false
	}

	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
