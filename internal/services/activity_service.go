package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/internal/triggers"
	"github.com/puffless/engage/pkg/logger"
)

const lastActivityKey = "activity:last"

// ActivityOption customises the ActivityService.
type ActivityOption func(*ActivityService)

// WithActivityClock injects a custom time source.
func WithActivityClock(clock func() time.Time) ActivityOption {
	return func(s *ActivityService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ActivityService records the last user-engagement instant and keeps the
// inactivity ladder scheduled relative to it.
type ActivityService struct {
	store      store.Store
	inactivity *triggers.Inactivity
	now        func() time.Time
	log        *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(st store.Store, inactivity *triggers.Inactivity, opts ...ActivityOption) (*ActivityService, error) {
	if st == nil {
		return nil, errors.New("activity service: store is required")
	}
	if inactivity == nil {
		return nil, errors.New("activity service: inactivity module is required")
	}

	s := &ActivityService{
		store:      st,
		inactivity: inactivity,
		now:        time.Now,
		log:        logger.WithModule("activity"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// UpdateLastActivity stamps now and reschedules the inactivity ladder from
// it. The timestamp is recorded even when notifications are disabled so a
// later re-enable computes from the right instant.
func (s *ActivityService) UpdateLastActivity(ctx context.Context) error {
	now := s.now()

	if err := s.store.Set(ctx, lastActivityKey, now.UTC().Format(time.RFC3339)); err != nil {
		// Proceed with scheduling; a stale timestamp only skews the next read.
		s.log.Warn("persist activity timestamp failed", zap.Error(err))
	}

	if err := s.inactivity.Reschedule(ctx); err != nil {
		return fmt.Errorf("activity service: reschedule inactivity: %w", err)
	}
	return nil
}

// LastActivity returns the last recorded engagement instant. Unknown or
// unparsable state reads as now, the safe default.
func (s *ActivityService) LastActivity(ctx context.Context) time.Time {
	raw, ok, err := s.store.Get(ctx, lastActivityKey)
	if err != nil {
		s.log.Warn("read activity timestamp failed", zap.Error(err))
		return s.now()
	}
	if !ok {
		return s.now()
	}

	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.log.Warn("corrupt activity timestamp", zap.String("value", raw), zap.Error(err))
		return s.now()
	}
	return at
}
