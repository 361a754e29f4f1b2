// Package triggers holds the notification families of the engagement engine.
// Every module owns its persisted idempotency state and follows the same
// shape: an idempotent Schedule (cancel-before-create), an immediate Send and
// a Cancel. Modules never re-notify a marked threshold; a lost marker reads
// as "never notified", which trades acceptable over-notification for never
// under-counting.
package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/store"
)

// Logical tags embedded in scheduled payloads.
const (
	TagInactivity24h    = "inactivity-24h"
	TagInactivity48h    = "inactivity-48h"
	TagInactivity72h    = "inactivity-72h"
	TagMilestonePercent = "milestone-percent"
	TagMilestoneMoney   = "milestone-money"
	TagDailyAchievement = "daily-achievement"
	TagWeeklySummary    = "weekly-summary"
	TagFirstPuffFree    = "first-puff-free-day"
	TagGoalCompleted    = "goal-completed"
	TagVerification     = "verification-reminder"
	TagVerificationExp  = "verification-expired"
	TagEmailChange      = "email-change-reminder"
)

// Marker is the typed idempotency record each milestone module persists. The
// zero value means not yet notified.
type Marker struct {
	Notified []float64 `json:"notified,omitempty"`
}

// Contains reports whether a threshold was already notified.
func (m Marker) Contains(threshold float64) bool {
	for _, v := range m.Notified {
		if v == threshold {
			return true
		}
	}
	return false
}

// Add records a threshold as notified. The set only grows.
func (m *Marker) Add(threshold float64) {
	if !m.Contains(threshold) {
		m.Notified = append(m.Notified, threshold)
	}
}

type base struct {
	store store.Store
	gw    *gateway.Gateway
	cat   *catalog.Catalog
	log   *zap.Logger
}

// loadMarker reads a persisted Marker. Absence and read failures both produce
// the zero marker: unknown state is treated as never notified.
func (b base) loadMarker(ctx context.Context, key string) Marker {
	var marker Marker

	raw, ok, err := b.store.Get(ctx, key)
	if err != nil {
		b.log.Warn("read marker failed", zap.String("key", key), zap.Error(err))
		return marker
	}
	if !ok || raw == "" {
		return marker
	}

	if err := json.Unmarshal([]byte(raw), &marker); err != nil {
		b.log.Warn("corrupt marker, treating as empty", zap.String("key", key), zap.Error(err))
		return Marker{}
	}
	return marker
}

func (b base) saveMarker(ctx context.Context, key string, marker Marker) error {
	encoded, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, key, string(encoded))
}

// tolerate swallows the capability-missing sentinel: an unavailable platform
// is a feature-disable, not an error.
func (b base) tolerate(err error) error {
	if err == nil || errors.Is(err, gateway.ErrUnavailable) {
		return nil
	}
	return err
}

// render fills catalog templates that carry fmt verbs and passes plain copy
// through untouched.
func render(template string, args ...any) string {
	if strings.Contains(strings.ReplaceAll(template, "%%", ""), "%") {
		return fmt.Sprintf(template, args...)
	}
	return template
}
