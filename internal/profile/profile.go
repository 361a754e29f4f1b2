// Package profile exposes the read-only backend data the engine derives its
// decisions from. The backend itself is an external collaborator; lookup
// failures propagate so callers never schedule a trigger over guessed data.
package profile

import (
	"context"
	"time"
)

// Profile is the slice of the hosted account record the engine consumes.
type Profile struct {
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	PuffsPerDay   int       `json:"puffs_per_day"`
	GoalSpeedDays int       `json:"goal_speed"`
	CreatedAt     time.Time `json:"created_at"`
	MoneyPerMonth float64   `json:"money_per_month"`
	Currency      string    `json:"currency"`
}

// Provider looks up the current profile. Implementations must be safe for
// concurrent use.
type Provider interface {
	Lookup(ctx context.Context) (*Profile, error)
}

// StaticProvider serves a fixed profile, used in tests and offline mode.
type StaticProvider struct {
	Profile *Profile
	Err     error
}

// Lookup returns the configured profile or error.
func (p *StaticProvider) Lookup(ctx context.Context) (*Profile, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Profile, nil
}
