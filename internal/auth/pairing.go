package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/puffless/engage/internal/store"
)

// Persisted keys owned by the pairing flow.
const (
	pairingHashKey = "auth:pairing_hash"
	deviceNameKey  = "auth:device_name"
)

// ErrInvalidPairingCode is returned when the presented code does not match
// the configured one.
var ErrInvalidPairingCode = errors.New("auth: invalid pairing code")

// PairingService exchanges the one-time pairing code shown by the host for a
// device token. The code is stored only as a bcrypt hash.
type PairingService struct {
	store store.Store
	jwt   *JWTService
}

// NewPairingService constructs a PairingService.
func NewPairingService(st store.Store, jwtSvc *JWTService) (*PairingService, error) {
	if st == nil {
		return nil, errors.New("auth: store is required")
	}
	if jwtSvc == nil {
		return nil, errors.New("auth: jwt service is required")
	}
	return &PairingService{store: st, jwt: jwtSvc}, nil
}

// SetPairingCode hashes and persists the code. An empty code disables
// pairing until a new one is set.
func (s *PairingService) SetPairingCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return s.store.Remove(ctx, pairingHashKey)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash pairing code: %w", err)
	}
	if err := s.store.Set(ctx, pairingHashKey, string(hash)); err != nil {
		return fmt.Errorf("auth: persist pairing hash: %w", err)
	}
	return nil
}

// Pair validates the presented code and, on success, issues a device token.
func (s *PairingService) Pair(ctx context.Context, code, deviceName string) (string, error) {
	hash, ok, err := s.store.Get(ctx, pairingHashKey)
	if err != nil {
		return "", fmt.Errorf("auth: read pairing hash: %w", err)
	}
	if !ok || hash == "" {
		return "", ErrInvalidPairingCode
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimSpace(code))); err != nil {
		return "", ErrInvalidPairingCode
	}

	deviceID := uuid.NewString()
	token, err := s.jwt.GenerateDeviceToken(deviceID, deviceName)
	if err != nil {
		return "", err
	}

	if deviceName != "" {
		if err := s.store.Set(ctx, deviceNameKey, deviceName); err != nil {
			return "", fmt.Errorf("auth: persist device name: %w", err)
		}
	}
	return token, nil
}
