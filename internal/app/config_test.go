package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9750, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)

	require.Equal(t, 15*time.Second, cfg.Notifications.TickEvery)
	require.True(t, cfg.Notifications.QuietHours.Enabled)
	require.Equal(t, 23, cfg.Notifications.QuietHours.StartHour)
	require.Equal(t, 7, cfg.Notifications.QuietHours.EndHour)
	require.Equal(t, 21, cfg.Notifications.Daily.Hour)
	require.Equal(t, 30, cfg.Notifications.Daily.Minute)
	require.Equal(t, 6, cfg.Notifications.Weekly.Weekday)

	require.Equal(t, 7*24*time.Hour, cfg.Verification.MandatoryAfter)
	require.Equal(t, 10*time.Hour, cfg.Verification.RecheckWindow)

	require.Equal(t, "http://127.0.0.1:9000", cfg.Profile.BaseURL)
	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "engage-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, "483920", cfg.Auth.PairingCode)

	require.Equal(t, 2*time.Hour, cfg.Maintenance.Interval)
	require.Equal(t, 240*time.Hour, cfg.Maintenance.FeedRetention)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 8750, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 30*time.Second, cfg.Notifications.TickEvery)
	require.Equal(t, 168*time.Hour, cfg.Verification.MandatoryAfter)
	require.Equal(t, 10*time.Hour, cfg.Verification.RecheckWindow)
	require.Equal(t, "engage", cfg.Auth.JWT.Issuer)
	require.True(t, cfg.Maintenance.Enabled)
}
