package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the engagement engine.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Verification  VerificationConfig  `mapstructure:"verification"`
	Profile       ProfileSourceConfig `mapstructure:"profile"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// NotificationConfig tunes delivery behaviour.
type NotificationConfig struct {
	Available  bool             `mapstructure:"available"`
	TickEvery  time.Duration    `mapstructure:"tick_every"`
	QuietHours QuietHoursConfig `mapstructure:"quiet_hours"`
	Daily      ClockConfig      `mapstructure:"daily"`
	Weekly     WeeklyConfig     `mapstructure:"weekly"`
}

// QuietHoursConfig defers one-shot deliveries inside the window.
type QuietHoursConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	StartHour int  `mapstructure:"start_hour"`
	EndHour   int  `mapstructure:"end_hour"`
}

// ClockConfig is a wall-clock slot.
type ClockConfig struct {
	Hour   int `mapstructure:"hour"`
	Minute int `mapstructure:"minute"`
}

// WeeklyConfig is a weekly wall-clock slot.
type WeeklyConfig struct {
	Weekday int `mapstructure:"weekday"`
	Hour    int `mapstructure:"hour"`
	Minute  int `mapstructure:"minute"`
}

// VerificationConfig tunes the verification lifecycle windows.
type VerificationConfig struct {
	MandatoryAfter time.Duration `mapstructure:"mandatory_after"`
	RecheckWindow  time.Duration `mapstructure:"recheck_window"`
}

// ProfileSourceConfig points the engine at the hosted account backend.
type ProfileSourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// AuthConfig captures device pairing settings.
type AuthConfig struct {
	JWT         JWTSettings `mapstructure:"jwt"`
	PairingCode string      `mapstructure:"pairing_code"`
}

// JWTSettings configures device tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"token_ttl"`
}

// MaintenanceConfig controls the background sweeper.
type MaintenanceConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	FeedRetention time.Duration `mapstructure:"feed_retention"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("ENGAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8750)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/engage.sqlite")

	v.SetDefault("notifications.available", true)
	v.SetDefault("notifications.tick_every", "30s")
	v.SetDefault("notifications.quiet_hours.enabled", false)
	v.SetDefault("notifications.quiet_hours.start_hour", 22)
	v.SetDefault("notifications.quiet_hours.end_hour", 8)
	v.SetDefault("notifications.daily.hour", 20)
	v.SetDefault("notifications.daily.minute", 0)
	v.SetDefault("notifications.weekly.weekday", 0)
	v.SetDefault("notifications.weekly.hour", 18)
	v.SetDefault("notifications.weekly.minute", 0)

	v.SetDefault("verification.mandatory_after", "168h")
	v.SetDefault("verification.recheck_window", "10h")

	v.SetDefault("auth.jwt.issuer", "engage")
	v.SetDefault("auth.jwt.token_ttl", "720h") // 30 days

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.interval", "6h")
	v.SetDefault("maintenance.feed_retention", "720h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
