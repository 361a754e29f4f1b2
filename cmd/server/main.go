package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/puffless/engage/internal/api"
	"github.com/puffless/engage/internal/app"
	"github.com/puffless/engage/internal/app/maintenance"
	iauth "github.com/puffless/engage/internal/auth"
	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/database"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/profile"
	"github.com/puffless/engage/internal/realtime"
	"github.com/puffless/engage/internal/services"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/internal/triggers"
	"github.com/puffless/engage/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("engage-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	st := store.NewDatabaseStore(db)
	cat := catalog.New()

	gw, err := gateway.New(db, st, gateway.WithAvailability(cfg.Notifications.Available))
	if err != nil {
		return fmt.Errorf("initialise gateway: %w", err)
	}

	hub := realtime.NewHub()

	feedSvc, err := services.NewFeedService(db, hub)
	if err != nil {
		return fmt.Errorf("initialise feed service: %w", err)
	}

	dispatcher, err := gateway.NewDispatcher(db, feedSvc,
		gateway.WithTickSpec(fmt.Sprintf("@every %s", cfg.Notifications.TickEvery)),
		gateway.WithQuietHours(gateway.QuietHours{
			Enabled:   cfg.Notifications.QuietHours.Enabled,
			StartHour: cfg.Notifications.QuietHours.StartHour,
			EndHour:   cfg.Notifications.QuietHours.EndHour,
		}),
	)
	if err != nil {
		return fmt.Errorf("initialise dispatcher: %w", err)
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:   cfg.Auth.JWT.Secret,
		Issuer:   cfg.Auth.JWT.Issuer,
		TokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	pairingSvc, err := iauth.NewPairingService(st, jwtService)
	if err != nil {
		return fmt.Errorf("initialise pairing service: %w", err)
	}
	if code := strings.TrimSpace(cfg.Auth.PairingCode); code != "" {
		if err := pairingSvc.SetPairingCode(ctx, code); err != nil {
			return fmt.Errorf("set pairing code: %w", err)
		}
	}

	profiles, err := buildProfileProvider(cfg)
	if err != nil {
		return err
	}

	inactivity, err := triggers.NewInactivity(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise inactivity module: %w", err)
	}
	percent, err := triggers.NewPercentMilestone(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise percent milestones: %w", err)
	}
	money, err := triggers.NewMoneyMilestone(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise money milestones: %w", err)
	}
	firstDay, err := triggers.NewFirstPuffFreeDay(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise first-day module: %w", err)
	}
	daily, err := triggers.NewDailyAchievement(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise daily module: %w", err)
	}
	weekly, err := triggers.NewWeeklySummary(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise weekly module: %w", err)
	}
	accountReminder, err := triggers.NewVerificationReminder(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise verification reminder: %w", err)
	}
	emailChangeReminder, err := triggers.NewEmailChangeReminder(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise email-change reminder: %w", err)
	}

	activitySvc, err := services.NewActivityService(st, inactivity)
	if err != nil {
		return fmt.Errorf("initialise activity service: %w", err)
	}
	goalSvc, err := services.NewGoalCountdownService(st, gw, cat)
	if err != nil {
		return fmt.Errorf("initialise goal service: %w", err)
	}
	verificationSvc, err := services.NewVerificationService(st, accountReminder, emailChangeReminder,
		services.WithMandatoryAfter(cfg.Verification.MandatoryAfter),
		services.WithRecheckWindow(cfg.Verification.RecheckWindow),
	)
	if err != nil {
		return fmt.Errorf("initialise verification service: %w", err)
	}
	engagementSvc, err := services.NewEngagementService(activitySvc, percent, money, firstDay, goalSvc)
	if err != nil {
		return fmt.Errorf("initialise engagement service: %w", err)
	}

	var cleaner *maintenance.Cleaner
	if cfg.Maintenance.Enabled {
		cleaner = maintenance.NewCleaner(db, feedSvc,
			maintenance.WithFeedRetention(cfg.Maintenance.FeedRetention),
			maintenance.WithFeedSchedule(fmt.Sprintf("@every %s", cfg.Maintenance.Interval)),
		)
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer func() {
			stopCtx := cleaner.Stop()
			if err := cleaner.RunOnce(stopCtx); err != nil {
				log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
			}
		}()
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:           db,
		JWT:          jwtService,
		Pairing:      pairingSvc,
		Gateway:      gw,
		Hub:          hub,
		Profiles:     profiles,
		Engagement:   engagementSvc,
		Verification: verificationSvc,
		Goal:         goalSvc,
		Feed:         feedSvc,
		Daily:        daily,
		Weekly:       weekly,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func buildProfileProvider(cfg *app.Config) (profile.Provider, error) {
	base := strings.TrimSpace(cfg.Profile.BaseURL)
	if base == "" {
		// Offline mode: no backend reachable, verification evaluation will
		// carry the last known identity forward.
		return &profile.StaticProvider{Profile: &profile.Profile{}}, nil
	}

	var opts []profile.HTTPOption
	if token := strings.TrimSpace(cfg.Profile.Token); token != "" {
		opts = append(opts, profile.WithBearerToken(token))
	}

	provider, err := profile.NewHTTPProvider(base, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise profile provider: %w", err)
	}
	return provider, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = cfg.Database.Postgres.Password
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = cfg.Database.MySQL.Password
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable on shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
