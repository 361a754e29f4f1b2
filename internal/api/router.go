package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/puffless/engage/internal/auth"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/handlers"
	"github.com/puffless/engage/internal/middleware"
	"github.com/puffless/engage/internal/profile"
	"github.com/puffless/engage/internal/realtime"
	"github.com/puffless/engage/internal/services"
	"github.com/puffless/engage/internal/triggers"
)

// Dependencies bundles everything the router wires into handlers.
type Dependencies struct {
	DB           *gorm.DB
	JWT          *iauth.JWTService
	Pairing      *iauth.PairingService
	Gateway      *gateway.Gateway
	Hub          *realtime.Hub
	Profiles     profile.Provider
	Engagement   *services.EngagementService
	Verification *services.VerificationService
	Goal         *services.GoalCountdownService
	Feed         *services.FeedService
	Daily        *triggers.DailyAchievement
	Weekly       *triggers.WeeklySummary
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil || deps.Pairing == nil {
		return nil, fmt.Errorf("auth services must be provided")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Public endpoints
	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pairingHandler, err := handlers.NewPairingHandler(deps.Pairing)
	if err != nil {
		return nil, err
	}
	r.POST("/api/pair", pairingHandler.Pair)

	// Realtime stream authenticates via query token inside the handler.
	if deps.Hub != nil {
		realtimeHandler, err := handlers.NewRealtimeHandler(deps.Hub, deps.JWT)
		if err != nil {
			return nil, err
		}
		r.GET("/api/ws", realtimeHandler.Stream)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	if err := registerEventRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerVerificationRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerGoalRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerNotificationRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerScheduleRoutes(api, deps); err != nil {
		return nil, err
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
