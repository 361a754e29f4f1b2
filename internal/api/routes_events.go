package api

import (
	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/handlers"
)

func registerEventRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewEventHandler(deps.Engagement, deps.Verification, deps.Goal, deps.Profiles)
	if err != nil {
		return err
	}

	events := api.Group("/events")
	{
		events.POST("/activity", handler.Activity)
		events.POST("/puff", handler.Puff)
		events.POST("/focus", handler.Focus)
		events.POST("/plan-reset", handler.PlanReset)
	}
	return nil
}
