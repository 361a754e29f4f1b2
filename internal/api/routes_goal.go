package api

import (
	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/handlers"
)

func registerGoalRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewGoalHandler(deps.Goal)
	if err != nil {
		return err
	}

	goal := api.Group("/goal")
	{
		goal.POST("", handler.Schedule)
		goal.DELETE("", handler.Cancel)
	}
	return nil
}
