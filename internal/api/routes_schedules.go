package api

import (
	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/handlers"
)

func registerScheduleRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewScheduleHandler(deps.Daily, deps.Weekly)
	if err != nil {
		return err
	}

	schedules := api.Group("/schedules")
	{
		schedules.POST("/daily", handler.ScheduleDaily)
		schedules.DELETE("/daily", handler.CancelDaily)
		schedules.POST("/weekly", handler.ScheduleWeekly)
		schedules.DELETE("/weekly", handler.CancelWeekly)
	}
	return nil
}
