package api

import (
	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewNotificationHandler(deps.Feed, deps.Gateway)
	if err != nil {
		return err
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", handler.List)
		notifications.GET("/unread-count", handler.UnreadCount)
		notifications.POST("/:id/read", handler.MarkRead)
		notifications.POST("/read-all", handler.MarkAllRead)
		notifications.DELETE("/:id", handler.Delete)
		notifications.POST("/permission", handler.Permission)
		notifications.GET("/scheduled", handler.Scheduled)
	}
	return nil
}
