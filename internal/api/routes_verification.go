package api

import (
	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/handlers"
)

func registerVerificationRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewVerificationHandler(deps.Verification, deps.Profiles)
	if err != nil {
		return err
	}

	verification := api.Group("/verification")
	{
		verification.GET("", handler.Status)
		verification.POST("", handler.Request)
		verification.POST("/check", handler.Check)
	}
	return nil
}
