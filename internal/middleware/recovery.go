package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/puffless/engage/pkg/errors"
	"github.com/puffless/engage/pkg/logger"
	"github.com/puffless/engage/pkg/response"
)

// Recovery converts handler panics into the engine's standard 500 envelope so
// one broken trigger path never takes the whole loop down.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("api").Error("handler panic",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("device_id", c.GetString(CtxDeviceIDKey)),
					zap.Any("panic", r),
				)
				response.Error(c, apperrors.ErrInternalServer)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the engine's error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, apperrors.ErrNotFound)
}
