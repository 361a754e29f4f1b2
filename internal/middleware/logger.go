package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/puffless/engage/pkg/logger"
)

// Logger writes a structured access log for each API request. Prometheus
// scrapes and health polls are skipped so the log stays readable on a device
// that probes both every few seconds.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if path == "/metrics" || path == "/health" {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if device := c.GetString(CtxDeviceIDKey); device != "" {
			fields = append(fields, zap.String("device_id", device))
		}

		logger.WithModule("api").Info("request", fields...)
	}
}
