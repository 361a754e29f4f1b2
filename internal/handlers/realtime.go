package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/puffless/engage/internal/auth"
	"github.com/puffless/engage/internal/realtime"
	apperrors "github.com/puffless/engage/pkg/errors"
	"github.com/puffless/engage/pkg/response"
)

// RealtimeHandler upgrades clients onto the event stream. WebSocket clients
// cannot set headers, so the token travels as a query parameter.
type RealtimeHandler struct {
	hub *realtime.Hub
	jwt *iauth.JWTService
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub, jwt *iauth.JWTService) (*RealtimeHandler, error) {
	if hub == nil {
		return nil, errors.New("handlers: hub is required")
	}
	if jwt == nil {
		return nil, errors.New("handlers: jwt service is required")
	}
	return &RealtimeHandler{hub: hub, jwt: jwt}, nil
}

// Stream authenticates and hands the connection to the hub.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}

	if _, err := h.jwt.ValidateDeviceToken(token); err != nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	streams := []string{realtime.StreamNotifications, realtime.StreamVerification}
	if requested := strings.TrimSpace(c.Query("streams")); requested != "" {
		streams = strings.Split(requested, ",")
	}

	h.hub.Serve(streams, c.Writer, c.Request)
}
