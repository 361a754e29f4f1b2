package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/services"
	apperrors "github.com/puffless/engage/pkg/errors"
	"github.com/puffless/engage/pkg/response"
)

// NotificationHandler exposes the local feed, the permission flag and the
// outstanding schedule.
type NotificationHandler struct {
	feed *services.FeedService
	gw   *gateway.Gateway
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(feed *services.FeedService, gw *gateway.Gateway) (*NotificationHandler, error) {
	if feed == nil {
		return nil, errors.New("handlers: feed service is required")
	}
	if gw == nil {
		return nil, errors.New("handlers: gateway is required")
	}
	return &NotificationHandler{feed: feed, gw: gw}, nil
}

// List returns feed entries, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)
	unreadOnly := parseBoolQuery(c, "unread")

	items, total, err := h.feed.List(c.Request.Context(), unreadOnly, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

// UnreadCount returns the unread badge number.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.feed.UnreadCount(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": count})
}

// MarkRead flags a feed entry as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.feed.MarkRead(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			response.Error(c, apperrors.ErrNotFound)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// MarkAllRead flags every unread entry as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	changed, err := h.feed.MarkAllRead(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": changed})
}

// Delete removes a feed entry.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.feed.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			response.Error(c, apperrors.ErrNotFound)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

// Permission records the outcome of the platform permission prompt.
func (h *NotificationHandler) Permission(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body"))
		return
	}

	granted, err := h.gw.RequestPermission(c.Request.Context(), req.Granted)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			response.Error(c, apperrors.ErrNotificationsUnavailable)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"enabled": granted})
}

// Scheduled lists every outstanding scheduler entry, mainly for debugging
// the client against the engine.
func (h *NotificationHandler) Scheduled(c *gin.Context) {
	entries, err := h.gw.ListScheduled(c.Request.Context())
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			response.Error(c, apperrors.ErrNotificationsUnavailable)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}
