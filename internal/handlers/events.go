package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/profile"
	"github.com/puffless/engage/internal/services"
	apperrors "github.com/puffless/engage/pkg/errors"
	"github.com/puffless/engage/pkg/response"
	"github.com/puffless/engage/pkg/validator"
)

// EventHandler receives the client's engagement events: plain activity,
// logged puffs with their progress snapshot, screen-focus and plan lifecycle
// changes.
type EventHandler struct {
	engagement   *services.EngagementService
	verification *services.VerificationService
	goal         *services.GoalCountdownService
	profiles     profile.Provider
}

// NewEventHandler constructs an event handler.
func NewEventHandler(engagement *services.EngagementService, verification *services.VerificationService, goal *services.GoalCountdownService, profiles profile.Provider) (*EventHandler, error) {
	if engagement == nil || verification == nil || goal == nil {
		return nil, errors.New("handlers: engagement, verification and goal services are required")
	}
	if profiles == nil {
		return nil, errors.New("handlers: profile provider is required")
	}
	return &EventHandler{
		engagement:   engagement,
		verification: verification,
		goal:         goal,
		profiles:     profiles,
	}, nil
}

// Activity records plain user activity and restarts the inactivity ladder.
func (h *EventHandler) Activity(c *gin.Context) {
	if err := h.engagement.HandleActivity(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recorded": true})
}

type puffRequest struct {
	PlanPercent float64 `json:"plan_percent" validate:"gte=0"`
	MoneySaved  float64 `json:"money_saved" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	PuffFreeDay bool    `json:"puff_free_day"`
}

// Puff records a logged event and evaluates every milestone against the
// snapshot it carries.
func (h *EventHandler) Puff(c *gin.Context) {
	var req puffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body"))
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	result, err := h.engagement.HandlePuffLogged(c.Request.Context(), services.Snapshot{
		PlanPercent: req.PlanPercent,
		MoneySaved:  req.MoneySaved,
		Currency:    req.Currency,
		PuffFreeDay: req.PuffFreeDay,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Focus runs the automatic verification display gate against the current
// backend identity.
func (h *EventHandler) Focus(c *gin.Context) {
	ctx := c.Request.Context()

	prof, err := h.profiles.Lookup(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	show, status, err := h.verification.OnFocus(ctx, prof.Email, prof.EmailVerified)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"show_modal": show,
		"status":     status,
	})
}

// PlanReset wipes milestone memory and re-seeds the goal countdown from the
// current plan.
func (h *EventHandler) PlanReset(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.engagement.ResetPlan(ctx); err != nil {
		response.Error(c, err)
		return
	}

	prof, err := h.profiles.Lookup(ctx)
	if err == nil && prof.GoalSpeedDays > 0 {
		if err := h.goal.Reschedule(ctx, prof.CreatedAt, prof.GoalSpeedDays); err != nil {
			response.Error(c, err)
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
