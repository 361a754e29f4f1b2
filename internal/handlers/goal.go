package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/services"
	apperrors "github.com/puffless/engage/pkg/errors"
	"github.com/puffless/engage/pkg/response"
	"github.com/puffless/engage/pkg/validator"
)

// GoalHandler manages the goal-completion countdown.
type GoalHandler struct {
	service *services.GoalCountdownService
}

// NewGoalHandler constructs a goal handler.
func NewGoalHandler(service *services.GoalCountdownService) (*GoalHandler, error) {
	if service == nil {
		return nil, errors.New("handlers: goal service is required")
	}
	return &GoalHandler{service: service}, nil
}

type goalRequest struct {
	PlanCreatedAt time.Time `json:"plan_created_at" validate:"required"`
	GoalDays      int       `json:"goal_days" validate:"required,gt=0"`
}

// Schedule replaces the countdown with one computed from the plan timing.
func (h *GoalHandler) Schedule(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body"))
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	if err := h.service.Reschedule(c.Request.Context(), req.PlanCreatedAt, req.GoalDays); err != nil {
		response.Error(c, err)
		return
	}

	outstanding, err := h.service.Outstanding(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"scheduled": outstanding})
}

// Cancel drops any outstanding countdown.
func (h *GoalHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}
