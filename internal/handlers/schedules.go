package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/puffless/engage/internal/triggers"
	apperrors "github.com/puffless/engage/pkg/errors"
	"github.com/puffless/engage/pkg/response"
	"github.com/puffless/engage/pkg/validator"
)

// ScheduleHandler manages the recurring daily and weekly reminders.
type ScheduleHandler struct {
	daily  *triggers.DailyAchievement
	weekly *triggers.WeeklySummary
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(daily *triggers.DailyAchievement, weekly *triggers.WeeklySummary) (*ScheduleHandler, error) {
	if daily == nil || weekly == nil {
		return nil, errors.New("handlers: daily and weekly modules are required")
	}
	return &ScheduleHandler{daily: daily, weekly: weekly}, nil
}

type dailyScheduleRequest struct {
	Hour   int `json:"hour" validate:"gte=0,lte=23"`
	Minute int `json:"minute" validate:"gte=0,lte=59"`
}

// ScheduleDaily sets the daily achievement reminder time.
func (h *ScheduleHandler) ScheduleDaily(c *gin.Context) {
	var req dailyScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body"))
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	if err := h.daily.Schedule(c.Request.Context(), req.Hour, req.Minute); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"scheduled": true})
}

// CancelDaily drops the daily achievement reminder.
func (h *ScheduleHandler) CancelDaily(c *gin.Context) {
	if err := h.daily.Cancel(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}

type weeklyScheduleRequest struct {
	Weekday int `json:"weekday" validate:"gte=0,lte=6"`
	Hour    int `json:"hour" validate:"gte=0,lte=23"`
	Minute  int `json:"minute" validate:"gte=0,lte=59"`
}

// ScheduleWeekly sets the weekly summary reminder slot.
func (h *ScheduleHandler) ScheduleWeekly(c *gin.Context) {
	var req weeklyScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body"))
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	if err := h.weekly.Schedule(c.Request.Context(), time.Weekday(req.Weekday), req.Hour, req.Minute); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"scheduled": true})
}

// CancelWeekly drops the weekly summary reminder.
func (h *ScheduleHandler) CancelWeekly(c *gin.Context) {
	if err := h.weekly.Cancel(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}
