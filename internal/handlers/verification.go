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

// VerificationHandler exposes the verification lifecycle over HTTP.
type VerificationHandler struct {
	service  *services.VerificationService
	profiles profile.Provider
}

// NewVerificationHandler constructs a verification handler.
func NewVerificationHandler(service *services.VerificationService, profiles profile.Provider) (*VerificationHandler, error) {
	if service == nil {
		return nil, errors.New("handlers: verification service is required")
	}
	if profiles == nil {
		return nil, errors.New("handlers: profile provider is required")
	}
	return &VerificationHandler{service: service, profiles: profiles}, nil
}

type verificationRequest struct {
	Type  string `json:"type" validate:"required,oneof=account email_change"`
	Email string `json:"email" validate:"required,email"`
}

// Request records a new pending verification.
func (h *VerificationHandler) Request(c *gin.Context) {
	var req verificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body"))
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	pending, err := h.service.Request(c.Request.Context(), services.VerificationType(req.Type), req.Email)
	if err != nil {
		if errors.Is(err, services.ErrVerificationPending) {
			response.Error(c, apperrors.NewBadRequest("a verification request is already pending"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, pending)
}

// Status returns the current lifecycle snapshot without side effects.
func (h *VerificationHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// Check is the user-initiated recheck, rate limited by the cooldown window.
func (h *VerificationHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	prof, err := h.profiles.Lookup(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	allowed, status, err := h.service.CheckNow(ctx, prof.Email, prof.EmailVerified)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !allowed {
		response.Error(c, apperrors.ErrCooldownActive.WithInternal(
			errors.New("recheck available at "+h.service.RecheckAvailableAt(ctx).String())))
		return
	}
	if status.State == services.StateNone && !status.Cleared && !status.Expired {
		response.Error(c, apperrors.ErrNoPendingVerification)
		return
	}

	response.Success(c, http.StatusOK, status)
}
