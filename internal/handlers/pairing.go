package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/puffless/engage/internal/auth"
	apperrors "github.com/puffless/engage/pkg/errors"
	"github.com/puffless/engage/pkg/response"
	"github.com/puffless/engage/pkg/validator"
)

// PairingHandler exchanges a pairing code for a device token.
type PairingHandler struct {
	pairing *iauth.PairingService
}

// NewPairingHandler constructs a pairing handler.
func NewPairingHandler(pairing *iauth.PairingService) (*PairingHandler, error) {
	if pairing == nil {
		return nil, errors.New("handlers: pairing service is required")
	}
	return &PairingHandler{pairing: pairing}, nil
}

type pairRequest struct {
	Code       string `json:"code" validate:"required"`
	DeviceName string `json:"device_name" validate:"max=128"`
}

// Pair validates the code and issues a bearer token.
func (h *PairingHandler) Pair(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body"))
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	token, err := h.pairing.Pair(c.Request.Context(), req.Code, req.DeviceName)
	if err != nil {
		if errors.Is(err, iauth.ErrInvalidPairingCode) {
			response.Error(c, apperrors.ErrInvalidPairingCode)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"token": token})
}
