package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkpost/inkpost/internal/services"
	"github.com/inkpost/inkpost/pkg/errors"
	"github.com/inkpost/inkpost/pkg/response"
)

// resetRequestedMessage is returned whether or not the email is registered.
const resetRequestedMessage = "If that email address is registered, a password reset link is on its way."

// PasswordResetHandler exposes the forgot-password request and confirm flows.
type PasswordResetHandler struct {
	resets *services.PasswordResetService
}

func NewPasswordResetHandler(resets *services.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{resets: resets}
}

type resetRequestPayload struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmPayload struct {
	Email                string `json:"email" validate:"required,email"`
	Token                string `json:"token" validate:"required"`
	Password             string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// POST /api/auth/forgot-password
func (h *PasswordResetHandler) Request(c *gin.Context) {
	var req resetRequestPayload
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.resets.RequestReset(requestContext(c), req.Email, c.ClientIP())
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"message": resetRequestedMessage})
	case goerrors.Is(err, services.ErrResetThrottled):
		response.Error(c, errors.ErrRateLimit)
	default:
		response.Error(c, errors.ErrInternalServer)
	}
}

// PUT /api/auth/forgot-password
func (h *PasswordResetHandler) Confirm(c *gin.Context) {
	var req resetConfirmPayload
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.resets.ResetPassword(requestContext(c), req.Email, req.Token, req.Password, c.ClientIP())
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"message": "Your password has been reset. You can now log in."})
	case goerrors.Is(err, services.ErrTokenInvalid), goerrors.Is(err, services.ErrTokenExpired):
		// One message for mismatched, superseded, consumed, and expired
		// tokens. Distinguishing them would hand probes extra signal.
		response.Error(c, errors.ErrResetLinkInvalid)
	default:
		response.Error(c, errors.ErrInternalServer)
	}
}
