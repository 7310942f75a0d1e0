package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/config"
)

type SettingsService interface {
	UpdatePassword(ctx context.Context, newPassword, confirm string) error
	RequestEmailChange(ctx context.Context, newEmail string) error
	CloseAccount(ctx context.Context, confirm account.DeleteConfirmation) error
}

type SettingsHandler struct {
	sessions SettingsService
	cookies  RefreshCookie
}

func NewSettingsHandler(sessions SettingsService, cfg config.Config) *SettingsHandler {
	return &SettingsHandler{
		sessions: sessions,
		cookies:  RefreshCookie{Secure: cfg.Env == "prod"},
	}
}

// Password rules are checked by the session provider, so no binding tags here: a
// mismatch must be reported before a length problem.
type UpdatePasswordRequest struct {
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type ChangeEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// PUT /api/settings/password
func (h *SettingsHandler) UpdatePassword(ctx *gin.Context) {
	var req UpdatePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.sessions.UpdatePassword(cctx, req.NewPassword, req.ConfirmPassword); err != nil {
		RespondServiceError(ctx, err, "Could not update password")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// PUT /api/settings/email
func (h *SettingsHandler) ChangeEmail(ctx *gin.Context) {
	var req ChangeEmailRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.sessions.RequestEmailChange(cctx, req.Email); err != nil {
		RespondServiceError(ctx, err, "Could not update email")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"message": "Check your new email address to confirm the change.",
	})
}

// DELETE /api/settings/account signs the caller out everywhere once both
// confirmation steps are present.
func (h *SettingsHandler) CloseAccount(ctx *gin.Context) {
	var req account.DeleteConfirmation
	if ctx.Request.ContentLength != 0 && !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.sessions.CloseAccount(cctx, req); err != nil {
		RespondServiceError(ctx, err, "Could not close account")
		return
	}

	h.cookies.Clear(ctx)
	ctx.JSON(http.StatusOK, gin.H{
		"status":   "signed_out",
		"redirect": "/",
	})
}
