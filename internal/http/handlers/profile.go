package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/profile"
)

// SelfProfileService is the self-service half of *account.Service.
type SelfProfileService interface {
	CurrentProfile(ctx context.Context) (profile.Profile, error)
	UpsertSelf(ctx context.Context, f profile.SelfFields) (profile.Profile, error)
}

type ProfileHandler struct {
	accounts SelfProfileService
}

func NewProfileHandler(accounts SelfProfileService) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

// PUT /api/profile writes the caller's own fields and answers with the stored row.
func (h *ProfileHandler) Update(ctx *gin.Context) {
	var req profile.UpdateSelfRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.accounts.UpsertSelf(cctx, req.Fields()); err != nil {
		RespondServiceError(ctx, err, "Could not update profile")
		return
	}

	p, err := h.accounts.CurrentProfile(cctx)
	if err != nil {
		RespondServiceError(ctx, err, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, p)
}
