package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
)

// CurrentUserSource resolves the caller's identity; *session.Provider satisfies it.
type CurrentUserSource interface {
	CurrentUser(ctx context.Context) (user.User, error)
}

// ScreensHandler serves the guarded pages. The guard has already loaded the profile.
type ScreensHandler struct {
	users CurrentUserSource
}

func NewScreensHandler(users CurrentUserSource) *ScreensHandler {
	return &ScreensHandler{users: users}
}

type identityView struct {
	Email            string     `json:"email"`
	EmailVerified    bool       `json:"emailVerified"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt"`
	PendingEmail     *string    `json:"pendingEmail,omitempty"`
}

func newIdentityView(u user.User) identityView {
	return identityView{
		Email:            u.Email,
		EmailVerified:    u.EmailVerified(),
		EmailConfirmedAt: u.EmailConfirmedAt,
		PendingEmail:     u.PendingEmail,
	}
}

func (h *ScreensHandler) identity(ctx *gin.Context) (user.User, bool) {
	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.CurrentUser(cctx)
	if err != nil {
		RespondServiceError(ctx, err, "Could not load account")
		return user.User{}, false
	}
	return u, true
}

// GET /dashboard
func (h *ScreensHandler) Dashboard(ctx *gin.Context) {
	p, ok := middlewares.ProfileFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	u, ok := h.identity(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":    newIdentityView(u),
		"profile": p,
		"isAdmin": p.IsAdmin(),
	})
}

// GET /profile
func (h *ScreensHandler) Profile(ctx *gin.Context) {
	p, ok := middlewares.ProfileFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	u, ok := h.identity(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"email":   u.Email,
		"profile": p,
	})
}

// GET /settings
func (h *ScreensHandler) Settings(ctx *gin.Context) {
	u, ok := h.identity(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, newIdentityView(u))
}
