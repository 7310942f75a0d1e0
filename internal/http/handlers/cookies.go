package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

// RefreshCookie carries the refresh token as an HttpOnly cookie scoped to /auth.
type RefreshCookie struct {
	Secure bool
}

func (rc RefreshCookie) Get(ctx *gin.Context) (string, bool) {
	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		return "", false
	}
	return raw, true
}

func (rc RefreshCookie) Set(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, raw, maxAge, refreshCookiePath, "", rc.Secure, true)
}

func (rc RefreshCookie) Clear(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", rc.Secure, true)
}
