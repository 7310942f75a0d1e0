package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/observability"
)

// RequireAdmin guards the admin API. Unlike Guard it answers with JSON instead of
// redirecting: 401 without a session, 403 for anyone whose profile is missing or not
// admin, 502 when the profile lookup itself failed.
func RequireAdmin(src account.ProfileSource, prom *observability.Prom) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := src.CurrentProfile(c.Request.Context())

		switch {
		case err == nil && p.IsAdmin():
			c.Next()
		case errors.Is(err, account.ErrNotAuthenticated):
			abortUnauthorized(c, "Missing identity context")
		case err == nil, errors.Is(err, account.ErrProfileNotFound):
			prom.IncAuthzDenial("guard")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":      "forbidden",
					"message":   account.ErrAdminRequired.Error(),
					"requestId": c.GetString(CtxRequestID),
				},
			})
		default:
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
				"error": gin.H{
					"code":      "transport_error",
					"message":   "Could not verify permissions. Please try again.",
					"requestId": c.GetString(CtxRequestID),
				},
			})
		}
	}
}
