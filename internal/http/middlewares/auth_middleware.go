package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/actorctx"
	"github.com/geocoder89/profilehub/internal/auth"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

// bearerToken reads the Authorization header. Websocket upgrades may pass the token
// as ?access_token= because browsers cannot set headers on them.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		return raw, raw != ""
	}

	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		raw := c.Query("access_token")
		return raw, raw != ""
	}

	return "", false
}

func (m *AuthMiddleware) attach(c *gin.Context, raw string) bool {
	claims, err := m.jwt.VerifyAccessToken(raw)
	if err != nil {
		return false
	}

	s := actorctx.Session{UserID: claims.UserID, Email: claims.Email, TokenID: claims.JTI}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}

	c.Request = c.Request.WithContext(actorctx.WithSession(c.Request.Context(), s))
	return true
}

// RequireAuth rejects requests without a valid access token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		if !m.attach(c, raw) {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		c.Next()
	}
}

// LoadSession attaches the session when a valid token is present and lets anonymous
// requests through. Guarded screens rely on the guard to turn those away.
func (m *AuthMiddleware) LoadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearerToken(c); ok {
			m.attach(c, raw)
		}
		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	return actorctx.UserIDFrom(c.Request.Context())
}
