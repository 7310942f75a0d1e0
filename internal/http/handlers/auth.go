package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/session"
)

// AuthService is the public half of *session.Provider.
type AuthService interface {
	SignUp(ctx context.Context, in session.SignUpInput) (session.Tokens, error)
	SignIn(ctx context.Context, email, password string) (session.Tokens, error)
	Refresh(ctx context.Context, raw string) (session.Tokens, error)
	SignOut(ctx context.Context, raw string) error
	ConfirmEmail(ctx context.Context, token string) (user.User, error)
	SendPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword, confirm string) error
	AcceptInvitation(ctx context.Context, in session.AcceptInvitationInput) (session.Tokens, error)
}

type AuthHandler struct {
	sessions AuthService
	cookies  RefreshCookie
}

func NewAuthHandler(sessions AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		cookies:  RefreshCookie{Secure: cfg.Env == "prod"},
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ConfirmPassword is optional for API clients; when omitted it is taken to match.
type SignUpRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
	FullName        string `json:"fullName" binding:"omitempty,max=120"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

type ConfirmEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

type AcceptInvitationRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
	FullName        string `json:"fullName" binding:"omitempty,max=120"`
}

func confirmOr(password, confirm string) string {
	if confirm == "" {
		return password
	}
	return confirm
}

func (h *AuthHandler) respondTokens(ctx *gin.Context, status int, t session.Tokens) {
	h.cookies.Set(ctx, t.RefreshToken, t.RefreshExpiresAt)

	ctx.JSON(status, gin.H{
		"userId":      t.UserID,
		"accessToken": t.AccessToken,
	})
}

// POST /auth/signup
func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	t, err := h.sessions.SignUp(cctx, session.SignUpInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: confirmOr(req.Password, req.ConfirmPassword),
		FullName:        req.FullName,
	})
	if err != nil {
		RespondServiceError(ctx, err, "Could not create user")
		return
	}

	h.respondTokens(ctx, http.StatusCreated, t)
}

// POST /auth/login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	t, err := h.sessions.SignIn(cctx, user.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		RespondServiceError(ctx, err, "Could not sign in")
		return
	}

	h.respondTokens(ctx, http.StatusOK, t)
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, ok := h.cookies.Get(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	t, err := h.sessions.Refresh(cctx, raw)
	if err != nil {
		RespondServiceError(ctx, err, "Could not refresh session")
		return
	}

	h.respondTokens(ctx, http.StatusOK, t)
}

// POST /auth/logout always clears the cookie, whatever state the token is in.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, ok := h.cookies.Get(ctx)
	if ok {
		cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.sessions.SignOut(cctx, raw); err != nil {
			_ = ctx.Error(err)
		}
	}

	h.cookies.Clear(ctx)
	ctx.Status(http.StatusNoContent)
}

// POST /auth/password/forgot answers 202 whether or not the address is known.
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.sessions.SendPasswordReset(cctx, user.NormalizeEmail(req.Email)); err != nil {
		RespondServiceError(ctx, err, "Could not send password reset")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"message": "If that address has an account, a reset link is on its way.",
	})
}

// POST /auth/password/reset
func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	err := h.sessions.ResetPassword(cctx, req.Token, req.Password, confirmOr(req.Password, req.ConfirmPassword))
	if err != nil {
		RespondServiceError(ctx, err, "Could not reset password")
		return
	}

	// every session was revoked, including the one this browser may hold
	h.cookies.Clear(ctx)
	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated. Please sign in again."})
}

// GET /auth/email/confirm?token= is the emailed link; POST carries the token as JSON.
func (h *AuthHandler) ConfirmEmail(ctx *gin.Context) {
	token := ctx.Query("token")

	if ctx.Request.Method == http.MethodPost {
		var req ConfirmEmailRequest
		if !BindJSON(ctx, &req) {
			return
		}
		token = req.Token
	}

	if token == "" {
		RespondBadRequest(ctx, "token is required", nil)
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.sessions.ConfirmEmail(cctx, token)
	if err != nil {
		RespondServiceError(ctx, err, "Could not confirm email")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"email":            u.Email,
		"emailConfirmedAt": u.EmailConfirmedAt,
		"emailVerified":    u.EmailVerified(),
	})
}

// POST /auth/invitations/accept
func (h *AuthHandler) AcceptInvitation(ctx *gin.Context) {
	var req AcceptInvitationRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	t, err := h.sessions.AcceptInvitation(cctx, session.AcceptInvitationInput{
		Token:           req.Token,
		Password:        req.Password,
		ConfirmPassword: confirmOr(req.Password, req.ConfirmPassword),
		FullName:        req.FullName,
	})
	if err != nil {
		RespondServiceError(ctx, err, "Could not accept invitation")
		return
	}

	h.respondTokens(ctx, http.StatusCreated, t)
}
