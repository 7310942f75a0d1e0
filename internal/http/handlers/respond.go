package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/geocoder89/profilehub/internal/session"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// transportMessage replaces raw store/provider errors, which never reach clients.
const transportMessage = "The service is temporarily unavailable. Please try again."

// RespondServiceError renders an error from the account or session layer. fallback is
// the message for anything unclassified.
func RespondServiceError(ctx *gin.Context, err error, fallback string) {
	_ = ctx.Error(err)

	var ve *account.ValidationError
	var te *account.TransportError

	switch {
	case errors.As(err, &ve):
		RespondError(ctx, http.StatusBadRequest, "validation_failed", ve.Message, gin.H{"field": ve.Field})
	case errors.Is(err, account.ErrNotAuthenticated):
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
	case errors.Is(err, account.ErrAdminRequired), errors.Is(err, profile.ErrForbidden):
		RespondForbidden(ctx, account.ErrAdminRequired.Error())
	case errors.Is(err, account.ErrProfileNotFound), errors.Is(err, profile.ErrNotFound):
		RespondNotFound(ctx, "Profile not found")
	case errors.Is(err, user.ErrUserNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	case errors.Is(err, account.ErrDeletionNotConfirmed):
		RespondError(ctx, http.StatusBadRequest, "confirmation_required", "Please confirm the deletion.", nil)
	case errors.Is(err, account.ErrDeletionCancelled):
		RespondError(ctx, http.StatusBadRequest, "deletion_cancelled", account.ErrDeletionCancelled.Error(), nil)
	case errors.Is(err, session.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
	case errors.Is(err, session.ErrRefreshExpired):
		RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
	case errors.Is(err, session.ErrInvalidRefresh):
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
	case errors.Is(err, session.ErrInvalidLink):
		RespondError(ctx, http.StatusBadRequest, "invalid_link", "This link is invalid or has expired.", nil)
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(ctx, http.StatusGatewayTimeout, "timeout", transportMessage, nil)
	case errors.As(err, &te):
		RespondError(ctx, http.StatusBadGateway, "transport_error", transportMessage, nil)
	default:
		RespondInternal(ctx, fallback)
	}
}
