package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorEnvelope struct {
	Error handlers.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) handlers.APIError {
	t.Helper()

	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v body=%s", err, w.Body.String())
	}
	return env.Error
}

func TestRespondServiceError_MapsTaxonomy(t *testing.T) {
	transport := &account.TransportError{Op: "profiles.list", Err: errors.New("dial tcp: connection refused")}

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"not authenticated", account.ErrNotAuthenticated, http.StatusUnauthorized, "unauthorized", "Not authenticated"},
		{"admin required", account.ErrAdminRequired, http.StatusForbidden, "forbidden", "Admin access required"},
		{"store forbidden", fmt.Errorf("set role: %w", profile.ErrForbidden), http.StatusForbidden, "forbidden", "Admin access required"},
		{"validation", &account.ValidationError{Field: "password", Message: "Passwords do not match"}, http.StatusBadRequest, "validation_failed", "Passwords do not match"},
		{"profile missing", account.ErrProfileNotFound, http.StatusNotFound, "not_found", "Profile not found"},
		{"user missing", user.ErrUserNotFound, http.StatusNotFound, "not_found", "User not found"},
		{"email taken", user.ErrEmailTaken, http.StatusConflict, "email_taken", "Email is already in use."},
		{"not confirmed", account.ErrDeletionNotConfirmed, http.StatusBadRequest, "confirmation_required", "Please confirm the deletion."},
		{"cancelled", account.ErrDeletionCancelled, http.StatusBadRequest, "deletion_cancelled", "Account deletion cancelled."},
		{"bad credentials", session.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect."},
		{"expired refresh", session.ErrRefreshExpired, http.StatusUnauthorized, "expired_refresh", "Refresh token expired."},
		{"invalid refresh", session.ErrInvalidRefresh, http.StatusUnauthorized, "invalid_refresh", "Invalid refresh token"},
		{"invalid link", session.ErrInvalidLink, http.StatusBadRequest, "invalid_link", "This link is invalid or has expired."},
		{"transport", transport, http.StatusBadGateway, "transport_error", "The service is temporarily unavailable. Please try again."},
		{"timeout", &account.TransportError{Op: "profiles.get", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "timeout", "The service is temporarily unavailable. Please try again."},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(ctx *gin.Context) {
				handlers.RespondServiceError(ctx, tt.err, "fallback")
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("X-Request-Id", "req-1")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			got := decodeEnvelope(t, w)
			if got.Code != tt.wantCode || got.Message != tt.wantMessage {
				t.Fatalf("got %q/%q, want %q/%q", got.Code, got.Message, tt.wantCode, tt.wantMessage)
			}
			if got.RequestID != "req-1" {
				t.Fatalf("requestId = %q, want req-1", got.RequestID)
			}
		})
	}
}

func TestRespondServiceError_NeverLeaksTransportDetail(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(ctx *gin.Context) {
		handlers.RespondServiceError(ctx, &account.TransportError{Op: "users.get", Err: errors.New("password=hunter2")}, "x")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if body := w.Body.String(); strings.Contains(body, "hunter2") {
		t.Fatalf("raw transport error leaked: %s", body)
	}
}
