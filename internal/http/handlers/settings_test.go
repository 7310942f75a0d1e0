package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/http/handlers"
)

type fakeSettingsService struct {
	updatePasswordFn func(ctx context.Context, newPassword, confirm string) error
	changeEmailFn    func(ctx context.Context, email string) error
	closeFn          func(ctx context.Context, confirm account.DeleteConfirmation) error
}

func (f *fakeSettingsService) UpdatePassword(ctx context.Context, newPassword, confirm string) error {
	if f.updatePasswordFn != nil {
		return f.updatePasswordFn(ctx, newPassword, confirm)
	}
	return nil
}

func (f *fakeSettingsService) RequestEmailChange(ctx context.Context, email string) error {
	if f.changeEmailFn != nil {
		return f.changeEmailFn(ctx, email)
	}
	return nil
}

func (f *fakeSettingsService) CloseAccount(ctx context.Context, confirm account.DeleteConfirmation) error {
	if f.closeFn != nil {
		return f.closeFn(ctx, confirm)
	}
	return confirm.Check()
}

func settingsRouter(svc handlers.SettingsService) *gin.Engine {
	h := handlers.NewSettingsHandler(svc, config.Config{})

	r := gin.New()
	r.PUT("/api/settings/password", h.UpdatePassword)
	r.PUT("/api/settings/email", h.ChangeEmail)
	r.DELETE("/api/settings/account", h.CloseAccount)
	return r
}

func TestUpdatePassword_PassesBothFields(t *testing.T) {
	svc := &fakeSettingsService{
		updatePasswordFn: func(ctx context.Context, newPassword, confirm string) error {
			if newPassword != "abc" || confirm != "abd" {
				t.Fatalf("got %q/%q", newPassword, confirm)
			}
			return &account.ValidationError{Field: "password", Message: "Passwords do not match"}
		},
	}

	w := doJSON(settingsRouter(svc), http.MethodPut, "/api/settings/password", `{"newPassword":"abc","confirmPassword":"abd"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if got := decodeEnvelope(t, w); got.Code != "validation_failed" || got.Message != "Passwords do not match" {
		t.Fatalf("unexpected error %+v", got)
	}
}

func TestChangeEmail_Accepted(t *testing.T) {
	var got string
	svc := &fakeSettingsService{
		changeEmailFn: func(ctx context.Context, email string) error { got = email; return nil },
	}

	w := doJSON(settingsRouter(svc), http.MethodPut, "/api/settings/email", `{"email":"new@example.com"}`)
	if w.Code != http.StatusAccepted || got != "new@example.com" {
		t.Fatalf("status = %d got=%q", w.Code, got)
	}
}

func TestCloseAccount_TwoStepConfirmation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "declined", body: `{"confirmed":false}`, wantStatus: http.StatusBadRequest},
		{name: "wrong word", body: `{"confirmed":true,"typed":"nope"}`, wantStatus: http.StatusBadRequest, wantMsg: "Account deletion cancelled."},
		{name: "confirmed", body: `{"confirmed":true,"typed":"DELETE"}`, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(settingsRouter(&fakeSettingsService{}), http.MethodDelete, "/api/settings/account", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
			}
			if tt.wantMsg != "" {
				if got := decodeEnvelope(t, w); got.Message != tt.wantMsg {
					t.Fatalf("message = %q", got.Message)
				}
			}
			if tt.wantStatus == http.StatusOK && refreshCookie(w) == nil {
				t.Fatalf("expected the refresh cookie to be cleared")
			}
		})
	}
}
