package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/http/handlers"
)

type fakeAdminStore struct {
	requireAdminFn func(ctx context.Context) error
	listFn         func(ctx context.Context) ([]profile.Profile, error)
	setRoleFn      func(ctx context.Context, id, role string) error
	deleteFn       func(ctx context.Context, id string) error
}

func (f *fakeAdminStore) RequireAdmin(ctx context.Context) error {
	if f.requireAdminFn != nil {
		return f.requireAdminFn(ctx)
	}
	return nil
}

func (f *fakeAdminStore) ListAllProfiles(ctx context.Context) ([]profile.Profile, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeAdminStore) SetRole(ctx context.Context, id, role string) error {
	if f.setRoleFn != nil {
		return f.setRoleFn(ctx, id, role)
	}
	return nil
}

func (f *fakeAdminStore) DeleteProfile(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeMailer struct {
	inviteFn func(ctx context.Context, email string) error
	resetFn  func(ctx context.Context, userID string) error
}

func (f *fakeMailer) Invite(ctx context.Context, email string) error {
	if f.inviteFn != nil {
		return f.inviteFn(ctx, email)
	}
	return nil
}

func (f *fakeMailer) SendPasswordResetFor(ctx context.Context, userID string) error {
	if f.resetFn != nil {
		return f.resetFn(ctx, userID)
	}
	return nil
}

func named(id, name string, role profile.Role, created time.Time) profile.Profile {
	return profile.Profile{ID: id, FullName: &name, Role: role, CreatedAt: created, UpdatedAt: created}
}

func adminRouter(store account.AdminStore, mailer account.Mailer) *gin.Engine {
	h := handlers.NewAdminHandler(store, mailer)

	r := gin.New()
	r.GET("/api/admin/users", h.ListUsers)
	r.PUT("/api/admin/users/:id/role", h.ChangeRole)
	r.DELETE("/api/admin/users/:id", h.DeleteUser)
	r.POST("/api/admin/users/:id/password-reset", h.SendPasswordReset)
	r.POST("/api/admin/invitations", h.Invite)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type directoryResponse struct {
	Users []profile.Profile `json:"users"`
	Stats profile.Stats     `json:"stats"`
}

func decodeDirectory(t *testing.T, w *httptest.ResponseRecorder) directoryResponse {
	t.Helper()

	var resp directoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestAdminListUsers_FiltersAndCounts(t *testing.T) {
	now := time.Now()
	list := []profile.Profile{
		named(uuid.NewString(), "Ada Lovelace", profile.RoleAdmin, now),
		named(uuid.NewString(), "Grace Hopper", profile.RoleUser, now.AddDate(0, -2, 0)),
	}

	r := adminRouter(&fakeAdminStore{
		listFn: func(ctx context.Context) ([]profile.Profile, error) { return list, nil },
	}, &fakeMailer{})

	w := doJSON(r, http.MethodGet, "/api/admin/users?q=ada", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected an ETag")
	}

	resp := decodeDirectory(t, w)
	if len(resp.Users) != 1 || *resp.Users[0].FullName != "Ada Lovelace" {
		t.Fatalf("unexpected filtered users: %+v", resp.Users)
	}
	// stats describe the whole directory, not the filtered view
	if resp.Stats.TotalUsers != 2 || resp.Stats.AdminUsers != 1 {
		t.Fatalf("unexpected stats: %+v", resp.Stats)
	}
}

func TestAdminListUsers_NotModified(t *testing.T) {
	r := adminRouter(&fakeAdminStore{}, &fakeMailer{})

	first := doJSON(r, http.MethodGet, "/api/admin/users", "")
	etag := first.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w.Code)
	}
}

func TestAdminChangeRole_RefetchesAfterWrite(t *testing.T) {
	id := uuid.NewString()
	role := profile.RoleUser
	var calls int

	store := &fakeAdminStore{
		setRoleFn: func(ctx context.Context, gotID, gotRole string) error {
			if gotID != id || gotRole != "admin" {
				t.Fatalf("SetRole(%q, %q)", gotID, gotRole)
			}
			role = profile.RoleAdmin
			return nil
		},
		listFn: func(ctx context.Context) ([]profile.Profile, error) {
			calls++
			return []profile.Profile{named(id, "Grace", role, time.Now())}, nil
		},
	}

	w := doJSON(adminRouter(store, &fakeMailer{}), http.MethodPut, "/api/admin/users/"+id+"/role", `{"role":"admin"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	resp := decodeDirectory(t, w)
	if calls != 1 || resp.Users[0].Role != profile.RoleAdmin || resp.Stats.AdminUsers != 1 {
		t.Fatalf("expected re-fetched list with the new role, calls=%d resp=%+v", calls, resp)
	}
}

func TestAdminChangeRole_ForbiddenIsVerbatim(t *testing.T) {
	store := &fakeAdminStore{
		setRoleFn: func(ctx context.Context, id, role string) error { return account.ErrAdminRequired },
	}

	w := doJSON(adminRouter(store, &fakeMailer{}), http.MethodPut, "/api/admin/users/"+uuid.NewString()+"/role", `{"role":"admin"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if got := decodeEnvelope(t, w); got.Message != "Admin access required" {
		t.Fatalf("message = %q", got.Message)
	}
}

func TestAdminDelete_RequiresBothConfirmations(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "no body", body: "", wantCode: "confirmation_required"},
		{name: "not confirmed", body: `{"confirmed":false,"typed":"DELETE"}`, wantCode: "confirmation_required"},
		{name: "wrong word", body: `{"confirmed":true,"typed":"delete"}`, wantCode: "deletion_cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeAdminStore{
				deleteFn: func(ctx context.Context, id string) error {
					t.Fatalf("store must not be called")
					return nil
				},
			}

			w := doJSON(adminRouter(store, &fakeMailer{}), http.MethodDelete, "/api/admin/users/"+uuid.NewString(), tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
			}
			if got := decodeEnvelope(t, w); got.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestAdminDelete_Confirmed(t *testing.T) {
	id := uuid.NewString()
	deleted := false

	store := &fakeAdminStore{
		deleteFn: func(ctx context.Context, got string) error {
			deleted = got == id
			return nil
		},
	}

	w := doJSON(adminRouter(store, &fakeMailer{}), http.MethodDelete, "/api/admin/users/"+id, `{"confirmed":true,"typed":"DELETE"}`)
	if w.Code != http.StatusOK || !deleted {
		t.Fatalf("status = %d deleted=%v body=%s", w.Code, deleted, w.Body.String())
	}
}

func TestAdminRejectsMalformedIDs(t *testing.T) {
	w := doJSON(adminRouter(&fakeAdminStore{}, &fakeMailer{}), http.MethodPost, "/api/admin/users/not-a-uuid/password-reset", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdminInviteAndReset_GoThroughMailer(t *testing.T) {
	var invited, reset string
	mailer := &fakeMailer{
		inviteFn: func(ctx context.Context, email string) error { invited = email; return nil },
		resetFn:  func(ctx context.Context, userID string) error { reset = userID; return nil },
	}
	r := adminRouter(&fakeAdminStore{}, mailer)

	if w := doJSON(r, http.MethodPost, "/api/admin/invitations", `{"email":"new@example.com"}`); w.Code != http.StatusAccepted {
		t.Fatalf("invite status = %d body=%s", w.Code, w.Body.String())
	}

	id := uuid.NewString()
	if w := doJSON(r, http.MethodPost, "/api/admin/users/"+id+"/password-reset", ""); w.Code != http.StatusAccepted {
		t.Fatalf("reset status = %d body=%s", w.Code, w.Body.String())
	}

	if invited != "new@example.com" || reset != id {
		t.Fatalf("mailer got invite=%q reset=%q", invited, reset)
	}
}

func TestAdminInvite_NonAdminNeverMails(t *testing.T) {
	mailer := &fakeMailer{
		inviteFn: func(ctx context.Context, email string) error {
			t.Fatalf("mailer must not be called")
			return nil
		},
	}
	store := &fakeAdminStore{
		requireAdminFn: func(ctx context.Context) error { return account.ErrAdminRequired },
	}

	w := doJSON(adminRouter(store, mailer), http.MethodPost, "/api/admin/invitations", `{"email":"x@example.com"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdminListUsers_ETagTracksProfileChanges(t *testing.T) {
	created := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	p := named(uuid.NewString(), "Grace", profile.RoleUser, created)

	r := adminRouter(&fakeAdminStore{
		listFn: func(ctx context.Context) ([]profile.Profile, error) { return []profile.Profile{p}, nil },
	}, &fakeMailer{})

	first := doJSON(r, http.MethodGet, "/api/admin/users", "").Header().Get("ETag")
	if again := doJSON(r, http.MethodGet, "/api/admin/users", "").Header().Get("ETag"); again != first {
		t.Fatalf("unchanged directory changed tag: %s vs %s", first, again)
	}

	p.Role = profile.RoleAdmin
	p.UpdatedAt = created.Add(time.Minute)

	promoted := doJSON(r, http.MethodGet, "/api/admin/users", "").Header().Get("ETag")
	if promoted == first {
		t.Fatal("role change kept the same tag")
	}

	// the old tag, weak or strong form, no longer short-circuits
	for _, h := range []string{first, strings.TrimPrefix(first, "W/")} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		req.Header.Set("If-None-Match", h)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("If-None-Match %s: status = %d, want 200", h, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("If-None-Match", `"other", `+strings.TrimPrefix(promoted, "W/"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("status = %d body=%q, want empty 304", w.Code, w.Body.String())
	}
}

func TestAdminListUsers_TimeZone(t *testing.T) {
	r := adminRouter(&fakeAdminStore{}, &fakeMailer{})

	if w := doJSON(r, http.MethodGet, "/api/admin/users?tz=UTC", ""); w.Code != http.StatusOK {
		t.Fatalf("tz=UTC: status = %d body=%s", w.Code, w.Body.String())
	}

	w := doJSON(r, http.MethodGet, "/api/admin/users?tz=Not/AZone", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad tz: status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid time zone") {
		t.Fatalf("body = %s", w.Body.String())
	}
}
