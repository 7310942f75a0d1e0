package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/auth"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/db"
	apphttp "github.com/geocoder89/profilehub/internal/http"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/jobs"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/geocoder89/profilehub/internal/repo/memory"
	"github.com/geocoder89/profilehub/internal/repo/postgres"
	"github.com/geocoder89/profilehub/internal/session"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-secret"
)

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		StoreDriver:         config.StoreDriverMemory,
		AdminEmail:          adminEmail,
		AdminPassword:       adminPassword,
		AdminName:           "Test Admin",
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLDays:   7,
		ActionTokenTTLHours: 24,
		AppBaseURL:          "http://app.test",
	}
}

// stores is the set of repositories one app instance runs on.
type stores struct {
	profiles account.ProfileStore
	users    interface {
		session.UserStore
		db.IdentitySeeder
	}
	refresh session.RefreshStore
	jobs    interface {
		jobs.Creator
		handlers.AdminJobsRepo
	}
}

type app struct {
	router   *gin.Engine
	registry *prometheus.Registry
}

func newApp(t *testing.T, s stores) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	if _, err := db.EnsureAdminUser(context.Background(), s.users, cfg); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), cfg.ActionTokenTTL())

	sessions := session.NewProvider(session.Deps{
		Users:   s.users,
		Refresh: s.refresh,
		Jobs:    s.jobs,
		JWT:     jwtManager,
		Bus:     session.NewLocalBus(),
		Log:     logger,
		Prom:    prom,
		BaseURL: cfg.AppBaseURL,
	})

	router := apphttp.NewRouter(apphttp.Deps{
		Log:      logger,
		Cfg:      cfg,
		JWT:      jwtManager,
		Accounts: account.NewService(s.profiles, logger, prom),
		Sessions: sessions,
		MailJobs: s.jobs,
		Prom:     prom,
		Gatherer: reg,
	})

	return &app{router: router, registry: reg}
}

func memoryStores() stores {
	profiles := memory.NewProfilesRepo()
	return stores{
		profiles: profiles,
		users:    memory.NewUsersRepo(profiles),
		refresh:  memory.NewRefreshTokensRepo(),
		jobs:     memory.NewJobsRepo(),
	}
}

// postgresStores needs TEST_DB_DSN; the test is skipped without it.
func postgresStores(t *testing.T) stores {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	cfg := testConfig()
	cfg.DBURL = dsn

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	resetDB(t, pool)
	t.Cleanup(func() { resetDB(t, pool) })

	return stores{
		profiles: postgres.NewProfilesRepo(pool, nil),
		users:    postgres.NewUsersRepo(pool, nil),
		refresh:  postgres.NewRefreshTokensRepo(pool, nil),
		jobs:     postgres.NewJobsRepo(pool, nil),
	}
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `TRUNCATE jobs, refresh_tokens, profiles, users`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// helpers

type request struct {
	method  string
	path    string
	body    string
	token   string
	cookies []*http.Cookie
}

func (a *app) do(r request) *httptest.ResponseRecorder {
	var body io.Reader
	if r.body != "" {
		body = bytes.NewBufferString(r.body)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}

	t.Fatalf("refresh_token cookie not found in response")
	return nil
}

type tokenResponse struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
}

type signedIn struct {
	userID string
	access string
	cookie *http.Cookie
}

func (a *app) login(t *testing.T, email, password string) signedIn {
	t.Helper()

	w := a.do(request{method: http.MethodPost, path: "/auth/login", body: `{"email":"` + email + `","password":"` + password + `"}`})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", email, w.Code, w.Body.String())
	}

	var tok tokenResponse
	mustReadJSON(t, w, &tok)
	return signedIn{userID: tok.UserID, access: tok.AccessToken, cookie: refreshCookie(t, w)}
}

func (a *app) signUp(t *testing.T, email, password, name string) signedIn {
	t.Helper()

	body := `{"email":"` + email + `","password":"` + password + `","fullName":"` + name + `"}`
	w := a.do(request{method: http.MethodPost, path: "/auth/signup", body: body})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body=%s", email, w.Code, w.Body.String())
	}

	var tok tokenResponse
	mustReadJSON(t, w, &tok)
	return signedIn{userID: tok.UserID, access: tok.AccessToken, cookie: refreshCookie(t, w)}
}

func expectRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302, body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("redirect must not carry protected content: %s", w.Body.String())
	}
}
