package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/job"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/domain/user"
)

func TestUsersRepo_CreateWithProfile(t *testing.T) {
	ctx := context.Background()
	profiles := NewProfilesRepo()
	users := NewUsersRepo(profiles)

	now := time.Now().UTC()
	u := user.User{ID: "u1", Email: " Ada@Example.com ", PasswordHash: "h", CreatedAt: now, UpdatedAt: now}

	if err := users.CreateWithProfile(ctx, u, profile.New("u1", "Ada", profile.RoleUser, now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := users.GetByEmail(ctx, "ada@example.com")
	if err != nil || got.ID != "u1" {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}

	if _, err := profiles.GetByID(ctx, "u1"); err != nil {
		t.Fatalf("profile not created: %v", err)
	}

	dup := user.User{ID: "u2", Email: "ADA@example.com"}
	err = users.CreateWithProfile(ctx, dup, profile.New("u2", "", profile.RoleUser, now))
	if !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("dup err = %v", err)
	}
	if _, err := profiles.GetByID(ctx, "u2"); !errors.Is(err, profile.ErrNotFound) {
		t.Fatal("profile written for rejected identity")
	}
}

func TestUsersRepo_ConfirmEmail(t *testing.T) {
	ctx := context.Background()
	users := NewUsersRepo(NewProfilesRepo())
	now := time.Now().UTC()

	_ = users.CreateWithProfile(ctx, user.User{ID: "a", Email: "a@x.io"}, profile.New("a", "", profile.RoleUser, now))
	_ = users.CreateWithProfile(ctx, user.User{ID: "b", Email: "b@x.io"}, profile.New("b", "", profile.RoleUser, now))

	if err := users.SetPendingEmail(ctx, "a", "new@x.io"); err != nil {
		t.Fatalf("pending: %v", err)
	}

	if err := users.ConfirmEmail(ctx, "a", "b@x.io", now); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}

	if err := users.ConfirmEmail(ctx, "a", "new@x.io", now); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, _ := users.GetByID(ctx, "a")
	if got.Email != "new@x.io" || got.PendingEmail != nil || !got.EmailVerified() {
		t.Fatalf("unexpected user %+v", got)
	}

	if err := users.UpdatePassword(ctx, "missing", "x"); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefreshTokensRepo_Rotate(t *testing.T) {
	ctx := context.Background()
	r := NewRefreshTokensRepo()
	exp := time.Now().Add(time.Hour)

	_ = r.Create(ctx, user.RefreshToken{ID: "t1", UserID: "u1", TokenHash: "h1", ExpiresAt: exp})

	next := user.RefreshToken{ID: "t2", UserID: "u1", TokenHash: "h2", ExpiresAt: exp}

	if _, err := r.Rotate(ctx, "t1", "wrong", next); !errors.Is(err, user.ErrRefreshMismatch) {
		t.Fatalf("err = %v, want mismatch", err)
	}

	if _, err := r.Rotate(ctx, "t1", "h1", next); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	// replaying the old token must fail
	if _, err := r.Rotate(ctx, "t1", "h1", next); !errors.Is(err, user.ErrRefreshRevoked) {
		t.Fatalf("replay err = %v, want revoked", err)
	}

	if _, err := r.Rotate(ctx, "nope", "h", next); !errors.Is(err, user.ErrRefreshNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	_ = r.RevokeAllForUser(ctx, "u1")
	next3 := user.RefreshToken{ID: "t3", UserID: "u1", TokenHash: "h3", ExpiresAt: exp}
	if _, err := r.Rotate(ctx, "t2", "h2", next3); !errors.Is(err, user.ErrRefreshRevoked) {
		t.Fatalf("err = %v, want revoked after revoke-all", err)
	}
}

func TestRefreshTokensRepo_RotateExpired(t *testing.T) {
	ctx := context.Background()
	r := NewRefreshTokensRepo()

	_ = r.Create(ctx, user.RefreshToken{ID: "t1", UserID: "u1", TokenHash: "h1", ExpiresAt: time.Now().Add(-time.Minute)})

	_, err := r.Rotate(ctx, "t1", "h1", user.RefreshToken{ID: "t2", UserID: "u1"})
	if !errors.Is(err, user.ErrRefreshExpired) {
		t.Fatalf("err = %v, want expired", err)
	}
}

func TestJobsRepo_ClaimIsAttemptOnce(t *testing.T) {
	ctx := context.Background()
	r := NewJobsRepo()

	j, _ := r.Create(ctx, job.CreateRequest{Type: "send_invitation", Payload: []byte(`{}`)})
	if j.MaxAttempts != 1 {
		t.Fatalf("max attempts = %d", j.MaxAttempts)
	}

	claimed, err := r.ClaimNext(ctx, "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.ID != j.ID || claimed.Status != job.StatusProcessing || claimed.Attempts != 1 {
		t.Fatalf("unexpected claim %+v", claimed)
	}

	if _, err := r.ClaimNext(ctx, "w2"); !errors.Is(err, job.ErrJobNotFound) {
		t.Fatalf("second claim err = %v", err)
	}

	if err := r.MarkFailed(ctx, j.ID, "smtp down"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// failed jobs are never picked up again
	if _, err := r.ClaimNext(ctx, "w1"); !errors.Is(err, job.ErrJobNotFound) {
		t.Fatalf("claim after failure err = %v", err)
	}

	got, _ := r.GetByID(ctx, j.ID)
	if got.Status != job.StatusFailed || got.LastError == nil || *got.LastError != "smtp down" {
		t.Fatalf("unexpected job %+v", got)
	}
}

func TestJobsRepo_ListCursor(t *testing.T) {
	ctx := context.Background()
	r := NewJobsRepo()

	for i := 0; i < 5; i++ {
		_, _ = r.Create(ctx, job.CreateRequest{Type: "send_invitation"})
	}

	page1, cur, more, err := r.ListCursor(ctx, nil, 2, time.Time{}, "")
	if err != nil || len(page1) != 2 || !more || cur == nil {
		t.Fatalf("page1 = %d items, more=%v, cur=%v, err=%v", len(page1), more, cur, err)
	}

	seen := map[string]bool{page1[0].ID: true, page1[1].ID: true}
	last := page1[1]

	rest, _, more, err := r.ListCursor(ctx, nil, 10, last.UpdatedAt, last.ID)
	if err != nil || more || len(rest) != 3 {
		t.Fatalf("rest = %d items, more=%v, err=%v", len(rest), more, err)
	}
	for _, j := range rest {
		if seen[j.ID] {
			t.Fatalf("job %s returned twice", j.ID)
		}
	}

	failed := string(job.StatusFailed)
	none, _, _, _ := r.ListCursor(ctx, &failed, 10, time.Time{}, "")
	if len(none) != 0 {
		t.Fatalf("status filter returned %d", len(none))
	}
}
