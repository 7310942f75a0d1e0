package account

import (
	"context"
	"errors"
	"testing"

	"github.com/geocoder89/profilehub/internal/domain/profile"
)

type profileSourceFunc func(ctx context.Context) (profile.Profile, error)

func (f profileSourceFunc) CurrentProfile(ctx context.Context) (profile.Profile, error) {
	return f(ctx)
}

func returning(p profile.Profile, err error) ProfileSource {
	return profileSourceFunc(func(context.Context) (profile.Profile, error) { return p, err })
}

func TestGuard_Check(t *testing.T) {
	admin := profile.RoleAdmin
	userProfile := profile.Profile{ID: "u1", Role: profile.RoleUser}
	adminProfile := profile.Profile{ID: "a1", Role: profile.RoleAdmin}

	tests := []struct {
		name         string
		guard        Guard
		src          ProfileSource
		wantState    GuardState
		wantRedirect string
	}{
		{
			name:      "any profile granted without role",
			guard:     Guard{},
			src:       returning(userProfile, nil),
			wantState: GuardGranted,
		},
		{
			name:         "user denied admin screen",
			guard:        Guard{RequiredRole: &admin, FallbackPath: "/dashboard"},
			src:          returning(userProfile, nil),
			wantState:    GuardDenied,
			wantRedirect: "/dashboard",
		},
		{
			name:         "default fallback is root",
			guard:        RequireRole(profile.RoleAdmin),
			src:          returning(userProfile, nil),
			wantState:    GuardDenied,
			wantRedirect: "/",
		},
		{
			name:      "admin granted",
			guard:     RequireRole(profile.RoleAdmin),
			src:       returning(adminProfile, nil),
			wantState: GuardGranted,
		},
		{
			name:         "no session goes to root",
			guard:        Guard{RequiredRole: &admin, FallbackPath: "/dashboard"},
			src:          returning(profile.Profile{}, ErrNotAuthenticated),
			wantState:    GuardDenied,
			wantRedirect: "/",
		},
		{
			name:         "missing profile goes to root",
			guard:        Guard{FallbackPath: "/dashboard"},
			src:          returning(profile.Profile{}, ErrProfileNotFound),
			wantState:    GuardDenied,
			wantRedirect: "/",
		},
		{
			name:         "lookup failure goes to fallback",
			guard:        Guard{FallbackPath: "/oops"},
			src:          returning(profile.Profile{}, &TransportError{Op: "profiles.get", Err: errors.New("down")}),
			wantState:    GuardDenied,
			wantRedirect: "/oops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.guard.Check(context.Background(), tt.src)

			if d.State != tt.wantState {
				t.Fatalf("state = %s, want %s", d.State, tt.wantState)
			}
			if d.Redirect != tt.wantRedirect {
				t.Fatalf("redirect = %q, want %q", d.Redirect, tt.wantRedirect)
			}
			if d.State == GuardDenied && d.Profile.ID != "" {
				t.Fatal("denied decision leaked the profile")
			}
		})
	}
}
