package account

import (
	"context"

	"github.com/geocoder89/profilehub/internal/domain/profile"
)

type GuardState int

const (
	GuardChecking GuardState = iota
	GuardGranted
	GuardDenied
)

func (s GuardState) String() string {
	switch s {
	case GuardGranted:
		return "granted"
	case GuardDenied:
		return "denied"
	default:
		return "checking"
	}
}

const DefaultFallbackPath = "/"

// ProfileSource resolves the current profile; *Service satisfies it.
type ProfileSource interface {
	CurrentProfile(ctx context.Context) (profile.Profile, error)
}

// Guard gates a screen on an existing profile and, optionally, a role.
type Guard struct {
	RequiredRole *profile.Role
	FallbackPath string
}

func RequireRole(role profile.Role) Guard {
	return Guard{RequiredRole: &role}
}

type Decision struct {
	State    GuardState
	Redirect string
	Profile  profile.Profile
	// Err is set when the profile lookup itself failed.
	Err error
}

func (g Guard) fallback() string {
	if g.FallbackPath == "" {
		return DefaultFallbackPath
	}
	return g.FallbackPath
}

// Check fetches the current profile once and decides. Without a profile the viewer
// always goes to the root; role mismatches and lookup failures go to the fallback.
func (g Guard) Check(ctx context.Context, src ProfileSource) Decision {
	p, err := src.CurrentProfile(ctx)
	if err != nil {
		if IsNoProfile(err) {
			return Decision{State: GuardDenied, Redirect: DefaultFallbackPath}
		}
		return Decision{State: GuardDenied, Redirect: g.fallback(), Err: err}
	}

	if g.RequiredRole != nil && p.Role != *g.RequiredRole {
		return Decision{State: GuardDenied, Redirect: g.fallback()}
	}

	return Decision{State: GuardGranted, Profile: p}
}
