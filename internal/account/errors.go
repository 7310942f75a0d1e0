package account

import (
	"errors"
	"fmt"

	"github.com/geocoder89/profilehub/internal/actorctx"
)

var (
	// ErrNotAuthenticated: the request carries no session.
	ErrNotAuthenticated = actorctx.ErrNoSession
	// ErrProfileNotFound: a session exists but its profile row does not.
	ErrProfileNotFound = errors.New("profile not found")
	ErrAdminRequired   = errors.New("Admin access required")

	ErrDeletionNotConfirmed = errors.New("deletion must be confirmed")
	ErrDeletionCancelled    = errors.New("Account deletion cancelled.")
)

// TransportError wraps a failure of the backing store or session provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError is raised before any store call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsNoProfile reports the two outcomes the guard treats as "nobody here".
func IsNoProfile(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrProfileNotFound)
}
