package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/profilehub/internal/actorctx"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/observability"
)

// ProfileStore is the persistence the service needs. SetRole and Delete must enforce the
// actor's admin role inside the same write and return profile.ErrForbidden otherwise.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (profile.Profile, error)
	ListByCreatedDesc(ctx context.Context) ([]profile.Profile, error)
	SetRole(ctx context.Context, actorID, id string, role profile.Role) error
	Delete(ctx context.Context, actorID, id string) error
	UpsertSelf(ctx context.Context, id string, f profile.SelfFields) (profile.Profile, error)
}

// Service is the profile repository client plus the authorization helper. The caller's
// identity always comes from the session on ctx.
type Service struct {
	store ProfileStore
	log   *slog.Logger
	prom  *observability.Prom
}

func NewService(store ProfileStore, log *slog.Logger, prom *observability.Prom) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log, prom: prom}
}

func (s *Service) transport(ctx context.Context, op string, err error) error {
	s.log.ErrorContext(ctx, "profile store failure", "op", op, "err", err)
	return &TransportError{Op: op, Err: err}
}

// CurrentProfile returns the profile of the session on ctx, ErrNotAuthenticated,
// ErrProfileNotFound or a *TransportError.
func (s *Service) CurrentProfile(ctx context.Context) (profile.Profile, error) {
	uid, ok := actorctx.UserIDFrom(ctx)
	if !ok {
		return profile.Profile{}, ErrNotAuthenticated
	}

	p, err := s.store.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return profile.Profile{}, ErrProfileNotFound
		}
		return profile.Profile{}, s.transport(ctx, "profiles.get", err)
	}

	return p, nil
}

// IsAdmin is false on any failure to resolve the current profile.
func (s *Service) IsAdmin(ctx context.Context) bool {
	p, err := s.CurrentProfile(ctx)
	if err != nil {
		return false
	}
	return p.IsAdmin()
}

func (s *Service) RequireAdmin(ctx context.Context) error {
	if !s.IsAdmin(ctx) {
		s.prom.IncAuthzDenial("service")
		return ErrAdminRequired
	}
	return nil
}

// ListAllProfiles returns every profile, newest first.
func (s *Service) ListAllProfiles(ctx context.Context) ([]profile.Profile, error) {
	if err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	list, err := s.store.ListByCreatedDesc(ctx)
	if err != nil {
		return nil, s.transport(ctx, "profiles.list", err)
	}

	return list, nil
}

// SetRole changes the role of id. An unknown id succeeds without effect.
func (s *Service) SetRole(ctx context.Context, id string, role string) error {
	if err := s.RequireAdmin(ctx); err != nil {
		return err
	}

	r, err := profile.ParseRole(role)
	if err != nil {
		return &ValidationError{Field: "role", Message: err.Error()}
	}

	return s.adminWrite(ctx, "profiles.set_role", func(actorID string) error {
		return s.store.SetRole(ctx, actorID, id, r)
	})
}

// DeleteProfile removes the profile row of id. The identity is kept.
func (s *Service) DeleteProfile(ctx context.Context, id string) error {
	if err := s.RequireAdmin(ctx); err != nil {
		return err
	}

	return s.adminWrite(ctx, "profiles.delete", func(actorID string) error {
		return s.store.Delete(ctx, actorID, id)
	})
}

func (s *Service) adminWrite(ctx context.Context, op string, fn func(actorID string) error) error {
	actorID, ok := actorctx.UserIDFrom(ctx)
	if !ok {
		return ErrNotAuthenticated
	}

	err := fn(actorID)
	if err == nil {
		return nil
	}

	// the actor lost the admin role between RequireAdmin and the write
	if errors.Is(err, profile.ErrForbidden) {
		s.prom.IncAuthzDenial("store")
		return ErrAdminRequired
	}

	return s.transport(ctx, op, err)
}

// UpsertSelf writes the caller's own self-service fields. Role is never touched.
func (s *Service) UpsertSelf(ctx context.Context, f profile.SelfFields) (profile.Profile, error) {
	uid, ok := actorctx.UserIDFrom(ctx)
	if !ok {
		return profile.Profile{}, ErrNotAuthenticated
	}

	p, err := s.store.UpsertSelf(ctx, uid, f)
	if err != nil {
		return profile.Profile{}, s.transport(ctx, "profiles.upsert_self", err)
	}

	return p, nil
}
