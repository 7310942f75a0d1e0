package db

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/security"
	"github.com/google/uuid"
)

type IdentitySeeder interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	CreateWithProfile(ctx context.Context, u user.User, p profile.Profile) error
}

// EnsureAdminUser creates the bootstrap admin identity and its admin profile when
// ADMIN_EMAIL/ADMIN_PASSWORD are set and the email is unknown.
func EnsureAdminUser(ctx context.Context, store IdentitySeeder, cfg config.Config) (created bool, err error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	email := user.NormalizeEmail(cfg.AdminEmail)

	_, err = store.GetByEmail(ctx, email)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrUserNotFound) {
		return false, err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	u := user.User{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     hash,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = store.CreateWithProfile(ctx, u, profile.New(u.ID, cfg.AdminName, profile.RoleAdmin, now))
	if err != nil {
		return false, err
	}

	return true, nil
}
