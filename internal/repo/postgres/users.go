package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, pending_email, email_confirmed_at, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *UsersRepo) getOne(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB(op, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE `+where, arg,
		).Scan(
			&u.ID,
			&u.Email,
			&u.PasswordHash,
			&u.PendingEmail,
			&u.EmailConfirmedAt,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", "email = $1", user.NormalizeEmail(email))
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", "id = $1", id)
}

// CreateWithProfile inserts the identity and its profile in one transaction.
func (r *UsersRepo) CreateWithProfile(ctx context.Context, u user.User, p profile.Profile) error {
	return r.prom.ObserveDB("users.create_with_profile", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		_, err = tx.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, pending_email, email_confirmed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			u.ID, user.NormalizeEmail(u.Email), u.PasswordHash, u.PendingEmail, u.EmailConfirmedAt, u.CreatedAt, u.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return user.ErrEmailTaken
			}
			return err
		}

		if err := insertProfile(ctx, tx, p); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

func (r *UsersRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, sql, args...)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, "users.update_password", `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`, id, passwordHash)
}

func (r *UsersRepo) SetPendingEmail(ctx context.Context, id, email string) error {
	return r.exec(ctx, "users.set_pending_email", `
		UPDATE users
		SET pending_email = $2, updated_at = NOW()
		WHERE id = $1`, id, user.NormalizeEmail(email))
}

// ConfirmEmail makes email the confirmed address of id and clears any pending change.
func (r *UsersRepo) ConfirmEmail(ctx context.Context, id, email string, at time.Time) error {
	return r.exec(ctx, "users.confirm_email", `
		UPDATE users
		SET email = $2,
		    pending_email = NULL,
		    email_confirmed_at = $3,
		    updated_at = NOW()
		WHERE id = $1`, id, user.NormalizeEmail(email), at)
}
