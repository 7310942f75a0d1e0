package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefreshTokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool, prom: prom}
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row user.RefreshToken) error {
	return r.prom.ObserveDB("refresh_tokens.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.ReplacedBy, row.CreatedAt,
		)
		return err
	})
}

// Rotate revokes oldID in favour of next. The old row is locked for the duration so two
// concurrent refreshes with the same token cannot both succeed.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID, presentedHash string, next user.RefreshToken) (user.RefreshToken, error) {
	var old user.RefreshToken

	err := r.prom.ObserveDB("refresh_tokens.rotate", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		old, err = getForUpdate(ctx, tx, oldID)
		if err != nil {
			return err
		}

		if err := user.CheckRotatable(old, presentedHash, next.UserID, time.Now().UTC()); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW(), replaced_by = $2
			WHERE id = $1`, old.ID, next.ID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5)`,
			next.ID, next.UserID, next.TokenHash, next.ExpiresAt, next.CreatedAt,
		)
		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	return old, err
}

// Locks the row to prevent concurrent refresh races
func getForUpdate(ctx context.Context, tx pgx.Tx, id string) (user.RefreshToken, error) {
	var row user.RefreshToken

	err := tx.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&row.ID,
		&row.UserID,
		&row.TokenHash,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.ReplacedBy,
		&row.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.RefreshToken{}, user.ErrRefreshNotFound
		}

		return user.RefreshToken{}, err
	}

	return row, nil
}

// Revoke is idempotent: an unknown or already revoked id is not an error.
func (r *RefreshTokensRepo) Revoke(ctx context.Context, id string) error {
	return r.prom.ObserveDB("refresh_tokens.revoke", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE id = $1 AND revoked_at IS NULL
		`, id)
		return err
	})
}

func (r *RefreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	return r.prom.ObserveDB("refresh_tokens.revoke_all", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE user_id = $1 AND revoked_at IS NULL
		`, userID)
		return err
	})
}
