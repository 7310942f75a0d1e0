package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `id, full_name, phone, bio, role, created_at, updated_at`

// updated_at must strictly increase on every mutation, even within one clock tick.
const bumpUpdatedAt = `GREATEST(NOW(), profiles.updated_at + INTERVAL '1 microsecond')`

type ProfilesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProfilesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProfilesRepo {
	return &ProfilesRepo{pool: pool, prom: prom}
}

func scanProfile(row pgx.Row) (profile.Profile, error) {
	var p profile.Profile
	var role string

	err := row.Scan(&p.ID, &p.FullName, &p.Phone, &p.Bio, &role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, err
	}

	p.Role = profile.Role(role)
	return p, nil
}

func (r *ProfilesRepo) GetByID(ctx context.Context, id string) (profile.Profile, error) {
	var p profile.Profile

	err := r.prom.ObserveDB("profiles.get_by_id", func() error {
		var err error
		p, err = scanProfile(r.pool.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, err
	}

	return p, nil
}

func (r *ProfilesRepo) ListByCreatedDesc(ctx context.Context) ([]profile.Profile, error) {
	var rows pgx.Rows

	err := r.prom.ObserveDB("profiles.list", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, `
			SELECT `+profileColumns+`
			FROM profiles
			ORDER BY created_at DESC, id DESC`)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]profile.Profile, 0)

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// SetRole changes role for id only if actorID is an admin at the moment the statement runs.
// An unknown id is a no-op.
func (r *ProfilesRepo) SetRole(ctx context.Context, actorID, id string, role profile.Role) error {
	if !role.IsValid() {
		return profile.ErrInvalidRole
	}

	var actorIsAdmin bool
	var updated int64

	err := r.prom.ObserveDB("profiles.set_role", func() error {
		return r.pool.QueryRow(ctx, `
			WITH actor AS (
				SELECT 1 FROM profiles WHERE id = $3 AND role = 'admin'
			),
			upd AS (
				UPDATE profiles
				SET role = $2,
				    updated_at = `+bumpUpdatedAt+`
				WHERE id = $1 AND EXISTS (SELECT 1 FROM actor)
				RETURNING id
			)
			SELECT EXISTS (SELECT 1 FROM actor), (SELECT COUNT(*) FROM upd)`,
			id, string(role), actorID,
		).Scan(&actorIsAdmin, &updated)
	})

	if err != nil {
		return err
	}

	if !actorIsAdmin {
		return profile.ErrForbidden
	}

	return nil
}

// Delete removes the profile row for id, gated on actorID being an admin. The identity row
// in users is left alone.
func (r *ProfilesRepo) Delete(ctx context.Context, actorID, id string) error {
	var actorIsAdmin bool
	var deleted int64

	err := r.prom.ObserveDB("profiles.delete", func() error {
		return r.pool.QueryRow(ctx, `
			WITH actor AS (
				SELECT 1 FROM profiles WHERE id = $2 AND role = 'admin'
			),
			del AS (
				DELETE FROM profiles
				WHERE id = $1 AND EXISTS (SELECT 1 FROM actor)
				RETURNING id
			)
			SELECT EXISTS (SELECT 1 FROM actor), (SELECT COUNT(*) FROM del)`,
			id, actorID,
		).Scan(&actorIsAdmin, &deleted)
	})

	if err != nil {
		return err
	}

	if !actorIsAdmin {
		return profile.ErrForbidden
	}

	return nil
}

// UpsertSelf writes the owner-editable fields. Role is never touched; a new row gets 'user'.
func (r *ProfilesRepo) UpsertSelf(ctx context.Context, id string, f profile.SelfFields) (profile.Profile, error) {
	var p profile.Profile

	err := r.prom.ObserveDB("profiles.upsert_self", func() error {
		var err error
		p, err = scanProfile(r.pool.QueryRow(ctx, `
			INSERT INTO profiles (id, full_name, phone, bio, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'user', NOW(), NOW())
			ON CONFLICT (id) DO UPDATE
			SET full_name = EXCLUDED.full_name,
			    phone = EXCLUDED.phone,
			    bio = EXCLUDED.bio,
			    updated_at = `+bumpUpdatedAt+`
			RETURNING `+profileColumns,
			id,
			profile.NullIfEmpty(f.FullName),
			profile.NullIfEmpty(f.Phone),
			profile.NullIfEmpty(f.Bio),
		))
		return err
	})

	if err != nil {
		return profile.Profile{}, err
	}

	return p, nil
}

func insertProfile(ctx context.Context, tx pgx.Tx, p profile.Profile) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO profiles (id, full_name, phone, bio, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.FullName, p.Phone, p.Bio, string(p.Role), p.CreatedAt, p.UpdatedAt,
	)
	return err
}
