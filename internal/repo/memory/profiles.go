package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/profile"
)

var errProfileExists = errors.New("profile already exists")

type ProfilesRepo struct {
	mu    sync.RWMutex
	items map[string]profile.Profile
	now   func() time.Time
}

func NewProfilesRepo() *ProfilesRepo {
	return &ProfilesRepo{
		items: make(map[string]profile.Profile),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// bump returns a timestamp strictly after prev.
func (r *ProfilesRepo) bump(prev time.Time) time.Time {
	now := r.now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func (r *ProfilesRepo) GetByID(_ context.Context, id string) (profile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}

	return p, nil
}

func (r *ProfilesRepo) ListByCreatedDesc(_ context.Context) ([]profile.Profile, error) {
	r.mu.RLock()
	out := make([]profile.Profile, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

// isAdminLocked must be called with r.mu held.
func (r *ProfilesRepo) isAdminLocked(actorID string) bool {
	p, ok := r.items[actorID]
	return ok && p.IsAdmin()
}

func (r *ProfilesRepo) SetRole(_ context.Context, actorID, id string, role profile.Role) error {
	if !role.IsValid() {
		return profile.ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isAdminLocked(actorID) {
		return profile.ErrForbidden
	}

	p, ok := r.items[id]
	if !ok {
		return nil
	}

	p.Role = role
	p.UpdatedAt = r.bump(p.UpdatedAt)
	r.items[id] = p

	return nil
}

func (r *ProfilesRepo) Delete(_ context.Context, actorID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isAdminLocked(actorID) {
		return profile.ErrForbidden
	}

	delete(r.items, id)
	return nil
}

func (r *ProfilesRepo) UpsertSelf(_ context.Context, id string, f profile.SelfFields) (profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		now := r.now()
		p = profile.Profile{ID: id, Role: profile.RoleUser, CreatedAt: now, UpdatedAt: now}
	} else {
		p.UpdatedAt = r.bump(p.UpdatedAt)
	}

	p.FullName = profile.NullIfEmpty(f.FullName)
	p.Phone = profile.NullIfEmpty(f.Phone)
	p.Bio = profile.NullIfEmpty(f.Bio)
	r.items[id] = p

	return p, nil
}

// Put stores p as-is. Used for seeding.
func (r *ProfilesRepo) Put(p profile.Profile) {
	r.mu.Lock()
	r.items[p.ID] = p
	r.mu.Unlock()
}

func (r *ProfilesRepo) insert(p profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[p.ID]; ok {
		return errProfileExists
	}

	r.items[p.ID] = p
	return nil
}
