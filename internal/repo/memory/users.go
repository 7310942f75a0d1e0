package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/domain/user"
)

// UsersRepo is the in-memory identity store. It shares a ProfilesRepo so that
// CreateWithProfile writes both rows like the postgres transaction does.
type UsersRepo struct {
	mu       sync.RWMutex
	items    map[string]user.User
	profiles *ProfilesRepo
}

func NewUsersRepo(profiles *ProfilesRepo) *UsersRepo {
	return &UsersRepo{
		items:    make(map[string]user.User),
		profiles: profiles,
	}
}

// emailOwnerLocked must be called with r.mu held.
func (r *UsersRepo) emailOwnerLocked(email string) (user.User, bool) {
	for _, u := range r.items {
		if u.Email == email {
			return u, true
		}
	}
	return user.User{}, false
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.emailOwnerLocked(user.NormalizeEmail(email))
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

func (r *UsersRepo) CreateWithProfile(_ context.Context, u user.User, p profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u.Email = user.NormalizeEmail(u.Email)

	if _, taken := r.emailOwnerLocked(u.Email); taken {
		return user.ErrEmailTaken
	}

	if _, ok := r.items[u.ID]; ok {
		return user.ErrEmailTaken
	}

	if err := r.profiles.insert(p); err != nil {
		return err
	}

	r.items[u.ID] = u
	return nil
}

func (r *UsersRepo) update(id string, fn func(u *user.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrUserNotFound
	}

	if err := fn(&u); err != nil {
		return err
	}

	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u
	return nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return r.update(id, func(u *user.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (r *UsersRepo) SetPendingEmail(_ context.Context, id, email string) error {
	return r.update(id, func(u *user.User) error {
		e := user.NormalizeEmail(email)
		u.PendingEmail = &e
		return nil
	})
}

func (r *UsersRepo) ConfirmEmail(_ context.Context, id, email string, at time.Time) error {
	email = user.NormalizeEmail(email)

	return r.update(id, func(u *user.User) error {
		if owner, taken := r.emailOwnerLocked(email); taken && owner.ID != id {
			return user.ErrEmailTaken
		}

		u.Email = email
		u.PendingEmail = nil
		u.EmailConfirmedAt = &at
		return nil
	})
}
