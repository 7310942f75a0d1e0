package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
)

type RefreshTokensRepo struct {
	mu    sync.Mutex
	items map[string]user.RefreshToken
}

func NewRefreshTokensRepo() *RefreshTokensRepo {
	return &RefreshTokensRepo{items: make(map[string]user.RefreshToken)}
}

func (r *RefreshTokensRepo) Create(_ context.Context, row user.RefreshToken) error {
	r.mu.Lock()
	r.items[row.ID] = row
	r.mu.Unlock()
	return nil
}

func (r *RefreshTokensRepo) Rotate(_ context.Context, oldID, presentedHash string, next user.RefreshToken) (user.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.items[oldID]
	if !ok {
		return user.RefreshToken{}, user.ErrRefreshNotFound
	}

	now := time.Now().UTC()

	if err := user.CheckRotatable(old, presentedHash, next.UserID, now); err != nil {
		return old, err
	}

	nextID := next.ID
	revoked := old
	revoked.RevokedAt = &now
	revoked.ReplacedBy = &nextID

	r.items[oldID] = revoked
	r.items[next.ID] = next

	return old, nil
}

func (r *RefreshTokensRepo) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.items[id]
	if !ok || row.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	row.RevokedAt = &now
	r.items[id] = row
	return nil
}

func (r *RefreshTokensRepo) RevokeAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for id, row := range r.items {
		if row.UserID == userID && row.RevokedAt == nil {
			row.RevokedAt = &now
			r.items[id] = row
		}
	}
	return nil
}
