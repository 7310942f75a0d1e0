package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already in use")

	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrRefreshRevoked  = errors.New("refresh token revoked")
	ErrRefreshExpired  = errors.New("refresh token expired")
	ErrRefreshMismatch = errors.New("refresh token does not match")
)

// User is an authentication identity. Its ID doubles as the profile id.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"` // never expose hash in JSON
	PendingEmail     *string    `json:"-"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (u User) EmailVerified() bool {
	return u.EmailConfirmedAt != nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

// CheckRotatable reports whether old may be exchanged for a new refresh token
// presented with presentedHash by userID.
func CheckRotatable(old RefreshToken, presentedHash, userID string, now time.Time) error {
	if old.RevokedAt != nil {
		return ErrRefreshRevoked
	}

	if now.After(old.ExpiresAt) {
		return ErrRefreshExpired
	}

	// verify hash matches the presented token (prevents token substitution)
	if old.TokenHash != presentedHash || old.UserID != userID {
		return ErrRefreshMismatch
	}

	return nil
}
