package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrPasswordMismatch = errors.New("New passwords do not match")
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters long")
)

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// CheckNewPassword applies the password policy to a new password and its confirmation.
// Mismatch is reported before length.
func CheckNewPassword(plain, confirm string) error {
	if plain != confirm {
		return ErrPasswordMismatch
	}

	if len(plain) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	return nil
}
