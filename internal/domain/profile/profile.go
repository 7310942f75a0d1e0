package profile

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrNotFound    = errors.New("profile not found")
	ErrForbidden   = errors.New("actor is not an admin")
	ErrInvalidRole = errors.New("role must be one of: user, admin")
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))

	if !r.IsValid() {
		return "", ErrInvalidRole
	}

	return r, nil
}

// Profile is one row per authenticated identity. ID is the identity id.
type Profile struct {
	ID        string    `json:"id"`
	FullName  *string   `json:"fullName"`
	Phone     *string   `json:"phone"`
	Bio       *string   `json:"bio"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// SelfFields are the attributes a profile owner may change.
type SelfFields struct {
	FullName string
	Phone    string
	Bio      string
}

type UpdateSelfRequest struct {
	FullName string `json:"fullName" binding:"omitempty,max=120"`
	Phone    string `json:"phone" binding:"omitempty,max=32"`
	Bio      string `json:"bio" binding:"omitempty,max=1000"`
}

func (r UpdateSelfRequest) Fields() SelfFields {
	return SelfFields{
		FullName: strings.TrimSpace(r.FullName),
		Phone:    strings.TrimSpace(r.Phone),
		Bio:      strings.TrimSpace(r.Bio),
	}
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}

// New builds the profile created alongside a fresh identity.
func New(id, fullName string, role Role, now time.Time) Profile {
	return Profile{
		ID:        id,
		FullName:  NullIfEmpty(fullName),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
