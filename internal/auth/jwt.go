package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the typ claim.
const (
	TypeAccess        = "access"
	TypeRefresh       = "refresh"
	TypeInvite        = "invite"
	TypePasswordReset = "password_reset"
	TypeEmailChange   = "email_change"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidTokenType = errors.New("invalid token type")
)

type Claims struct {
	UserID    string `json:"sub"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	JTI       string `json:"jti"`
	// Fingerprint binds single-use tokens to state that changes once they are used.
	Fingerprint string `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	actionTTL  time.Duration
}

func NewManager(secret string, accessTTL, refreshTTL, actionTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		actionTTL:  actionTTL,
	}
}

func (m *Manager) sign(claims Claims, now, expiresAt time.Time) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Subject:   claims.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) GenerateAccessToken(userID, email string) (string, error) {
	now := time.Now().UTC()

	return m.sign(Claims{
		UserID:    userID,
		Email:     email,
		TokenType: TypeAccess,
		JTI:       uuid.NewString(),
	}, now, now.Add(m.accessTTL))
}

func (m *Manager) GenerateRefreshToken(userID, email string) (raw string, jti string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	jti = uuid.NewString()
	expiresAt = now.Add(m.refreshTTL)

	raw, err = m.sign(Claims{
		UserID:    userID,
		Email:     email,
		TokenType: TypeRefresh,
		JTI:       jti,
	}, now, expiresAt)

	return
}

// GenerateActionToken issues a short-lived token for emailed links
// (invitations, password resets, email confirmation).
func (m *Manager) GenerateActionToken(tokenType, userID, email, fingerprint string) (string, error) {
	switch tokenType {
	case TypeInvite, TypePasswordReset, TypeEmailChange:
	default:
		return "", ErrInvalidTokenType
	}

	now := time.Now().UTC()

	return m.sign(Claims{
		UserID:      userID,
		Email:       email,
		TokenType:   tokenType,
		JTI:         uuid.NewString(),
		Fingerprint: fingerprint,
	}, now, now.Add(m.actionTTL))
}

func (m *Manager) ParseAndValidate(tokenStr string) (claims *Claims, err error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		return
	}
	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		err = ErrInvalidToken
		return
	}
	return
}

func (m *Manager) verify(tokenStr, tokenType string) (*Claims, error) {
	claims, err := m.ParseAndValidate(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, TypeAccess)
}

func (m *Manager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.verify(tokenStr, TypeRefresh)

	if err != nil {
		return nil, err
	}

	if claims.JTI == "" {
		return nil, errors.New("missing jti")
	}

	return claims, nil
}

func (m *Manager) VerifyActionToken(tokenStr, tokenType string) (*Claims, error) {
	return m.verify(tokenStr, tokenType)
}

// Deterministic HMAC hash (server-side pepper = JWT secret bytes).
// Store this in DB (never store raw refresh token).
func (m *Manager) HashRefreshToken(raw string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint is a short keyed digest of some server-side state, e.g. a password hash.
func (m *Manager) Fingerprint(state string) string {
	return m.HashRefreshToken(state)[:16]
}
