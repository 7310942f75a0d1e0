package actorctx

import (
	"context"
	"errors"
	"time"
)

// ErrNoSession means the request carries no authenticated identity.
var ErrNoSession = errors.New("not authenticated")

type ctxKey string

const keySession ctxKey = "session"

// Session is the identity proven by a verified access token.
type Session struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, keySession, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(keySession).(Session)

	return s, ok && s.UserID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	s, ok := SessionFrom(ctx)

	return s.UserID, ok
}
