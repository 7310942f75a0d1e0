package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/actorctx"
	"github.com/geocoder89/profilehub/internal/auth"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/jobs"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/geocoder89/profilehub/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
	ErrRefreshExpired     = user.ErrRefreshExpired
	// ErrInvalidLink covers every bad, expired or already used emailed token.
	ErrInvalidLink = errors.New("invalid or expired link")
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	CreateWithProfile(ctx context.Context, u user.User, p profile.Profile) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetPendingEmail(ctx context.Context, id, email string) error
	ConfirmEmail(ctx context.Context, id, email string, at time.Time) error
}

type RefreshStore interface {
	Create(ctx context.Context, row user.RefreshToken) error
	Rotate(ctx context.Context, oldID, presentedHash string, next user.RefreshToken) (user.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type Deps struct {
	Users   UserStore
	Refresh RefreshStore
	Jobs    jobs.Creator
	JWT     *auth.Manager
	Bus     Bus
	Log     *slog.Logger
	Prom    *observability.Prom
	// BaseURL prefixes links in outgoing emails.
	BaseURL string
}

// Provider owns identities and their sessions: sign-up/in/out, refresh rotation and
// the emailed password, email and invitation flows.
type Provider struct {
	users   UserStore
	refresh RefreshStore
	jobs    jobs.Creator
	jwt     *auth.Manager
	bus     Bus
	log     *slog.Logger
	prom    *observability.Prom
	baseURL string
	now     func() time.Time
}

func NewProvider(d Deps) *Provider {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Bus == nil {
		d.Bus = NewLocalBus()
	}

	return &Provider{
		users:   d.Users,
		refresh: d.Refresh,
		jobs:    d.Jobs,
		jwt:     d.JWT,
		bus:     d.Bus,
		log:     d.Log,
		prom:    d.Prom,
		baseURL: strings.TrimRight(d.BaseURL, "/"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Tokens is an issued session. The refresh token travels in a cookie, never in JSON.
type Tokens struct {
	UserID           string    `json:"userId"`
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
}

func (p *Provider) transport(ctx context.Context, op string, err error) error {
	p.log.ErrorContext(ctx, "session store failure", "op", op, "err", err)
	return &account.TransportError{Op: op, Err: err}
}

func checkPassword(plain, confirm string) error {
	if err := security.CheckNewPassword(plain, confirm); err != nil {
		return &account.ValidationError{Field: "password", Message: err.Error()}
	}
	return nil
}

func checkEmail(email string) (string, error) {
	email = user.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", &account.ValidationError{Field: "email", Message: "A valid email address is required"}
	}
	return email, nil
}

func (p *Provider) publish(ctx context.Context, t EventType, userID string) {
	p.prom.IncSessionEvent(string(t))

	err := p.bus.Publish(ctx, Event{Type: t, UserID: userID, At: p.now()})
	if err != nil {
		p.log.WarnContext(ctx, "publish session event", "type", t, "user_id", userID, "err", err)
	}
}

func (p *Provider) link(path, token string) string {
	return p.baseURL + path + "?token=" + url.QueryEscape(token)
}

func (p *Provider) issue(ctx context.Context, u user.User) (Tokens, error) {
	access, err := p.jwt.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return Tokens{}, err
	}

	raw, jti, expiresAt, err := p.jwt.GenerateRefreshToken(u.ID, u.Email)
	if err != nil {
		return Tokens{}, err
	}

	row := user.RefreshToken{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: p.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: p.now(),
	}

	if err := p.refresh.Create(ctx, row); err != nil {
		return Tokens{}, p.transport(ctx, "refresh_tokens.create", err)
	}

	return Tokens{UserID: u.ID, AccessToken: access, RefreshToken: raw, RefreshExpiresAt: expiresAt}, nil
}

// SignUp creates the identity and its user-role profile together, queues an email
// confirmation and signs the new identity in.
func (p *Provider) SignUp(ctx context.Context, in SignUpInput) (Tokens, error) {
	email, err := checkEmail(in.Email)
	if err != nil {
		return Tokens{}, err
	}
	if err := checkPassword(in.Password, in.ConfirmPassword); err != nil {
		return Tokens{}, err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return Tokens{}, err
	}

	now := p.now()
	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.users.CreateWithProfile(ctx, u, profile.New(u.ID, in.FullName, profile.RoleUser, now)); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return Tokens{}, err
		}
		return Tokens{}, p.transport(ctx, "users.create", err)
	}

	// the account exists either way; a lost confirmation can be re-requested
	if err := p.queueConfirmation(ctx, u, u.Email, false); err != nil {
		p.log.WarnContext(ctx, "queue email confirmation", "user_id", u.ID, "err", err)
	}

	t, err := p.issue(ctx, u)
	if err != nil {
		return Tokens{}, err
	}

	p.publish(ctx, EventSignedIn, u.ID)
	return t, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (Tokens, error) {
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, p.transport(ctx, "users.get_by_email", err)
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		return Tokens{}, ErrInvalidCredentials
	}

	t, err := p.issue(ctx, u)
	if err != nil {
		return Tokens{}, err
	}

	p.publish(ctx, EventSignedIn, u.ID)
	return t, nil
}

// Refresh rotates the presented refresh token. A token can be exchanged once.
func (p *Provider) Refresh(ctx context.Context, raw string) (Tokens, error) {
	claims, err := p.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return Tokens{}, ErrInvalidRefresh
	}

	u, err := p.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Tokens{}, ErrInvalidRefresh
		}
		return Tokens{}, p.transport(ctx, "users.get_by_id", err)
	}

	newRaw, newJTI, newExpiresAt, err := p.jwt.GenerateRefreshToken(u.ID, u.Email)
	if err != nil {
		return Tokens{}, err
	}

	next := user.RefreshToken{
		ID:        newJTI,
		UserID:    u.ID,
		TokenHash: p.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: p.now(),
	}

	if _, err := p.refresh.Rotate(ctx, claims.JTI, p.jwt.HashRefreshToken(raw), next); err != nil {
		switch {
		case errors.Is(err, user.ErrRefreshExpired):
			return Tokens{}, ErrRefreshExpired
		case errors.Is(err, user.ErrRefreshNotFound),
			errors.Is(err, user.ErrRefreshRevoked),
			errors.Is(err, user.ErrRefreshMismatch):
			return Tokens{}, ErrInvalidRefresh
		default:
			return Tokens{}, p.transport(ctx, "refresh_tokens.rotate", err)
		}
	}

	access, err := p.jwt.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return Tokens{}, err
	}

	p.publish(ctx, EventTokenRefreshed, u.ID)

	return Tokens{UserID: u.ID, AccessToken: access, RefreshToken: newRaw, RefreshExpiresAt: newExpiresAt}, nil
}

// SignOut revokes the session behind raw. Unknown or invalid tokens are ignored.
func (p *Provider) SignOut(ctx context.Context, raw string) error {
	claims, err := p.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return nil
	}

	if err := p.refresh.Revoke(ctx, claims.JTI); err != nil {
		return p.transport(ctx, "refresh_tokens.revoke", err)
	}

	p.publish(ctx, EventSignedOut, claims.UserID)
	return nil
}

// SignOutEverywhere revokes every session of the caller.
func (p *Provider) SignOutEverywhere(ctx context.Context) error {
	uid, ok := actorctx.UserIDFrom(ctx)
	if !ok {
		return account.ErrNotAuthenticated
	}

	if err := p.refresh.RevokeAllForUser(ctx, uid); err != nil {
		return p.transport(ctx, "refresh_tokens.revoke_all", err)
	}

	p.publish(ctx, EventSignedOut, uid)
	return nil
}

// CloseAccount is the self-service account deletion: after both confirmation steps every
// session of the caller is revoked. Profile removal stays an admin action.
func (p *Provider) CloseAccount(ctx context.Context, confirm account.DeleteConfirmation) error {
	if err := confirm.Check(); err != nil {
		return err
	}
	return p.SignOutEverywhere(ctx)
}

func (p *Provider) CurrentUser(ctx context.Context) (user.User, error) {
	uid, ok := actorctx.UserIDFrom(ctx)
	if !ok {
		return user.User{}, account.ErrNotAuthenticated
	}

	u, err := p.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, account.ErrNotAuthenticated
		}
		return user.User{}, p.transport(ctx, "users.get_by_id", err)
	}

	return u, nil
}

// UpdatePassword checks the new password locally before touching the store.
func (p *Provider) UpdatePassword(ctx context.Context, newPassword, confirm string) error {
	if err := checkPassword(newPassword, confirm); err != nil {
		return err
	}

	uid, ok := actorctx.UserIDFrom(ctx)
	if !ok {
		return account.ErrNotAuthenticated
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := p.users.UpdatePassword(ctx, uid, hash); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return account.ErrNotAuthenticated
		}
		return p.transport(ctx, "users.update_password", err)
	}

	p.publish(ctx, EventUserUpdated, uid)
	return nil
}

// RequestEmailChange records newEmail as pending and mails a confirmation link to it.
// The current address stays in effect until the link is followed.
func (p *Provider) RequestEmailChange(ctx context.Context, newEmail string) error {
	email, err := checkEmail(newEmail)
	if err != nil {
		return err
	}

	u, err := p.CurrentUser(ctx)
	if err != nil {
		return err
	}

	if email == u.Email {
		return &account.ValidationError{Field: "email", Message: "New email must be different from the current one"}
	}

	if _, err := p.users.GetByEmail(ctx, email); err == nil {
		return user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrUserNotFound) {
		return p.transport(ctx, "users.get_by_email", err)
	}

	if err := p.users.SetPendingEmail(ctx, u.ID, email); err != nil {
		return p.transport(ctx, "users.set_pending_email", err)
	}

	if err := p.queueConfirmation(ctx, u, email, true); err != nil {
		return p.transport(ctx, "jobs.create", err)
	}

	p.publish(ctx, EventUserUpdated, u.ID)
	return nil
}

// queueConfirmation mails a link confirming email for u. The link dies once u's
// current address changes.
func (p *Provider) queueConfirmation(ctx context.Context, u user.User, email string, change bool) error {
	token, err := p.jwt.GenerateActionToken(auth.TypeEmailChange, u.ID, email, p.jwt.Fingerprint(u.Email))
	if err != nil {
		return err
	}

	_, err = jobs.Enqueue(ctx, p.jobs, jobs.JobSendEmailConfirmation, u.ID, jobs.EmailConfirmationPayload{
		UserID: u.ID,
		Email:  email,
		Link:   p.link("/auth/email/confirm", token),
		Change: change,
	})
	return err
}

// ConfirmEmail applies a confirmation link, both for a new sign-up and an address change.
func (p *Provider) ConfirmEmail(ctx context.Context, token string) (user.User, error) {
	claims, err := p.jwt.VerifyActionToken(token, auth.TypeEmailChange)
	if err != nil {
		return user.User{}, ErrInvalidLink
	}

	u, err := p.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, ErrInvalidLink
		}
		return user.User{}, p.transport(ctx, "users.get_by_id", err)
	}

	if claims.Fingerprint != p.jwt.Fingerprint(u.Email) {
		return user.User{}, ErrInvalidLink
	}

	pending := u.PendingEmail != nil && *u.PendingEmail == claims.Email
	if claims.Email != u.Email && !pending {
		return user.User{}, ErrInvalidLink
	}

	if err := p.users.ConfirmEmail(ctx, u.ID, claims.Email, p.now()); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, err
		}
		return user.User{}, p.transport(ctx, "users.confirm_email", err)
	}

	p.publish(ctx, EventUserUpdated, u.ID)

	return p.users.GetByID(ctx, u.ID)
}

// SendPasswordReset mails a reset link if email belongs to an identity. It reports
// success either way so addresses cannot be probed.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil
		}
		return p.transport(ctx, "users.get_by_email", err)
	}

	return p.sendReset(ctx, u, "")
}

// SendPasswordResetFor is the admin-initiated reset for a known identity.
func (p *Provider) SendPasswordResetFor(ctx context.Context, userID string) error {
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return err
		}
		return p.transport(ctx, "users.get_by_id", err)
	}

	actor, _ := actorctx.UserIDFrom(ctx)
	return p.sendReset(ctx, u, actor)
}

// Reset links are bound to the current password hash, so a link works once.
func (p *Provider) sendReset(ctx context.Context, u user.User, requestedBy string) error {
	token, err := p.jwt.GenerateActionToken(auth.TypePasswordReset, u.ID, u.Email, p.jwt.Fingerprint(u.PasswordHash))
	if err != nil {
		return err
	}

	_, err = jobs.Enqueue(ctx, p.jobs, jobs.JobSendPasswordReset, u.ID, jobs.PasswordResetPayload{
		UserID:      u.ID,
		Email:       u.Email,
		Link:        p.link("/auth/password/reset", token),
		RequestedBy: requestedBy,
	})
	if err != nil {
		return p.transport(ctx, "jobs.create", err)
	}

	p.publish(ctx, EventPasswordRecovery, u.ID)
	return nil
}

// ResetPassword sets a new password from a reset link and ends every existing session.
func (p *Provider) ResetPassword(ctx context.Context, token, newPassword, confirm string) error {
	if err := checkPassword(newPassword, confirm); err != nil {
		return err
	}

	claims, err := p.jwt.VerifyActionToken(token, auth.TypePasswordReset)
	if err != nil {
		return ErrInvalidLink
	}

	u, err := p.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return ErrInvalidLink
		}
		return p.transport(ctx, "users.get_by_id", err)
	}

	if claims.Fingerprint != p.jwt.Fingerprint(u.PasswordHash) {
		return ErrInvalidLink
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := p.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return p.transport(ctx, "users.update_password", err)
	}

	if err := p.refresh.RevokeAllForUser(ctx, u.ID); err != nil {
		return p.transport(ctx, "refresh_tokens.revoke_all", err)
	}

	p.publish(ctx, EventSignedOut, u.ID)
	return nil
}

// Invite mails an invitation link to an address that has no identity yet.
func (p *Provider) Invite(ctx context.Context, email string) error {
	email, err := checkEmail(email)
	if err != nil {
		return err
	}

	if _, err := p.users.GetByEmail(ctx, email); err == nil {
		return user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrUserNotFound) {
		return p.transport(ctx, "users.get_by_email", err)
	}

	token, err := p.jwt.GenerateActionToken(auth.TypeInvite, "", email, "")
	if err != nil {
		return err
	}

	actor, _ := actorctx.UserIDFrom(ctx)

	_, err = jobs.Enqueue(ctx, p.jobs, jobs.JobSendInvitation, actor, jobs.InvitationPayload{
		Email:     email,
		Link:      p.link("/auth/invitations/accept", token),
		InvitedBy: actor,
	})
	if err != nil {
		return p.transport(ctx, "jobs.create", err)
	}

	return nil
}

type AcceptInvitationInput struct {
	Token           string
	Password        string
	ConfirmPassword string
	FullName        string
}

// AcceptInvitation creates the invited identity. Its email counts as confirmed because
// the link was delivered to it.
func (p *Provider) AcceptInvitation(ctx context.Context, in AcceptInvitationInput) (Tokens, error) {
	if err := checkPassword(in.Password, in.ConfirmPassword); err != nil {
		return Tokens{}, err
	}

	claims, err := p.jwt.VerifyActionToken(in.Token, auth.TypeInvite)
	if err != nil {
		return Tokens{}, ErrInvalidLink
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return Tokens{}, err
	}

	now := p.now()
	u := user.User{
		ID:               uuid.NewString(),
		Email:            user.NormalizeEmail(claims.Email),
		PasswordHash:     hash,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := p.users.CreateWithProfile(ctx, u, profile.New(u.ID, in.FullName, profile.RoleUser, now)); err != nil {
		// already accepted
		if errors.Is(err, user.ErrEmailTaken) {
			return Tokens{}, ErrInvalidLink
		}
		return Tokens{}, p.transport(ctx, "users.create", err)
	}

	t, err := p.issue(ctx, u)
	if err != nil {
		return Tokens{}, err
	}

	p.publish(ctx, EventSignedIn, u.ID)
	return t, nil
}

// Subscribe streams session events for userID until ctx ends or cancel is called.
func (p *Provider) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	return p.bus.Subscribe(ctx, userID)
}
