package account

import (
	"context"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/profile"
)

const DeleteConfirmationWord = "DELETE"

// DeleteConfirmation carries the two confirmation steps for an irreversible delete.
type DeleteConfirmation struct {
	Confirmed bool   `json:"confirmed"`
	Typed     string `json:"typed"`
}

func (c DeleteConfirmation) Check() error {
	if !c.Confirmed {
		return ErrDeletionNotConfirmed
	}
	if c.Typed != DeleteConfirmationWord {
		return ErrDeletionCancelled
	}
	return nil
}

// AdminStore is the slice of *Service the directory drives.
type AdminStore interface {
	RequireAdmin(ctx context.Context) error
	ListAllProfiles(ctx context.Context) ([]profile.Profile, error)
	SetRole(ctx context.Context, id string, role string) error
	DeleteProfile(ctx context.Context, id string) error
}

// Mailer sends account emails on behalf of an admin.
type Mailer interface {
	Invite(ctx context.Context, email string) error
	SendPasswordResetFor(ctx context.Context, userID string) error
}

// Directory is the admin view over all profiles. It holds the last fetched list and is
// not safe for concurrent use: build one per request.
type Directory struct {
	admin  AdminStore
	mailer Mailer
	now    func() time.Time

	users []profile.Profile
	stats profile.Stats
}

func NewDirectory(admin AdminStore, mailer Mailer) *Directory {
	return &Directory{
		admin:  admin,
		mailer: mailer,
		now:    time.Now,
	}
}

// InLocation makes the month boundary of Stats follow loc, the viewer's time zone.
func (d *Directory) InLocation(loc *time.Location) *Directory {
	if loc == nil {
		return d
	}
	now := d.now
	d.now = func() time.Time { return now().In(loc) }
	return d
}

// Refresh replaces the held list with a fresh fetch and recomputes stats.
func (d *Directory) Refresh(ctx context.Context) error {
	list, err := d.admin.ListAllProfiles(ctx)
	if err != nil {
		return err
	}

	d.users = list
	d.stats = profile.ComputeStats(list, d.now())
	return nil
}

func (d *Directory) Users() []profile.Profile {
	return d.users
}

func (d *Directory) Search(term string) []profile.Profile {
	return profile.Filter(d.users, term)
}

func (d *Directory) Stats() profile.Stats {
	return d.stats
}

func (d *Directory) ChangeRole(ctx context.Context, id, role string) error {
	if err := d.admin.SetRole(ctx, id, role); err != nil {
		return err
	}
	return d.Refresh(ctx)
}

// Delete checks confirm before any store call.
func (d *Directory) Delete(ctx context.Context, id string, confirm DeleteConfirmation) error {
	if err := confirm.Check(); err != nil {
		return err
	}

	if err := d.admin.DeleteProfile(ctx, id); err != nil {
		return err
	}
	return d.Refresh(ctx)
}

func (d *Directory) Invite(ctx context.Context, email string) error {
	if err := d.admin.RequireAdmin(ctx); err != nil {
		return err
	}
	return d.mailer.Invite(ctx, email)
}

func (d *Directory) SendPasswordReset(ctx context.Context, userID string) error {
	if err := d.admin.RequireAdmin(ctx); err != nil {
		return err
	}
	return d.mailer.SendPasswordResetFor(ctx, userID)
}
