package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCursor covers every cursor the mail-job listing cannot resume from.
var ErrInvalidCursor = errors.New("invalid cursor")

// JobCursor is the keyset position in the mail-job listing, ordered by
// (updated_at, id) descending.
type JobCursor struct {
	UpdatedAt time.Time `json:"u"`
	ID        string    `json:"i"`
}

func EncodeJobCursor(updatedAt time.Time, id string) (string, error) {
	b, err := json.Marshal(JobCursor{UpdatedAt: updatedAt.UTC(), ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeJobCursor accepts only what EncodeJobCursor produced for a real job row.
func DecodeJobCursor(cursor string) (JobCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || len(raw) == 0 {
		return JobCursor{}, ErrInvalidCursor
	}

	var c JobCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return JobCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.UpdatedAt.IsZero() || !IsUUID(c.ID) {
		return JobCursor{}, ErrInvalidCursor
	}
	return c, nil
}
