package jobs

import (
	"context"

	"github.com/geocoder89/profilehub/internal/domain/job"
)

type Creator interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

// Enqueue stores a single-attempt job of type t.
func Enqueue(ctx context.Context, repo Creator, t JobType, userID string, payload any) (job.Job, error) {
	b, err := EncodePayload(t, payload)
	if err != nil {
		return job.Job{}, err
	}

	req := job.CreateRequest{
		Type:        string(t),
		Payload:     b,
		MaxAttempts: job.DefaultMaxAttempts,
	}
	if userID != "" {
		req.UserID = &userID
	}

	return repo.Create(ctx, req)
}
