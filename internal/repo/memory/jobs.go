package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/job"
	"github.com/geocoder89/profilehub/internal/utils"
)

type JobsRepo struct {
	mu    sync.Mutex
	items map[string]job.Job
}

func NewJobsRepo() *JobsRepo {
	return &JobsRepo{items: make(map[string]job.Job)}
}

func (r *JobsRepo) Create(_ context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	r.mu.Lock()
	r.items[j.ID] = j
	r.mu.Unlock()

	return j, nil
}

func (r *JobsRepo) ClaimNext(_ context.Context, workerID string) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	var next *job.Job
	for _, j := range r.items {
		if j.Status != job.StatusPending || j.RunAt.After(now) || j.Attempts >= j.MaxAttempts {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) ||
			(j.RunAt.Equal(next.RunAt) && j.CreatedAt.Before(next.CreatedAt)) {
			c := j
			next = &c
		}
	}

	if next == nil {
		return job.Job{}, job.ErrJobNotFound
	}

	by := workerID
	next.Status = job.StatusProcessing
	next.Attempts++
	next.LockedAt = &now
	next.LockedBy = &by
	next.UpdatedAt = now
	r.items[next.ID] = *next

	return *next, nil
}

func (r *JobsRepo) finish(id string, status job.Status, lastErr *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return job.ErrJobNotFound
	}

	j.Status = status
	j.LockedAt = nil
	j.LockedBy = nil
	j.LastError = lastErr
	j.UpdatedAt = time.Now().UTC()
	r.items[id] = j

	return nil
}

func (r *JobsRepo) MarkDone(_ context.Context, id string) error {
	return r.finish(id, job.StatusDone, nil)
}

func (r *JobsRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.finish(id, job.StatusFailed, &errMsg)
}

func (r *JobsRepo) GetByID(_ context.Context, id string) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return job.Job{}, job.ErrJobNotFound
	}
	return j, nil
}

func (r *JobsRepo) ListCursor(
	_ context.Context,
	status *string,
	limit int,
	afterUpdatedAt time.Time,
	afterID string,
) ([]job.Job, *string, bool, error) {
	r.mu.Lock()
	out := make([]job.Job, 0, len(r.items))
	for _, j := range r.items {
		if status != nil && string(j.Status) != *status {
			continue
		}
		if !afterUpdatedAt.IsZero() && !olderThan(j, afterUpdatedAt, afterID) {
			continue
		}
		out = append(out, j)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		return olderThan(out[k], out[i].UpdatedAt, out[i].ID)
	})

	if len(out) <= limit {
		return out, nil, false, nil
	}

	out = out[:limit]
	last := out[len(out)-1]

	cur, err := utils.EncodeJobCursor(last.UpdatedAt, last.ID)
	if err != nil {
		return nil, nil, false, err
	}

	return out, &cur, true, nil
}

// olderThan reports (j.updated_at, j.id) < (at, id).
func olderThan(j job.Job, at time.Time, id string) bool {
	if !j.UpdatedAt.Equal(at) {
		return j.UpdatedAt.Before(at)
	}
	return j.ID < id
}
