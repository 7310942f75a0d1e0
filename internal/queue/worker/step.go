package worker

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/job"
	"github.com/geocoder89/profilehub/internal/jobs"
)

// ProcessOne claims and runs at most one job. It reports whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	w.stats.Claimed(j.Type)
	w.prom.AddJobsInFlight(1)
	defer w.prom.AddJobsInFlight(-1)

	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)
	w.stats.Finished(j.Type, elapsed, err)

	if err != nil {
		w.prom.ObserveJob(j.Type, "failed", elapsed)
		w.log.Warn("job failed", "job_id", j.ID, "type", j.Type, "err", err)

		// no retry: the job stays failed
		if markErr := w.repo.MarkFailed(ctx, j.ID, err.Error()); markErr != nil {
			return true, markErr
		}
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.prom.ObserveJob(j.Type, "done", elapsed)
	w.log.Info("job done", "job_id", j.ID, "type", j.Type, "duration_ms", elapsed.Milliseconds())

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	t := jobs.JobType(j.Type)

	payload, err := jobs.DecodePayload(t, j.Payload)
	if err != nil {
		return err
	}

	msg, err := jobs.Compose(t, payload)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	return w.notifier.Send(sendCtx, msg)
}
