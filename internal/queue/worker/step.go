package worker

import (
	"context"
	"errors"
	"time"

	"github.com/booknest/booknest/internal/domain/job"
)

// ProcessOne claims and runs a single job synchronously. Returns whether a
// job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	w.process(ctx, j)
	return true, nil
}

func (w *Worker) process(ctx context.Context, j job.Job) {
	w.metrics.IncClaimed()

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()

	err := w.execute(ctx, j)

	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		w.handleFailure(ctx, j, err, elapsed)
		return
	}

	w.observeResult(j.Type, "done", elapsed)
	w.metrics.IncDone()

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		w.log.Error("mark done failed", "job", j.ID, "err", err)
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
	}
}

func (w *Worker) observeResult(jobType, result string, elapsed time.Duration) {
	if w.prom == nil {
		return
	}

	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(elapsed.Seconds())
}

// handleFailure retries with exponential backoff until attempts run out,
// then dead-letters the job as failed.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error, elapsed time.Duration) {
	// attempts counts completed tries; this one just finished
	attempt := j.Attempts + 1

	if attempt >= j.MaxAttempts {
		w.observeResult(j.Type, "failed", elapsed)
		w.metrics.IncDeadLettered()
		w.log.Error("job dead-lettered", "job", j.ID, "type", j.Type, "attempts", attempt, "err", execErr)

		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.log.Error("mark failed errored", "job", j.ID, "err", err)
		}
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	runAt := time.Now().UTC().Add(delay)

	w.observeResult(j.Type, "retry", elapsed)
	w.metrics.IncRetried()
	w.log.Warn("job retry scheduled", "job", j.ID, "type", j.Type, "attempt", attempt, "delay", delay, "err", execErr)

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.log.Error("reschedule failed", "job", j.ID, "err", err)
	}
}
