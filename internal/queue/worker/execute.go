package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/booknest/booknest/internal/domain/job"
	"github.com/booknest/booknest/internal/domain/token"
	"github.com/booknest/booknest/internal/domain/user"
	"github.com/booknest/booknest/internal/jobs"
	"github.com/booknest/booknest/internal/notifications"
)

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	switch jobs.JobType(j.Type) {
	case jobs.JobSendActivationEmail:
		return w.sendActivationEmail(ctx, j)
	default:
		return fmt.Errorf("%w: %s", jobs.ErrInvalidJobType, j.Type)
	}
}

// sendActivationEmail reloads token and user so the mail always carries the
// current code, and claims the delivery row before talking to the provider.
func (w *Worker) sendActivationEmail(ctx context.Context, j job.Job) error {
	p, err := jobs.DecodeActivationEmail(j)

	if err != nil {
		return err
	}

	t, err := w.tokens.GetByID(ctx, p.TokenID)

	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			// token purged; nothing left to deliver
			w.log.Warn("activation token gone, dropping job", "job", j.ID, "token", p.TokenID)
			return nil
		}
		return err
	}

	if t.Used() {
		// the user activated before the mail went out
		return nil
	}

	u, err := w.users.GetByID(ctx, p.UserID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			w.log.Warn("user gone, dropping job", "job", j.ID, "user", p.UserID)
			return nil
		}
		return err
	}

	if u.Enabled {
		return nil
	}

	err = w.deliveries.TryStartActivation(ctx, j.ID, t.ID, u.Email)

	if err != nil {
		if errors.Is(err, notifications.ErrAlreadySent) {
			return nil
		}

		if errors.Is(err, notifications.ErrInProgress) {
			// another worker owns the send; retry later
			return err
		}

		return err
	}

	sendErr := w.notifier.SendActivationEmail(ctx, notifications.SendActivationEmailInput{
		Email:         u.Email,
		FullName:      u.FullName(),
		Code:          t.Code,
		ActivationURL: w.cfg.ActivationURL,
	})

	if sendErr != nil {
		if mErr := w.deliveries.MarkActivationFailed(ctx, t.ID, sendErr.Error()); mErr != nil {
			w.log.Error("mark delivery failed errored", "token", t.ID, "err", mErr)
		}
		return sendErr
	}

	return w.deliveries.MarkActivationSent(ctx, t.ID)
}
