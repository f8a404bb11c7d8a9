package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/booknest/booknest/internal/notifications"
	"github.com/booknest/booknest/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const kindActivation = "account.activation"

// EmailDeliveriesRepo is the dedup ledger for outgoing mail. One row per
// (kind, token), so a redelivered job never emails the user twice.
type EmailDeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEmailDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *EmailDeliveriesRepo {
	return &EmailDeliveriesRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *EmailDeliveriesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// TryStartActivation claims the send. Outcomes: nil (we own it),
// ErrAlreadySent (skip), ErrInProgress (another worker is on it).
func (r *EmailDeliveriesRepo) TryStartActivation(ctx context.Context, jobID, tokenID, recipient string) error {
	err := r.observe("email_deliveries.try_start", func() error {
		_, e := r.pool.Exec(ctx, `
		INSERT INTO email_deliveries (kind, token_id, job_id, recipient, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())
	`, kindActivation, tokenID, jobID, recipient)
		return e
	})

	if err == nil {
		return nil
	}

	if !IsUniqueViolation(err) {
		return err
	}

	// Row exists. Atomically claim a failed row for retry.
	var tag pgconn.CommandTag

	uErr := r.observe("email_deliveries.claim_failed", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `
		UPDATE email_deliveries
		SET status = 'sending',
		    job_id = $3,
		    recipient = $4,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE kind = $1 AND token_id = $2 AND status = 'failed'
	`, kindActivation, tokenID, jobID, recipient)
		return e
	})

	if uErr != nil {
		return uErr
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var status string
	var sentAt *time.Time

	qErr := r.observe("email_deliveries.get_status", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT status, sent_at
		FROM email_deliveries
		WHERE kind = $1 AND token_id = $2
	`, kindActivation, tokenID).Scan(&status, &sentAt)
	})

	if qErr != nil {
		if errors.Is(qErr, pgx.ErrNoRows) {
			// row disappeared; let caller retry
			return nil
		}
		return qErr
	}

	if sentAt != nil || status == "sent" {
		return notifications.ErrAlreadySent
	}

	return notifications.ErrInProgress
}

func (r *EmailDeliveriesRepo) MarkActivationSent(ctx context.Context, tokenID string) (err error) {
	err = r.observe("email_deliveries.mark_sent", func() error {
		_, e := r.pool.Exec(ctx, `
		UPDATE email_deliveries
		SET status = 'sent',
		    sent_at = NOW(),
		    last_error = NULL,
		    updated_at = NOW()
		WHERE kind = $1 AND token_id = $2
	`, kindActivation, tokenID)
		return e
	})
	return
}

func (r *EmailDeliveriesRepo) MarkActivationFailed(ctx context.Context, tokenID string, errMsg string) (err error) {
	err = r.observe("email_deliveries.mark_failed", func() error {
		_, e := r.pool.Exec(ctx, `
		UPDATE email_deliveries
		SET status = 'failed',
		    last_error = $3,
		    updated_at = NOW()
		WHERE kind = $1 AND token_id = $2
	`, kindActivation, tokenID, errMsg)
		return e
	})
	return
}
