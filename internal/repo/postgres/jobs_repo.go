package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/booknest/booknest/internal/domain/job"
	"github.com/booknest/booknest/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrJobNotFailed = errors.New("job is not failed")

const jobColumns = `id, type, payload, status, attempts, max_attempts,
		       run_at, locked_at, locked_by, last_error, idempotency_key,
		       created_at, updated_at`

type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *JobsRepo) scanJob(row pgx.Row) (job.Job, error) {
	var j job.Job
	var status string

	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &status,
		&j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LockedAt, &j.LockedBy,
		&j.LastError, &j.IdempotencyKey,
		&j.CreatedAt, &j.UpdatedAt,
	)

	if err != nil {
		return job.Job{}, err
	}

	j.Status = job.Status(status)
	return j, nil
}

func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.observe("jobs.create", func() error {
		_, e := r.pool.Exec(ctx, `INSERT INTO jobs (
		id, type, payload, status, attempts, max_attempts, run_at,
		locked_at, locked_by, last_error, idempotency_key, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts, j.RunAt,
			j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey, j.CreatedAt, j.UpdatedAt)
		return e
	})

	if err != nil {
		return job.Job{}, err
	}

	return j, nil
}

// CreateTx enqueues in the caller's transaction. Registration relies on this
// so user, token and outbox row commit or roll back together.
func (r *JobsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.observe("jobs.create_tx", func() error {
		_, e := tx.Exec(ctx, `INSERT INTO jobs (
		id, type, payload, status, attempts, max_attempts, run_at,
		locked_at, locked_by, last_error, idempotency_key, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts, j.RunAt,
			j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey, j.CreatedAt, j.UpdatedAt)
		return e
	})

	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

// ClaimNext grabs the oldest runnable job with FOR UPDATE SKIP LOCKED so
// concurrent workers never double-claim.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	var j job.Job
	var err error

	err = r.observe("jobs.claim_next", func() error {
		var e error
		j, e = r.scanJob(r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM jobs
			WHERE status = 'pending'
			  AND run_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs
		SET status = 'processing',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING `+jobColumns+`
	`, workerID))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound // nothing to do
		}
		return job.Job{}, err
	}

	return j, nil
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.observe("jobs.mark_done", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'done',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
		return e
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	var tag pgconn.CommandTag

	err := r.observe("jobs.mark_failed", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
		return e
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

// Reschedule requeues a job for a retry at runAt, bumping attempts.
func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	var tag pgconn.CommandTag

	err := r.observe("jobs.reschedule", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    attempts = attempts + 1,
		    run_at = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, runAt, errMsg)
		return e
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

// RequeueStaleProcessing frees jobs whose worker died mid-flight.
func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := int64(lockTTL.Seconds())

	if secs <= 0 {
		secs = 30
	}

	var rows int64

	err := r.observe("jobs.requeue_stale", func() error {
		tag, e := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE status = 'processing'
		  AND locked_at IS NOT NULL
		  AND locked_at < NOW() - ($1 * INTERVAL '1 second')
	`, secs)

		if e != nil {
			return e
		}

		rows = tag.RowsAffected()
		return nil
	})

	return rows, err
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (job.Job, error) {
	var j job.Job

	err := r.observe("jobs.get_by_id", func() error {
		var e error
		j, e = r.scanJob(r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE id = $1
	`, id))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}

	return j, nil
}

func (r *JobsRepo) GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error) {
	var j job.Job

	err := r.observe("jobs.get_by_idempotency_key", func() error {
		var e error
		j, e = r.scanJob(r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE idempotency_key = $1
	`, key))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}

	return j, nil
}

// List is the admin listing, filtered by status, newest activity first.
func (r *JobsRepo) List(ctx context.Context, status *string, page, size int) (out []job.Job, total int64, err error) {
	base := `
		SELECT ` + jobColumns + `, COUNT(*) OVER() AS total
		FROM jobs
	`

	var (
		conds   []string
		args    []any
		argsPos = 1
	)

	if status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", argsPos))
		args = append(args, *status)
		argsPos++
	}

	q := base

	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	q += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d OFFSET $%d", argsPos, argsPos+1)
	args = append(args, size, page*size)

	var rows pgx.Rows

	err = r.observe("jobs.admin.list", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, q, args...)
		return qerr
	})

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	out = make([]job.Job, 0, size)

	for rows.Next() {
		var j job.Job
		var st string

		scanErr := rows.Scan(
			&j.ID, &j.Type, &j.Payload, &st,
			&j.Attempts, &j.MaxAttempts,
			&j.RunAt, &j.LockedAt, &j.LockedBy,
			&j.LastError, &j.IdempotencyKey,
			&j.CreatedAt, &j.UpdatedAt,
			&total,
		)

		if scanErr != nil {
			return nil, 0, scanErr
		}

		j.Status = job.Status(st)
		out = append(out, j)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return out, total, nil
}

// Retry requeues a single failed job.
func (r *JobsRepo) Retry(ctx context.Context, id string) error {
	var status string

	err := r.observe("jobs.admin.retry.check_status", func() error {
		return r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.ErrNotFound
		}
		return err
	}

	if status != "failed" {
		return ErrJobNotFailed
	}

	// attempts reset so the claim query picks the job up again
	return r.observe("jobs.admin.retry.requeue", func() error {
		_, e := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    attempts = 0,
		    run_at = NOW(),
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
		return e
	})
}

func (r *JobsRepo) RetryManyFailed(ctx context.Context, limit int) (int64, error) {
	var tag pgconn.CommandTag

	if limit <= 0 {
		limit = 50
	}

	if limit > 500 {
		limit = 500
	}

	err := r.observe("jobs.admin.retry_many_failed", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `
		WITH picked AS (
			SELECT id
			FROM jobs
			WHERE status = 'failed'
			ORDER BY updated_at DESC
			LIMIT $1
		)
		UPDATE jobs
		SET status = 'pending',
		    attempts = 0,
		    run_at = NOW(),
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id IN (SELECT id FROM picked)
	`, limit)
		return e
	})

	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
