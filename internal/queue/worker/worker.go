package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/booknest/booknest/internal/domain/job"
	"github.com/booknest/booknest/internal/domain/token"
	"github.com/booknest/booknest/internal/domain/user"
	"github.com/booknest/booknest/internal/notifications"
	"github.com/booknest/booknest/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type TokensRepository interface {
	GetByID(ctx context.Context, id string) (token.ActivationToken, error)
}

type UsersRepository interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type DeliveriesRepository interface {
	TryStartActivation(ctx context.Context, jobID, tokenID, recipient string) error
	MarkActivationSent(ctx context.Context, tokenID string) error
	MarkActivationFailed(ctx context.Context, tokenID string, errMsg string) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	LockTTL       time.Duration
	ActivationURL string
}

type Worker struct {
	cfg        Config
	repo       JobsRepository
	tokens     TokensRepository
	users      UsersRepository
	deliveries DeliveriesRepository
	notifier   notifications.Notifier
	log        *slog.Logger
	prom       *observability.Prom
	metrics    *observability.JobMetrics

	readyMu sync.RWMutex
	ready   bool
}

func New(
	cfg Config,
	repo JobsRepository,
	tokens TokensRepository,
	users UsersRepository,
	deliveries DeliveriesRepository,
	notifier notifications.Notifier,
	log *slog.Logger,
	prom *observability.Prom,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 60 * time.Second
	}

	return &Worker{
		cfg:        cfg,
		repo:       repo,
		tokens:     tokens,
		users:      users,
		deliveries: deliveries,
		notifier:   notifier,
		log:        log,
		prom:       prom,
		metrics:    &observability.JobMetrics{},
	}
}

func (w *Worker) Metrics() *observability.JobMetrics { return w.metrics }

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run polls for runnable jobs until ctx is cancelled, processing up to
// Concurrency jobs at a time. In-flight jobs get ShutdownGrace to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	requeueTicker := time.NewTicker(w.cfg.LockTTL)
	defer requeueTicker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")

			done := make(chan struct{})

			go func() {
				wg.Wait()
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(w.cfg.ShutdownGrace):
				w.log.Warn("shutdown grace elapsed with jobs in flight")
			}
			return nil

		case <-requeueTicker.C:
			n, err := w.repo.RequeueStaleProcessing(context.WithoutCancel(ctx), w.cfg.LockTTL)

			if err != nil {
				w.log.Error("requeue stale failed", "err", err)
			} else if n > 0 {
				w.log.Info("requeued stale jobs", "count", n)
			}

		case <-ticker.C:
			w.drain(ctx, sem, &wg)
		}
	}
}

// drain claims runnable jobs until the queue is empty or every slot is busy.
func (w *Worker) drain(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			// all slots busy
			return
		}

		claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
		cancel()

		if err != nil {
			<-sem

			if !errors.Is(err, job.ErrNotFound) && !errors.Is(err, context.Canceled) {
				w.log.Error("claim error", "err", err)
			}
			return
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			w.process(ctx, j)
		}()
	}
}
