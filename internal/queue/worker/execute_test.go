package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/booknest/booknest/internal/domain/job"
	"github.com/booknest/booknest/internal/domain/token"
	"github.com/booknest/booknest/internal/domain/user"
	"github.com/booknest/booknest/internal/jobs"
	"github.com/booknest/booknest/internal/notifications"
)

type fakeJobsRepo struct {
	queue       []job.Job
	done        []string
	failed      []string
	rescheduled []string
}

func (f *fakeJobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	if len(f.queue) == 0 {
		return job.Job{}, job.ErrNotFound
	}

	j := f.queue[0]
	f.queue = f.queue[1:]

	return j, nil
}

func (f *fakeJobsRepo) MarkDone(ctx context.Context, id string) error {
	f.done = append(f.done, id)
	return nil
}

func (f *fakeJobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeJobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	f.rescheduled = append(f.rescheduled, id)
	return nil
}

func (f *fakeJobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	return 0, nil
}

type fakeTokensRepo struct {
	tok token.ActivationToken
	err error
}

func (f *fakeTokensRepo) GetByID(ctx context.Context, id string) (token.ActivationToken, error) {
	return f.tok, f.err
}

type fakeUsersRepo struct {
	u   user.User
	err error
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return f.u, f.err
}

type fakeDeliveries struct {
	startErr error
	started  []string
	sent     []string
	failed   []string
}

func (f *fakeDeliveries) TryStartActivation(ctx context.Context, jobID, tokenID, recipient string) error {
	if f.startErr != nil {
		return f.startErr
	}

	f.started = append(f.started, tokenID)
	return nil
}

func (f *fakeDeliveries) MarkActivationSent(ctx context.Context, tokenID string) error {
	f.sent = append(f.sent, tokenID)
	return nil
}

func (f *fakeDeliveries) MarkActivationFailed(ctx context.Context, tokenID string, errMsg string) error {
	f.failed = append(f.failed, tokenID)
	return nil
}

type captureNotifier struct {
	inputs []notifications.SendActivationEmailInput
	err    error
}

func (n *captureNotifier) SendActivationEmail(ctx context.Context, in notifications.SendActivationEmailInput) error {
	n.inputs = append(n.inputs, in)
	return n.err
}

func activationJob(t *testing.T, attempts, maxAttempts int) job.Job {
	t.Helper()

	payload, err := jobs.EncodePayload(jobs.JobSendActivationEmail, jobs.ActivationEmailPayload{
		TokenID: "tok-1",
		UserID:  "user-1",
	})

	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}

	return job.Job{
		ID:          "job-1",
		Type:        string(jobs.JobSendActivationEmail),
		Payload:     payload,
		Status:      job.StatusProcessing,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}
}

func newTestWorker(repo *fakeJobsRepo, tokens *fakeTokensRepo, users *fakeUsersRepo, deliveries *fakeDeliveries, notifier notifications.Notifier) *Worker {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(Config{ActivationURL: "http://localhost:4200/activate-account"},
		repo, tokens, users, deliveries, notifier, log, nil)
}

func TestProcessOneDeliversActivationEmail(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{activationJob(t, 0, 8)}}
	tokens := &fakeTokensRepo{tok: token.ActivationToken{
		ID:        "tok-1",
		Code:      "482910",
		UserID:    "user-1",
		ExpiresAt: time.Now().UTC().Add(15 * time.Minute),
	}}
	users := &fakeUsersRepo{u: user.User{
		ID:        "user-1",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
	}}
	deliveries := &fakeDeliveries{}
	notifier := &captureNotifier{}

	w := newTestWorker(repo, tokens, users, deliveries, notifier)

	claimed, err := w.ProcessOne(context.Background())

	if err != nil || !claimed {
		t.Fatalf("ProcessOne = (%v, %v), want (true, nil)", claimed, err)
	}

	if len(notifier.inputs) != 1 {
		t.Fatalf("notifier calls = %d, want 1", len(notifier.inputs))
	}

	in := notifier.inputs[0]

	if in.Email != "jane@example.com" || in.Code != "482910" || in.FullName != "Jane Doe" {
		t.Errorf("unexpected send input: %+v", in)
	}

	if len(deliveries.sent) != 1 || deliveries.sent[0] != "tok-1" {
		t.Errorf("sent marks = %v, want [tok-1]", deliveries.sent)
	}

	if len(repo.done) != 1 || repo.done[0] != "job-1" {
		t.Errorf("done = %v, want [job-1]", repo.done)
	}
}

func TestProcessOneNoJob(t *testing.T) {
	repo := &fakeJobsRepo{}

	w := newTestWorker(repo, &fakeTokensRepo{}, &fakeUsersRepo{}, &fakeDeliveries{}, &captureNotifier{})

	claimed, err := w.ProcessOne(context.Background())

	if err != nil || claimed {
		t.Fatalf("ProcessOne = (%v, %v), want (false, nil)", claimed, err)
	}
}

func TestActivationJobDroppedWhenTokenGone(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{activationJob(t, 0, 8)}}
	notifier := &captureNotifier{}

	w := newTestWorker(repo, &fakeTokensRepo{err: token.ErrNotFound}, &fakeUsersRepo{}, &fakeDeliveries{}, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(notifier.inputs) != 0 {
		t.Error("notifier should not be called for a purged token")
	}

	if len(repo.done) != 1 {
		t.Errorf("done = %v, want the job marked done", repo.done)
	}
}

func TestActivationJobSkippedWhenAlreadyEnabled(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{activationJob(t, 0, 8)}}
	tokens := &fakeTokensRepo{tok: token.ActivationToken{ID: "tok-1", UserID: "user-1"}}
	users := &fakeUsersRepo{u: user.User{ID: "user-1", Enabled: true}}
	notifier := &captureNotifier{}

	w := newTestWorker(repo, tokens, users, &fakeDeliveries{}, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(notifier.inputs) != 0 {
		t.Error("no email should go to an already enabled account")
	}

	if len(repo.done) != 1 {
		t.Errorf("done = %v, want the job marked done", repo.done)
	}
}

func TestActivationJobSkippedWhenAlreadySent(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{activationJob(t, 0, 8)}}
	tokens := &fakeTokensRepo{tok: token.ActivationToken{ID: "tok-1", UserID: "user-1"}}
	users := &fakeUsersRepo{u: user.User{ID: "user-1", Email: "jane@example.com"}}
	deliveries := &fakeDeliveries{startErr: notifications.ErrAlreadySent}
	notifier := &captureNotifier{}

	w := newTestWorker(repo, tokens, users, deliveries, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(notifier.inputs) != 0 {
		t.Error("delivery ledger says sent; notifier must not fire again")
	}

	if len(repo.done) != 1 {
		t.Errorf("done = %v, want the job marked done", repo.done)
	}
}

func TestProviderFailureReschedules(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{activationJob(t, 0, 8)}}
	tokens := &fakeTokensRepo{tok: token.ActivationToken{ID: "tok-1", UserID: "user-1"}}
	users := &fakeUsersRepo{u: user.User{ID: "user-1", Email: "jane@example.com"}}
	deliveries := &fakeDeliveries{}
	notifier := &captureNotifier{err: errors.New("provider down")}

	w := newTestWorker(repo, tokens, users, deliveries, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(repo.rescheduled) != 1 {
		t.Errorf("rescheduled = %v, want [job-1]", repo.rescheduled)
	}

	if len(deliveries.failed) != 1 {
		t.Errorf("failed marks = %v, want [tok-1]", deliveries.failed)
	}
}

func TestProviderFailureDeadLettersOnLastAttempt(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{activationJob(t, 7, 8)}}
	tokens := &fakeTokensRepo{tok: token.ActivationToken{ID: "tok-1", UserID: "user-1"}}
	users := &fakeUsersRepo{u: user.User{ID: "user-1", Email: "jane@example.com"}}
	notifier := &captureNotifier{err: errors.New("provider down")}

	w := newTestWorker(repo, tokens, users, &fakeDeliveries{}, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(repo.failed) != 1 || repo.failed[0] != "job-1" {
		t.Errorf("failed = %v, want [job-1]", repo.failed)
	}

	if len(repo.rescheduled) != 0 {
		t.Errorf("rescheduled = %v, want none", repo.rescheduled)
	}

	if w.Metrics().Snapshot().DeadLettered != 1 {
		t.Errorf("deadLettered = %d, want 1", w.Metrics().Snapshot().DeadLettered)
	}
}
