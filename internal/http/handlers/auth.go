package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/booknest/booknest/internal/auth"
	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/domain/job"
	"github.com/booknest/booknest/internal/domain/token"
	"github.com/booknest/booknest/internal/domain/user"
	"github.com/booknest/booknest/internal/jobs"
	"github.com/booknest/booknest/internal/notifications"
	"github.com/booknest/booknest/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// Small interfaces over the concrete repos so tests can fake them.
type UsersStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, u user.User, roleIDs []string) error
	GetByEmail(ctx context.Context, email string) (user.User, error)
	SetEnabledTx(ctx context.Context, tx pgx.Tx, userID string, enabled bool) error
}

type RolesStore interface {
	GetByName(ctx context.Context, name string) (user.Role, error)
}

type TokensStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t token.ActivationToken) error
	GetByCodeForUpdateTx(ctx context.Context, tx pgx.Tx, code string) (token.ActivationToken, error)
	MarkValidatedTx(ctx context.Context, tx pgx.Tx, tokenID string) error
}

type JobsEnqueuer interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error)
}

type AuthHandler struct {
	users    UsersStore
	roles    RolesStore
	tokens   TokensStore
	jobs     JobsEnqueuer
	notifier notifications.Notifier
	jwt      *auth.Manager
	cfg      config.Config
	log      *slog.Logger
}

func NewAuthHandler(
	users UsersStore,
	roles RolesStore,
	tokens TokensStore,
	jobsRepo JobsEnqueuer,
	notifier notifications.Notifier,
	jwtManager *auth.Manager,
	cfg config.Config,
	log *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		roles:    roles,
		tokens:   tokens,
		jobs:     jobsRepo,
		notifier: notifier,
		jwt:      jwtManager,
		cfg:      cfg,
		log:      log,
	}
}

// Register creates a disabled account and dispatches the activation email
// per the configured policy: outbox enqueues in the same transaction as the
// user row, sync delivers inline and fails registration when the provider
// does.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	role, err := h.roles.GetByName(cctx, user.RoleUser)

	if err != nil {
		h.log.Error("role lookup failed", "err", err)
		RespondInternal(ctx)
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	u := user.NewFromRegisterRequest(req, hash, []string{role.Name})

	t, err := token.New(u.ID, h.cfg.ActivationTTL())

	if err != nil {
		RespondInternal(ctx)
		return
	}

	tx, err := h.users.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	defer func() {
		_ = tx.Rollback(cctx)
	}()

	err = h.users.CreateTx(cctx, tx, u, []string{role.ID})

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "Email is already in use")
			return
		}

		h.log.Error("user insert failed", "err", err)
		RespondInternal(ctx)
		return
	}

	if err := h.tokens.CreateTx(cctx, tx, t); err != nil {
		h.log.Error("token insert failed", "err", err)
		RespondInternal(ctx)
		return
	}

	switch h.cfg.MailMode {
	case config.MailModeSync:
		sendErr := h.notifier.SendActivationEmail(cctx, notifications.SendActivationEmailInput{
			Email:         u.Email,
			FullName:      u.FullName(),
			Code:          t.Code,
			ActivationURL: h.cfg.ActivationURL,
		})

		if sendErr != nil {
			// rollback keeps the email address available for a retry
			h.log.Error("activation email failed, rolling back registration", "err", sendErr)
			RespondError(ctx, http.StatusBadGateway, "Could not send activation email, please try again")
			return
		}

	default: // outbox
		if err := h.enqueueActivationEmail(cctx, tx, t, u.ID); err != nil {
			h.log.Error("activation job enqueue failed", "err", err)
			RespondInternal(ctx)
			return
		}
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.Status(http.StatusAccepted)
}

func (h *AuthHandler) enqueueActivationEmail(ctx context.Context, tx pgx.Tx, t token.ActivationToken, userID string) error {
	payload, err := jobs.EncodePayload(jobs.JobSendActivationEmail, jobs.ActivationEmailPayload{
		TokenID: t.ID,
		UserID:  userID,
	})

	if err != nil {
		return err
	}

	key := "activation:" + t.ID

	_, err = h.jobs.CreateTx(ctx, tx, job.CreateRequest{
		Type:           string(jobs.JobSendActivationEmail),
		Payload:        payload,
		MaxAttempts:    8,
		IdempotencyKey: &key,
	})

	return err
}

// Activate validates the emailed code and enables the account. An expired
// code gets a fresh token and a fresh email, in the same dispatch mode as
// registration.
func (h *AuthHandler) Activate(ctx *gin.Context) {
	code := ctx.Query("token")

	if code == "" {
		RespondBadRequest(ctx, "token query parameter is required")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	tx, err := h.users.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	defer func() {
		_ = tx.Rollback(cctx)
	}()

	t, err := h.tokens.GetByCodeForUpdateTx(cctx, tx, code)

	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			RespondBadRequest(ctx, "Invalid activation token")
			return
		}

		RespondInternal(ctx)
		return
	}

	switch validErr := t.Validate(time.Now().UTC()); {
	case errors.Is(validErr, token.ErrUsed):
		// activation is idempotent
		_ = tx.Commit(cctx)
		ctx.JSON(http.StatusOK, gin.H{"message": "Account already activated"})
		return

	case errors.Is(validErr, token.ErrExpired):
		if err := h.resendActivation(cctx, tx, t.UserID); err != nil {
			h.log.Error("activation resend failed", "err", err)
			RespondInternal(ctx)
			return
		}

		if err := tx.Commit(cctx); err != nil {
			RespondInternal(ctx)
			return
		}

		RespondBadRequest(ctx, "Activation token has expired. A new token has been sent to the same email address")
		return
	}

	if err := h.tokens.MarkValidatedTx(cctx, tx, t.ID); err != nil {
		RespondInternal(ctx)
		return
	}

	if err := h.users.SetEnabledTx(cctx, tx, t.UserID, true); err != nil {
		RespondInternal(ctx)
		return
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Account activated"})
}

func (h *AuthHandler) resendActivation(ctx context.Context, tx pgx.Tx, userID string) error {
	fresh, err := token.New(userID, h.cfg.ActivationTTL())

	if err != nil {
		return err
	}

	if err := h.tokens.CreateTx(ctx, tx, fresh); err != nil {
		return err
	}

	return h.enqueueActivationEmail(ctx, tx, fresh, userID)
}

// Authenticate checks credentials and account state, then mints the access
// token. All rejections are 403 with a business code; not-found and wrong
// password share one answer so the endpoint does not leak which emails
// exist.
func (h *AuthHandler) Authenticate(ctx *gin.Context) {
	var req user.AuthenticateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondBusiness(ctx, http.StatusForbidden, CodeBadCredentials, user.ErrBadCredentials.Error())
			return
		}

		RespondInternal(ctx)
		return
	}

	if u.AccountLocked {
		RespondBusiness(ctx, http.StatusForbidden, CodeAccountLocked, user.ErrAccountLocked.Error())
		return
	}

	if !u.Enabled {
		RespondBusiness(ctx, http.StatusForbidden, CodeAccountDisabled, user.ErrAccountDisabled.Error())
		return
	}

	if security.CheckPassword(u.PasswordHash, req.Password) != nil {
		RespondBusiness(ctx, http.StatusForbidden, CodeBadCredentials, user.ErrBadCredentials.Error())
		return
	}

	tokenStr, err := h.jwt.GenerateToken(u.Email, u.FullName(), u.Roles)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": tokenStr})
}
