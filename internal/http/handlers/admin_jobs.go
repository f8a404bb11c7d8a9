package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/domain/job"
	"github.com/booknest/booknest/internal/repo/postgres"
	"github.com/booknest/booknest/internal/utils"
	"github.com/gin-gonic/gin"
)

type AdminJobsRepo interface {
	List(ctx context.Context, status *string, page, size int) ([]job.Job, int64, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Retry(ctx context.Context, id string) error
	RetryManyFailed(ctx context.Context, limit int) (int64, error)
}

// AdminJobsHandler exposes the mail outbox to operators: inspect stuck
// jobs, requeue failures.
type AdminJobsHandler struct {
	repo AdminJobsRepo
}

func NewAdminJobsHandler(repo AdminJobsRepo) *AdminJobsHandler {
	return &AdminJobsHandler{repo: repo}
}

var validStatuses = map[string]struct{}{
	"pending":    {},
	"processing": {},
	"done":       {},
	"failed":     {},
}

// GET /admin/jobs?status=failed&page=0&size=20
func (h *AdminJobsHandler) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(ctx.DefaultQuery("size", "20"))

	page, size = utils.ClampPage(page, size)

	var statusPtr *string

	if s := ctx.Query("status"); s != "" {
		if _, ok := validStatuses[s]; !ok {
			RespondBadRequest(ctx, "status must be one of pending, processing, done, failed")
			return
		}
		statusPtr = &s
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, total, err := h.repo.List(cctx, statusPtr, page, size)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, utils.NewPageResponse(items, page, size, total))
}

func (h *AdminJobsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "job id must be a valid UUID")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	j, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			RespondNotFound(ctx, "Job not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, j)
}

// POST /admin/jobs/:id/retry
func (h *AdminJobsHandler) Retry(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "job id must be a valid UUID")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.repo.Retry(cctx, id)

	if err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			RespondNotFound(ctx, "Job not found")
		case errors.Is(err, postgres.ErrJobNotFailed):
			RespondConflict(ctx, "Only failed jobs can be retried")
		default:
			RespondInternal(ctx)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "requeued"})
}

// POST /admin/jobs/reprocess-dead?limit=50
func (h *AdminJobsHandler) RetryManyFailed(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	n, err := h.repo.RetryManyFailed(cctx, limit)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"requeued": n})
}
