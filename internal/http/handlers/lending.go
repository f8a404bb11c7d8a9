package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/domain/book"
	"github.com/booknest/booknest/internal/domain/history"
	"github.com/booknest/booknest/internal/http/middlewares"
	"github.com/booknest/booknest/internal/utils"
	"github.com/gin-gonic/gin"
)

type LendingStore interface {
	Borrow(ctx context.Context, bookID, borrowerID string) (history.Transaction, error)
	Return(ctx context.Context, bookID, borrowerID string) (history.Transaction, error)
	ApproveReturn(ctx context.Context, bookID, ownerID string) (history.Transaction, error)
	ListBorrowedBy(ctx context.Context, userID string, f book.ListFilter) ([]history.BorrowedBook, int64, error)
	ListReturnedTo(ctx context.Context, ownerID string, f book.ListFilter) ([]history.BorrowedBook, int64, error)
}

type LendingHandler struct {
	repo LendingStore
	log  *slog.Logger
}

func NewLendingHandler(repo LendingStore, log *slog.Logger) *LendingHandler {
	return &LendingHandler{repo: repo, log: log}
}

func (h *LendingHandler) respondLendingError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, book.ErrNotFound):
		RespondNotFound(ctx, "Book not found")
	case errors.Is(err, book.ErrNotLendable):
		RespondBadRequest(ctx, book.ErrNotLendable.Error())
	case errors.Is(err, book.ErrNotOwner):
		RespondForbidden(ctx, book.ErrNotOwner.Error())
	case errors.Is(err, history.ErrOwnBook):
		RespondForbidden(ctx, history.ErrOwnBook.Error())
	case errors.Is(err, history.ErrAlreadyBorrowed):
		RespondConflict(ctx, history.ErrAlreadyBorrowed.Error())
	case errors.Is(err, history.ErrNotBorrowed):
		RespondBadRequest(ctx, history.ErrNotBorrowed.Error())
	case errors.Is(err, history.ErrNotReturned):
		RespondBadRequest(ctx, history.ErrNotReturned.Error())
	default:
		h.log.Error("lending operation failed", "err", err)
		RespondInternal(ctx)
	}
}

func (h *LendingHandler) Borrow(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)

	id, ok := bookIDParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	tr, err := h.repo.Borrow(cctx, id, u.ID)

	if err != nil {
		h.respondLendingError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": tr.ID})
}

func (h *LendingHandler) Return(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)

	id, ok := bookIDParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	tr, err := h.repo.Return(cctx, id, u.ID)

	if err != nil {
		h.respondLendingError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": tr.ID})
}

// ApproveReturn is owner-only: the lender acknowledges the book came back.
func (h *LendingHandler) ApproveReturn(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)

	id, ok := bookIDParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	tr, err := h.repo.ApproveReturn(cctx, id, u.ID)

	if err != nil {
		h.respondLendingError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": tr.ID})
}

func (h *LendingHandler) ListBorrowed(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)
	f := pageFilter(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, total, err := h.repo.ListBorrowedBy(cctx, u.ID, f)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, utils.NewPageResponse(items, f.Page, f.Size, total))
}

func (h *LendingHandler) ListReturned(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)
	f := pageFilter(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, total, err := h.repo.ListReturnedTo(cctx, u.ID, f)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, utils.NewPageResponse(items, f.Page, f.Size, total))
}
