package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/domain/book"
	"github.com/booknest/booknest/internal/http/middlewares"
	"github.com/booknest/booknest/internal/storage"
	"github.com/booknest/booknest/internal/utils"
	"github.com/gin-gonic/gin"
)

type BooksStore interface {
	Create(ctx context.Context, b book.Book) error
	GetByID(ctx context.Context, id string) (book.Book, error)
	ListFeed(ctx context.Context, viewerID string, f book.ListFilter) ([]book.Book, int64, error)
	ListByOwner(ctx context.Context, ownerID string, f book.ListFilter) ([]book.Book, int64, error)
	ToggleShareable(ctx context.Context, bookID, ownerID string) (book.Book, error)
	ToggleArchived(ctx context.Context, bookID, ownerID string) (book.Book, error)
	SetCoverPath(ctx context.Context, bookID, ownerID, path string) error
}

type CoverStore interface {
	SaveCover(ownerID string, file *multipart.FileHeader, saveFn func(*multipart.FileHeader, string) error) (string, error)
}

type BooksHandler struct {
	repo   BooksStore
	covers CoverStore
	log    *slog.Logger
}

func NewBooksHandler(repo BooksStore, covers CoverStore, log *slog.Logger) *BooksHandler {
	return &BooksHandler{
		repo:   repo,
		covers: covers,
		log:    log,
	}
}

// pageFilter reads ?page=&size= with the shared clamping rules.
func pageFilter(ctx *gin.Context) book.ListFilter {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(ctx.DefaultQuery("size", strconv.Itoa(utils.DefaultPageSize)))

	page, size = utils.ClampPage(page, size)

	return book.ListFilter{Page: page, Size: size}
}

func bookIDParam(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "book id must be a valid UUID")
		return "", false
	}

	return id, true
}

func (h *BooksHandler) Create(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)

	var req book.CreateBookRequest

	if !BindJSON(ctx, &req) {
		return
	}

	b := book.NewFromCreateRequest(u.ID, req)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.repo.Create(cctx, b); err != nil {
		h.log.Error("book insert failed", "err", err)
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"id": b.ID})
}

func (h *BooksHandler) GetByID(ctx *gin.Context) {
	id, ok := bookIDParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, b)
}

// ListFeed is the discovery listing: shareable books owned by others.
func (h *BooksHandler) ListFeed(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)
	f := pageFilter(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, total, err := h.repo.ListFeed(cctx, u.ID, f)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, utils.NewPageResponse(items, f.Page, f.Size, total))
}

func (h *BooksHandler) ListOwned(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)
	f := pageFilter(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, total, err := h.repo.ListByOwner(cctx, u.ID, f)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, utils.NewPageResponse(items, f.Page, f.Size, total))
}

func (h *BooksHandler) toggle(ctx *gin.Context, fn func(context.Context, string, string) (book.Book, error)) {
	u, _ := middlewares.UserFromContext(ctx)

	id, ok := bookIDParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := fn(cctx, id, u.ID)

	if err != nil {
		switch {
		case errors.Is(err, book.ErrNotFound):
			RespondNotFound(ctx, "Book not found")
		case errors.Is(err, book.ErrNotOwner):
			RespondForbidden(ctx, book.ErrNotOwner.Error())
		default:
			RespondInternal(ctx)
		}
		return
	}

	ctx.JSON(http.StatusOK, b)
}

func (h *BooksHandler) ToggleShareable(ctx *gin.Context) {
	h.toggle(ctx, h.repo.ToggleShareable)
}

func (h *BooksHandler) ToggleArchived(ctx *gin.Context) {
	h.toggle(ctx, h.repo.ToggleArchived)
}

// UploadCover stores the picture on disk, then records its path.
func (h *BooksHandler) UploadCover(ctx *gin.Context) {
	u, _ := middlewares.UserFromContext(ctx)

	id, ok := bookIDParam(ctx)

	if !ok {
		return
	}

	file, err := ctx.FormFile("file")

	if err != nil {
		RespondBadRequest(ctx, "file form field is required")
		return
	}

	path, err := h.covers.SaveCover(u.ID, file, func(f *multipart.FileHeader, dst string) error {
		return ctx.SaveUploadedFile(f, dst)
	})

	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			RespondBadRequest(ctx, "cover must be a jpg, png or webp image")
			return
		}

		h.log.Error("cover save failed", "err", err)
		RespondInternal(ctx)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.repo.SetCoverPath(cctx, id, u.ID, path); err != nil {
		switch {
		case errors.Is(err, book.ErrNotFound):
			RespondNotFound(ctx, "Book not found")
		case errors.Is(err, book.ErrNotOwner):
			RespondForbidden(ctx, book.ErrNotOwner.Error())
		default:
			RespondInternal(ctx)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"coverPath": path})
}
