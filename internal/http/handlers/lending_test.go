package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/booknest/booknest/internal/domain/book"
	"github.com/booknest/booknest/internal/domain/history"
	"github.com/booknest/booknest/internal/domain/user"
	"github.com/booknest/booknest/internal/http/handlers"
	"github.com/booknest/booknest/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeLending struct {
	borrowFn       func(bookID, borrowerID string) (history.Transaction, error)
	returnFn       func(bookID, borrowerID string) (history.Transaction, error)
	approveFn      func(bookID, ownerID string) (history.Transaction, error)
	listBorrowedFn func(userID string, f book.ListFilter) ([]history.BorrowedBook, int64, error)
	listReturnedFn func(ownerID string, f book.ListFilter) ([]history.BorrowedBook, int64, error)
}

func (f *fakeLending) Borrow(ctx context.Context, bookID, borrowerID string) (history.Transaction, error) {
	return f.borrowFn(bookID, borrowerID)
}

func (f *fakeLending) Return(ctx context.Context, bookID, borrowerID string) (history.Transaction, error) {
	return f.returnFn(bookID, borrowerID)
}

func (f *fakeLending) ApproveReturn(ctx context.Context, bookID, ownerID string) (history.Transaction, error) {
	return f.approveFn(bookID, ownerID)
}

func (f *fakeLending) ListBorrowedBy(ctx context.Context, userID string, flt book.ListFilter) ([]history.BorrowedBook, int64, error) {
	return f.listBorrowedFn(userID, flt)
}

func (f *fakeLending) ListReturnedTo(ctx context.Context, ownerID string, flt book.ListFilter) ([]history.BorrowedBook, int64, error) {
	return f.listReturnedFn(ownerID, flt)
}

func setupLendingRouter(repo *fakeLending, u user.User) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := handlers.NewLendingHandler(repo, discardLogger())

	r := gin.New()

	r.Use(func(c *gin.Context) {
		c.Set(middlewares.CtxUser, u)
		c.Next()
	})

	r.GET("/books/borrowed", h.ListBorrowed)
	r.GET("/books/returned", h.ListReturned)
	r.POST("/books/:id/borrow", h.Borrow)
	r.PATCH("/books/:id/borrow/return", h.Return)
	r.PATCH("/books/:id/borrow/return/approve", h.ApproveReturn)

	return r
}

func doReq(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func TestBorrowGuards(t *testing.T) {
	tests := []struct {
		name       string
		repoErr    error
		wantStatus int
	}{
		{name: "book_missing", repoErr: book.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "not_lendable", repoErr: book.ErrNotLendable, wantStatus: http.StatusBadRequest},
		{name: "own_book", repoErr: history.ErrOwnBook, wantStatus: http.StatusForbidden},
		{name: "already_borrowed", repoErr: history.ErrAlreadyBorrowed, wantStatus: http.StatusConflict},
		{name: "success", repoErr: nil, wantStatus: http.StatusOK},
	}

	me := user.User{ID: "borrower-1"}
	bookID := uuid.NewString()

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeLending{
				borrowFn: func(gotBookID, gotUserID string) (history.Transaction, error) {
					if gotBookID != bookID {
						t.Errorf("bookID = %q, want %q", gotBookID, bookID)
					}

					if gotUserID != me.ID {
						t.Errorf("userID = %q, want %q", gotUserID, me.ID)
					}

					if tt.repoErr != nil {
						return history.Transaction{}, tt.repoErr
					}

					return history.Transaction{ID: "tx-1"}, nil
				},
			}

			r := setupLendingRouter(repo, me)

			rec := doReq(r, http.MethodPost, "/books/"+bookID+"/borrow")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp map[string]string
				_ = json.Unmarshal(rec.Body.Bytes(), &resp)

				if resp["id"] != "tx-1" {
					t.Errorf("id = %q, want tx-1", resp["id"])
				}
			}
		})
	}
}

func TestBorrowRejectsMalformedID(t *testing.T) {
	called := false

	repo := &fakeLending{
		borrowFn: func(string, string) (history.Transaction, error) {
			called = true
			return history.Transaction{}, nil
		},
	}

	r := setupLendingRouter(repo, user.User{ID: "borrower-1"})

	rec := doReq(r, http.MethodPost, "/books/not-a-uuid/borrow")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	if called {
		t.Error("repo should not be reached for a malformed id")
	}
}

func TestReturnNotBorrowed(t *testing.T) {
	repo := &fakeLending{
		returnFn: func(string, string) (history.Transaction, error) {
			return history.Transaction{}, history.ErrNotBorrowed
		},
	}

	r := setupLendingRouter(repo, user.User{ID: "borrower-1"})

	rec := doReq(r, http.MethodPatch, "/books/"+uuid.NewString()+"/borrow/return")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestApproveReturn(t *testing.T) {
	tests := []struct {
		name       string
		repoErr    error
		wantStatus int
	}{
		{name: "not_owner", repoErr: book.ErrNotOwner, wantStatus: http.StatusForbidden},
		{name: "not_returned_yet", repoErr: history.ErrNotReturned, wantStatus: http.StatusBadRequest},
		{name: "success", repoErr: nil, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeLending{
				approveFn: func(string, string) (history.Transaction, error) {
					if tt.repoErr != nil {
						return history.Transaction{}, tt.repoErr
					}

					return history.Transaction{ID: "tx-1"}, nil
				},
			}

			r := setupLendingRouter(repo, user.User{ID: "owner-1"})

			rec := doReq(r, http.MethodPatch, "/books/"+uuid.NewString()+"/borrow/return/approve")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestListBorrowedPages(t *testing.T) {
	repo := &fakeLending{
		listBorrowedFn: func(userID string, f book.ListFilter) ([]history.BorrowedBook, int64, error) {
			if userID != "borrower-1" {
				t.Errorf("userID = %q", userID)
			}

			return []history.BorrowedBook{
				{TransactionID: "tx-1", Title: "Dune"},
				{TransactionID: "tx-2", Title: "Hyperion"},
			}, 2, nil
		},
	}

	r := setupLendingRouter(repo, user.User{ID: "borrower-1"})

	rec := doReq(r, http.MethodGet, "/books/borrowed?page=0&size=10")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Content       []history.BorrowedBook `json:"content"`
		TotalElements int64                  `json:"totalElements"`
		TotalPages    int                    `json:"totalPages"`
		First         bool                   `json:"first"`
		Last          bool                   `json:"last"`
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Content) != 2 || resp.TotalElements != 2 {
		t.Errorf("content = %d items, totalElements = %d", len(resp.Content), resp.TotalElements)
	}

	if !resp.First || !resp.Last || resp.TotalPages != 1 {
		t.Errorf("page flags: first=%v last=%v totalPages=%d", resp.First, resp.Last, resp.TotalPages)
	}
}
