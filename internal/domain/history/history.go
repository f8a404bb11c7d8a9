package history

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Transaction is one row of the append-only lending history. Lifecycle per
// row: open (returned=false) -> returned -> return approved. A new row is
// created for every borrow cycle.
type Transaction struct {
	ID             string    `json:"id"`
	BookID         string    `json:"bookId"`
	UserID         string    `json:"userId"` // borrower
	Returned       bool      `json:"returned"`
	ReturnApproved bool      `json:"returnApproved"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

var (
	ErrOwnBook         = errors.New("you cannot borrow or return your own book")
	ErrAlreadyBorrowed = errors.New("the requested book is already borrowed")
	ErrNotBorrowed     = errors.New("you did not borrow this book")
	ErrNotReturned     = errors.New("the book is not returned yet, you cannot approve its return")
	ErrNotFound        = errors.New("transaction not found")
)

// BorrowedBook is the read model for the borrowed/returned listings: the
// transaction flags joined with the book the row refers to.
type BorrowedBook struct {
	TransactionID  string    `json:"transactionId"`
	BookID         string    `json:"bookId"`
	Title          string    `json:"title"`
	AuthorName     string    `json:"authorName"`
	ISBN           string    `json:"isbn,omitempty"`
	Returned       bool      `json:"returned"`
	ReturnApproved bool      `json:"returnApproved"`
	CreatedAt      time.Time `json:"createdAt"`
}

func New(bookID, userID string) Transaction {
	now := time.Now().UTC()

	return Transaction{
		ID:             uuid.NewString(),
		BookID:         bookID,
		UserID:         userID,
		Returned:       false,
		ReturnApproved: false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
