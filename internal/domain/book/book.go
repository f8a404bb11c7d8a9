package book

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Book struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Title      string    `json:"title"`
	AuthorName string    `json:"authorName"`
	ISBN       string    `json:"isbn,omitempty"`
	Synopsis   string    `json:"synopsis,omitempty"`
	CoverPath  *string   `json:"coverPath,omitempty"`
	Shareable  bool      `json:"shareable"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

var (
	ErrNotFound = errors.New("book not found")
	// Archived or non-shareable books are out of circulation.
	ErrNotLendable = errors.New("book cannot be borrowed since it is archived or not shareable")
	ErrNotOwner    = errors.New("you are not the owner of this book")
)

type CreateBookRequest struct {
	Title      string `json:"title" binding:"required,min=1,max=200"`
	AuthorName string `json:"authorName" binding:"required,min=1,max=120"`
	ISBN       string `json:"isbn" binding:"omitempty,max=20"`
	Synopsis   string `json:"synopsis" binding:"omitempty,max=2000"`
	Shareable  bool   `json:"shareable"`
}

type ListFilter struct {
	Page int
	Size int
}

func NewFromCreateRequest(ownerID string, req CreateBookRequest) Book {
	now := time.Now().UTC()

	return Book{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      req.Title,
		AuthorName: req.AuthorName,
		ISBN:       req.ISBN,
		Synopsis:   req.Synopsis,
		Shareable:  req.Shareable,
		Archived:   false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
