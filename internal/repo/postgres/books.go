package postgres

import (
	"context"
	"errors"

	"github.com/booknest/booknest/internal/domain/book"
	"github.com/booknest/booknest/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookColumns = `id, owner_id, title, author_name, isbn, synopsis, cover_path, shareable, archived, created_at, updated_at`

type BooksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewBooksRepo(pool *pgxpool.Pool, prom *observability.Prom) *BooksRepo {
	return &BooksRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *BooksRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *BooksRepo) Create(ctx context.Context, b book.Book) (err error) {
	err = repo.observe("books.create", func() error {
		_, e := repo.pool.Exec(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, b.ID, b.OwnerID, b.Title, b.AuthorName, b.ISBN, b.Synopsis, b.CoverPath, b.Shareable, b.Archived, b.CreatedAt, b.UpdatedAt)
		return e
	})
	return
}

func (repo *BooksRepo) GetByID(ctx context.Context, id string) (book.Book, error) {
	var b book.Book

	err := repo.observe("books.get_by_id", func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT `+bookColumns+` FROM books WHERE id = $1
	`, id).Scan(
			&b.ID,
			&b.OwnerID,
			&b.Title,
			&b.AuthorName,
			&b.ISBN,
			&b.Synopsis,
			&b.CoverPath,
			&b.Shareable,
			&b.Archived,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return book.Book{}, book.ErrNotFound
		}

		return book.Book{}, err
	}
	return b, nil
}

// ListFeed returns displayable books not owned by the viewer: shareable,
// not archived, newest first.
func (repo *BooksRepo) ListFeed(ctx context.Context, viewerID string, f book.ListFilter) ([]book.Book, int64, error) {
	return repo.list(ctx, "books.list_feed", `
		WHERE owner_id <> $1 AND shareable AND NOT archived
	`, viewerID, f)
}

func (repo *BooksRepo) ListByOwner(ctx context.Context, ownerID string, f book.ListFilter) ([]book.Book, int64, error) {
	return repo.list(ctx, "books.list_by_owner", `
		WHERE owner_id = $1
	`, ownerID, f)
}

func (repo *BooksRepo) list(ctx context.Context, op, where string, subjectID string, f book.ListFilter) (out []book.Book, total int64, err error) {
	var rows pgx.Rows

	err = repo.observe(op, func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, `
		SELECT `+bookColumns+`, COUNT(*) OVER() AS total
		FROM books
		`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, subjectID, f.Size, f.Page*f.Size)
		return qerr
	})

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	out = make([]book.Book, 0, f.Size)

	for rows.Next() {
		var b book.Book

		e := rows.Scan(
			&b.ID,
			&b.OwnerID,
			&b.Title,
			&b.AuthorName,
			&b.ISBN,
			&b.Synopsis,
			&b.CoverPath,
			&b.Shareable,
			&b.Archived,
			&b.CreatedAt,
			&b.UpdatedAt,
			&total,
		)

		if e != nil {
			return nil, 0, e
		}

		out = append(out, b)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

// toggleOwned flips a flag column, enforcing ownership in the same statement.
func (repo *BooksRepo) toggleOwned(ctx context.Context, op, column, bookID, ownerID string) (book.Book, error) {
	var b book.Book

	err := repo.observe(op, func() error {
		return repo.pool.QueryRow(ctx, `
		UPDATE books
		SET `+column+` = NOT `+column+`, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+bookColumns+`
	`, bookID, ownerID).Scan(
			&b.ID,
			&b.OwnerID,
			&b.Title,
			&b.AuthorName,
			&b.ISBN,
			&b.Synopsis,
			&b.CoverPath,
			&b.Shareable,
			&b.Archived,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish missing book from someone else's book.
			_, getErr := repo.GetByID(ctx, bookID)

			if getErr != nil {
				return book.Book{}, getErr
			}

			return book.Book{}, book.ErrNotOwner
		}

		return book.Book{}, err
	}
	return b, nil
}

func (repo *BooksRepo) ToggleShareable(ctx context.Context, bookID, ownerID string) (book.Book, error) {
	return repo.toggleOwned(ctx, "books.toggle_shareable", "shareable", bookID, ownerID)
}

func (repo *BooksRepo) ToggleArchived(ctx context.Context, bookID, ownerID string) (book.Book, error) {
	return repo.toggleOwned(ctx, "books.toggle_archived", "archived", bookID, ownerID)
}

func (repo *BooksRepo) SetCoverPath(ctx context.Context, bookID, ownerID, path string) (err error) {
	var tag pgconn.CommandTag

	err = repo.observe("books.set_cover_path", func() error {
		var e error
		tag, e = repo.pool.Exec(ctx, `
		UPDATE books SET cover_path = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, bookID, ownerID, path)
		return e
	})

	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		_, getErr := repo.GetByID(ctx, bookID)

		if getErr != nil {
			err = getErr
			return
		}

		err = book.ErrNotOwner
		return
	}

	return
}
