package postgres

import (
	"context"
	"errors"

	"github.com/booknest/booknest/internal/domain/book"
	"github.com/booknest/booknest/internal/domain/history"
	"github.com/booknest/booknest/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HistoryRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewHistoryRepo(pool *pgxpool.Pool, prom *observability.Prom) *HistoryRepo {
	return &HistoryRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *HistoryRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

// lockBookTx loads and row-locks the book so the guards below and the
// insert/update run against a frozen row.
func (repo *HistoryRepo) lockBookTx(ctx context.Context, tx pgx.Tx, op, bookID string) (b book.Book, err error) {
	err = repo.observe(op, func() error {
		return tx.QueryRow(ctx, `
		SELECT id, owner_id, shareable, archived
		FROM books
		WHERE id = $1
		FOR UPDATE
	`, bookID).Scan(&b.ID, &b.OwnerID, &b.Shareable, &b.Archived)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = book.ErrNotFound
	}

	return
}

// Borrow opens a lending transaction for the book. Guards run in a fixed
// order under the book row lock: existence, lendability, ownership, then
// open-borrow conflict. The conflict is scoped to the borrower: the same
// user may not hold the book twice, other users may borrow it in parallel.
// A borrow stays open until the owner approves the return, so a returned
// copy still blocks its borrower until approval. The partial unique index
// on (book_id, user_id) backstops writers that race past the lock.
func (repo *HistoryRepo) Borrow(ctx context.Context, bookID, borrowerID string) (tr history.Transaction, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	b, err := repo.lockBookTx(ctx, tx, "history.borrow.lock_book", bookID)

	if err != nil {
		return
	}

	if b.Archived || !b.Shareable {
		err = book.ErrNotLendable
		return
	}

	if b.OwnerID == borrowerID {
		err = history.ErrOwnBook
		return
	}

	var open bool

	err = repo.observe("history.borrow.open_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM book_transaction_history
			WHERE book_id = $1 AND user_id = $2 AND NOT return_approved
		)`, bookID, borrowerID).Scan(&open)
	})

	if err != nil {
		return
	}

	if open {
		err = history.ErrAlreadyBorrowed
		return
	}

	tr = history.New(bookID, borrowerID)

	err = repo.observe("history.borrow.insert", func() error {
		_, e := tx.Exec(ctx, `
		INSERT INTO book_transaction_history (id, book_id, user_id, returned, return_approved, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, tr.ID, tr.BookID, tr.UserID, tr.Returned, tr.ReturnApproved, tr.CreatedAt, tr.UpdatedAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "history_open_borrow_uniq" {
			err = history.ErrAlreadyBorrowed
			return
		}
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		return
	}

	return
}

// Return flags the acting user's open borrow of the book as returned.
func (repo *HistoryRepo) Return(ctx context.Context, bookID, borrowerID string) (tr history.Transaction, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	b, err := repo.lockBookTx(ctx, tx, "history.return.lock_book", bookID)

	if err != nil {
		return
	}

	if b.Archived || !b.Shareable {
		err = book.ErrNotLendable
		return
	}

	if b.OwnerID == borrowerID {
		err = history.ErrOwnBook
		return
	}

	err = repo.observe("history.return.update", func() error {
		return tx.QueryRow(ctx, `
		UPDATE book_transaction_history
		SET returned = TRUE, updated_at = now()
		WHERE book_id = $1 AND user_id = $2 AND NOT returned
		RETURNING id, book_id, user_id, returned, return_approved, created_at, updated_at
	`, bookID, borrowerID).Scan(&tr.ID, &tr.BookID, &tr.UserID, &tr.Returned, &tr.ReturnApproved, &tr.CreatedAt, &tr.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = history.ErrNotBorrowed
		}
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		return
	}

	return
}

// ApproveReturn lets the book's owner acknowledge a pending return. Only
// the owner may approve, and only a returned-but-unapproved row qualifies.
func (repo *HistoryRepo) ApproveReturn(ctx context.Context, bookID, ownerID string) (tr history.Transaction, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	b, err := repo.lockBookTx(ctx, tx, "history.approve.lock_book", bookID)

	if err != nil {
		return
	}

	if b.Archived || !b.Shareable {
		err = book.ErrNotLendable
		return
	}

	if b.OwnerID != ownerID {
		err = book.ErrNotOwner
		return
	}

	err = repo.observe("history.approve.update", func() error {
		return tx.QueryRow(ctx, `
		UPDATE book_transaction_history
		SET return_approved = TRUE, updated_at = now()
		WHERE book_id = $1 AND returned AND NOT return_approved
		RETURNING id, book_id, user_id, returned, return_approved, created_at, updated_at
	`, bookID).Scan(&tr.ID, &tr.BookID, &tr.UserID, &tr.Returned, &tr.ReturnApproved, &tr.CreatedAt, &tr.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = history.ErrNotReturned
		}
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		return
	}

	return
}

// ListBorrowedBy pages through every transaction the user opened as a
// borrower, newest first.
func (repo *HistoryRepo) ListBorrowedBy(ctx context.Context, userID string, f book.ListFilter) ([]history.BorrowedBook, int64, error) {
	return repo.listJoined(ctx, "history.list_borrowed_by", `
		WHERE h.user_id = $1
	`, userID, f)
}

// ListReturnedTo pages through returned transactions on the owner's books,
// the queue waiting for approval plus the already approved rows.
func (repo *HistoryRepo) ListReturnedTo(ctx context.Context, ownerID string, f book.ListFilter) ([]history.BorrowedBook, int64, error) {
	return repo.listJoined(ctx, "history.list_returned_to", `
		WHERE b.owner_id = $1 AND h.returned
	`, ownerID, f)
}

func (repo *HistoryRepo) listJoined(ctx context.Context, op, where string, subjectID string, f book.ListFilter) (out []history.BorrowedBook, total int64, err error) {
	var rows pgx.Rows

	err = repo.observe(op, func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, `
		SELECT h.id, b.id, b.title, b.author_name, b.isbn,
		       h.returned, h.return_approved, h.created_at,
		       COUNT(*) OVER() AS total
		FROM book_transaction_history h
		JOIN books b ON b.id = h.book_id
		`+where+`
		ORDER BY h.created_at DESC, h.id DESC
		LIMIT $2 OFFSET $3
	`, subjectID, f.Size, f.Page*f.Size)
		return qerr
	})

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	out = make([]history.BorrowedBook, 0, f.Size)

	for rows.Next() {
		var bb history.BorrowedBook

		e := rows.Scan(
			&bb.TransactionID,
			&bb.BookID,
			&bb.Title,
			&bb.AuthorName,
			&bb.ISBN,
			&bb.Returned,
			&bb.ReturnApproved,
			&bb.CreatedAt,
			&total,
		)

		if e != nil {
			return nil, 0, e
		}

		out = append(out, bb)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return out, total, nil
}
