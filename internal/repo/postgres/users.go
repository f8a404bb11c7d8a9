package postgres

import (
	"context"
	"errors"

	"github.com/booknest/booknest/internal/domain/user"
	"github.com/booknest/booknest/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *UsersRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *UsersRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return repo.pool.BeginTx(ctx, pgx.TxOptions{})
}

// CreateTx inserts the user and its role links in the caller's transaction,
// so registration can enqueue the activation email atomically with the row.
func (repo *UsersRepo) CreateTx(ctx context.Context, tx pgx.Tx, u user.User, roleIDs []string) (err error) {
	err = repo.observe("users.create_tx.insert", func() error {
		_, e := tx.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, enabled, account_locked, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Enabled, u.AccountLocked, u.CreatedAt, u.UpdatedAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "users_email_uniq" {
			err = user.ErrEmailTaken
			return
		}
		return
	}

	for _, roleID := range roleIDs {
		err = repo.observe("users.create_tx.link_role", func() error {
			_, e := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id) VALUES ($1,$2)
		`, u.ID, roleID)
			return e
		})

		if err != nil {
			return
		}
	}

	return
}

func (repo *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, "users.get_by_email", `WHERE u.email = $1`, email)
}

func (repo *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return repo.getBy(ctx, "users.get_by_id", `WHERE u.id = $1`, id)
}

func (repo *UsersRepo) getBy(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User

	err := repo.observe(op, func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT u.id, u.first_name, u.last_name, u.email, u.password_hash,
		       u.enabled, u.account_locked, u.created_at, u.updated_at,
		       COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
		`+where+`
		GROUP BY u.id
	`, arg).Scan(
			&u.ID,
			&u.FirstName,
			&u.LastName,
			&u.Email,
			&u.PasswordHash,
			&u.Enabled,
			&u.AccountLocked,
			&u.CreatedAt,
			&u.UpdatedAt,
			&u.Roles,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// SetEnabledTx flips the enabled flag inside the activation transaction.
func (repo *UsersRepo) SetEnabledTx(ctx context.Context, tx pgx.Tx, userID string, enabled bool) (err error) {
	var tag pgconn.CommandTag

	err = repo.observe("users.set_enabled_tx", func() error {
		var e error
		tag, e = tx.Exec(ctx, `
		UPDATE users SET enabled = $2, updated_at = now() WHERE id = $1
	`, userID, enabled)
		return e
	})

	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		err = user.ErrNotFound
		return
	}

	return
}
