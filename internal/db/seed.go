package db

import (
	"context"
	"errors"
	"time"

	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/domain/user"
	"github.com/booknest/booknest/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureRoles inserts the static role rows if missing. Idempotent, runs on
// every boot.
func EnsureRoles(ctx context.Context, pool *pgxpool.Pool) error {
	for _, name := range []string{user.RoleUser, user.RoleAdmin} {
		_, err := pool.Exec(ctx, `
		INSERT INTO roles (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, uuid.NewString(), name)

		if err != nil {
			return err
		}
	}

	return nil
}

// EnsureAdminUser creates an enabled admin account from config, if one is
// configured and not present yet.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, enabled, account_locked, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,TRUE,FALSE,$6,$7)
	`, id, cfg.AdminFirstName, cfg.AdminLastName, cfg.AdminEmail, hash, now, now)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = ANY($2)
	`, id, []string{user.RoleUser, user.RoleAdmin})

	return err
}
