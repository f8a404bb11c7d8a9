package postgres

import (
	"context"
	"errors"

	"github.com/booknest/booknest/internal/domain/token"
	"github.com/booknest/booknest/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *TokensRepo {
	return &TokensRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *TokensRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *TokensRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return repo.pool.BeginTx(ctx, pgx.TxOptions{})
}

func (repo *TokensRepo) CreateTx(ctx context.Context, tx pgx.Tx, t token.ActivationToken) (err error) {
	err = repo.observe("tokens.create_tx", func() error {
		_, e := tx.Exec(ctx, `
		INSERT INTO activation_tokens (id, code, user_id, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5)
	`, t.ID, t.Code, t.UserID, t.CreatedAt, t.ExpiresAt)
		return e
	})
	return
}

// GetByCodeForUpdateTx locks the token row so a concurrent activation of the
// same code observes the ValidatedAt it sets.
func (repo *TokensRepo) GetByCodeForUpdateTx(ctx context.Context, tx pgx.Tx, code string) (token.ActivationToken, error) {
	var t token.ActivationToken

	err := repo.observe("tokens.get_by_code_for_update", func() error {
		return tx.QueryRow(ctx, `
		SELECT id, code, user_id, created_at, expires_at, validated_at
		FROM activation_tokens
		WHERE code = $1
		FOR UPDATE
	`, code).Scan(&t.ID, &t.Code, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.ValidatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return token.ActivationToken{}, token.ErrNotFound
		}

		return token.ActivationToken{}, err
	}
	return t, nil
}

func (repo *TokensRepo) GetByID(ctx context.Context, id string) (token.ActivationToken, error) {
	var t token.ActivationToken

	err := repo.observe("tokens.get_by_id", func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT id, code, user_id, created_at, expires_at, validated_at
		FROM activation_tokens
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Code, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.ValidatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return token.ActivationToken{}, token.ErrNotFound
		}

		return token.ActivationToken{}, err
	}
	return t, nil
}

func (repo *TokensRepo) MarkValidatedTx(ctx context.Context, tx pgx.Tx, tokenID string) (err error) {
	err = repo.observe("tokens.mark_validated_tx", func() error {
		_, e := tx.Exec(ctx, `
		UPDATE activation_tokens SET validated_at = now() WHERE id = $1
	`, tokenID)
		return e
	})
	return
}
