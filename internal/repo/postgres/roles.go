package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/booknest/booknest/internal/cache"
	"github.com/booknest/booknest/internal/domain/user"
	"github.com/booknest/booknest/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RolesRepo reads the static roles table. Lookups sit on the registration
// hot path, so ids are cached in-process for a few minutes.
type RolesRepo struct {
	pool   *pgxpool.Pool
	prom   *observability.Prom
	byName *cache.Cache[string, user.Role]
}

func NewRolesRepo(pool *pgxpool.Pool, prom *observability.Prom) *RolesRepo {
	return &RolesRepo{
		pool:   pool,
		prom:   prom,
		byName: cache.New[string, user.Role](5 * time.Minute),
	}
}

func (repo *RolesRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *RolesRepo) GetByName(ctx context.Context, name string) (user.Role, error) {
	if r, ok := repo.byName.Get(name); ok {
		return r, nil
	}

	var r user.Role

	err := repo.observe("roles.get_by_name", func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT id, name FROM roles WHERE name = $1
	`, name).Scan(&r.ID, &r.Name)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Role{}, user.ErrRoleNotSeeded
		}

		return user.Role{}, err
	}

	repo.byName.Set(name, r)
	return r, nil
}
