package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogSync reconciles the matrix-defined permission keys into the
// permissions table so role grants can reference them. Existing keys are
// left untouched; keys no longer in the matrix are kept for audit history.
type CatalogSync struct {
	pool  *pgxpool.Pool
	index *Index
}

// NewCatalogSync constructs a CatalogSync.
func NewCatalogSync(pool *pgxpool.Pool, index *Index) *CatalogSync {
	return &CatalogSync{pool: pool, index: index}
}

// Run upserts every known permission key and returns how many were new.
func (c *CatalogSync) Run(ctx context.Context) (int, error) {
	inserted := 0
	for _, key := range c.index.Keys() {
		module, action, ok := key.Split()
		if !ok {
			continue
		}
		tag, err := c.pool.Exec(ctx,
			`INSERT INTO permissions (permission_key, module, action) VALUES ($1, $2, $3) ON CONFLICT (permission_key) DO NOTHING`,
			string(key), string(module), string(action))
		if err != nil {
			return inserted, fmt.Errorf("rbac: sync permission %s: %w", key, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
