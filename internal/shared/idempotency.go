package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict is returned when a key was already used.
var ErrIdempotencyConflict = errors.New("idempotency key already used")

// IdempotencyStore guards mutating endpoints against duplicate retries.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewIdempotencyStore constructs IdempotencyStore with the given retention window.
func NewIdempotencyStore(pool *pgxpool.Pool, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{pool: pool, ttl: ttl}
}

// CheckAndInsert claims the key for scope. Returns ErrIdempotencyConflict when
// the key is already claimed.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, scope, key string, userID int64) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (scope, key, user_id, created_at)
VALUES ($1, $2, $3, NOW())`, scope, key, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Delete releases a claimed key, used when the guarded operation fails and the
// client should be allowed to retry with the same key.
func (s *IdempotencyStore) Delete(ctx context.Context, scope, key string) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE scope=$1 AND key=$2`, scope, key)
	return err
}

// Cleanup drops keys older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < NOW() - $1::interval`, s.ttl.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
