package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict indicates the key was already reserved.
var ErrIdempotencyConflict = errors.New("shared: idempotency key already processed")

// IdempotencyStore reserves request keys on behalf of one owning module, so
// a retried request is rejected before any work runs. Keys from different
// modules never collide.
type IdempotencyStore struct {
	pool   *pgxpool.Pool
	module string
}

// NewIdempotencyStore binds a store to its owning module.
func NewIdempotencyStore(pool *pgxpool.Pool, module string) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, module: module}
}

// Reserve claims key for the store's module. A second reservation of the
// same key returns ErrIdempotencyConflict.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) error {
	if s == nil {
		return errors.New("shared: idempotency store not initialised")
	}
	if key == "" {
		return errors.New("shared: idempotency key required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, now())`,
		key, s.module)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrIdempotencyConflict
	}
	return err
}

// Release gives the key back, so the caller may retry a request whose
// processing failed after the reservation.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if s == nil || key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE key=$1 AND module=$2`, key, s.module)
	return err
}

// Prune drops the module's reservations older than retention. Run it
// periodically; the table otherwise grows without bound.
func (s *IdempotencyStore) Prune(ctx context.Context, retention time.Duration) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE module=$1 AND created_at < $2`,
		s.module, time.Now().Add(-retention))
	return err
}
