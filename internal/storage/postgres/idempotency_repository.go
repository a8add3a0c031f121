package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashsale/internal/domain"
)

// IdempotencyRepository is the authoritative store of settlement responses.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	const query = `SELECT key, response_body, status_code, created_at FROM idempotency_keys WHERE key = $1`

	var rec domain.IdempotencyRecord
	err := r.pool.QueryRow(ctx, query, key).
		Scan(&rec.Key, &rec.Body, &rec.StatusCode, &rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return &rec, nil
}

func (r *IdempotencyRepository) Put(ctx context.Context, rec domain.IdempotencyRecord) error {
	// Write-once: a concurrent replay that beat us to the insert already
	// stored the identical response, so losing the race is not an error.
	const stmt = `
INSERT INTO idempotency_keys (key, response_body, status_code, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO NOTHING`

	if _, err := r.pool.Exec(ctx, stmt, rec.Key, rec.Body, rec.StatusCode, rec.CreatedAt); err != nil {
		return fmt.Errorf("put idempotency record: %w", err)
	}
	return nil
}
