package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flashsale/internal/app"
	"flashsale/internal/domain"
)

const defaultMirrorTTL = 24 * time.Hour

// IdempotencyMirror layers a TTL'd Redis copy of settlement responses in
// front of the authoritative store. Mirror misses fall through; mirror
// write failures are swallowed because the table remains authoritative.
type IdempotencyMirror struct {
	client        *redis.Client
	authoritative app.IdempotencyStore
	ttl           time.Duration
}

func NewIdempotencyMirror(client *redis.Client, authoritative app.IdempotencyStore) *IdempotencyMirror {
	return &IdempotencyMirror{
		client:        client,
		authoritative: authoritative,
		ttl:           defaultMirrorTTL,
	}
}

type mirrorEntry struct {
	Body       json.RawMessage `json:"body"`
	StatusCode int             `json:"status_code"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (m *IdempotencyMirror) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	raw, err := m.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err == nil {
		var entry mirrorEntry
		if err := json.Unmarshal(raw, &entry); err == nil {
			return &domain.IdempotencyRecord{
				Key:        key,
				Body:       entry.Body,
				StatusCode: entry.StatusCode,
				CreatedAt:  entry.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("mirror get: %w", err)
	}

	rec, err := m.authoritative.Get(ctx, key)
	if err != nil || rec == nil {
		return rec, err
	}
	m.mirror(ctx, *rec)
	return rec, nil
}

func (m *IdempotencyMirror) Put(ctx context.Context, rec domain.IdempotencyRecord) error {
	if err := m.authoritative.Put(ctx, rec); err != nil {
		return err
	}
	m.mirror(ctx, rec)
	return nil
}

func (m *IdempotencyMirror) mirror(ctx context.Context, rec domain.IdempotencyRecord) {
	raw, err := json.Marshal(mirrorEntry{
		Body:       rec.Body,
		StatusCode: rec.StatusCode,
		CreatedAt:  rec.CreatedAt,
	})
	if err != nil {
		return
	}
	_ = m.client.Set(ctx, idempotencyKey(rec.Key), raw, m.ttl).Err()
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}
