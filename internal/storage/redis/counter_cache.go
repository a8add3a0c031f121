package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"flashsale/internal/domain"
)

// Counter updates run only against a live key. A lapsed key must come back
// through Set with a fresh TTL, never through an increment, or a stale
// partial count would persist without an expiry and shadow the ledger.
var (
	decrementScript = redis.NewScript(`
if redis.call('exists', KEYS[1]) == 1 then
	return redis.call('decrby', KEYS[1], ARGV[1])
end
return false
`)

	incrementScript = redis.NewScript(`
if redis.call('exists', KEYS[1]) == 1 then
	return redis.call('incrby', KEYS[1], ARGV[1])
end
return false
`)
)

// CounterCache mirrors per-product available stock in Redis. Increments and
// decrements run server-side, so concurrent reservations never see a
// read-modify-write window. Entries carry a freshness TTL after which the
// next miss forces a recompute from the ledger.
type CounterCache struct {
	client *redis.Client
}

func NewCounterCache(client *redis.Client) *CounterCache {
	return &CounterCache{client: client}
}

func (c *CounterCache) Peek(ctx context.Context, productID string) (int, error) {
	val, err := c.client.Get(ctx, stockKey(productID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrCacheMiss
		}
		return 0, fmt.Errorf("peek stock counter: %w", err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("peek stock counter: %w", err)
	}
	return n, nil
}

func (c *CounterCache) Set(ctx context.Context, productID string, value int, ttl time.Duration) error {
	if err := c.client.Set(ctx, stockKey(productID), value, ttl).Err(); err != nil {
		return fmt.Errorf("set stock counter: %w", err)
	}
	return nil
}

// DecrementBy reserves n units on a live counter, keeping its TTL. A lapsed
// or never-set key reports ErrCacheMiss instead of materializing a counter
// the ledger never seeded.
func (c *CounterCache) DecrementBy(ctx context.Context, productID string, n int) (int, error) {
	remaining, err := decrementScript.Run(ctx, c.client, []string{stockKey(productID)}, n).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrCacheMiss
		}
		return 0, fmt.Errorf("decrement stock counter: %w", err)
	}
	return remaining, nil
}

// IncrementBy returns n units to a live counter, keeping its TTL. Restocks
// against a lapsed key report ErrCacheMiss; the next read recomputes the
// full figure from the ledger.
func (c *CounterCache) IncrementBy(ctx context.Context, productID string, n int) (int, error) {
	remaining, err := incrementScript.Run(ctx, c.client, []string{stockKey(productID)}, n).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrCacheMiss
		}
		return 0, fmt.Errorf("increment stock counter: %w", err)
	}
	return remaining, nil
}

func stockKey(productID string) string {
	return "product_stock:" + productID
}
