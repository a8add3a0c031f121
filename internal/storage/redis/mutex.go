package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flashsale/internal/app"
	"flashsale/internal/domain"
)

// releaseScript deletes the lease only when the stored token matches, so a
// lease that expired and was re-acquired by someone else is never released
// by the old holder.
var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
	return redis.call('del', KEYS[1])
end
return 0
`)

// Mutex hands out non-blocking named leases backed by SET NX with a TTL.
// A crashed holder is fenced out by expiry rather than manual recovery.
type Mutex struct {
	client *redis.Client
}

func NewMutex(client *redis.Client) *Mutex {
	return &Mutex{client: client}
}

func (m *Mutex) TryAcquire(ctx context.Context, key string, ttl time.Duration) (app.Lease, error) {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return nil, domain.ErrLockBusy
	}
	return &lease{client: m.client, key: key, token: token}, nil
}

type lease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
