package app

import (
	"context"
	"sync"
	"time"

	"flashsale/internal/domain"
)

// fakeCache is an in-memory CounterCache. peekOverride lets tests present a
// stale fast-path value that disagrees with the stored counter.
type fakeCache struct {
	mu           sync.Mutex
	values       map[string]int
	ttls         map[string]time.Duration
	peekOverride map[string]int
	sets         int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values:       make(map[string]int),
		ttls:         make(map[string]time.Duration),
		peekOverride: make(map[string]int),
	}
}

func (f *fakeCache) Peek(_ context.Context, productID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.peekOverride[productID]; ok {
		return v, nil
	}
	v, ok := f.values[productID]
	if !ok {
		return 0, domain.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, productID string, value int, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[productID] = value
	f.ttls[productID] = ttl
	f.sets++
	return nil
}

// Updates only touch live keys, like the Redis implementation: a lapsed
// counter reports a miss instead of coming back as a partial figure.
func (f *fakeCache) DecrementBy(_ context.Context, productID string, n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[productID]; !ok {
		return 0, domain.ErrCacheMiss
	}
	f.values[productID] -= n
	return f.values[productID], nil
}

func (f *fakeCache) IncrementBy(_ context.Context, productID string, n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[productID]; !ok {
		return 0, domain.ErrCacheMiss
	}
	f.values[productID] += n
	return f.values[productID], nil
}

func (f *fakeCache) value(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[productID]
}

func (f *fakeCache) has(productID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[productID]
	return ok
}

// fakeMutex hands out in-process leases with fakeHoldRepo-style bookkeeping.
type fakeMutex struct {
	mu       sync.Mutex
	held     map[string]bool
	releases int
}

func newFakeMutex() *fakeMutex {
	return &fakeMutex{held: make(map[string]bool)}
}

func (f *fakeMutex) TryAcquire(_ context.Context, key string, _ time.Duration) (Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockBusy
	}
	f.held[key] = true
	return &fakeLease{mutex: f, key: key}, nil
}

func (f *fakeMutex) heldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.held {
		if h {
			n++
		}
	}
	return n
}

type fakeLease struct {
	mutex *fakeMutex
	key   string
}

func (l *fakeLease) Release(_ context.Context) error {
	l.mutex.mu.Lock()
	defer l.mutex.mu.Unlock()
	l.mutex.held[l.key] = false
	l.mutex.releases++
	return nil
}

// fakeIdemStore is an in-memory write-once IdempotencyStore.
type fakeIdemStore struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord
	putErr  error
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{records: make(map[string]domain.IdempotencyRecord)}
}

func (f *fakeIdemStore) Get(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeIdemStore) Put(_ context.Context, rec domain.IdempotencyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	if _, ok := f.records[rec.Key]; !ok {
		f.records[rec.Key] = rec
	}
	return nil
}
