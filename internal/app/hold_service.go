package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"flashsale/internal/clock"
	"flashsale/internal/domain"
)

type HoldRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error)
	AvailableStock(ctx context.Context, productID string, now time.Time) (int, error)
	CreateHold(ctx context.Context, hold domain.Hold) error
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	HoldConsumed(ctx context.Context, holdID string) (bool, error)
	DeleteHold(ctx context.Context, holdID string) error
}

// CounterCache mirrors per-product available stock for cheap rejection of
// doomed reservations. It is never the source of truth; the authoritative
// recheck happens under the product row lock.
type CounterCache interface {
	Peek(ctx context.Context, productID string) (int, error)
	Set(ctx context.Context, productID string, value int, ttl time.Duration) error
	DecrementBy(ctx context.Context, productID string, n int) (int, error)
	IncrementBy(ctx context.Context, productID string, n int) (int, error)
}

type HoldService struct {
	repo     HoldRepository
	cache    CounterCache
	clock    clock.Clock
	holdTTL  time.Duration
	cacheTTL time.Duration
	group    singleflight.Group
}

const (
	defaultHoldTTL  = 2 * time.Minute
	defaultCacheTTL = 5 * time.Minute
)

func NewHoldService(repo HoldRepository, cache CounterCache, clk clock.Clock, opts ...HoldServiceOption) *HoldService {
	svc := &HoldService{
		repo:     repo,
		cache:    cache,
		clock:    clk,
		holdTTL:  defaultHoldTTL,
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type HoldServiceOption func(*HoldService)

// WithHoldTTL overrides the default lifetime of new holds.
func WithHoldTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithCacheTTL overrides the freshness window of the counter cache.
func WithCacheTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

type CreateHoldInput struct {
	ProductID string
	Qty       int
}

func (s *HoldService) CreateHold(ctx context.Context, in CreateHoldInput) (domain.Hold, error) {
	if in.ProductID == "" {
		return domain.Hold{}, domain.ErrInvalidID
	}
	if in.Qty <= 0 {
		return domain.Hold{}, domain.ErrInvalidQuantity
	}

	// Fast path: reject against the cached counter before paying for a row
	// lock. Races slipping through here are caught by the recheck below.
	cached, err := s.cachedAvailable(ctx, in.ProductID)
	if err != nil {
		return domain.Hold{}, err
	}
	if in.Qty > cached {
		return domain.Hold{}, domain.ErrInsufficientStock
	}

	now := s.clock.Now()
	var hold domain.Hold
	decremented := false

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		product, err := s.repo.GetProductForUpdate(txCtx, in.ProductID)
		if err != nil {
			return err
		}

		available, err := s.repo.AvailableStock(txCtx, product.ID, now)
		if err != nil {
			return err
		}
		if in.Qty > available {
			return domain.ErrInsufficientStock
		}

		remaining, err := s.cache.DecrementBy(ctx, product.ID, in.Qty)
		switch {
		case errors.Is(err, domain.ErrCacheMiss):
			// The counter lapsed between the fast path and here. Leave it
			// absent; the next read recomputes from the ledger.
		case err != nil:
			return err
		default:
			decremented = true
			if remaining < 0 {
				// A concurrent reservation won the counter; give the units
				// back and fail rather than trust a desynchronized mirror.
				if _, err := s.cache.IncrementBy(ctx, product.ID, in.Qty); err == nil || errors.Is(err, domain.ErrCacheMiss) {
					decremented = false
				}
				return domain.ErrInsufficientStock
			}
		}

		hold = domain.Hold{
			ID:        newID(),
			ProductID: product.ID,
			Qty:       in.Qty,
			ExpiresAt: now.Add(s.holdTTL),
			Token:     newToken(),
			CreatedAt: now,
		}
		return s.repo.CreateHold(txCtx, hold)
	})
	if err != nil {
		// Every abort after the counter decrement must compensate, or the
		// cache would under-report availability until its TTL expires.
		if decremented {
			_, _ = s.cache.IncrementBy(ctx, in.ProductID, in.Qty)
		}
		return domain.Hold{}, err
	}

	return hold, nil
}

// ReleaseIfExpired releases the reserved quantity of an expired, unconsumed
// hold back to the ledger and the counter cache. It is a no-op for active,
// consumed or already-released holds, so an external reaper may call it
// redundantly and concurrently.
func (s *HoldService) ReleaseIfExpired(ctx context.Context, holdID string) error {
	if holdID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	released := false
	var productID string
	var qty int

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		hold, err := s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			if errors.Is(err, domain.ErrHoldNotFound) {
				return nil
			}
			return err
		}
		if hold.Active(now) {
			return nil
		}
		consumed, err := s.repo.HoldConsumed(txCtx, hold.ID)
		if err != nil {
			return err
		}
		if consumed {
			return nil
		}
		if err := s.repo.DeleteHold(txCtx, hold.ID); err != nil {
			return err
		}
		released = true
		productID = hold.ProductID
		qty = hold.Qty
		return nil
	})
	if err != nil {
		return err
	}
	if released {
		_, _ = s.cache.IncrementBy(ctx, productID, qty)
	}
	return nil
}

// cachedAvailable reads the counter cache, recomputing from the ledger on a
// miss. Concurrent recomputes for the same product collapse into one query.
func (s *HoldService) cachedAvailable(ctx context.Context, productID string) (int, error) {
	if v, err := s.cache.Peek(ctx, productID); err == nil {
		return v, nil
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		return 0, err
	}

	v, err, _ := s.group.Do(productID, func() (any, error) {
		available, err := s.repo.AvailableStock(ctx, productID, s.clock.Now())
		if err != nil {
			return 0, err
		}
		if err := s.cache.Set(ctx, productID, available, s.cacheTTL); err != nil {
			return 0, err
		}
		return available, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
