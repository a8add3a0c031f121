package app

import (
	"context"
	"time"

	"flashsale/internal/clock"
	"flashsale/internal/domain"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	GetOrderByHoldID(ctx context.Context, holdID string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	DecrementProductStock(ctx context.Context, productID string, qty int) error
}

// Lease is a held distributed-mutex claim. Release is safe to call even
// after the lease TTL elapsed; only the holder's release takes effect.
type Lease interface {
	Release(ctx context.Context) error
}

// DistributedMutex hands out short-lived named leases. TryAcquire never
// blocks: contention surfaces as domain.ErrLockBusy.
type DistributedMutex interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type OrderService struct {
	repo    OrderRepository
	mutex   DistributedMutex
	clock   clock.Clock
	lockTTL time.Duration
}

const defaultLockTTL = 10 * time.Second

func NewOrderService(repo OrderRepository, mutex DistributedMutex, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:    repo,
		mutex:   mutex,
		clock:   clk,
		lockTTL: defaultLockTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OrderServiceOption func(*OrderService)

// WithLockTTL overrides the lease TTL guarding the hold-to-order transition.
func WithLockTTL(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

type CreateOrderInput struct {
	HoldID string
}

// CreateOrder converts an active hold into a pending order, decrementing
// the product's on-hand stock exactly once. The lease narrows the window
// for concurrent attempts; the unique order-per-hold check inside the
// transaction is what actually guarantees at-most-once conversion.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if in.HoldID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}

	lease, err := s.mutex.TryAcquire(ctx, holdLockKey(in.HoldID), s.lockTTL)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = lease.Release(ctx)
	}()

	now := s.clock.Now()
	var order domain.Order

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		hold, err := s.repo.GetHoldForUpdate(txCtx, in.HoldID)
		if err != nil {
			return err
		}
		if !hold.Active(now) {
			return domain.ErrHoldExpired
		}

		existing, err := s.repo.GetOrderByHoldID(txCtx, in.HoldID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateOrder
		}

		product, err := s.repo.GetProduct(txCtx, hold.ProductID)
		if err != nil {
			return err
		}

		order = domain.Order{
			ID:         newID(),
			HoldID:     hold.ID,
			Status:     domain.OrderStatusPending,
			TotalCents: product.PriceCents * int64(hold.Qty),
			CreatedAt:  now,
		}
		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		return s.repo.DecrementProductStock(txCtx, hold.ProductID, hold.Qty)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func holdLockKey(holdID string) string {
	return "hold_order:" + holdID
}
