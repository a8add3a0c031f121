package postgres

import (
	"context"
	"testing"
	"time"

	"flashsale/internal/domain"
	"flashsale/internal/testutil"
)

func TestSettlementRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewSettlementRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	seed := func(ctx context.Context) (productID, holdID, orderID string) {
		t.Helper()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()
		productID = testutil.InsertProduct(t, ctx, pool, "Sneaker", 9900, 7)
		holdID = testutil.InsertHold(t, ctx, pool, productID, domain.Hold{
			Qty: 3, ExpiresAt: now.Add(2 * time.Minute),
		})
		orderID = testutil.InsertOrder(t, ctx, pool, holdID, domain.OrderStatusPending, 29700)
		return productID, holdID, orderID
	}

	t.Run("GetOrderForUpdate returns order and lookup errors", func(t *testing.T) {
		ctx := context.Background()
		_, holdID, orderID := seed(ctx)

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			o, err := repo.GetOrderForUpdate(txCtx, orderID)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if o.ID != orderID || o.HoldID != holdID || o.Status != domain.OrderStatusPending {
				t.Fatalf("unexpected order: %+v", o)
			}

			missingID := "00000000-0000-0000-0000-000000000001"
			if _, err := repo.GetOrderForUpdate(txCtx, missingID); err != domain.ErrOrderNotFound {
				t.Fatalf("expected ErrOrderNotFound, got %v", err)
			}
			if _, err := repo.GetOrderForUpdate(txCtx, "not-a-uuid"); err != domain.ErrInvalidID {
				t.Fatalf("expected ErrInvalidID, got %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}
	})

	t.Run("UpdateOrderStatus persists the transition", func(t *testing.T) {
		ctx := context.Background()
		_, _, orderID := seed(ctx)

		if err := repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPaid); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var status string
		if err := pool.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1", orderID).Scan(&status); err != nil {
			t.Fatalf("query status: %v", err)
		}
		if status != string(domain.OrderStatusPaid) {
			t.Fatalf("expected paid, got %s", status)
		}

		missingID := "00000000-0000-0000-0000-000000000001"
		if err := repo.UpdateOrderStatus(ctx, missingID, domain.OrderStatusPaid); err != domain.ErrOrderNotFound {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("FreezeHold backdates expiry", func(t *testing.T) {
		ctx := context.Background()
		_, holdID, _ := seed(ctx)
		frozenAt := time.Now().UTC().Truncate(time.Microsecond)

		if err := repo.FreezeHold(ctx, holdID, frozenAt); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		h, err := repo.GetHold(ctx, holdID)
		if err != nil {
			t.Fatalf("get hold: %v", err)
		}
		if !h.ExpiresAt.Equal(frozenAt) {
			t.Fatalf("expected expiry %v, got %v", frozenAt, h.ExpiresAt)
		}

		missingID := "00000000-0000-0000-0000-000000000001"
		if err := repo.FreezeHold(ctx, missingID, frozenAt); err != domain.ErrHoldNotFound {
			t.Fatalf("expected ErrHoldNotFound, got %v", err)
		}
	})

	t.Run("IncrementProductStock restores units", func(t *testing.T) {
		ctx := context.Background()
		productID, _, _ := seed(ctx)

		if err := repo.IncrementProductStock(ctx, productID, 3); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var stock int
		if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = $1", productID).Scan(&stock); err != nil {
			t.Fatalf("query stock: %v", err)
		}
		if stock != 10 {
			t.Fatalf("expected stock 10, got %d", stock)
		}
	})
}
