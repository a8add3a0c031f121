package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flashsale/internal/clock"
	"flashsale/internal/domain"
)

func TestWebhookService_HandlePaymentOutcome(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)

	makeSvc := func(repo *fakeSettlementRepo) (*WebhookService, *fakeIdemStore, *fakeCache) {
		idem := newFakeIdemStore()
		cache := newFakeCache()
		svc := NewWebhookService(repo, idem, cache, clock.NewFixed(now), zerolog.Nop())
		return svc, idem, cache
	}

	pendingRepo := func() *fakeSettlementRepo {
		return newFakeSettlementRepo(
			[]domain.Product{{ID: "prod-1", PriceCents: 10000, Stock: 7}},
			[]domain.Hold{{ID: "h1", ProductID: "prod-1", Qty: 3, ExpiresAt: now.Add(time.Minute)}},
			[]domain.Order{{ID: "o1", HoldID: "h1", Status: domain.OrderStatusPending, TotalCents: 30000}},
		)
	}

	t.Run("rejects missing token and fields before side effects", func(t *testing.T) {
		repo := pendingRepo()
		svc, _, _ := makeSvc(repo)

		if _, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{OrderID: "o1", Outcome: OutcomeSuccess}); err != domain.ErrIdempotencyKeyRequired {
			t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
		}
		if _, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{IdempotencyKey: "k", Outcome: OutcomeSuccess}); err != domain.ErrMissingFields {
			t.Fatalf("expected ErrMissingFields, got %v", err)
		}
		if _, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{IdempotencyKey: "k", OrderID: "o1", Outcome: "refund"}); err != domain.ErrMissingFields {
			t.Fatalf("expected ErrMissingFields for unknown outcome, got %v", err)
		}
		if repo.txCalls != 0 {
			t.Fatalf("expected no transaction, got %d", repo.txCalls)
		}
	})

	t.Run("success marks order paid and freezes hold", func(t *testing.T) {
		repo := pendingRepo()
		svc, idem, _ := makeSvc(repo)

		resp, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{
			IdempotencyKey: "key-1", OrderID: "o1", Outcome: OutcomeSuccess,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		assertBodyField(t, resp.Body, "status", "paid")

		if got := repo.orders["o1"].Status; got != domain.OrderStatusPaid {
			t.Fatalf("expected order paid, got %s", got)
		}
		if got := repo.holds["h1"].ExpiresAt; !got.Equal(now) {
			t.Fatalf("expected hold frozen at %v, got %v", now, got)
		}
		if got := repo.stock("prod-1"); got != 7 {
			t.Fatalf("expected stock unchanged on success, got %d", got)
		}
		if rec, _ := idem.Get(context.Background(), "key-1"); rec == nil {
			t.Fatalf("expected idempotency record stored")
		}
	})

	t.Run("failure cancels order and restores stock once", func(t *testing.T) {
		repo := pendingRepo()
		svc, _, cache := makeSvc(repo)
		if err := cache.Set(context.Background(), "prod-1", 4, time.Minute); err != nil {
			t.Fatalf("seed cache: %v", err)
		}

		resp, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{
			IdempotencyKey: "key-1", OrderID: "o1", Outcome: OutcomeFailure,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		assertBodyField(t, resp.Body, "status", "cancelled")

		if got := repo.orders["o1"].Status; got != domain.OrderStatusCancelled {
			t.Fatalf("expected order cancelled, got %s", got)
		}
		if got := repo.stock("prod-1"); got != 10 {
			t.Fatalf("expected stock restored to 10, got %d", got)
		}
		if got := cache.value("prod-1"); got != 7 {
			t.Fatalf("expected cache counter restored by 3, got %d", got)
		}
		if got := repo.holds["h1"].ExpiresAt; !got.Equal(now) {
			t.Fatalf("expected hold frozen, got %v", got)
		}
	})

	t.Run("restock against a lapsed counter leaves no stale key", func(t *testing.T) {
		repo := pendingRepo()
		svc, _, cache := makeSvc(repo)

		_, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{
			IdempotencyKey: "key-1", OrderID: "o1", Outcome: OutcomeFailure,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := repo.stock("prod-1"); got != 10 {
			t.Fatalf("expected stock restored in the ledger, got %d", got)
		}
		// The counter stays absent so the next read recomputes the full
		// figure instead of trusting a key holding only the restocked qty.
		if cache.has("prod-1") {
			t.Fatalf("expected no counter key, got %d", cache.value("prod-1"))
		}
	})

	t.Run("replay with same token returns stored response without side effects", func(t *testing.T) {
		repo := pendingRepo()
		svc, _, _ := makeSvc(repo)

		in := PaymentOutcomeInput{IdempotencyKey: "key-1", OrderID: "o1", Outcome: OutcomeFailure}
		first, err := svc.HandlePaymentOutcome(context.Background(), in)
		if err != nil {
			t.Fatalf("first call: %v", err)
		}
		txAfterFirst := repo.txCalls
		stockAfterFirst := repo.stock("prod-1")

		for i := 0; i < 3; i++ {
			resp, err := svc.HandlePaymentOutcome(context.Background(), in)
			if err != nil {
				t.Fatalf("replay %d: %v", i, err)
			}
			if resp.StatusCode != first.StatusCode || string(resp.Body) != string(first.Body) {
				t.Fatalf("replay %d: response differs: %d %s vs %d %s",
					i, resp.StatusCode, resp.Body, first.StatusCode, first.Body)
			}
		}
		if repo.txCalls != txAfterFirst {
			t.Fatalf("expected no further transactions, got %d", repo.txCalls)
		}
		if got := repo.stock("prod-1"); got != stockAfterFirst {
			t.Fatalf("expected stock mutated exactly once, got %d", got)
		}
	})

	t.Run("replay with a mangled body still returns the stored response", func(t *testing.T) {
		repo := pendingRepo()
		svc, _, _ := makeSvc(repo)

		first, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{
			IdempotencyKey: "key-1", OrderID: "o1", Outcome: OutcomeSuccess,
		})
		if err != nil {
			t.Fatalf("first call: %v", err)
		}

		// A retried delivery that lost its payload fields replays the
		// stored outcome instead of failing validation.
		resp, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{
			IdempotencyKey: "key-1",
		})
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if resp.StatusCode != first.StatusCode || string(resp.Body) != string(first.Body) {
			t.Fatalf("expected stored response, got %d %s", resp.StatusCode, resp.Body)
		}
	})

	t.Run("non-pending order reports already processed without mutation", func(t *testing.T) {
		repo := pendingRepo()
		repo.orders["o1"] = domain.Order{ID: "o1", HoldID: "h1", Status: domain.OrderStatusPaid}
		svc, _, _ := makeSvc(repo)

		resp, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{
			IdempotencyKey: "key-2", OrderID: "o1", Outcome: OutcomeFailure,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		assertBodyField(t, resp.Body, "message", "order already processed")
		assertBodyField(t, resp.Body, "status", "paid")
		if got := repo.stock("prod-1"); got != 7 {
			t.Fatalf("expected no stock mutation, got %d", got)
		}
	})

	t.Run("unknown order stores a replayable 404", func(t *testing.T) {
		repo := pendingRepo()
		svc, idem, _ := makeSvc(repo)

		resp, err := svc.HandlePaymentOutcome(context.Background(), PaymentOutcomeInput{
			IdempotencyKey: "key-3", OrderID: "missing", Outcome: OutcomeSuccess,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
		rec, _ := idem.Get(context.Background(), "key-3")
		if rec == nil || rec.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 recorded for replay, got %+v", rec)
		}
	})

	t.Run("lost idempotency write still settles exactly once", func(t *testing.T) {
		repo := pendingRepo()
		idem := newFakeIdemStore()
		idem.putErr = errors.New("store down")
		cache := newFakeCache()
		svc := NewWebhookService(repo, idem, cache, clock.NewFixed(now), zerolog.Nop())

		in := PaymentOutcomeInput{IdempotencyKey: "key-4", OrderID: "o1", Outcome: OutcomeFailure}
		resp, err := svc.HandlePaymentOutcome(context.Background(), in)
		if err != nil {
			t.Fatalf("expected response despite failed record write, got %v", err)
		}
		assertBodyField(t, resp.Body, "status", "cancelled")

		// The replay re-executes but the already-processed check stops any
		// second mutation.
		idem.putErr = nil
		resp2, err := svc.HandlePaymentOutcome(context.Background(), in)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		assertBodyField(t, resp2.Body, "message", "order already processed")
		if got := repo.stock("prod-1"); got != 10 {
			t.Fatalf("expected stock restored exactly once, got %d", got)
		}
	})
}

func assertBodyField(t *testing.T, body json.RawMessage, field, want string) {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal body %s: %v", body, err)
	}
	if got, _ := m[field].(string); got != want {
		t.Fatalf("expected %s=%q in %s", field, want, body)
	}
}

type fakeSettlementRepo struct {
	txMu    sync.Mutex
	txCalls int

	mu       sync.Mutex
	products map[string]domain.Product
	holds    map[string]domain.Hold
	orders   map[string]domain.Order
}

func newFakeSettlementRepo(products []domain.Product, holds []domain.Hold, orders []domain.Order) *fakeSettlementRepo {
	f := &fakeSettlementRepo{
		products: make(map[string]domain.Product),
		holds:    make(map[string]domain.Hold),
		orders:   make(map[string]domain.Order),
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	for _, h := range holds {
		f.holds[h.ID] = h
	}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeSettlementRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	f.txCalls++
	return fn(ctx)
}

func (f *fakeSettlementRepo) GetOrderForUpdate(_ context.Context, orderID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeSettlementRepo) UpdateOrderStatus(_ context.Context, orderID string, status domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	f.orders[orderID] = o
	return nil
}

func (f *fakeSettlementRepo) GetHold(_ context.Context, holdID string) (domain.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[holdID]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return h, nil
}

func (f *fakeSettlementRepo) FreezeHold(_ context.Context, holdID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[holdID]
	if !ok {
		return domain.ErrHoldNotFound
	}
	h.ExpiresAt = at
	f.holds[holdID] = h
	return nil
}

func (f *fakeSettlementRepo) IncrementProductStock(_ context.Context, productID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock += qty
	f.products[productID] = p
	return nil
}

func (f *fakeSettlementRepo) stock(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productID].Stock
}
