package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"flashsale/internal/clock"
	"flashsale/internal/domain"
)

type WebhookRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	GetHold(ctx context.Context, holdID string) (domain.Hold, error)
	FreezeHold(ctx context.Context, holdID string, at time.Time) error
	IncrementProductStock(ctx context.Context, productID string, qty int) error
}

// IdempotencyStore records the response produced for a settlement key.
// Get returns (nil, nil) when the key has never been seen.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	Put(ctx context.Context, rec domain.IdempotencyRecord) error
}

// Payment outcomes reported by the external payment provider.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type WebhookService struct {
	repo  WebhookRepository
	idem  IdempotencyStore
	cache CounterCache
	clock clock.Clock
	log   zerolog.Logger
}

func NewWebhookService(repo WebhookRepository, idem IdempotencyStore, cache CounterCache, clk clock.Clock, log zerolog.Logger) *WebhookService {
	return &WebhookService{
		repo:  repo,
		idem:  idem,
		cache: cache,
		clock: clk,
		log:   log,
	}
}

type PaymentOutcomeInput struct {
	IdempotencyKey string
	OrderID        string
	Outcome        string
}

// SettlementResponse is the exact body/status pair returned to the caller
// and stored for replay under the idempotency key.
type SettlementResponse struct {
	StatusCode int
	Body       json.RawMessage
}

// HandlePaymentOutcome settles an order's payment result exactly once.
// Replays with a known idempotency key return the stored response verbatim
// without touching the ledger or the cache.
func (s *WebhookService) HandlePaymentOutcome(ctx context.Context, in PaymentOutcomeInput) (SettlementResponse, error) {
	if in.IdempotencyKey == "" {
		return SettlementResponse{}, domain.ErrIdempotencyKeyRequired
	}

	// The stored response wins over payload validation: a retried delivery
	// with a mangled body still replays the original outcome.
	if rec, err := s.idem.Get(ctx, in.IdempotencyKey); err != nil {
		return SettlementResponse{}, err
	} else if rec != nil {
		return SettlementResponse{StatusCode: rec.StatusCode, Body: rec.Body}, nil
	}

	if in.OrderID == "" || (in.Outcome != OutcomeSuccess && in.Outcome != OutcomeFailure) {
		return SettlementResponse{}, domain.ErrMissingFields
	}

	now := s.clock.Now()
	var resp SettlementResponse

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, in.OrderID)
		if err != nil {
			switch err {
			case domain.ErrOrderNotFound, domain.ErrInvalidID:
				resp = settlementError(http.StatusNotFound, "order not found")
				return nil
			default:
				return err
			}
		}

		if order.Status != domain.OrderStatusPending {
			resp = settlementBody(http.StatusOK, map[string]any{
				"message": "order already processed",
				"status":  string(order.Status),
			})
			return nil
		}

		hold, err := s.repo.GetHold(txCtx, order.HoldID)
		if err != nil {
			return err
		}

		status := domain.OrderStatusPaid
		if in.Outcome == OutcomeFailure {
			status = domain.OrderStatusCancelled
		}
		if err := s.repo.UpdateOrderStatus(txCtx, order.ID, status); err != nil {
			return err
		}
		if status == domain.OrderStatusCancelled {
			if err := s.repo.IncrementProductStock(txCtx, hold.ProductID, hold.Qty); err != nil {
				return err
			}
			if _, err := s.cache.IncrementBy(ctx, hold.ProductID, hold.Qty); err != nil && !errors.Is(err, domain.ErrCacheMiss) {
				s.log.Warn().Err(err).Str("product_id", hold.ProductID).
					Msg("counter cache restock failed; will self-heal on expiry")
			}
		}
		// Freeze the hold so the expiry release path never restocks it on
		// top of the settlement outcome.
		if err := s.repo.FreezeHold(txCtx, hold.ID, now); err != nil {
			return err
		}

		resp = settlementBody(http.StatusOK, map[string]any{"status": string(status)})
		return nil
	})
	if err != nil {
		return SettlementResponse{}, err
	}

	// The business transaction is committed before the idempotency record is
	// written. A crash in between is safe: the replay re-executes and is
	// short-circuited by the already-processed check above.
	rec := domain.IdempotencyRecord{
		Key:        in.IdempotencyKey,
		Body:       resp.Body,
		StatusCode: resp.StatusCode,
		CreatedAt:  now,
	}
	if err := s.idem.Put(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("key", in.IdempotencyKey).
			Msg("idempotency record write failed after settlement commit")
	}

	return resp, nil
}

func settlementBody(status int, body map[string]any) SettlementResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		return settlementError(http.StatusInternalServerError, "internal error")
	}
	return SettlementResponse{StatusCode: status, Body: raw}
}

func settlementError(status int, msg string) SettlementResponse {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return SettlementResponse{StatusCode: status, Body: raw}
}
