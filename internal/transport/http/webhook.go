package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"flashsale/internal/app"
	"flashsale/internal/domain"
	"flashsale/internal/metrics"
)

const idempotencyHeader = "Idempotency-Key"

// PaymentSettler is the minimal interface needed to settle payment outcomes.
type PaymentSettler interface {
	HandlePaymentOutcome(ctx context.Context, in app.PaymentOutcomeInput) (app.SettlementResponse, error)
}

// HandlePaymentWebhook returns an HTTP handler for externally reported
// payment outcomes. The response written is byte-for-byte the stored
// settlement response, so replays are verbatim.
func HandlePaymentWebhook(svc PaymentSettler, m *metrics.CheckoutMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))

		var req webhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		resp, err := svc.HandlePaymentOutcome(r.Context(), app.PaymentOutcomeInput{
			IdempotencyKey: key,
			OrderID:        req.OrderID,
			Outcome:        req.Outcome,
		})
		if err != nil {
			switch err {
			case domain.ErrIdempotencyKeyRequired:
				writeError(w, http.StatusBadRequest, codeIdempotencyRequired, err.Error())
			case domain.ErrMissingFields:
				writeError(w, http.StatusBadRequest, codeMissingFields, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		if resp.StatusCode == http.StatusOK {
			m.CountSettlement(req.Outcome)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	}
}

type webhookRequest struct {
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
}
