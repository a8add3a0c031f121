package http

import (
	"context"
	"encoding/json"
	"net/http"

	"flashsale/internal/app"
	"flashsale/internal/domain"
	"flashsale/internal/metrics"
)

// OrderCreator is the minimal interface needed to convert a hold into an order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
}

// HandleCreateOrder returns an HTTP handler for the hold-to-order transition.
func HandleCreateOrder(svc OrderCreator, m *metrics.CheckoutMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		order, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{HoldID: req.HoldID})
		if err != nil {
			switch err {
			case domain.ErrInvalidID, domain.ErrHoldNotFound:
				m.CountOrder("rejected_invalid")
				writeError(w, http.StatusUnprocessableEntity, codeHoldNotFound, "invalid hold")
			case domain.ErrHoldExpired:
				m.CountOrder("rejected_expired")
				writeError(w, http.StatusBadRequest, codeHoldExpired, err.Error())
			case domain.ErrDuplicateOrder:
				m.CountOrder("rejected_duplicate")
				writeError(w, http.StatusConflict, codeDuplicateOrder, err.Error())
			case domain.ErrLockBusy:
				m.CountOrder("rejected_busy")
				writeError(w, http.StatusTooManyRequests, codeLockBusy, "hold is being processed, try again")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		m.CountOrder("created")
		writeJSON(w, http.StatusCreated, createOrderResponse{
			OrderID: order.ID,
			Status:  string(order.Status),
		})
	}
}

type createOrderRequest struct {
	HoldID string `json:"hold_id"`
}

type createOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
