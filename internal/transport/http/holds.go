package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"flashsale/internal/app"
	"flashsale/internal/domain"
	"flashsale/internal/metrics"
)

// HoldCreator is the minimal interface needed to reserve stock.
type HoldCreator interface {
	CreateHold(ctx context.Context, in app.CreateHoldInput) (domain.Hold, error)
}

// HandleCreateHold returns an HTTP handler for reserving stock into a hold.
func HandleCreateHold(svc HoldCreator, m *metrics.CheckoutMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createHoldRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		hold, err := svc.CreateHold(r.Context(), app.CreateHoldInput{
			ProductID: req.ProductID,
			Qty:       req.Qty,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidQuantity:
				m.CountHold("rejected_invalid")
				writeError(w, http.StatusUnprocessableEntity, codeInvalidQuantity, err.Error())
			case domain.ErrInvalidID, domain.ErrProductNotFound:
				m.CountHold("rejected_invalid")
				writeError(w, http.StatusUnprocessableEntity, codeProductNotFound, "invalid product")
			case domain.ErrInsufficientStock:
				m.CountHold("rejected_insufficient")
				writeError(w, http.StatusConflict, codeInsufficientStock, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		m.CountHold("accepted")
		writeJSON(w, http.StatusCreated, createHoldResponse{
			HoldID:    hold.ID,
			ExpiresAt: hold.ExpiresAt,
			Token:     hold.Token,
		})
	}
}

type createHoldRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type createHoldResponse struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
}
