package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"flashsale/internal/domain"
)

// ProductReader is the minimal interface needed to serve product views.
type ProductReader interface {
	Get(ctx context.Context, productID string) (domain.ProductView, error)
}

// HandleGetProduct returns an HTTP handler serving a product with its
// computed available stock.
func HandleGetProduct(svc ProductReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		productID, ok := parseProductPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		view, err := svc.Get(r.Context(), productID)
		if err != nil {
			switch err {
			case domain.ErrProductNotFound, domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeProductNotFound, "product not found")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, productResponse{
			ID:             view.ID,
			Name:           view.Name,
			Price:          formatPrice(view.PriceCents),
			Stock:          view.Stock,
			AvailableStock: view.AvailableStock,
			CreatedAt:      view.CreatedAt,
		})
	}
}

func parseProductPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "products" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type productResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Price          string    `json:"price"`
	Stock          int       `json:"stock"`
	AvailableStock int       `json:"available_stock"`
	CreatedAt      time.Time `json:"created_at"`
}
