package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"flashsale/internal/app"
	"flashsale/internal/domain"
)

// ProductAdmin is the minimal interface needed to manage sale inventory.
type ProductAdmin interface {
	CreateProduct(ctx context.Context, in app.CreateProductInput) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// HandleAdminProducts returns an HTTP handler for seeding and listing
// products.
func HandleAdminProducts(svc ProductAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			createProduct(w, r, svc)
		case http.MethodGet:
			listProducts(w, r, svc)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func createProduct(w http.ResponseWriter, r *http.Request, svc ProductAdmin) {
	var req createProductRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	priceCents, err := parsePrice(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidPrice, "invalid price")
		return
	}

	product, err := svc.CreateProduct(r.Context(), app.CreateProductInput{
		Name:       req.Name,
		PriceCents: priceCents,
		Stock:      req.Stock,
	})
	if err != nil {
		switch err {
		case domain.ErrProductNameRequired:
			writeError(w, http.StatusBadRequest, codeProductNameRequired, err.Error())
		case domain.ErrInvalidPrice:
			writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
		case domain.ErrInvalidStock:
			writeError(w, http.StatusBadRequest, codeInvalidStock, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toProductPayload(product))
}

func listProducts(w http.ResponseWriter, r *http.Request, svc ProductAdmin) {
	products, err := svc.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}

	payload := make([]adminProductPayload, 0, len(products))
	for _, p := range products {
		payload = append(payload, toProductPayload(p))
	}
	writeJSON(w, http.StatusOK, payload)
}

type createProductRequest struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

type adminProductPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
}

func toProductPayload(p domain.Product) adminProductPayload {
	return adminProductPayload{
		ID:        p.ID,
		Name:      p.Name,
		Price:     formatPrice(p.PriceCents),
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
	}
}
