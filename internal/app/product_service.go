package app

import (
	"context"
	"time"

	"flashsale/internal/clock"
	"flashsale/internal/domain"
)

type ProductRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	AvailableStock(ctx context.Context, productID string, now time.Time) (int, error)
}

type ProductService struct {
	repo  ProductRepository
	clock clock.Clock
}

func NewProductService(repo ProductRepository, clk clock.Clock) *ProductService {
	return &ProductService{
		repo:  repo,
		clock: clk,
	}
}

func (s *ProductService) Get(ctx context.Context, productID string) (domain.ProductView, error) {
	if productID == "" {
		return domain.ProductView{}, domain.ErrInvalidID
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.ProductView{}, err
	}
	available, err := s.repo.AvailableStock(ctx, productID, s.clock.Now())
	if err != nil {
		return domain.ProductView{}, err
	}
	return domain.ProductView{Product: product, AvailableStock: available}, nil
}
