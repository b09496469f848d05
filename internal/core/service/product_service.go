package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

type ProductService struct {
	products port.ProductRepository
	stores   port.StoreRepository
}

func NewProductService(products port.ProductRepository, stores port.StoreRepository) *ProductService {
	return &ProductService{products: products, stores: stores}
}

type CreateProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	Category      string
	ImageURL      string
}

func (s *ProductService) Create(ctx context.Context, sellerID string, in CreateProductInput) (*domain.Product, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if !in.Price.IsPositive() {
		return nil, fmt.Errorf("price must be positive: %w", domain.ErrValidation)
	}
	if in.StockQuantity < 0 {
		return nil, fmt.Errorf("stock quantity cannot be negative: %w", domain.ErrValidation)
	}

	store, err := s.stores.GetStoreBySellerID(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	p := &domain.Product{
		ID:            uuid.NewString(),
		StoreID:       store.ID,
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		Category:      in.Category,
		ImageURL:      in.ImageURL,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, sellerID, productID string, upd domain.ProductUpdate) (*domain.Product, error) {
	if upd.Price != nil && !upd.Price.IsPositive() {
		return nil, fmt.Errorf("price must be positive: %w", domain.ErrValidation)
	}
	// Seller edits go through the same non-negativity rule as checkout.
	if upd.StockQuantity != nil && *upd.StockQuantity < 0 {
		return nil, fmt.Errorf("stock quantity cannot be negative: %w", domain.ErrValidation)
	}
	return s.products.UpdateProduct(ctx, sellerID, productID, upd)
}

func (s *ProductService) Delete(ctx context.Context, sellerID, productID string) error {
	return s.products.DeleteProduct(ctx, sellerID, productID)
}

func (s *ProductService) Get(ctx context.Context, productID string) (*domain.ProductListing, error) {
	return s.products.GetProduct(ctx, productID)
}

func (s *ProductService) List(ctx context.Context, f domain.ProductFilter) ([]domain.ProductListing, domain.Pagination, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit, 12)
	listings, total, err := s.products.ListProducts(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return listings, domain.NewPagination(total, f.Page, f.Limit), nil
}

func (s *ProductService) Search(ctx context.Context, f domain.ProductFilter) ([]domain.ProductListing, domain.Pagination, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit, 12)
	listings, total, err := s.products.SearchProducts(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return listings, domain.NewPagination(total, f.Page, f.Limit), nil
}

// ListMine returns the seller's own catalog, inactive products included.
func (s *ProductService) ListMine(ctx context.Context, sellerID string, page, limit int) ([]domain.Product, domain.Pagination, error) {
	store, err := s.stores.GetStoreBySellerID(ctx, sellerID)
	if err != nil {
		return nil, domain.Pagination{}, err
	}

	page, limit = normalizePage(page, limit, 12)
	products, total, err := s.products.ListStoreProducts(ctx, store.ID, page, limit)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return products, domain.NewPagination(total, page, limit), nil
}
