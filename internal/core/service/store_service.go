package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

type StoreService struct {
	stores port.StoreRepository
}

func NewStoreService(stores port.StoreRepository) *StoreService {
	return &StoreService{stores: stores}
}

func (s *StoreService) Create(ctx context.Context, sellerID, name, description string) (*domain.Store, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrValidation)
	}

	store := &domain.Store{
		ID:          uuid.NewString(),
		SellerID:    sellerID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.stores.CreateStore(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *StoreService) Update(ctx context.Context, sellerID string, name, description *string) (*domain.Store, error) {
	if name != nil && *name == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", domain.ErrValidation)
	}
	return s.stores.UpdateStore(ctx, sellerID, name, description)
}

func (s *StoreService) MyStore(ctx context.Context, sellerID string) (*domain.StoreDashboard, error) {
	return s.stores.GetStoreBySellerID(ctx, sellerID)
}

func (s *StoreService) Get(ctx context.Context, storeID string) (*domain.StoreDashboard, error) {
	return s.stores.GetStoreByID(ctx, storeID)
}

func (s *StoreService) List(ctx context.Context, page, limit int) ([]domain.StoreDashboard, domain.Pagination, error) {
	page, limit = normalizePage(page, limit, 10)
	stores, total, err := s.stores.ListStores(ctx, page, limit)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return stores, domain.NewPagination(total, page, limit), nil
}

// Revenue reports fulfilled sales for the seller's store over an optional
// date range; cancelled orders are excluded.
func (s *StoreService) Revenue(ctx context.Context, sellerID string, start, end *time.Time) (*domain.RevenueReport, error) {
	store, err := s.stores.GetStoreBySellerID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return s.stores.StoreRevenue(ctx, store.ID, start, end)
}
