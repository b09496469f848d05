package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

type CartService struct {
	carts  port.CartRepository
	logger *zap.Logger
}

func NewCartService(carts port.CartRepository, logger *zap.Logger) *CartService {
	return &CartService{carts: carts, logger: logger}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (domain.CartSummary, error) {
	items, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return domain.CartSummary{}, err
	}
	return domain.Summarize(items), nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", domain.ErrValidation)
	}
	return s.carts.AddCartLine(ctx, userID, productID, quantity)
}

// UpdateItem treats a non-positive quantity as removal, per the cart
// contract.
func (s *CartService) UpdateItem(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error) {
	if quantity <= 0 {
		if err := s.carts.RemoveCartLine(ctx, userID, lineID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s.carts.UpdateCartLine(ctx, userID, lineID, quantity)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, lineID string) error {
	return s.carts.RemoveCartLine(ctx, userID, lineID)
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.carts.ClearCart(ctx, userID)
}
