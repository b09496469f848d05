package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// OrderService is the order engine: it turns a customer's cart into an
// immutable order in one transaction and fires the post-commit side effects.
type OrderService struct {
	orders    port.OrderRepository
	stores    port.StoreRepository
	notifier  *NotificationService
	publisher port.EventPublisher
	logger    *zap.Logger
}

func NewOrderService(
	orders port.OrderRepository,
	stores port.StoreRepository,
	notifier *NotificationService,
	publisher port.EventPublisher,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		stores:    stores,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

// Checkout converts the customer's cart into an order. All writes happen in
// one transaction: a failed stock check leaves no order rows, no stock
// decrements and an untouched cart. Side effects fire only after commit.
func (s *OrderService) Checkout(ctx context.Context, userID string, shippingAddress json.RawMessage) (*domain.Order, error) {
	var order *domain.Order

	err := s.orders.CheckoutTx(ctx, func(tx port.CheckoutTx) error {
		lines, err := tx.CartLinesForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		// Re-verify stock under the row locks; the price used for the
		// total is the price at this instant, not a cached cart price.
		total := decimal.Zero
		for _, l := range lines {
			if l.StockQuantity < l.Quantity {
				return &domain.InsufficientStockError{
					ProductID:   l.ProductID,
					ProductName: l.ProductName,
				}
			}
			total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}

		o := &domain.Order{
			ID:              uuid.NewString(),
			UserID:          userID,
			TotalAmount:     total,
			Status:          domain.OrderStatusPending,
			ShippingAddress: shippingAddress,
			CreatedAt:       time.Now().UTC(),
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		items := make([]domain.OrderItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, domain.OrderItem{
				ID:              uuid.NewString(),
				OrderID:         o.ID,
				ProductID:       l.ProductID,
				StoreID:         l.StoreID,
				Quantity:        l.Quantity,
				PriceAtPurchase: l.Price,
				ProductName:     l.ProductName,
			})
		}
		if err := tx.InsertOrderItems(ctx, items); err != nil {
			return err
		}

		for _, l := range lines {
			if err := tx.ReduceStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}

		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}

		o.Items = items
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total", order.TotalAmount.String()))

	// Best-effort side effects; a failed notification never unwinds a
	// committed purchase.
	s.notifier.SellerNewOrder(ctx, order)
	if s.publisher != nil {
		_ = s.publisher.PublishOrderCreated(ctx, order)
	}

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID string, page, limit int) ([]domain.Order, domain.Pagination, error) {
	page, limit = normalizePage(page, limit, 10)
	orders, total, err := s.orders.ListUserOrders(ctx, userID, page, limit)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return orders, domain.NewPagination(total, page, limit), nil
}

// ListSellerOrders returns orders containing at least one line item from the
// seller's store, with items narrowed to that store.
func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID string, status domain.OrderStatus, page, limit int) ([]domain.Order, domain.Pagination, error) {
	if status != "" && !status.Valid() {
		return nil, domain.Pagination{}, fmt.Errorf("unknown status %q: %w", status, domain.ErrValidation)
	}

	store, err := s.stores.GetStoreBySellerID(ctx, sellerID)
	if err != nil {
		return nil, domain.Pagination{}, err
	}

	page, limit = normalizePage(page, limit, 10)
	orders, total, err := s.orders.ListStoreOrders(ctx, store.ID, status, page, limit)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return orders, domain.NewPagination(total, page, limit), nil
}

// UpdateStatus applies a seller-driven status change. The customer is
// notified after commit, and only when the value actually changed.
func (s *OrderService) UpdateStatus(ctx context.Context, sellerID, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrValidation)
	}

	store, err := s.stores.GetStoreBySellerID(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	order, prev, err := s.orders.UpdateOrderStatus(ctx, store.ID, orderID, status)
	if err != nil {
		return nil, err
	}

	if prev != order.Status {
		s.notifier.OrderStatusChanged(ctx, order)
	}
	return order, nil
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit
}
