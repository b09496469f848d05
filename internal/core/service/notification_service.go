package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// NotificationService is the fire-and-forget notification sink. Delivery
// failures are logged; they never fail or roll back the triggering operation.
type NotificationService struct {
	notifications port.NotificationRepository
	stores        port.StoreRepository
	cache         port.CacheRepository
	logger        *zap.Logger
}

func NewNotificationService(
	notifications port.NotificationRepository,
	stores port.StoreRepository,
	cache port.CacheRepository,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		stores:        stores,
		cache:         cache,
		logger:        logger,
	}
}

// SellerNewOrder notifies the seller of every store represented in the
// order, exactly once per (order, store) pair. The idempotency key absorbs
// duplicate triggering and re-delivery.
func (s *NotificationService) SellerNewOrder(ctx context.Context, order *domain.Order) {
	seen := make(map[string]bool)
	for _, item := range order.Items {
		if seen[item.StoreID] {
			continue
		}
		seen[item.StoreID] = true

		key := fmt.Sprintf("notify:new_order:%s:%s", order.ID, item.StoreID)
		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			s.logger.Warn("idempotency check failed, skipping seller notification",
				zap.String("order_id", order.ID),
				zap.String("store_id", item.StoreID),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		store, err := s.stores.GetStoreByID(ctx, item.StoreID)
		if err != nil {
			s.logger.Error("failed to resolve store for notification",
				zap.String("store_id", item.StoreID),
				zap.Error(err))
			continue
		}

		message := fmt.Sprintf("New order #%s received for %s! Amount: $%s",
			shortID(order.ID), store.Name, order.TotalAmount.StringFixed(2))
		s.deliver(ctx, store.SellerID, message, domain.NotificationNewOrder)
	}
}

// OrderStatusChanged tells the purchasing customer about a status change.
func (s *NotificationService) OrderStatusChanged(ctx context.Context, order *domain.Order) {
	message := fmt.Sprintf("Your order #%s status changed to: %s",
		shortID(order.ID), order.Status)
	s.deliver(ctx, order.UserID, message, domain.NotificationOrderStatus)
}

func (s *NotificationService) deliver(ctx context.Context, userID, message, kind string) {
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Type:      kind,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notifications.InsertNotification(ctx, n); err != nil {
		s.logger.Error("failed to deliver notification",
			zap.String("user_id", userID),
			zap.String("type", kind),
			zap.Error(err))
	}
}

func (s *NotificationService) List(ctx context.Context, userID string, page, limit int) ([]domain.Notification, int, domain.Pagination, error) {
	page, limit = normalizePage(page, limit, 20)
	notifications, total, unread, err := s.notifications.ListNotifications(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, domain.Pagination{}, err
	}
	return notifications, unread, domain.NewPagination(total, page, limit), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	return s.notifications.MarkRead(ctx, userID, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.notifications.MarkAllRead(ctx, userID)
}

// shortID mirrors the truncated id customers see in order confirmations.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
