package port

import (
	"context"

	"github.com/rl1809/marketplace/internal/core/domain"
)

// EventPublisher is the fire-and-forget event sink. Implementations are
// best-effort; callers log failures and never roll back because of them.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	Close() error
}
