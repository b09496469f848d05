package port

import (
	"context"
	"time"

	"github.com/rl1809/marketplace/internal/core/domain"
)

type UserRepository interface {
	// CreateUser persists a new user; domain.ErrConflict on a duplicate email.
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

type StoreRepository interface {
	// CreateStore enforces one store per seller under a seller row lock;
	// domain.ErrConflict on an existing store or a taken name.
	CreateStore(ctx context.Context, s *domain.Store) error
	UpdateStore(ctx context.Context, sellerID string, name, description *string) (*domain.Store, error)
	GetStoreBySellerID(ctx context.Context, sellerID string) (*domain.StoreDashboard, error)
	GetStoreByID(ctx context.Context, id string) (*domain.StoreDashboard, error)
	ListStores(ctx context.Context, page, limit int) ([]domain.StoreDashboard, int, error)
	// StoreRevenue aggregates non-cancelled order items for the store,
	// optionally bounded by [start, end].
	StoreRevenue(ctx context.Context, storeID string, start, end *time.Time) (*domain.RevenueReport, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	// UpdateProduct applies a partial edit after locking the row and
	// verifying the seller owns the product's store.
	UpdateProduct(ctx context.Context, sellerID, productID string, upd domain.ProductUpdate) (*domain.Product, error)
	// DeleteProduct rejects with domain.ErrConflict once the product is
	// referenced by an order item; historical orders keep their rows.
	DeleteProduct(ctx context.Context, sellerID, productID string) error
	GetProduct(ctx context.Context, id string) (*domain.ProductListing, error)
	ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.ProductListing, int, error)
	SearchProducts(ctx context.Context, f domain.ProductFilter) ([]domain.ProductListing, int, error)
	ListStoreProducts(ctx context.Context, storeID string, page, limit int) ([]domain.Product, int, error)
}

type CartRepository interface {
	GetCart(ctx context.Context, userID string) ([]domain.CartItem, error)
	// AddCartLine upserts under a product row lock so the merged quantity
	// is validated against stock consistently with concurrent checkouts.
	AddCartLine(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error)
	UpdateCartLine(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error)
	RemoveCartLine(ctx context.Context, userID, lineID string) error
	ClearCart(ctx context.Context, userID string) error
}

// CheckoutTx is the unit of work the order engine composes inside a single
// database transaction. All steps commit or roll back together.
type CheckoutTx interface {
	// CartLinesForUpdate reads the customer's cart joined with products,
	// locking each product row (ordered by product id) for the duration
	// of the transaction.
	CartLinesForUpdate(ctx context.Context, userID string) ([]domain.CheckoutLine, error)
	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertOrderItems(ctx context.Context, items []domain.OrderItem) error
	// ReduceStock decrements stock_quantity, refusing to go negative;
	// returns *domain.InsufficientStockError when the guard trips.
	ReduceStock(ctx context.Context, productID string, quantity int) error
	ClearCart(ctx context.Context, userID string) error
}

type OrderRepository interface {
	// CheckoutTx runs fn inside one transaction; any error rolls
	// everything back.
	CheckoutTx(ctx context.Context, fn func(tx CheckoutTx) error) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string, page, limit int) ([]domain.Order, int, error)
	ListStoreOrders(ctx context.Context, storeID string, status domain.OrderStatus, page, limit int) ([]domain.Order, int, error)
	// UpdateOrderStatus locks the order row, verifies the store owns at
	// least one of its line items (domain.ErrNotFound otherwise, which
	// deliberately conflates missing and foreign orders), applies the new
	// status and returns the updated order plus the previous status.
	UpdateOrderStatus(ctx context.Context, storeID, orderID string, status domain.OrderStatus) (*domain.Order, domain.OrderStatus, error)
}

type ReviewRepository interface {
	// AddReview inserts the review and recomputes the target's average
	// rating in the same transaction. domain.ErrConflict on a duplicate
	// (user, target) pair, domain.ErrNotFound on a missing target.
	AddReview(ctx context.Context, r *domain.Review) error
	// DeleteReview removes the caller's review and recomputes the
	// affected aggregate in the same transaction.
	DeleteReview(ctx context.Context, userID, reviewID string) error
	ListProductReviews(ctx context.Context, productID string, page, limit int) ([]domain.Review, int, error)
	ListStoreReviews(ctx context.Context, storeID string, page, limit int) ([]domain.Review, int, error)
}

type NotificationRepository interface {
	InsertNotification(ctx context.Context, n *domain.Notification) error
	// ListNotifications returns one page plus the total and unread counts.
	ListNotifications(ctx context.Context, userID string, page, limit int) ([]domain.Notification, int, int, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
}
