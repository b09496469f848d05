package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// memProduct is the mutable product state the fake store tracks.
type memProduct struct {
	name    string
	storeID string
	price   decimal.Decimal
	stock   int
}

// memStore is an in-memory stand-in for the MySQL adapter. Transactions are
// serialized by the mutex; a failed transaction restores the pre-tx snapshot,
// so partial writes are never observable.
type memStore struct {
	mu       sync.Mutex
	products map[string]*memProduct
	carts    map[string]map[string]int
	orders   map[string]*domain.Order
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[string]*memProduct),
		carts:    make(map[string]map[string]int),
		orders:   make(map[string]*domain.Order),
	}
}

func (s *memStore) addProduct(id, storeID, name string, price string, stock int) {
	s.products[id] = &memProduct{
		name:    name,
		storeID: storeID,
		price:   decimal.RequireFromString(price),
		stock:   stock,
	}
}

func (s *memStore) addCartLine(userID, productID string, qty int) {
	if s.carts[userID] == nil {
		s.carts[userID] = make(map[string]int)
	}
	s.carts[userID][productID] += qty
}

func (s *memStore) snapshot() *memStore {
	snap := newMemStore()
	for id, p := range s.products {
		cp := *p
		snap.products[id] = &cp
	}
	for u, lines := range s.carts {
		snap.carts[u] = make(map[string]int, len(lines))
		for pid, q := range lines {
			snap.carts[u][pid] = q
		}
	}
	for id, o := range s.orders {
		cp := *o
		cp.Items = append([]domain.OrderItem(nil), o.Items...)
		snap.orders[id] = &cp
	}
	return snap
}

func (s *memStore) restore(snap *memStore) {
	s.products = snap.products
	s.carts = snap.carts
	s.orders = snap.orders
}

type memCheckoutTx struct {
	s *memStore
}

func (s *memStore) CheckoutTx(ctx context.Context, fn func(tx port.CheckoutTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memCheckoutTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (t *memCheckoutTx) CartLinesForUpdate(ctx context.Context, userID string) ([]domain.CheckoutLine, error) {
	var lines []domain.CheckoutLine
	for pid, qty := range t.s.carts[userID] {
		p := t.s.products[pid]
		lines = append(lines, domain.CheckoutLine{
			ProductID:     pid,
			ProductName:   p.name,
			StoreID:       p.storeID,
			Quantity:      qty,
			Price:         p.price,
			StockQuantity: p.stock,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (t *memCheckoutTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	cp := *o
	t.s.orders[o.ID] = &cp
	return nil
}

func (t *memCheckoutTx) InsertOrderItems(ctx context.Context, items []domain.OrderItem) error {
	for _, it := range items {
		o := t.s.orders[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return nil
}

func (t *memCheckoutTx) ReduceStock(ctx context.Context, productID string, quantity int) error {
	p := t.s.products[productID]
	if p.stock < quantity {
		return &domain.InsufficientStockError{ProductID: productID, ProductName: p.name}
	}
	p.stock -= quantity
	return nil
}

func (t *memCheckoutTx) ClearCart(ctx context.Context, userID string) error {
	delete(t.s.carts, userID)
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) ListUserOrders(ctx context.Context, userID string, page, limit int) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	return orders, len(orders), nil
}

func (s *memStore) ListStoreOrders(ctx context.Context, storeID string, status domain.OrderStatus, page, limit int) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []domain.Order
	for _, o := range s.orders {
		if status != "" && o.Status != status {
			continue
		}
		for _, it := range o.Items {
			if it.StoreID == storeID {
				orders = append(orders, *o)
				break
			}
		}
	}
	return orders, len(orders), nil
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, storeID, orderID string, status domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	owned := false
	for _, it := range o.Items {
		if it.StoreID == storeID {
			owned = true
			break
		}
	}
	if !owned {
		return nil, "", domain.ErrNotFound
	}
	prev := o.Status
	o.Status = status
	cp := *o
	return &cp, prev, nil
}

type memStores struct {
	stores map[string]*domain.StoreDashboard
}

func newMemStores() *memStores {
	return &memStores{stores: make(map[string]*domain.StoreDashboard)}
}

func (m *memStores) add(id, sellerID, name string) {
	d := &domain.StoreDashboard{}
	d.ID = id
	d.SellerID = sellerID
	d.Name = name
	m.stores[id] = d
}

func (m *memStores) CreateStore(ctx context.Context, s *domain.Store) error { return nil }
func (m *memStores) UpdateStore(ctx context.Context, sellerID string, name, description *string) (*domain.Store, error) {
	return nil, domain.ErrNotFound
}
func (m *memStores) GetStoreBySellerID(ctx context.Context, sellerID string) (*domain.StoreDashboard, error) {
	for _, s := range m.stores {
		if s.SellerID == sellerID {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (m *memStores) GetStoreByID(ctx context.Context, id string) (*domain.StoreDashboard, error) {
	s, ok := m.stores[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}
func (m *memStores) ListStores(ctx context.Context, page, limit int) ([]domain.StoreDashboard, int, error) {
	return nil, 0, nil
}
func (m *memStores) StoreRevenue(ctx context.Context, storeID string, start, end *time.Time) (*domain.RevenueReport, error) {
	return &domain.RevenueReport{}, nil
}

type memNotifications struct {
	mu       sync.Mutex
	inserted []domain.Notification
}

func (m *memNotifications) InsertNotification(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, *n)
	return nil
}
func (m *memNotifications) ListNotifications(ctx context.Context, userID string, page, limit int) ([]domain.Notification, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	unread := 0
	for _, n := range m.inserted {
		if n.UserID == userID {
			out = append(out, n)
			if !n.IsRead {
				unread++
			}
		}
	}
	return out, len(out), unread, nil
}
func (m *memNotifications) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	return nil, domain.ErrNotFound
}
func (m *memNotifications) MarkAllRead(ctx context.Context, userID string) error { return nil }

func (m *memNotifications) byType(kind string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.inserted {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

type memCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemCache() *memCache {
	return &memCache{keys: make(map[string]bool)}
}

func (m *memCache) SaveSession(ctx context.Context, token string, s domain.Session, ttl time.Duration) error {
	return nil
}
func (m *memCache) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	return nil, nil
}
func (m *memCache) DeleteSession(ctx context.Context, token string) error { return nil }
func (m *memCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

type countingPublisher struct {
	published atomic.Int64
}

func (p *countingPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	p.published.Add(1)
	return nil
}
func (p *countingPublisher) Close() error { return nil }

type orderFixture struct {
	store         *memStore
	stores        *memStores
	notifications *memNotifications
	cache         *memCache
	publisher     *countingPublisher
	svc           *OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		store:         newMemStore(),
		stores:        newMemStores(),
		notifications: &memNotifications{},
		cache:         newMemCache(),
		publisher:     &countingPublisher{},
	}
	logger := zap.NewNop()
	notifier := NewNotificationService(f.notifications, f.stores, f.cache, logger)
	f.svc = NewOrderService(f.store, f.stores, notifier, f.publisher, logger)
	return f
}

func TestCheckout_Success(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.store.addProduct("prod-1", "store-1", "Widget", "19.99", 10)
	f.store.addProduct("prod-2", "store-1", "Gizmo", "5.00", 4)
	f.store.addCartLine("user-1", "prod-1", 2)
	f.store.addCartLine("user-1", "prod-2", 3)

	order, err := f.svc.Checkout(context.Background(), "user-1", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("54.98")),
		"total = %s", order.TotalAmount)
	assert.Len(t, order.Items, 2)

	assert.Equal(t, 8, f.store.products["prod-1"].stock)
	assert.Equal(t, 1, f.store.products["prod-2"].stock)
	assert.Empty(t, f.store.carts["user-1"], "cart should be cleared")
	assert.Equal(t, int64(1), f.publisher.published.Load())
}

func TestCheckout_PriceFrozenAtPurchase(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.store.addProduct("prod-1", "store-1", "Widget", "10.00", 5)
	f.store.addCartLine("user-1", "prod-1", 1)

	order, err := f.svc.Checkout(context.Background(), "user-1", nil)
	require.NoError(t, err)

	f.store.products["prod-1"].price = decimal.RequireFromString("99.00")

	got, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.Checkout(context.Background(), "user-1", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCheckout_InsufficientStockRollsBackEverything(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.store.addProduct("prod-1", "store-1", "Widget", "10.00", 5)
	f.store.addProduct("prod-2", "store-1", "Gizmo", "2.00", 1)
	f.store.addCartLine("user-1", "prod-1", 2)
	f.store.addCartLine("user-1", "prod-2", 3)

	_, err := f.svc.Checkout(context.Background(), "user-1", nil)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "prod-2", stockErr.ProductID)
	assert.Equal(t, "Gizmo", stockErr.ProductName)

	assert.Equal(t, 5, f.store.products["prod-1"].stock, "no partial decrement")
	assert.Equal(t, 1, f.store.products["prod-2"].stock)
	assert.Empty(t, f.store.orders, "no order rows")
	assert.Equal(t, 2, f.store.carts["user-1"]["prod-1"], "cart untouched")
	assert.Zero(t, f.publisher.published.Load())
	assert.Empty(t, f.notifications.byType(domain.NotificationNewOrder))
}

func TestCheckout_ConcurrentNoOversell(t *testing.T) {
	const stock = 5
	const buyers = 20

	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.store.addProduct("prod-1", "store-1", "Widget", "10.00", stock)
	for i := 0; i < buyers; i++ {
		f.store.addCartLine(userN(i), "prod-1", 1)
	}

	var succeeded, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Checkout(context.Background(), userN(i), nil)
			if err == nil {
				succeeded.Add(1)
				return
			}
			var stockErr *domain.InsufficientStockError
			if errors.As(err, &stockErr) {
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(stock), succeeded.Load())
	assert.Equal(t, int64(buyers-stock), failed.Load())
	assert.Equal(t, 0, f.store.products["prod-1"].stock)
	assert.Len(t, f.store.orders, stock)
}

func TestCheckout_OneNotificationPerStore(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.stores.add("store-2", "seller-2", "Books")
	f.store.addProduct("prod-1", "store-1", "Widget", "10.00", 5)
	f.store.addProduct("prod-2", "store-1", "Gizmo", "4.00", 5)
	f.store.addProduct("prod-3", "store-2", "Novel", "15.00", 5)
	f.store.addCartLine("user-1", "prod-1", 1)
	f.store.addCartLine("user-1", "prod-2", 1)
	f.store.addCartLine("user-1", "prod-3", 1)

	order, err := f.svc.Checkout(context.Background(), "user-1", nil)
	require.NoError(t, err)

	got := f.notifications.byType(domain.NotificationNewOrder)
	require.Len(t, got, 2, "one notification per distinct store")
	sellers := map[string]bool{got[0].UserID: true, got[1].UserID: true}
	assert.True(t, sellers["seller-1"] && sellers["seller-2"])

	// Re-delivery for the same order is absorbed by the idempotency key.
	notifier := NewNotificationService(f.notifications, f.stores, f.cache, zap.NewNop())
	notifier.SellerNewOrder(context.Background(), order)
	assert.Len(t, f.notifications.byType(domain.NotificationNewOrder), 2)
}

func TestUpdateStatus_NotifiesCustomerOnChange(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.store.addProduct("prod-1", "store-1", "Widget", "10.00", 5)
	f.store.addCartLine("user-1", "prod-1", 1)

	order, err := f.svc.Checkout(context.Background(), "user-1", nil)
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(context.Background(), "seller-1", order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)

	got := f.notifications.byType(domain.NotificationOrderStatus)
	require.Len(t, got, 1)
	assert.Equal(t, "user-1", got[0].UserID)
	assert.Contains(t, got[0].Message, "shipped")
}

func TestUpdateStatus_NoopWhenUnchanged(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.store.addProduct("prod-1", "store-1", "Widget", "10.00", 5)
	f.store.addCartLine("user-1", "prod-1", 1)

	order, err := f.svc.Checkout(context.Background(), "user-1", nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), "seller-1", order.ID, domain.OrderStatusPending)
	require.NoError(t, err)
	assert.Empty(t, f.notifications.byType(domain.NotificationOrderStatus))
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")

	_, err := f.svc.UpdateStatus(context.Background(), "seller-1", "order-1", "teleported")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateStatus_ForeignStoreLooksLikeNotFound(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.stores.add("store-2", "seller-2", "Books")
	f.store.addProduct("prod-1", "store-1", "Widget", "10.00", 5)
	f.store.addCartLine("user-1", "prod-1", 1)

	order, err := f.svc.Checkout(context.Background(), "user-1", nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), "seller-2", order.ID, domain.OrderStatusShipped)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetOrder_ForeignOrderHidden(t *testing.T) {
	f := newOrderFixture()
	f.stores.add("store-1", "seller-1", "Gadgets")
	f.store.addProduct("prod-1", "store-1", "Widget", "10.00", 5)
	f.store.addCartLine("user-1", "prod-1", 1)

	order, err := f.svc.Checkout(context.Background(), "user-1", nil)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(context.Background(), "user-2", order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func userN(i int) string {
	return fmt.Sprintf("user-%d", i)
}
