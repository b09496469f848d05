package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

type testEnv struct {
	mysql *sql.DB
	db    *storage.MySQLAdapter
	cache *storage.RedisAdapter
}

// setupTestEnv connects to local MySQL and Redis; tests are skipped when
// either is unavailable.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/marketplace_test?parseTime=true&multiStatements=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)
	require.NoError(t, adapter.RunMigrations("../migrations"))

	cleanTables(t, db)
	require.NoError(t, rdb.FlushDB(context.Background()).Err())

	t.Cleanup(func() {
		rdb.Close()
		db.Close()
	})

	return &testEnv{mysql: db, db: adapter, cache: storage.NewRedisAdapter(rdb)}
}

func cleanTables(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, table := range []string{
		"notifications", "reviews", "order_items", "orders",
		"cart_items", "products", "stores", "users",
	} {
		_, err := db.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}
}

func (e *testEnv) createUser(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@test.local",
		PasswordHash: "x",
		FullName:     "Test User",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.db.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) createStore(t *testing.T, sellerID string) *domain.Store {
	t.Helper()
	s := &domain.Store{
		ID:        uuid.NewString(),
		SellerID:  sellerID,
		Name:      "store-" + uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.db.CreateStore(context.Background(), s))
	return s
}

func (e *testEnv) createProduct(t *testing.T, storeID, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:            uuid.NewString(),
		StoreID:       storeID,
		Name:          "product-" + uuid.NewString(),
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, e.db.CreateProduct(context.Background(), p))
	return p
}

func (e *testEnv) stockOf(t *testing.T, productID string) int {
	t.Helper()
	var stock int
	require.NoError(t, e.mysql.QueryRow(
		"SELECT stock_quantity FROM products WHERE id = ?", productID,
	).Scan(&stock))
	return stock
}

func (e *testEnv) ratingOf(t *testing.T, productID string) float64 {
	t.Helper()
	var rating float64
	require.NoError(t, e.mysql.QueryRow(
		"SELECT average_rating FROM products WHERE id = ?", productID,
	).Scan(&rating))
	return rating
}

func (e *testEnv) newOrderService() *service.OrderService {
	logger := zap.NewNop()
	notifier := service.NewNotificationService(e.db, e.db, e.cache, logger)
	return service.NewOrderService(e.db, e.db, notifier, nil, logger)
}

func TestIntegration_ConcurrentCheckoutNoOversell(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	const stock = 5
	const buyers = 20

	seller := env.createUser(t, domain.RoleSeller)
	store := env.createStore(t, seller.ID)
	product := env.createProduct(t, store.ID, "10.00", stock)

	customers := make([]*domain.User, buyers)
	for i := range customers {
		customers[i] = env.createUser(t, domain.RoleCustomer)
		_, err := env.db.AddCartLine(ctx, customers[i].ID, product.ID, 1)
		require.NoError(t, err)
	}

	svc := env.newOrderService()

	var succeeded, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := svc.Checkout(ctx, userID, nil); err == nil {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
		}(customers[i].ID)
	}
	wg.Wait()

	assert.Equal(t, int64(stock), succeeded.Load(), "exactly the available stock sells")
	assert.Equal(t, int64(buyers-stock), failed.Load())
	assert.Equal(t, 0, env.stockOf(t, product.ID), "stock never goes negative")

	var totalSold int
	require.NoError(t, env.mysql.QueryRow(
		"SELECT COALESCE(SUM(quantity), 0) FROM order_items WHERE product_id = ?", product.ID,
	).Scan(&totalSold))
	assert.Equal(t, stock, totalSold)
}

func TestIntegration_CheckoutAtomicityOnStockFailure(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seller := env.createUser(t, domain.RoleSeller)
	store := env.createStore(t, seller.ID)
	plenty := env.createProduct(t, store.ID, "10.00", 100)
	scarce := env.createProduct(t, store.ID, "5.00", 1)

	customer := env.createUser(t, domain.RoleCustomer)
	_, err := env.db.AddCartLine(ctx, customer.ID, plenty.ID, 2)
	require.NoError(t, err)

	// Drain the scarce product after it entered the cart.
	_, err = env.mysql.Exec("UPDATE products SET stock_quantity = 3 WHERE id = ?", scarce.ID)
	require.NoError(t, err)
	_, err = env.db.AddCartLine(ctx, customer.ID, scarce.ID, 3)
	require.NoError(t, err)
	_, err = env.mysql.Exec("UPDATE products SET stock_quantity = 1 WHERE id = ?", scarce.ID)
	require.NoError(t, err)

	svc := env.newOrderService()
	_, err = svc.Checkout(ctx, customer.ID, nil)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, scarce.ID, stockErr.ProductID)

	assert.Equal(t, 100, env.stockOf(t, plenty.ID), "no partial decrement survives rollback")

	var orders int
	require.NoError(t, env.mysql.QueryRow(
		"SELECT COUNT(*) FROM orders WHERE user_id = ?", customer.ID,
	).Scan(&orders))
	assert.Zero(t, orders)

	cart, err := env.db.GetCart(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, cart, 2, "cart untouched after failed checkout")
}

func TestIntegration_RatingRecomputesInReviewTx(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seller := env.createUser(t, domain.RoleSeller)
	store := env.createStore(t, seller.ID)
	product := env.createProduct(t, store.ID, "10.00", 10)

	svc := service.NewReviewService(env.db)

	var middle *domain.Review
	for i, rating := range []int{5, 3, 4} {
		reviewer := env.createUser(t, domain.RoleCustomer)
		r, err := svc.AddProductReview(ctx, reviewer.ID, product.ID, rating, "")
		require.NoError(t, err)
		if i == 1 {
			middle = r
		}
	}
	assert.InDelta(t, 4.0, env.ratingOf(t, product.ID), 0.001)

	require.NoError(t, svc.Delete(ctx, middle.UserID, middle.ID))
	assert.InDelta(t, 4.5, env.ratingOf(t, product.ID), 0.001)

	// Last delete returns the aggregate to zero.
	var rest []domain.Review
	reviews, _, err := env.db.ListProductReviews(ctx, product.ID, 1, 10)
	require.NoError(t, err)
	rest = reviews
	for _, r := range rest {
		require.NoError(t, svc.Delete(ctx, r.UserID, r.ID))
	}
	assert.InDelta(t, 0.0, env.ratingOf(t, product.ID), 0.001)
}

func TestIntegration_DeletingSellerCascadesToStoreAndProducts(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seller := env.createUser(t, domain.RoleSeller)
	store := env.createStore(t, seller.ID)
	product := env.createProduct(t, store.ID, "10.00", 10)

	_, err := env.mysql.Exec("DELETE FROM users WHERE id = ?", seller.ID)
	require.NoError(t, err)

	_, err = env.db.GetStoreByID(ctx, store.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "store removed with its seller")

	_, err = env.db.GetProduct(ctx, product.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "products removed with their store")
}

func TestIntegration_SellerNotificationIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seller := env.createUser(t, domain.RoleSeller)
	store := env.createStore(t, seller.ID)
	product := env.createProduct(t, store.ID, "10.00", 10)

	customer := env.createUser(t, domain.RoleCustomer)
	_, err := env.db.AddCartLine(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)

	svc := env.newOrderService()
	order, err := svc.Checkout(ctx, customer.ID, nil)
	require.NoError(t, err)

	notifier := service.NewNotificationService(env.db, env.db, env.cache, zap.NewNop())
	notifier.SellerNewOrder(ctx, order)
	notifier.SellerNewOrder(ctx, order)

	notifications, total, _, err := env.db.ListNotifications(ctx, seller.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total, "duplicate triggers absorbed: %v", notifications)
	assert.Contains(t, notifications[0].Message, fmt.Sprintf("#%s", order.ID[:8]))
}
