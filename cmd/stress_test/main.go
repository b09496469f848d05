package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
	"github.com/rl1809/marketplace/pkg/config"
)

// Oversell check against live infrastructure: seed one product with a fixed
// stock, fire more concurrent checkouts than the stock covers, and verify
// exactly stock-many succeed.
const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	redisAdapter := storage.NewRedisAdapter(rdb)

	logger := zap.NewNop()
	notifier := service.NewNotificationService(mysqlAdapter, mysqlAdapter, redisAdapter, logger)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, notifier, nil, logger)

	// Seed seller, store, product and one cart line per simulated buyer.
	seller := seedUser(ctx, mysqlAdapter, domain.RoleSeller)
	store := &domain.Store{
		ID:        uuid.NewString(),
		SellerID:  seller.ID,
		Name:      "stress-store-" + uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := mysqlAdapter.CreateStore(ctx, store); err != nil {
		log.Fatalf("failed to create store: %v", err)
	}

	product := &domain.Product{
		ID:            uuid.NewString(),
		StoreID:       store.ID,
		Name:          "stress-item",
		Price:         decimal.RequireFromString("9.99"),
		StockQuantity: initialStock,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := mysqlAdapter.CreateProduct(ctx, product); err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	buyers := make([]string, totalRequests)
	for i := range buyers {
		buyer := seedUser(ctx, mysqlAdapter, domain.RoleCustomer)
		buyers[i] = buyer.ID
		if _, err := mysqlAdapter.AddCartLine(ctx, buyer.ID, product.ID, 1); err != nil {
			log.Fatalf("failed to fill cart: %v", err)
		}
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for _, userID := range buyers {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := orderService.Checkout(ctx, userID, nil); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(userID)
	}

	wg.Wait()
	elapsed := time.Since(start)

	var finalStock int
	if err := db.QueryRow(
		"SELECT stock_quantity FROM products WHERE id = ?", product.ID,
	).Scan(&finalStock); err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Final Stock:      %d\n", finalStock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) && finalStock == 0 {
		fmt.Printf("PASS: exactly %d orders succeeded, %d failed, stock drained to zero\n",
			initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d fail/0 stock, got %d/%d/%d\n",
			initialStock, totalRequests-initialStock, success, fail, finalStock)
	}
}

func seedUser(ctx context.Context, db *storage.MySQLAdapter, role domain.Role) *domain.User {
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@stress.local",
		PasswordHash: "x",
		FullName:     "Stress User",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.CreateUser(ctx, u); err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	return u
}
