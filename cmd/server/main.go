package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/adapter/events"
	"github.com/rl1809/marketplace/internal/adapter/handler"
	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/service"
	"github.com/rl1809/marketplace/internal/port"
	"github.com/rl1809/marketplace/pkg/config"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.RunMigrations(cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("migrations applied")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	redisAdapter := storage.NewRedisAdapter(rdb)

	// Kafka is optional; without brokers the order event stream is simply off.
	var publisher port.EventPublisher
	if cfg.KafkaBrokers != "" {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("kafka publisher enabled", zap.String("brokers", cfg.KafkaBrokers))
	}

	notificationService := service.NewNotificationService(mysqlAdapter, mysqlAdapter, redisAdapter, logger)
	authService := service.NewAuthService(mysqlAdapter, redisAdapter, logger)
	storeService := service.NewStoreService(mysqlAdapter)
	productService := service.NewProductService(mysqlAdapter, mysqlAdapter)
	cartService := service.NewCartService(mysqlAdapter, logger)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, notificationService, publisher, logger)
	reviewService := service.NewReviewService(mysqlAdapter)

	router := handler.NewRouter(handler.Handlers{
		Auth:          handler.NewAuthHandler(authService, logger),
		Stores:        handler.NewStoreHandler(storeService, logger),
		Products:      handler.NewProductHandler(productService, logger),
		Cart:          handler.NewCartHandler(cartService, logger),
		Orders:        handler.NewOrderHandler(orderService, logger),
		Reviews:       handler.NewReviewHandler(reviewService, logger),
		Notifications: handler.NewNotificationHandler(notificationService, logger),
	}, authService, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("http server stopped")
}
