package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/account"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/config"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/db"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/httpapi"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/messaging"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/projection"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/saga"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/subscription"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/transfer"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting transfer-saga service")

	// Load configuration
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL connection pool
	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	// Initialize Redis client for the sub-account directory
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	// Event store and durable subscription state
	store := eventstore.NewPostgresStore(pool.Pool)
	checkpoints := subscription.NewPostgresCheckpointStore(pool.Pool)
	dedup := saga.NewPostgresDedupStore(pool.Pool)

	// Event-sourced services per aggregate type
	accountES := es.NewService(store, domain.AccountAggregateType, domain.NewAccount, domain.AccountEventRegistry())
	transferES := es.NewService(store, domain.TransferAggregateType, domain.NewTransferTransaction, domain.TransferEventRegistry())

	directory := projection.NewRedisDirectory(redisClient)

	accountService := account.NewService(accountES)
	transferService := transfer.NewService(directory, transferES)

	// Subscription manager drives projections, the saga and the relay
	manager := subscription.NewManager(store, checkpoints, logger, cfg.Subscription.PollInterval, cfg.Subscription.BatchSize)

	projector := projection.NewProjector(directory, logger)
	if err := projector.Register(manager); err != nil {
		logger.Fatal("failed to register projector", zap.Error(err))
	}

	driver := saga.NewAccountDriver(accountES, dedup, logger)
	if err := driver.Register(manager); err != nil {
		logger.Fatal("failed to register saga driver", zap.Error(err))
	}

	closer := saga.NewCloser(transferES, dedup, logger)
	if err := closer.Register(manager); err != nil {
		logger.Fatal("failed to register saga closer", zap.Error(err))
	}

	if cfg.RabbitMQ.Enabled {
		publisher, err := messaging.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer publisher.Close()
		logger.Info("connected to rabbitmq", zap.String("exchange", cfg.RabbitMQ.Exchange))

		relay := messaging.NewRelay(publisher, logger)
		if err := relay.Register(manager); err != nil {
			logger.Fatal("failed to register relay", zap.Error(err))
		}
	}

	if err := manager.Start(ctx); err != nil {
		logger.Fatal("failed to start subscriptions", zap.Error(err))
	}
	defer manager.Close()

	// HTTP API
	handler := httpapi.NewHandler(accountService, transferService, logger)
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("transfer-saga service stopped")
}
