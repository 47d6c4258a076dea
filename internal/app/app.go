package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidebank/ledger-core/configs"
	"github.com/tidebank/ledger-core/internal/handlers"
	"github.com/tidebank/ledger-core/internal/services"
	"github.com/tidebank/ledger-core/pkg"
	"github.com/tidebank/ledger-core/pkg/cache"
	"github.com/tidebank/ledger-core/pkg/database"
	middleware "github.com/tidebank/ledger-core/pkg/middlewares"
	"github.com/tidebank/ledger-core/pkg/repositories"
	"go.uber.org/zap"
)

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*http.Server, func(), error) {
	// Load config
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN:  cfg.PrimaryDbAddr,
		ReplicaDSNs: []string{cfg.ReplicaDbAddr},
		MaxConns:    cfg.MaxDbCons,
		MinConns:    cfg.MinDbCons,
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		return nil, nil, err
	}

	// Run migrations on primary
	if err := database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		disconnect()
		return nil, nil, err
	}

	// Redis backs the distributed rate limiter on money-moving endpoints
	redisClient, closeRedis, err := cache.New(ctx, cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		disconnect()
		return nil, nil, err
	}
	limiter := pkg.NewDistributedLimiter(redisClient, "global:txn_rate", cfg.TxnRateLimit, cfg.TxnRateBurst, time.Minute, logger)

	// Audit events for every committed transaction
	publisher := services.NewKafkaAuditPublisher(logger, ctx, cfg)

	// Setup dependencies
	baseHandler := handlers.NewBaseHandler(logger)

	accountRepo := repositories.NewAccountRepository()
	txnRepo := repositories.NewTransactionRepository()
	userRepo := repositories.NewUserRepository()

	// db serves both roles: transaction boundary on the writer, plain reads
	// routed to the replica pool.
	accountService := services.NewAccountService(logger, db, db, accountRepo, userRepo)
	txnService := services.NewTransactionService(logger, db, db, accountRepo, txnRepo, userRepo, publisher)

	accountHandler := handlers.NewAccountHandler(logger, accountService)
	txnHandler := handlers.NewTransactionHandler(logger, txnService, limiter)

	// Router
	r := gin.Default()

	api := r.Group("/api/v1")
	api.Use(middleware.TraceID())
	api.Use(middleware.Metrics())

	accountHandler.RegisterRoutes(api)
	txnHandler.RegisterRoutes(api)
	baseHandler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	cleanup := func() {
		// close kafka producer
		publisher.Close()
		// close redis client
		closeRedis()
		// close db pools
		disconnect()
	}

	return srv, cleanup, nil
}
