package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/edupay/edupay/internal/config"
	gatewayreg "github.com/edupay/edupay/internal/gateway"
	"github.com/edupay/edupay/internal/gateway/flutterwave"
	"github.com/edupay/edupay/internal/gateway/paystack"
	"github.com/edupay/edupay/internal/gateway/stripe"
	httpServer "github.com/edupay/edupay/internal/http"
	"github.com/edupay/edupay/internal/http/middleware"
	"github.com/edupay/edupay/internal/poller"
	postgresRepo "github.com/edupay/edupay/internal/repository/postgres"
	redisRepo "github.com/edupay/edupay/internal/repository/redis"
	"github.com/edupay/edupay/internal/service"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load .env if present, then configuration
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set log level based on environment
	if cfg.App.Environment == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("starting edupay",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// Initialize PostgreSQL connection pool
	ctx := context.Background()
	dbPool, err := initDatabase(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Initialize Redis client
	redisClient, err := initRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Initialize repositories
	paymentRepo := postgresRepo.NewPaymentRepository(dbPool)
	paymentLogRepo := postgresRepo.NewPaymentLogRepository(dbPool)
	credentialRepo := postgresRepo.NewCredentialRepository(dbPool)
	enrollmentRepo := postgresRepo.NewEnrollmentRepository(dbPool)

	// Initialize Redis cache and pubsub
	cache := redisRepo.NewCache(redisClient)
	pubsub := redisRepo.NewPubSub(redisClient, logger)

	// Gateway adapters share the cached credential provider
	credentials := redisRepo.NewCredentialCache(credentialRepo, cache, cfg.Cache.CredentialTTL, logger)
	gateways := gatewayreg.New(credentials, gatewayreg.Config{
		Paystack: paystack.Config{
			BaseURL: cfg.Gateways.PaystackBaseURL,
			Timeout: cfg.Gateways.RequestTimeout,
		},
		Flutterwave: flutterwave.Config{
			BaseURL:     cfg.Gateways.FlutterwaveBaseURL,
			Timeout:     cfg.Gateways.RequestTimeout,
			RedirectURL: cfg.Gateways.FlutterwaveRedirectURL,
		},
		Stripe: stripe.Config{
			BaseURL:    cfg.Gateways.StripeBaseURL,
			Timeout:    cfg.Gateways.RequestTimeout,
			SuccessURL: cfg.Gateways.StripeSuccessURL,
			CancelURL:  cfg.Gateways.StripeCancelURL,
		},
	})

	// Initialize services
	dispatcher := service.NewDispatcher(enrollmentRepo, pubsub, logger)
	paymentService := service.NewPaymentService(paymentRepo, paymentLogRepo, gateways, dispatcher, logger)

	// Initialize the reconciliation poller and resume interrupted watches
	watcher := poller.New(
		paymentService,
		gateways,
		paymentRepo,
		cfg.Poller.Interval,
		cfg.Poller.MaxAttempts,
		cfg.Poller.Budget,
		logger,
	)
	if err := watcher.Resume(ctx); err != nil {
		logger.Error("failed to resume pending payment polling", "error", err)
	}

	// Initialize auth middleware
	authMiddleware := middleware.NewAuth(cfg.JWT, logger)

	// Initialize HTTP server
	server := httpServer.NewServer(
		cfg,
		paymentService,
		gateways,
		watcher,
		authMiddleware,
		cache,
		logger,
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop payment polling; interrupted watches resume on next start
	watcher.Shutdown()

	logger.Info("server stopped")
}

// initDatabase initializes PostgreSQL connection pool
func initDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	logger.Info("database connected", "max_conns", cfg.MaxConns)

	return pool, nil
}

// initRedis initializes Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logger.Info("redis connected",
		"addr", cfg.Addr,
		"db", cfg.DB,
		"pool_size", cfg.PoolSize,
	)

	return client, nil
}
