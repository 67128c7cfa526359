package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kdero/trustx/config"
	"github.com/Kdero/trustx/internal/adapter/chain/trongrid"
	httpHandler "github.com/Kdero/trustx/internal/adapter/http/handler"
	pgStorage "github.com/Kdero/trustx/internal/adapter/storage/postgres"
	redisStorage "github.com/Kdero/trustx/internal/adapter/storage/redis"
	"github.com/Kdero/trustx/internal/core/ports"
	"github.com/Kdero/trustx/internal/service"
	"github.com/Kdero/trustx/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("network", cfg.Tron.Network).
		Msg("Starting TrustX deposit gateway")

	if cfg.Tron.WalletAddress == "" {
		log.Fatal().Msg("tron.wallet_address is required")
	}

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	transferRepo := pgStorage.NewTransferRepo(pool)
	balanceRepo := pgStorage.NewBalanceRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	seenCache := redisStorage.NewSeenCache(rdb)
	reconcileLock := redisStorage.NewReconcileLock(rdb)

	// Initialize chain client
	chain := trongrid.NewClient(cfg.Tron, log)

	// Initialize business services
	settlementSvc := service.NewSettlementService(balanceRepo, transactor, cfg.Callback.SigningSecret, log)
	reconciler := service.NewReconciler(
		paymentRepo,
		transferRepo,
		chain,
		settlementSvc,
		seenCache,
		reconcileLock,
		cfg.Tron,
		cfg.Reconciler,
		log,
	)
	paymentSvc := service.NewPaymentService(
		paymentRepo,
		transferRepo,
		reconciler,
		settlementSvc,
		cfg.Tron.WalletAddress,
		cfg.Reconciler.PaymentExpiry,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Background reconciliation loop
	reconcilerCtx, stopReconciler := context.WithCancel(ctx)
	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		reconciler.Run(reconcilerCtx)
	}()

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:     paymentSvc,
		AdminAPIKey:    cfg.Admin.APIKey,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopReconciler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	select {
	case <-reconcilerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Reconciler did not stop in time")
	}

	log.Info().Msg("Server exited")
}
