package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kdero/trustx/config"
	"github.com/Kdero/trustx/internal/adapter/chain/trongrid"
	pgStorage "github.com/Kdero/trustx/internal/adapter/storage/postgres"
	redisStorage "github.com/Kdero/trustx/internal/adapter/storage/redis"
	"github.com/Kdero/trustx/internal/service"
	"github.com/Kdero/trustx/pkg/logger"
)

// Standalone reconciler process. Runs the same polling loop as the API binary
// so that deployments can scale chain monitoring separately from the HTTP
// surface. With --once it performs a single pass and exits, which is what the
// cron-style and smoke-test setups use.
func main() {
	once := flag.Bool("once", false, "run a single reconciliation pass and exit")
	interval := flag.Duration("interval", 0, "polling interval override (e.g. 30s)")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Reconciler.Interval = *interval
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("network", cfg.Tron.Network).
		Dur("interval", cfg.Reconciler.Interval).
		Bool("once", *once).
		Msg("Starting TrustX payment monitor")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	paymentRepo := pgStorage.NewPaymentRepo(pool)
	transferRepo := pgStorage.NewTransferRepo(pool)
	balanceRepo := pgStorage.NewBalanceRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	seenCache := redisStorage.NewSeenCache(rdb)
	reconcileLock := redisStorage.NewReconcileLock(rdb)

	chain := trongrid.NewClient(cfg.Tron, log)

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

	if *once {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		reconciler.RunOnce(runCtx)
		log.Info().Msg("Single pass finished")
		return
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		reconciler.Run(runCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down monitor...")

	stop()
	<-done

	log.Info().Msg("Monitor exited")
}
