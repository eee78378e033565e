package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/streampay-hq/streampay-engine/pkg/chain"
	"github.com/streampay-hq/streampay-engine/pkg/config"
	"github.com/streampay-hq/streampay-engine/pkg/engine"
	"github.com/streampay-hq/streampay-engine/pkg/health"
	"github.com/streampay-hq/streampay-engine/pkg/logger"
	"github.com/streampay-hq/streampay-engine/pkg/notify"
	"github.com/streampay-hq/streampay-engine/pkg/payout"
	"github.com/streampay-hq/streampay-engine/pkg/store"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	chainGW, err := chain.NewEthGateway(ctx, chain.Config{
		RPCURL:        cfg.RPCURL,
		IntentAddress: cfg.IntentAddress,
		PrivateKeyHex: cfg.PrivateKey,
	}, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect to chain RPC: %v", err)
	}

	payouts := payout.NewClient(cfg.Payout.APIURL, cfg.Payout.APIKey, appLogger)
	notifier := notify.NewService(db, cfg.Telegram.BotToken, cfg.Telegram.Enabled, appLogger)

	service := engine.NewService(cfg, db, chainGW, payouts, notifier, appLogger)

	// Health and metrics endpoints
	healthServer := health.NewServer(cfg.MetricsPort, service, db, chainGW, appLogger)
	go healthServer.Start()

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		appLogger.Info("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	appLogger.Info("Starting the execution engine...")
	service.Start(ctx)
}
