package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/usemate/order-stats-api/internal/blacklist"
	"github.com/usemate/order-stats-api/internal/config"
	"github.com/usemate/order-stats-api/internal/events"
	"github.com/usemate/order-stats-api/internal/orders"
	"github.com/usemate/order-stats-api/internal/pricing"
	"github.com/usemate/order-stats-api/internal/queue"
	"github.com/usemate/order-stats-api/internal/server"
	"github.com/usemate/order-stats-api/internal/stats"
	"github.com/usemate/order-stats-api/internal/storage"
	"github.com/usemate/order-stats-api/internal/subgraph"
	"github.com/usemate/order-stats-api/internal/token"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the order stats API
// It wires the reconciliation pipeline, the chain event listener and the
// HTTP server, and shuts everything down gracefully on SIGINT/SIGTERM
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Order store backed by MongoDB
	store, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer func() {
		_ = store.Close()
	}()

	// Redis mirrors the blacklist so mutations survive restarts.
	// The registry works in-memory if Redis is unreachable.
	var rclient redis.Cmdable
	rc := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, blacklist will not persist")
	} else {
		rclient = rc
	}

	registry := blacklist.NewRegistry(rclient, logger)
	if err := registry.Load(ctx); err != nil {
		logger.WithError(err).Warn("failed to load blacklist mirror")
	}

	// BSC connection for token metadata and order events
	ethClient, err := ethclient.DialContext(ctx, cfg.RPCUrl)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to BSC RPC")
	}
	defer ethClient.Close()

	metadata, err := token.NewMetadataClient(ethClient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create token metadata client")
	}

	// Valuation pipeline: prices at historical blocks + token decimals
	prices := pricing.NewClient(pricing.ClientConfig{
		URL:          cfg.PricesSubgraphURL,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	resolver := pricing.NewResolver(prices, metadata, registry, logger)

	// Remote order source
	source := subgraph.NewClient(subgraph.ClientConfig{
		URL:          cfg.OrdersSubgraphURL,
		PageSize:     cfg.PageSize,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	// Reconciliation pipeline
	merger := orders.NewMerger(store, resolver, registry, logger)
	enrichQueue := queue.New(cfg.QueueConcurrency, cfg.QueueInterval, logger)
	enrichQueue.Start(ctx)
	scheduler := orders.NewScheduler(source, store, merger, enrichQueue, logger)

	// Live chain events keep the store fresh between batch runs
	listener, err := events.NewListener(events.ListenerConfig{
		Client:       ethClient,
		CoreAddress:  cfg.CoreAddress,
		Merger:       merger,
		Store:        store,
		Scheduler:    scheduler,
		PollInterval: cfg.EventsInterval,
		FromBlock:    cfg.EventsFromBlock,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create event listener")
	}

	go func() {
		if err := scheduler.Run(ctx, cfg.BatchInterval); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("scheduler stopped")
		}
	}()
	go func() {
		if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("event listener stopped")
		}
	}()

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		Store:     store,
		Stats:     stats.NewService(store, registry, registry, logger),
		Batch:     scheduler,
		Blacklist: registry,
		DevMode:   cfg.DevMode,
		Logger:    logger,
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Stop scheduler, listener and queue
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
	}()

	// Start the HTTP server
	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
