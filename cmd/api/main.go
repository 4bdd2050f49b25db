package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/app"
	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/presentation/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting dashboard-indexer API",
		zap.Int("port", cfg.API.Port),
		zap.Strings("networks", cfg.Ethereum.NetworkNames()),
	)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	// The mirror may be stale from a previous run; quotes keep working from
	// it if the contract cannot be reached now.
	a.SyncPrices(context.Background())

	router := newRouter(routes{
		indexers:     handlers.NewIndexerHandler(a.Indexers, logger),
		metrics:      handlers.NewMetricsHandler(a.Monitoring, logger),
		pricing:      handlers.NewPricingHandler(a.Pricing, logger),
		payments:     handlers.NewPaymentHandler(a.Payments, logger),
		health:       handlers.NewHealthHandler(a.DB, a.RedisHealth(), a.Contract),
		registry:     a.Registry,
		rateLimitRPS: cfg.API.RateLimitRPS,
	}, logger)

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// In-flight payments keep their request context until the deadline
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}
