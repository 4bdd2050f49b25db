package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/app"
	"github.com/wowseoweb3/dashboard-indexer/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting dashboard-indexer scheduler",
		zap.Strings("networks", cfg.Ethereum.NetworkNames()),
		zap.Duration("poll_interval", cfg.Indexer.PollInterval),
		zap.Int("workers", cfg.Indexer.WorkerCount),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	// Start scheduler
	if err := a.Scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	metricsServer := newMetricsServer(cfg.Indexer.MetricsPort, a.Registry)
	go func() {
		logger.Info("Starting metrics server", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping scheduler...")

	// In-flight batches finish and commit before the connections close
	a.Scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown error", zap.Error(err))
	}

	logger.Info("Scheduler stopped")
}

// newMetricsServer serves the scrape endpoint and a plain liveness check
func newMetricsServer(port int, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
