package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/cache"
	"github.com/wowseoweb3/dashboard-indexer/internal/presentation/handlers"
	"github.com/wowseoweb3/dashboard-indexer/internal/testutil"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	indexers := testutil.NewMockIndexerRepository()
	jobs := testutil.NewMockJobRepository()
	chainData := testutil.NewMockChainDataRepository(indexers, jobs)
	sources := map[string]services.ChainSource{
		"ethereum": testutil.NewMockChainSource("ethereum", 100),
	}
	contract := services.NewContractState()

	monitoring := services.NewMonitoringService(
		indexers,
		chainData,
		jobs,
		testutil.NewMockPaymentRepository(),
		sources,
		cache.NewMemoryCache(time.Minute),
		contract,
		config.IndexerConfig{MaxAcceptableLag: 50},
		logger,
	)

	return newRouter(routes{
		indexers:     handlers.NewIndexerHandler(nil, logger),
		metrics:      handlers.NewMetricsHandler(monitoring, logger),
		pricing:      handlers.NewPricingHandler(nil, logger),
		payments:     handlers.NewPaymentHandler(nil, logger),
		health:       handlers.NewHealthHandler(testutil.NewMockHealthChecker(true), nil, contract),
		registry:     prometheus.NewRegistry(),
		rateLimitRPS: 1000,
	}, logger)
}

func TestRouter(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/live", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/health", http.StatusOK},
		{"/api/metrics", http.StatusOK},
		{"/api/metrics?type=health", http.StatusOK},
		{"/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_ExposesPrometheusMetrics(t *testing.T) {
	router := setupRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",path="/api/metrics",status="200"} 1`) {
		t.Errorf("expected request counter for the metrics route, got:\n%s", rec.Body.String())
	}
}
