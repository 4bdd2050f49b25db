package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/presentation/handlers"
	"github.com/wowseoweb3/dashboard-indexer/internal/presentation/middleware"
)

// routes groups everything the router mounts
type routes struct {
	indexers *handlers.IndexerHandler
	metrics  *handlers.MetricsHandler
	pricing  *handlers.PricingHandler
	payments *handlers.PaymentHandler
	health   *handlers.HealthHandler

	registry     *prometheus.Registry
	rateLimitRPS int
}

func newRouter(rt routes, logger *zap.Logger) http.Handler {
	httpMetrics := middleware.NewHTTPMetrics(rt.registry)

	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(httpMetrics.Middleware)
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no rate limiting)
	r.Get("/health", rt.health.Health)
	r.Get("/ready", rt.health.Ready)
	r.Get("/live", rt.health.Live)
	r.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimiter(rt.rateLimitRPS))

		r.Route("/api", func(r chi.Router) {
			rt.metrics.RegisterRoutes(r)

			r.Route("/v1", func(r chi.Router) {
				rt.indexers.RegisterRoutes(r)
				rt.pricing.RegisterRoutes(r)
				rt.payments.RegisterRoutes(r)
			})
		})
	})

	return r
}
