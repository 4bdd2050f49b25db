package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
)

// Metrics query types
const (
	metricsTypeSystem  = "system"
	metricsTypeIndexer = "indexer"
	metricsTypeHealth  = "health"
)

// MetricsHandler serves the monitoring queries
type MetricsHandler struct {
	service *services.MonitoringService
	logger  *zap.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(service *services.MonitoringService, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the metrics routes
func (h *MetricsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/metrics", h.GetMetrics)
	r.Delete("/metrics", h.ClearCache)
}

// GetMetrics handles GET /api/metrics?type=system|indexer|health&indexerId=
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	metricsType := query.Get("type")
	if metricsType == "" {
		metricsType = metricsTypeSystem
	}

	var (
		data interface{}
		err  error
	)

	switch metricsType {
	case metricsTypeSystem:
		data, err = h.service.GetSystemMetrics(ctx)
	case metricsTypeIndexer:
		id := query.Get("indexerId")
		if id == "" {
			respondError(w, http.StatusBadRequest, "indexerId is required for indexer metrics", nil)
			return
		}
		data, err = h.service.GetIndexerMetrics(ctx, id)
	case metricsTypeHealth:
		data, err = h.service.GetHealthStatus(ctx)
	default:
		respondError(w, http.StatusBadRequest, "Invalid metrics type",
			map[string]interface{}{"type": metricsType, "allowed": []string{metricsTypeSystem, metricsTypeIndexer, metricsTypeHealth}})
		return
	}

	if err != nil {
		h.logger.Error("Failed to get metrics", zap.String("type", metricsType), zap.Error(err))
		respondServiceError(w, err, "Failed to get metrics", nil)
		return
	}

	respondData(w, http.StatusOK, data)
}

// ClearCache handles DELETE /api/metrics
func (h *MetricsHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCache(r.Context()); err != nil {
		h.logger.Error("Failed to clear metrics cache", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to clear metrics cache", nil)
		return
	}

	respondMessage(w, "Metrics cache cleared")
}
