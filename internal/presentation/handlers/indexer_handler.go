package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// IndexerHandler handles indexer management and on-demand batch runs
type IndexerHandler struct {
	service *services.IndexerService
	logger  *zap.Logger
}

// NewIndexerHandler creates a new indexer handler
func NewIndexerHandler(service *services.IndexerService, logger *zap.Logger) *IndexerHandler {
	return &IndexerHandler{
		service: service,
		logger:  logger,
	}
}

// IndexerResponse is an indexer with its configuration
type IndexerResponse struct {
	*entities.Indexer
	Config map[string]string `json:"config"`
}

// UpdateConfigRequest sets one configuration key
type UpdateConfigRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RegisterRoutes registers the indexer routes
func (h *IndexerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/indexers", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/run", h.Run)
		r.Post("/{id}/start", h.Start)
		r.Post("/{id}/stop", h.Stop)
		r.Put("/{id}/config", h.UpdateConfig)
	})
}

// Create handles POST /api/v1/indexers
func (h *IndexerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateIndexerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	indexer, err := h.service.CreateIndexer(r.Context(), req)
	if err != nil {
		h.logger.Warn("Failed to create indexer", zap.Error(err))
		respondServiceError(w, err, "Failed to create indexer", nil)
		return
	}

	respondData(w, http.StatusCreated, IndexerResponse{Indexer: indexer, Config: req.Config})
}

// List handles GET /api/v1/indexers?status=&owner=
func (h *IndexerHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter entities.IndexerFilter

	if v := r.URL.Query().Get("status"); v != "" {
		status := entities.IndexerStatus(v)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "Invalid status", entities.AllIndexerStatuses)
			return
		}
		filter.Status = &status
	}
	if v := r.URL.Query().Get("owner"); v != "" {
		filter.OwnerID = &v
	}

	indexers, err := h.service.ListIndexers(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list indexers", zap.Error(err))
		respondServiceError(w, err, "Failed to list indexers", nil)
		return
	}

	respondData(w, http.StatusOK, indexers)
}

// Get handles GET /api/v1/indexers/{id}
func (h *IndexerHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	indexer, err := h.service.GetIndexer(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Failed to get indexer", nil)
		return
	}

	config, err := h.service.GetConfig(ctx, id)
	if err != nil {
		h.logger.Error("Failed to get indexer config", zap.String("indexer_id", id), zap.Error(err))
		respondServiceError(w, err, "Failed to get indexer", nil)
		return
	}

	respondData(w, http.StatusOK, IndexerResponse{Indexer: indexer, Config: config})
}

// Run handles POST /api/v1/indexers/{id}/run. A failed batch answers 502
// with the batch result as details.
func (h *IndexerHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.RunBatch(r.Context(), id)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			h.logger.Error("Batch run failed", zap.String("indexer_id", id), zap.Error(err))
		}
		var details interface{}
		if result != nil {
			details = result
		}
		respondServiceError(w, err, "Failed to run batch", details)
		return
	}

	if result.Outcome == services.BatchFailed {
		respondError(w, http.StatusBadGateway, result.Error, result)
		return
	}

	respondData(w, http.StatusOK, result)
}

// Start handles POST /api/v1/indexers/{id}/start
func (h *IndexerHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.StartIndexer)
}

// Stop handles POST /api/v1/indexers/{id}/stop
func (h *IndexerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.StopIndexer)
}

func (h *IndexerHandler) changeStatus(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, id string) error) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := change(ctx, id); err != nil {
		respondServiceError(w, err, "Failed to update indexer", nil)
		return
	}

	indexer, err := h.service.GetIndexer(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Failed to get indexer", nil)
		return
	}

	respondData(w, http.StatusOK, indexer)
}

// UpdateConfig handles PUT /api/v1/indexers/{id}/config
func (h *IndexerHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req UpdateConfigRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Key == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body", "key and value are required")
		return
	}

	if err := h.service.UpdateConfig(ctx, id, req.Key, req.Value); err != nil {
		respondServiceError(w, err, "Failed to update indexer config", nil)
		return
	}

	config, err := h.service.GetConfig(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Failed to get indexer config", nil)
		return
	}

	respondData(w, http.StatusOK, config)
}
