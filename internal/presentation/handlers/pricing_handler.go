package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
)

// PricingHandler serves the tool catalogue, quotes and admin pricing
type PricingHandler struct {
	service *services.PricingService
	logger  *zap.Logger
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(service *services.PricingService, logger *zap.Logger) *PricingHandler {
	return &PricingHandler{
		service: service,
		logger:  logger,
	}
}

// QuoteRequest lists the tools to price
type QuoteRequest struct {
	Tools []string `json:"tools"`
}

// SetPriceRequest carries a price in the token's smallest unit, as a decimal string
type SetPriceRequest struct {
	Price string `json:"price"`
}

// RegisterRoutes registers the pricing routes
func (h *PricingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tools", h.ListTools)
	r.Post("/tools/quote", h.Quote)
	r.Put("/tools/{name}/price", h.SetPrice)
}

// ListTools handles GET /api/v1/tools
func (h *PricingHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.service.ListTools(r.Context())
	if err != nil {
		h.logger.Error("Failed to list tools", zap.Error(err))
		respondServiceError(w, err, "Failed to list tools", nil)
		return
	}

	respondData(w, http.StatusOK, tools)
}

// Quote handles POST /api/v1/tools/quote
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	quote, err := h.service.Quote(r.Context(), req.Tools)
	if err != nil {
		respondServiceError(w, err, "Failed to compute quote", nil)
		return
	}

	respondData(w, http.StatusOK, quote)
}

// SetPrice handles PUT /api/v1/tools/{name}/price
func (h *PricingHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SetPriceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.SetToolPrice(r.Context(), name, req.Price)
	if err != nil {
		h.logger.Warn("Failed to set tool price", zap.String("tool", name), zap.Error(err))
		respondServiceError(w, err, "Failed to set tool price", nil)
		return
	}

	respondData(w, http.StatusOK, result)
}
