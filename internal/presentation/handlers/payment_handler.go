package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// PaymentHandler handles tool purchases
type PaymentHandler struct {
	service *services.PaymentService
	logger  *zap.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service *services.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the payment routes
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payments", h.Submit)
	r.Get("/payments/{id}", h.Get)
}

// Submit handles POST /api/v1/payments. A failed settlement returns the
// stored payment as details next to the classified error; a payment still
// awaiting its receipt is answered with 202.
func (h *PaymentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req services.SubmitPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	payment, err := h.service.Submit(r.Context(), req)
	if err != nil {
		var details interface{}
		if payment != nil {
			details = payment
		}
		respondServiceError(w, err, "Failed to submit payment", details)
		return
	}

	status := http.StatusCreated
	if payment.Status == entities.PaymentStatusPending {
		status = http.StatusAccepted
	}
	respondData(w, status, payment)
}

// Get handles GET /api/v1/payments/{id}
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get payment", nil)
		return
	}

	respondData(w, http.StatusOK, payment)
}
