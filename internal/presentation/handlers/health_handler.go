package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
)

// HealthChecker defines the interface for health checking components
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles liveness, readiness and dependency health
type HealthHandler struct {
	db       HealthChecker
	cache    HealthChecker
	contract *services.ContractState
}

// NewHealthHandler creates a new health handler. cache may be nil when
// Redis is disabled.
func NewHealthHandler(db, cache HealthChecker, contract *services.ContractState) *HealthHandler {
	return &HealthHandler{
		db:       db,
		cache:    cache,
		contract: contract,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]string        `json:"services"`
	Contract  *services.ContractStatus `json:"contract,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	if err := h.db.HealthCheck(ctx); err != nil {
		response.Status = "unhealthy"
		response.Services["database"] = "unhealthy: " + err.Error()
	} else {
		response.Services["database"] = "healthy"
	}

	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			response.Services["cache"] = "unhealthy: " + err.Error()
			h.degrade(&response)
		} else {
			response.Services["cache"] = "healthy"
		}
	}

	if h.contract != nil {
		status := h.contract.Status()
		response.Contract = &status
		response.Services["contract"] = string(status.Mode)
		if status.Mode == services.ContractDegraded {
			h.degrade(&response)
		}
	}

	code := http.StatusOK
	if response.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthHandler) degrade(response *HealthResponse) {
	if response.Status == "healthy" {
		response.Status = "degraded"
	}
}

// Ready handles GET /ready (Kubernetes readiness check)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Live handles GET /live (Kubernetes liveness check)
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
