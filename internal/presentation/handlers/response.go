package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

// Response is the envelope of every API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, Response{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, Response{Success: true, Message: message})
}

func respondError(w http.ResponseWriter, status int, message string, details interface{}) {
	respondJSON(w, status, Response{Success: false, Error: message, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	var callErr *services.ContractCallError
	if errors.As(err, &callErr) {
		switch callErr.Kind {
		case entities.PaymentErrorPermissionDenied:
			return http.StatusForbidden
		case entities.PaymentErrorInsufficientFunds:
			return http.StatusPaymentRequired
		case entities.PaymentErrorPriceMismatch:
			return http.StatusConflict
		case entities.PaymentErrorWalletRejected:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	}

	switch {
	case errors.Is(err, services.ErrIndexerNotFound),
		errors.Is(err, services.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidIndexer),
		errors.Is(err, services.ErrUnknownNetwork),
		errors.Is(err, services.ErrCursorReadOnly),
		errors.Is(err, services.ErrInvalidWallet),
		errors.Is(err, services.ErrEmptySelection),
		errors.Is(err, services.ErrInvalidSignedTx),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, entities.ErrMissingConfigKey),
		errors.Is(err, entities.ErrInvalidConfig),
		errors.Is(err, pricing.ErrUnknownTool),
		errors.Is(err, pricing.ErrUnregisteredTool):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrBatchInProgress),
		errors.Is(err, services.ErrPaymentInFlight):
		return http.StatusConflict
	case errors.Is(err, services.ErrContractUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. Internal errors
// are replaced by fallback so driver messages never reach clients.
func respondServiceError(w http.ResponseWriter, err error, fallback string, details interface{}) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = fallback
	}
	respondError(w, status, message, details)
}
