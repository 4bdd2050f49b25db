package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()

	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return env
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: idx-9", services.ErrIndexerNotFound), http.StatusNotFound},
		{services.ErrPaymentNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: batchSize", entities.ErrMissingConfigKey), http.StatusBadRequest},
		{pricing.ErrUnknownTool, http.StatusBadRequest},
		{pricing.ErrUnregisteredTool, http.StatusBadRequest},
		{services.ErrCursorReadOnly, http.StatusBadRequest},
		{fmt.Errorf("%w: calldata differs", services.ErrInvalidSignedTx), http.StatusBadRequest},
		{services.ErrBatchInProgress, http.StatusConflict},
		{services.ErrPaymentInFlight, http.StatusConflict},
		{fmt.Errorf("%w: degraded", services.ErrContractUnavailable), http.StatusServiceUnavailable},
		{&services.ContractCallError{Kind: entities.PaymentErrorPermissionDenied, Err: errors.New("missing role")}, http.StatusForbidden},
		{&services.ContractCallError{Kind: entities.PaymentErrorInsufficientFunds, Err: errors.New("exceeds balance")}, http.StatusPaymentRequired},
		{&services.ContractCallError{Kind: entities.PaymentErrorPriceMismatch, Err: errors.New("mismatch")}, http.StatusConflict},
		{&services.ContractCallError{Kind: entities.PaymentErrorWalletRejected, Err: errors.New("signed by another key")}, http.StatusUnprocessableEntity},
		{&services.ContractCallError{Kind: entities.PaymentErrorUnknown, Err: errors.New("reverted")}, http.StatusBadGateway},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondServiceError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, errors.New("pq: password authentication failed"), "Failed to get indexer", nil)

	env := decodeEnvelope(t, rec, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if env.Success || env.Error != "Failed to get indexer" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if len(env.Details) != 0 {
		t.Errorf("expected no details, got %s", env.Details)
	}
}
