package repositories

import (
	"context"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// PaymentRepository defines the interface for payment records
type PaymentRepository interface {
	// Create inserts a new payment
	Create(ctx context.Context, payment *entities.Payment) error

	// GetByID retrieves a payment, returning nil when it does not exist
	GetByID(ctx context.Context, id string) (*entities.Payment, error)

	// LatestPending returns the newest pending payment of a wallet, or nil
	LatestPending(ctx context.Context, wallet string) (*entities.Payment, error)

	// UpdateSettlement records the transaction hash, status and error classification
	UpdateSettlement(ctx context.Context, id string, status entities.PaymentStatus, txHash, errorKind, errorMessage *string) error

	// ToolUsage counts confirmed purchases per tool name
	ToolUsage(ctx context.Context) (map[string]int64, error)
}

// ToolPriceRepository defines the interface for the mirrored tool price registry
type ToolPriceRepository interface {
	// UpsertAll replaces mirror rows for the given tools
	UpsertAll(ctx context.Context, prices []entities.ToolPrice) error

	// GetAll returns every mirrored tool price
	GetAll(ctx context.Context) ([]entities.ToolPrice, error)
}
