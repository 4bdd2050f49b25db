package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

// Ensure PaymentRepo implements PaymentRepository
var _ repositories.PaymentRepository = (*PaymentRepo)(nil)

// PaymentRepo implements PaymentRepository using PostgreSQL
type PaymentRepo struct {
	db *sqlx.DB
}

// NewPaymentRepo creates a new payment repository
func NewPaymentRepo(db *sqlx.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// Create inserts a new payment
func (r *PaymentRepo) Create(ctx context.Context, payment *entities.Payment) error {
	query := `
		INSERT INTO payments (
			id, user_id, wallet_address, token_address, tools,
			subtotal, final_price, is_full_bundle_discount, tx_hash, status
		) VALUES (
			:id, :user_id, :wallet_address, :token_address, :tools,
			:subtotal, :final_price, :is_full_bundle_discount, :tx_hash, :status
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment, returning nil when it does not exist
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*entities.Payment, error) {
	query := `
		SELECT id, user_id, wallet_address, token_address, tools,
			subtotal, final_price, is_full_bundle_discount, tx_hash,
			status, error_kind, error_message, created_at, updated_at
		FROM payments
		WHERE id = $1
	`

	var payment entities.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

// LatestPending returns the newest pending payment of a wallet, or nil
func (r *PaymentRepo) LatestPending(ctx context.Context, wallet string) (*entities.Payment, error) {
	query := `
		SELECT id, user_id, wallet_address, token_address, tools,
			subtotal, final_price, is_full_bundle_discount, tx_hash,
			status, error_kind, error_message, created_at, updated_at
		FROM payments
		WHERE wallet_address = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`

	var payment entities.Payment
	if err := r.db.GetContext(ctx, &payment, query, wallet); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending payment: %w", err)
	}

	return &payment, nil
}

// UpdateSettlement records the transaction hash, status and error classification
func (r *PaymentRepo) UpdateSettlement(ctx context.Context, id string, status entities.PaymentStatus, txHash, errorKind, errorMessage *string) error {
	query := `
		UPDATE payments SET
			status = $2,
			tx_hash = COALESCE($3, tx_hash),
			error_kind = $4,
			error_message = $5,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, txHash, errorKind, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("payment %s: %w", id, repositories.ErrNotFound)
	}

	return nil
}

// ToolUsage counts confirmed purchases per tool name
func (r *PaymentRepo) ToolUsage(ctx context.Context) (map[string]int64, error) {
	query := `
		SELECT tool, COUNT(*) AS count
		FROM payments, unnest(tools) AS tool
		WHERE status = 'confirmed'
		GROUP BY tool
	`

	var rows []struct {
		Tool  string `db:"tool"`
		Count int64  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count tool usage: %w", err)
	}

	usage := make(map[string]int64, len(rows))
	for _, row := range rows {
		usage[row.Tool] = row.Count
	}

	return usage, nil
}
