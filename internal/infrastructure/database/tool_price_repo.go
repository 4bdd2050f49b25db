package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

// Ensure ToolPriceRepo implements ToolPriceRepository
var _ repositories.ToolPriceRepository = (*ToolPriceRepo)(nil)

// ToolPriceRepo implements ToolPriceRepository using PostgreSQL
type ToolPriceRepo struct {
	db *sqlx.DB
}

// NewToolPriceRepo creates a new tool price repository
func NewToolPriceRepo(db *sqlx.DB) *ToolPriceRepo {
	return &ToolPriceRepo{db: db}
}

// UpsertAll replaces mirror rows for the given tools
func (r *ToolPriceRepo) UpsertAll(ctx context.Context, prices []entities.ToolPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO tool_prices (tool_id, name, price, registered, synced_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tool_id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			registered = EXCLUDED.registered,
			synced_at = EXCLUDED.synced_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err := stmt.ExecContext(ctx, p.ToolID, p.Name, p.Price, p.Registered, p.SyncedAt); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetAll returns every mirrored tool price
func (r *ToolPriceRepo) GetAll(ctx context.Context) ([]entities.ToolPrice, error) {
	query := `SELECT tool_id, name, price, registered, synced_at FROM tool_prices ORDER BY name`

	prices := []entities.ToolPrice{}
	if err := r.db.SelectContext(ctx, &prices, query); err != nil {
		return nil, fmt.Errorf("failed to get tool prices: %w", err)
	}

	return prices, nil
}
