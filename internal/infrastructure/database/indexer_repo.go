package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

// Ensure IndexerRepo implements IndexerRepository
var _ repositories.IndexerRepository = (*IndexerRepo)(nil)

// IndexerRepo implements IndexerRepository using PostgreSQL
type IndexerRepo struct {
	db *sqlx.DB
}

// NewIndexerRepo creates a new indexer repository
func NewIndexerRepo(db *sqlx.DB) *IndexerRepo {
	return &IndexerRepo{db: db}
}

const indexerColumns = `id, owner_id, name, description, status, last_error, last_run, created_at, updated_at`

// Create inserts an indexer together with its configuration rows
func (r *IndexerRepo) Create(ctx context.Context, indexer *entities.Indexer, config map[string]string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO indexers (id, owner_id, name, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	row := tx.QueryRowxContext(ctx, query,
		indexer.ID,
		indexer.OwnerID,
		indexer.Name,
		indexer.Description,
		indexer.Status,
	)
	if err := row.Scan(&indexer.CreatedAt, &indexer.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert indexer: %w", err)
	}

	for key, value := range config {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO indexer_configs (indexer_id, key, value) VALUES ($1, $2, $3)`,
			indexer.ID, key, value,
		); err != nil {
			return fmt.Errorf("failed to insert indexer config %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit indexer: %w", err)
	}

	return nil
}

// GetByID retrieves an indexer, returning nil when it does not exist
func (r *IndexerRepo) GetByID(ctx context.Context, id string) (*entities.Indexer, error) {
	var indexer entities.Indexer
	query := `SELECT ` + indexerColumns + ` FROM indexers WHERE id = $1`

	if err := r.db.GetContext(ctx, &indexer, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get indexer: %w", err)
	}

	return &indexer, nil
}

// List retrieves indexers matching the filter
func (r *IndexerRepo) List(ctx context.Context, filter entities.IndexerFilter) ([]entities.Indexer, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := `SELECT ` + indexerColumns + ` FROM indexers` + whereClause + ` ORDER BY created_at`

	indexers := []entities.Indexer{}
	if err := r.db.SelectContext(ctx, &indexers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}

	return indexers, nil
}

// CountByStatus returns the number of indexers per status
func (r *IndexerRepo) CountByStatus(ctx context.Context) (map[entities.IndexerStatus]int64, error) {
	var rows []struct {
		Status entities.IndexerStatus `db:"status"`
		Count  int64                  `db:"count"`
	}

	query := `SELECT status, COUNT(*) AS count FROM indexers GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count indexers: %w", err)
	}

	counts := make(map[entities.IndexerStatus]int64, len(entities.AllIndexerStatuses))
	for _, s := range entities.AllIndexerStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

// UpdateStatus sets the status and last error of an indexer
func (r *IndexerRepo) UpdateStatus(ctx context.Context, id string, status entities.IndexerStatus, lastError *string) error {
	query := `
		UPDATE indexers SET
			status = $2,
			last_error = $3,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, lastError)
	if err != nil {
		return fmt.Errorf("failed to update indexer status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("indexer %s: %w", id, repositories.ErrNotFound)
	}

	return nil
}

// MarkFailed records a batch failure. A stop issued while the batch ran wins.
func (r *IndexerRepo) MarkFailed(ctx context.Context, id, lastError string) error {
	query := `
		UPDATE indexers SET
			status = CASE WHEN status = 'inactive' THEN status ELSE 'error' END,
			last_error = $2,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, lastError)
	if err != nil {
		return fmt.Errorf("failed to mark indexer failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("indexer %s: %w", id, repositories.ErrNotFound)
	}

	return nil
}

// GetConfig returns all configuration rows of an indexer as a map
func (r *IndexerRepo) GetConfig(ctx context.Context, id string) (map[string]string, error) {
	var entries []entities.IndexerConfigEntry
	query := `SELECT indexer_id, key, value, updated_at FROM indexer_configs WHERE indexer_id = $1`

	if err := r.db.SelectContext(ctx, &entries, query, id); err != nil {
		return nil, fmt.Errorf("failed to get indexer config: %w", err)
	}

	config := make(map[string]string, len(entries))
	for _, e := range entries {
		config[e.Key] = e.Value
	}

	return config, nil
}

// SetConfigValue creates or replaces one configuration row
func (r *IndexerRepo) SetConfigValue(ctx context.Context, id, key, value string) error {
	query := `
		INSERT INTO indexer_configs (indexer_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (indexer_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, id, key, value); err != nil {
		return fmt.Errorf("failed to set indexer config %s: %w", key, err)
	}

	return nil
}
