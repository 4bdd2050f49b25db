package repositories

import (
	"context"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// IndexerRepository defines the interface for indexer and indexer config operations
type IndexerRepository interface {
	// Create inserts an indexer together with its configuration rows
	Create(ctx context.Context, indexer *entities.Indexer, config map[string]string) error

	// GetByID retrieves an indexer, returning nil when it does not exist
	GetByID(ctx context.Context, id string) (*entities.Indexer, error)

	// List retrieves indexers matching the filter
	List(ctx context.Context, filter entities.IndexerFilter) ([]entities.Indexer, error)

	// CountByStatus returns the number of indexers per status
	CountByStatus(ctx context.Context) (map[entities.IndexerStatus]int64, error)

	// UpdateStatus sets the status and last error of an indexer
	UpdateStatus(ctx context.Context, id string, status entities.IndexerStatus, lastError *string) error

	// MarkFailed records a batch failure: status error with lastError, unless
	// the indexer was stopped meanwhile, in which case it stays inactive
	MarkFailed(ctx context.Context, id, lastError string) error

	// GetConfig returns all configuration rows of an indexer as a map
	GetConfig(ctx context.Context, id string) (map[string]string, error)

	// SetConfigValue creates or replaces one configuration row
	SetConfigValue(ctx context.Context, id, key, value string) error
}
