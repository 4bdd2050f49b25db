package repositories

import (
	"context"
	"time"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// JobRepository defines the interface for batch run history
type JobRepository interface {
	// Insert records a job outside of a batch commit (failed runs)
	Insert(ctx context.Context, job *entities.IndexerJob) error

	// GetStats aggregates the job history of an indexer
	GetStats(ctx context.Context, indexerID string) (*entities.JobStats, error)

	// BlocksProcessedSince sums blocks of completed jobs finished after since
	BlocksProcessedSince(ctx context.Context, since time.Time) (int64, error)

	// ListRecent returns the latest jobs of an indexer, newest first
	ListRecent(ctx context.Context, indexerID string, limit int) ([]entities.IndexerJob, error)
}
