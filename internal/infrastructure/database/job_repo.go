package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

// Ensure JobRepo implements JobRepository
var _ repositories.JobRepository = (*JobRepo)(nil)

// JobRepo implements JobRepository using PostgreSQL
type JobRepo struct {
	db *sqlx.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *sqlx.DB) *JobRepo {
	return &JobRepo{db: db}
}

const insertJobQuery = `
	INSERT INTO indexer_jobs (
		id, indexer_id, from_block, to_block, status,
		blocks_processed, transactions_count, events_count,
		error, started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

func jobArgs(job *entities.IndexerJob) []interface{} {
	return []interface{}{
		job.ID,
		job.IndexerID,
		job.FromBlock,
		job.ToBlock,
		job.Status,
		job.BlocksProcessed,
		job.TransactionsCount,
		job.EventsCount,
		job.Error,
		job.StartedAt,
		job.FinishedAt,
	}
}

func insertJob(ctx context.Context, tx *sqlx.Tx, job *entities.IndexerJob) error {
	if _, err := tx.ExecContext(ctx, insertJobQuery, jobArgs(job)...); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Insert records a job outside of a batch commit
func (r *JobRepo) Insert(ctx context.Context, job *entities.IndexerJob) error {
	if _, err := r.db.ExecContext(ctx, insertJobQuery, jobArgs(job)...); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetStats aggregates the job history of an indexer
func (r *JobRepo) GetStats(ctx context.Context, indexerID string) (*entities.JobStats, error) {
	query := `
		SELECT
			COALESCE(SUM(blocks_processed) FILTER (WHERE status = 'completed'), 0) AS blocks_processed,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_jobs,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed_jobs,
			MAX(finished_at) AS last_finished_at
		FROM indexer_jobs
		WHERE indexer_id = $1
	`

	var stats entities.JobStats
	if err := r.db.GetContext(ctx, &stats, query, indexerID); err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}

	return &stats, nil
}

// BlocksProcessedSince sums blocks of completed jobs finished after since
func (r *JobRepo) BlocksProcessedSince(ctx context.Context, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(blocks_processed), 0)
		FROM indexer_jobs
		WHERE status = 'completed' AND finished_at >= $1
	`

	var total int64
	if err := r.db.GetContext(ctx, &total, query, since); err != nil {
		return 0, fmt.Errorf("failed to sum processed blocks: %w", err)
	}

	return total, nil
}

// ListRecent returns the latest jobs of an indexer, newest first
func (r *JobRepo) ListRecent(ctx context.Context, indexerID string, limit int) ([]entities.IndexerJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, indexer_id, from_block, to_block, status,
			blocks_processed, transactions_count, events_count,
			error, started_at, finished_at
		FROM indexer_jobs
		WHERE indexer_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	jobs := []entities.IndexerJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, indexerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
