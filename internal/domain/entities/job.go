package entities

import (
	"time"
)

// JobStatus is the outcome of one batch run
type JobStatus string

const (
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IndexerJob records one batch run of an indexer
type IndexerJob struct {
	ID                string     `db:"id" json:"id"`
	IndexerID         string     `db:"indexer_id" json:"indexer_id"`
	FromBlock         uint64     `db:"from_block" json:"from_block,string"`
	ToBlock           uint64     `db:"to_block" json:"to_block,string"`
	Status            JobStatus  `db:"status" json:"status"`
	BlocksProcessed   int64      `db:"blocks_processed" json:"blocks_processed"`
	TransactionsCount int64      `db:"transactions_count" json:"transactions_count"`
	EventsCount       int64      `db:"events_count" json:"events_count"`
	Error             *string    `db:"error" json:"error,omitempty"`
	StartedAt         time.Time  `db:"started_at" json:"started_at"`
	FinishedAt        *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// JobStats aggregates job history for an indexer
type JobStats struct {
	BlocksProcessed int64      `db:"blocks_processed"`
	CompletedJobs   int64      `db:"completed_jobs"`
	FailedJobs      int64      `db:"failed_jobs"`
	LastFinishedAt  *time.Time `db:"last_finished_at"`
}

// BatchCommit is the unit written atomically at the end of a successful batch:
// chain data, the cursor advance, the status change and the job record.
type BatchCommit struct {
	IndexerID string
	// ExpectedCursor is the lastProcessedBlock read before fetching; nil when
	// the indexer has never committed. The commit fails if it changed.
	ExpectedCursor *uint64
	Data           BatchData
	Job            IndexerJob
	CommittedAt    time.Time
}
