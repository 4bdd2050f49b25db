package repositories

import (
	"context"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// ChainDataRepository defines the interface for ingested chain data
type ChainDataRepository interface {
	// CommitBatch upserts blocks, transactions and events, advances the
	// cursor, marks the indexer active and records the job, all in one
	// transaction. Returns ErrCursorConflict if the cursor moved.
	CommitBatch(ctx context.Context, commit *entities.BatchCommit) error

	// CountRange returns stored row counts for a network block range
	CountRange(ctx context.Context, network string, r entities.BlockRange) (*entities.RangeCounts, error)

	// Totals returns stored row counts across all networks
	Totals(ctx context.Context) (*entities.RangeCounts, error)
}
