package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

// Ensure ChainDataRepo implements ChainDataRepository
var _ repositories.ChainDataRepository = (*ChainDataRepo)(nil)

// ChainDataRepo implements ChainDataRepository using PostgreSQL
type ChainDataRepo struct {
	db *sqlx.DB
}

// NewChainDataRepo creates a new chain data repository
func NewChainDataRepo(db *sqlx.DB) *ChainDataRepo {
	return &ChainDataRepo{db: db}
}

const (
	upsertBlockQuery = `
		INSERT INTO blocks (network, block_number, hash, parent_hash, timestamp, tx_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (network, block_number) DO UPDATE SET
			hash = EXCLUDED.hash,
			parent_hash = EXCLUDED.parent_hash,
			timestamp = EXCLUDED.timestamp,
			tx_count = EXCLUDED.tx_count
	`

	upsertTransactionQuery = `
		INSERT INTO transactions (network, hash, block_number, tx_index, from_address, to_address, value, gas_used, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (network, hash) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			tx_index = EXCLUDED.tx_index,
			gas_used = EXCLUDED.gas_used,
			status = EXCLUDED.status
	`

	upsertEventQuery = `
		INSERT INTO events (network, tx_hash, log_index, block_number, contract_address, topics, data, event_name, decoded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_hash, log_index) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			contract_address = EXCLUDED.contract_address,
			topics = EXCLUDED.topics,
			data = EXCLUDED.data,
			event_name = EXCLUDED.event_name,
			decoded = EXCLUDED.decoded
	`

	insertCursorQuery = `
		INSERT INTO indexer_configs (indexer_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (indexer_id, key) DO NOTHING
	`

	// Compared as numbers so a stored "0100" still matches cursor 100
	advanceCursorQuery = `
		UPDATE indexer_configs SET
			value = $4,
			updated_at = NOW()
		WHERE indexer_id = $1 AND key = $2 AND value::numeric = $3::numeric
	`

	// A stop issued while the batch was in flight wins over the commit
	markActiveQuery = `
		UPDATE indexers SET
			status = CASE WHEN status = 'inactive' THEN status ELSE 'active' END,
			last_error = NULL,
			last_run = $2,
			updated_at = NOW()
		WHERE id = $1
	`
)

// CommitBatch writes a batch atomically. Either the data, the cursor advance,
// the status change and the job row all land, or none of them do.
func (r *ChainDataRepo) CommitBatch(ctx context.Context, commit *entities.BatchCommit) error {
	if commit.ExpectedCursor != nil && commit.Data.Range.To <= *commit.ExpectedCursor {
		return fmt.Errorf("refusing to move cursor from %d to %d", *commit.ExpectedCursor, commit.Data.Range.To)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertBlocks(ctx, tx, commit.Data.Blocks); err != nil {
		return err
	}
	if err := upsertTransactions(ctx, tx, commit.Data.Transactions); err != nil {
		return err
	}
	if err := upsertEvents(ctx, tx, commit.Data.Events); err != nil {
		return err
	}

	if err := advanceCursor(ctx, tx, commit); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, markActiveQuery, commit.IndexerID, commit.CommittedAt); err != nil {
		return fmt.Errorf("failed to mark indexer active: %w", err)
	}

	if err := insertJob(ctx, tx, &commit.Job); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

func upsertBlocks(ctx context.Context, tx *sqlx.Tx, blocks []entities.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, upsertBlockQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare block upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range blocks {
		if _, err := stmt.ExecContext(ctx,
			b.Network, b.BlockNumber, b.Hash, b.ParentHash, b.Timestamp, b.TxCount,
		); err != nil {
			return fmt.Errorf("failed to upsert block %d: %w", b.BlockNumber, err)
		}
	}

	return nil
}

func upsertTransactions(ctx context.Context, tx *sqlx.Tx, txs []entities.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, upsertTransactionQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare transaction upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx,
			t.Network, t.Hash, t.BlockNumber, t.TxIndex, t.FromAddress, t.ToAddress, t.Value, t.GasUsed, t.Status,
		); err != nil {
			return fmt.Errorf("failed to upsert transaction %s: %w", t.Hash, err)
		}
	}

	return nil
}

func upsertEvents(ctx context.Context, tx *sqlx.Tx, events []entities.Event) error {
	if len(events) == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, upsertEventQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare event upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.Network, e.TxHash, e.LogIndex, e.BlockNumber, e.ContractAddress, e.Topics, e.Data, e.EventName, e.Decoded,
		); err != nil {
			return fmt.Errorf("failed to upsert event %s#%d: %w", e.TxHash, e.LogIndex, err)
		}
	}

	return nil
}

// advanceCursor is a compare-and-swap on lastProcessedBlock. A concurrent
// writer for the same indexer makes it affect zero rows.
func advanceCursor(ctx context.Context, tx *sqlx.Tx, commit *entities.BatchCommit) error {
	next := strconv.FormatUint(commit.Data.Range.To, 10)

	var (
		rows int64
		err  error
	)
	if commit.ExpectedCursor == nil {
		rows, err = execRows(ctx, tx, insertCursorQuery,
			commit.IndexerID, entities.ConfigLastProcessedBlock, next)
	} else {
		rows, err = execRows(ctx, tx, advanceCursorQuery,
			commit.IndexerID, entities.ConfigLastProcessedBlock,
			strconv.FormatUint(*commit.ExpectedCursor, 10), next)
	}
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}
	if rows == 0 {
		return repositories.ErrCursorConflict
	}

	return nil
}

func execRows(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int64, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountRange returns stored row counts for a network block range
func (r *ChainDataRepo) CountRange(ctx context.Context, network string, br entities.BlockRange) (*entities.RangeCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM blocks WHERE network = $1 AND block_number BETWEEN $2 AND $3) AS blocks,
			(SELECT COUNT(*) FROM transactions WHERE network = $1 AND block_number BETWEEN $2 AND $3) AS transactions,
			(SELECT COUNT(*) FROM events WHERE network = $1 AND block_number BETWEEN $2 AND $3) AS events
	`

	var counts entities.RangeCounts
	if err := r.db.GetContext(ctx, &counts, query, network, br.From, br.To); err != nil {
		return nil, fmt.Errorf("failed to count range: %w", err)
	}

	return &counts, nil
}

// Totals returns stored row counts across all networks
func (r *ChainDataRepo) Totals(ctx context.Context) (*entities.RangeCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM blocks) AS blocks,
			(SELECT COUNT(*) FROM transactions) AS transactions,
			(SELECT COUNT(*) FROM events) AS events
	`

	var counts entities.RangeCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count totals: %w", err)
	}

	return &counts, nil
}
