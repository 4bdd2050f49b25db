package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func sampleCommit(expected *uint64) *entities.BatchCommit {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &entities.BatchCommit{
		IndexerID:      "idx-1",
		ExpectedCursor: expected,
		Data: entities.BatchData{
			Network: "ethereum",
			Range:   entities.BlockRange{From: 101, To: 102},
			Blocks: []entities.Block{
				{Network: "ethereum", BlockNumber: 101, Hash: "0x01", ParentHash: "0x00", Timestamp: now},
				{Network: "ethereum", BlockNumber: 102, Hash: "0x02", ParentHash: "0x01", Timestamp: now},
			},
		},
		Job: entities.IndexerJob{
			ID:              "job-1",
			IndexerID:       "idx-1",
			FromBlock:       101,
			ToBlock:         102,
			Status:          entities.JobStatusCompleted,
			BlocksProcessed: 2,
			StartedAt:       now,
			FinishedAt:      &now,
		},
		CommittedAt: now,
	}
}

func TestChainDataRepo_CommitBatch_AdvancesCursor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChainDataRepo(db)

	cursor := uint64(100)
	commit := sampleCommit(&cursor)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO blocks")
	prep.ExpectExec().WithArgs("ethereum", uint64(101), "0x01", "0x00", sqlmock.AnyArg(), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("ethereum", uint64(102), "0x02", "0x01", sqlmock.AnyArg(), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE indexer_configs SET.*value::numeric = \$3::numeric`).
		WithArgs("idx-1", entities.ConfigLastProcessedBlock, "100", "102").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE indexers SET").
		WithArgs("idx-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO indexer_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.CommitBatch(context.Background(), commit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestChainDataRepo_CommitBatch_FirstCursorInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChainDataRepo(db)

	commit := sampleCommit(nil)
	commit.Data.Blocks = nil

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO indexer_configs").
		WithArgs("idx-1", entities.ConfigLastProcessedBlock, "102").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE indexers SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO indexer_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.CommitBatch(context.Background(), commit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestChainDataRepo_CommitBatch_CursorConflictRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChainDataRepo(db)

	cursor := uint64(100)
	commit := sampleCommit(&cursor)
	commit.Data.Blocks = nil

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE indexer_configs SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CommitBatch(context.Background(), commit)
	if !errors.Is(err, repositories.ErrCursorConflict) {
		t.Fatalf("expected ErrCursorConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestChainDataRepo_CommitBatch_UpsertFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChainDataRepo(db)

	cursor := uint64(100)
	commit := sampleCommit(&cursor)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO blocks").
		ExpectExec().
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := repo.CommitBatch(context.Background(), commit); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestChainDataRepo_CommitBatch_RejectsBackwardCursor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChainDataRepo(db)

	cursor := uint64(200)
	if err := repo.CommitBatch(context.Background(), sampleCommit(&cursor)); err == nil {
		t.Fatal("expected error for cursor regression")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestChainDataRepo_CountRange(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChainDataRepo(db)

	mock.ExpectQuery("SELECT").
		WithArgs("ethereum", uint64(101), uint64(105)).
		WillReturnRows(sqlmock.NewRows([]string{"blocks", "transactions", "events"}).AddRow(5, 12, 30))

	counts, err := repo.CountRange(context.Background(), "ethereum", entities.BlockRange{From: 101, To: 105})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if counts.Blocks != 5 || counts.Transactions != 12 || counts.Events != 30 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}
