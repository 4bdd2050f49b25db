package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

func TestIndexerRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIndexerRepo(db)

	mock.ExpectQuery("FROM indexers WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	indexer, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if indexer != nil {
		t.Errorf("expected nil indexer, got %+v", indexer)
	}
}

func TestIndexerRepo_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIndexerRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "name", "description", "status", "last_error", "last_run", "created_at", "updated_at",
	}).AddRow("idx-1", nil, "mainnet", "", "active", nil, now, now, now)

	mock.ExpectQuery("FROM indexers WHERE id").WithArgs("idx-1").WillReturnRows(rows)

	indexer, err := repo.GetByID(context.Background(), "idx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if indexer == nil || indexer.Status != entities.IndexerStatusActive {
		t.Errorf("unexpected indexer: %+v", indexer)
	}
}

func TestIndexerRepo_GetConfig(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIndexerRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"indexer_id", "key", "value", "updated_at"}).
		AddRow("idx-1", entities.ConfigNetwork, "ethereum", now).
		AddRow("idx-1", entities.ConfigLastProcessedBlock, "100", now)

	mock.ExpectQuery("FROM indexer_configs").WithArgs("idx-1").WillReturnRows(rows)

	cfg, err := repo.GetConfig(context.Background(), "idx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg[entities.ConfigNetwork] != "ethereum" || cfg[entities.ConfigLastProcessedBlock] != "100" {
		t.Errorf("unexpected config: %v", cfg)
	}
}

func TestIndexerRepo_UpdateStatus_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIndexerRepo(db)

	mock.ExpectExec("UPDATE indexers SET").
		WithArgs("missing", entities.IndexerStatusError, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	msg := "boom"
	err := repo.UpdateStatus(context.Background(), "missing", entities.IndexerStatusError, &msg)
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIndexerRepo_MarkFailed_KeepsStoppedIndexerInactive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIndexerRepo(db)

	mock.ExpectExec("CASE WHEN status = 'inactive' THEN status ELSE 'error' END").
		WithArgs("idx-1", "rpc timeout").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), "idx-1", "rpc timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIndexerRepo_CountByStatus_FillsZeroes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIndexerRepo(db)

	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("active", 3))

	counts, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts[entities.IndexerStatusActive] != 3 {
		t.Errorf("expected 3 active, got %d", counts[entities.IndexerStatusActive])
	}
	if v, ok := counts[entities.IndexerStatusError]; !ok || v != 0 {
		t.Errorf("expected error status present with zero, got %d (%v)", v, ok)
	}
}

func TestIndexerRepo_List_WithFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIndexerRepo(db)

	status := entities.IndexerStatusPending
	mock.ExpectQuery("WHERE status = \\$1").
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status"}).AddRow("idx-1", "a", "pending"))

	indexers, err := repo.List(context.Background(), entities.IndexerFilter{Status: &status})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indexers) != 1 {
		t.Errorf("expected 1 indexer, got %d", len(indexers))
	}
}
