package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

var (
	// ErrIndexerNotFound is returned for unknown indexer ids
	ErrIndexerNotFound = errors.New("indexer not found")

	// ErrBatchInProgress is returned when another run holds the indexer
	ErrBatchInProgress = errors.New("batch already in progress for indexer")

	// ErrUnknownNetwork is returned when an indexer names a network with no RPC client
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrCursorReadOnly is returned when a caller tries to write lastProcessedBlock
	ErrCursorReadOnly = errors.New("lastProcessedBlock is only moved by batch commits")

	// ErrInvalidIndexer is returned for malformed create requests
	ErrInvalidIndexer = errors.New("invalid indexer")
)

// BatchOutcome describes how a batch run ended
type BatchOutcome string

const (
	BatchUpToDate  BatchOutcome = "up_to_date"
	BatchCommitted BatchOutcome = "committed"
	BatchFailed    BatchOutcome = "failed"
	BatchSkipped   BatchOutcome = "skipped"
)

// Failure reasons reported to the metrics recorder
const (
	reasonHead      = "chain_head"
	reasonFetch     = "fetch"
	reasonPersist   = "persist"
	reasonConflict  = "cursor_conflict"
	reasonConfig    = "config"
	reasonLookupErr = "lookup"
)

// BatchResult is returned by every RunBatch call that got past the
// indexer lookup
type BatchResult struct {
	IndexerID    string               `json:"indexer_id"`
	Outcome      BatchOutcome         `json:"outcome"`
	Range        *entities.BlockRange `json:"range,omitempty"`
	ChainHead    uint64               `json:"chain_head,string"`
	Blocks       int                  `json:"blocks"`
	Transactions int                  `json:"transactions"`
	Events       int                  `json:"events"`
	Error        string               `json:"error,omitempty"`
	Duration     time.Duration        `json:"duration_ns"`
}

// CreateIndexerRequest holds the fields needed to create an indexer
type CreateIndexerRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	OwnerID     *string           `json:"owner_id,omitempty"`
	Config      map[string]string `json:"config"`
}

// IndexerService manages indexers and runs their batches
type IndexerService struct {
	indexers  repositories.IndexerRepository
	chainData repositories.ChainDataRepository
	jobs      repositories.JobRepository
	sources   map[string]ChainSource
	locker    Locker
	cache     MetricsCache
	recorder  MetricsRecorder
	config    config.IndexerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewIndexerService creates a new indexer service. sources is keyed by
// network name. cache may be nil.
func NewIndexerService(
	indexers repositories.IndexerRepository,
	chainData repositories.ChainDataRepository,
	jobs repositories.JobRepository,
	sources map[string]ChainSource,
	locker Locker,
	cache MetricsCache,
	recorder MetricsRecorder,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) *IndexerService {
	return &IndexerService{
		indexers:  indexers,
		chainData: chainData,
		jobs:      jobs,
		sources:   sources,
		locker:    locker,
		cache:     cache,
		recorder:  recorderOrNop(recorder),
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *IndexerService) WithClock(now func() time.Time) *IndexerService {
	s.now = now
	return s
}

func lockKey(indexerID string) string {
	return "indexer:" + indexerID
}

// checkIndexerID rejects ids that cannot name a stored indexer before they
// reach the UUID column
func checkIndexerID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrIndexerNotFound, id)
	}
	return nil
}

// RunBatch ingests the next block range of an indexer.
//
// Infrastructure and integrity failures never escape as errors: they are
// recorded on the indexer (status error, failed job) and reported in the
// result. The returned error is reserved for unknown ids, configuration
// problems and lock contention (ErrBatchInProgress).
func (s *IndexerService) RunBatch(ctx context.Context, indexerID string) (*BatchResult, error) {
	if err := checkIndexerID(indexerID); err != nil {
		return nil, err
	}

	release, ok, err := s.locker.TryLock(ctx, lockKey(indexerID), s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire batch lock: %w", err)
	}
	if !ok {
		s.recorder.BatchSkipped(indexerID)
		return &BatchResult{IndexerID: indexerID, Outcome: BatchSkipped}, ErrBatchInProgress
	}
	defer release()

	indexer, err := s.indexers.GetByID(ctx, indexerID)
	if err != nil {
		s.recorder.BatchFailed(indexerID, reasonLookupErr)
		return nil, fmt.Errorf("failed to load indexer: %w", err)
	}
	if indexer == nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexerNotFound, indexerID)
	}

	settings, source, err := s.loadSettings(ctx, indexerID)
	if err != nil {
		if errors.Is(err, entities.ErrMissingConfigKey) || errors.Is(err, entities.ErrInvalidConfig) || errors.Is(err, ErrUnknownNetwork) {
			s.markFailed(ctx, indexerID, reasonConfig, err.Error())
		}
		return nil, err
	}

	start := s.now()
	result := &BatchResult{IndexerID: indexerID}
	logger := s.logger.With(zap.String("indexer_id", indexerID), zap.String("network", settings.Network))

	head, err := source.GetSafeBlockNumber(ctx)
	if err != nil {
		return s.fail(ctx, result, nil, start, reasonHead, fmt.Errorf("failed to get chain head: %w", err)), nil
	}
	result.ChainHead = head

	r, ok := entities.NextRange(settings.NextFromBlock(), settings.BatchSize, head)
	if !ok {
		result.Outcome = BatchUpToDate
		result.Duration = s.now().Sub(start)
		s.recorder.CursorLag(indexerID, lag(head, settings))
		logger.Debug("Indexer up to date", zap.Uint64("chain_head", head))
		return result, nil
	}
	result.Range = &r

	data, err := source.FetchRange(ctx, r, settings)
	if err != nil {
		return s.fail(ctx, result, &r, start, reasonFetch, err), nil
	}

	finished := s.now()
	commit := &entities.BatchCommit{
		IndexerID:      indexerID,
		ExpectedCursor: settings.LastProcessedBlock,
		Data:           *data,
		CommittedAt:    finished,
		Job: entities.IndexerJob{
			ID:                uuid.NewString(),
			IndexerID:         indexerID,
			FromBlock:         r.From,
			ToBlock:           r.To,
			Status:            entities.JobStatusCompleted,
			BlocksProcessed:   int64(r.Len()),
			TransactionsCount: int64(len(data.Transactions)),
			EventsCount:       int64(len(data.Events)),
			StartedAt:         start,
			FinishedAt:        &finished,
		},
	}

	if err := s.chainData.CommitBatch(ctx, commit); err != nil {
		reason := reasonPersist
		if errors.Is(err, repositories.ErrCursorConflict) {
			reason = reasonConflict
		}
		return s.fail(ctx, result, &r, start, reason, err), nil
	}

	result.Outcome = BatchCommitted
	result.Blocks = len(data.Blocks)
	result.Transactions = len(data.Transactions)
	result.Events = len(data.Events)
	result.Duration = finished.Sub(start)

	s.recorder.BatchCommitted(indexerID, r, result.Transactions, result.Events, result.Duration)
	s.recorder.CursorLag(indexerID, head-r.To)
	s.invalidate(ctx, indexerID)

	logger.Info("Committed batch",
		zap.Uint64("from_block", r.From),
		zap.Uint64("to_block", r.To),
		zap.Int("blocks", result.Blocks),
		zap.Int("transactions", result.Transactions),
		zap.Int("events", result.Events),
		zap.Duration("took", result.Duration),
	)

	return result, nil
}

func (s *IndexerService) loadSettings(ctx context.Context, indexerID string) (*entities.IndexerSettings, ChainSource, error) {
	values, err := s.indexers.GetConfig(ctx, indexerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load indexer config: %w", err)
	}

	settings, err := entities.ParseSettings(values)
	if err != nil {
		return nil, nil, err
	}

	source, ok := s.sources[settings.Network]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, settings.Network)
	}

	return settings, source, nil
}

// fail records a failed batch: status error, a failed job when a range was
// chosen, metrics and cache invalidation. The cursor is left untouched.
func (s *IndexerService) fail(ctx context.Context, result *BatchResult, r *entities.BlockRange, start time.Time, reason string, cause error) *BatchResult {
	finished := s.now()
	result.Outcome = BatchFailed
	result.Error = cause.Error()
	result.Duration = finished.Sub(start)

	s.logger.Error("Batch failed",
		zap.String("indexer_id", result.IndexerID),
		zap.String("reason", reason),
		zap.Error(cause),
	)

	if r != nil {
		msg := cause.Error()
		job := &entities.IndexerJob{
			ID:         uuid.NewString(),
			IndexerID:  result.IndexerID,
			FromBlock:  r.From,
			ToBlock:    r.To,
			Status:     entities.JobStatusFailed,
			Error:      &msg,
			StartedAt:  start,
			FinishedAt: &finished,
		}
		if err := s.jobs.Insert(ctx, job); err != nil {
			s.logger.Warn("Failed to record failed job", zap.String("indexer_id", result.IndexerID), zap.Error(err))
		}
	}

	s.markFailed(ctx, result.IndexerID, reason, cause.Error())
	return result
}

// markFailed records the error. A stop issued while the batch ran wins and
// the indexer stays inactive.
func (s *IndexerService) markFailed(ctx context.Context, indexerID, reason, msg string) {
	if err := s.indexers.MarkFailed(ctx, indexerID, msg); err != nil {
		s.logger.Error("Failed to record indexer error status",
			zap.String("indexer_id", indexerID),
			zap.Error(err),
		)
	}
	s.recorder.BatchFailed(indexerID, reason)
	s.invalidate(ctx, indexerID)
}

func (s *IndexerService) invalidate(ctx context.Context, indexerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, indexerMetricsKey(indexerID)); err != nil {
		s.logger.Warn("Failed to invalidate metrics cache", zap.String("indexer_id", indexerID), zap.Error(err))
	}
}

// lag is the distance from the cursor (or the block before startBlock) to head
func lag(head uint64, settings *entities.IndexerSettings) uint64 {
	var done uint64
	switch {
	case settings.LastProcessedBlock != nil:
		done = *settings.LastProcessedBlock
	case settings.StartBlock != nil && *settings.StartBlock > 0:
		done = *settings.StartBlock - 1
	default:
		return head
	}
	if done >= head {
		return 0
	}
	return head - done
}

// CreateIndexer validates the configuration and stores a new inactive indexer
func (s *IndexerService) CreateIndexer(ctx context.Context, req CreateIndexerRequest) (*entities.Indexer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidIndexer)
	}

	settings, err := entities.ParseSettings(req.Config)
	if err != nil {
		return nil, err
	}
	if _, ok := s.sources[settings.Network]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, settings.Network)
	}

	// The cursor compare-and-swap matches stored text
	values := entities.CanonicalConfig(req.Config)

	indexer := &entities.Indexer{
		ID:          uuid.NewString(),
		OwnerID:     req.OwnerID,
		Name:        name,
		Description: req.Description,
		Status:      entities.IndexerStatusInactive,
	}

	if err := s.indexers.Create(ctx, indexer, values); err != nil {
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}

	s.logger.Info("Created indexer",
		zap.String("indexer_id", indexer.ID),
		zap.String("network", settings.Network),
	)

	return indexer, nil
}

// GetIndexer returns an indexer or ErrIndexerNotFound
func (s *IndexerService) GetIndexer(ctx context.Context, id string) (*entities.Indexer, error) {
	if err := checkIndexerID(id); err != nil {
		return nil, err
	}

	indexer, err := s.indexers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexer: %w", err)
	}
	if indexer == nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexerNotFound, id)
	}
	return indexer, nil
}

// ListIndexers returns indexers matching the filter
func (s *IndexerService) ListIndexers(ctx context.Context, filter entities.IndexerFilter) ([]entities.Indexer, error) {
	indexers, err := s.indexers.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}
	return indexers, nil
}

// GetConfig returns the configuration rows of an indexer
func (s *IndexerService) GetConfig(ctx context.Context, id string) (map[string]string, error) {
	if _, err := s.GetIndexer(ctx, id); err != nil {
		return nil, err
	}
	values, err := s.indexers.GetConfig(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexer config: %w", err)
	}
	return values, nil
}

// StartIndexer hands the indexer to the scheduler. It stays pending until
// its first batch commits.
func (s *IndexerService) StartIndexer(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, entities.IndexerStatusPending, nil)
}

// StopIndexer takes the indexer out of scheduling
func (s *IndexerService) StopIndexer(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, entities.IndexerStatusInactive, nil)
}

// FailIndexer marks the indexer as failed with an operator supplied message
func (s *IndexerService) FailIndexer(ctx context.Context, id, message string) error {
	return s.setStatus(ctx, id, entities.IndexerStatusError, &message)
}

func (s *IndexerService) setStatus(ctx context.Context, id string, status entities.IndexerStatus, lastError *string) error {
	if err := checkIndexerID(id); err != nil {
		return err
	}

	if err := s.indexers.UpdateStatus(ctx, id, status, lastError); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrIndexerNotFound, id)
		}
		return fmt.Errorf("failed to update indexer status: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("Indexer status changed",
		zap.String("indexer_id", id),
		zap.String("status", string(status)),
	)
	return nil
}

// UpdateConfig sets one configuration key after validating the resulting
// configuration as a whole
func (s *IndexerService) UpdateConfig(ctx context.Context, id, key, value string) error {
	if key == entities.ConfigLastProcessedBlock {
		return ErrCursorReadOnly
	}

	values, err := s.GetConfig(ctx, id)
	if err != nil {
		return err
	}
	values[key] = value

	settings, err := entities.ParseSettings(values)
	if err != nil {
		return err
	}
	if _, ok := s.sources[settings.Network]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNetwork, settings.Network)
	}
	value = entities.CanonicalConfig(values)[key]

	if err := s.indexers.SetConfigValue(ctx, id, key, value); err != nil {
		return fmt.Errorf("failed to update indexer config: %w", err)
	}

	s.invalidate(ctx, id)
	return nil
}
