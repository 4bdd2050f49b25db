package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
)

// BatchRunner runs one batch of an indexer
type BatchRunner interface {
	RunBatch(ctx context.Context, indexerID string) (*BatchResult, error)
}

type backoffState struct {
	failures int
	until    time.Time
}

// Scheduler periodically runs batches for every runnable indexer
type Scheduler struct {
	runner   BatchRunner
	indexers repositories.IndexerRepository
	config   config.IndexerConfig
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	backoff map[string]backoffState

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(runner BatchRunner, indexers repositories.IndexerRepository, cfg config.IndexerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		indexers: indexers,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		backoff:  make(map[string]backoffState),
		stopCh:   make(chan struct{}),
	}
}

// WithClock replaces the time source, for tests
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start begins the polling loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler",
		zap.Duration("poll_interval", s.config.PollInterval),
		zap.Int("workers", s.config.WorkerCount),
	)

	s.wg.Add(1)
	go s.loop(ctx)

	return nil
}

// Stop ends the polling loop and waits for in-flight batches
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs one batch for every runnable indexer not in backoff,
// bounded by the worker count, and returns once all of them finished
func (s *Scheduler) RunOnce(ctx context.Context) {
	indexers, err := s.indexers.List(ctx, entities.IndexerFilter{})
	if err != nil {
		s.logger.Error("Failed to list indexers", zap.Error(err))
		return
	}

	workers := s.config.WorkerCount
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for _, indexer := range indexers {
		if !indexer.Status.Runnable() || s.inBackoff(indexer.ID) {
			continue
		}

		id := indexer.ID
		g.Go(func() error {
			s.run(ctx, id)
			return nil
		})
	}

	_ = g.Wait()
}

func (s *Scheduler) run(ctx context.Context, id string) {
	result, err := s.runner.RunBatch(ctx, id)
	switch {
	case errors.Is(err, ErrBatchInProgress):
		s.logger.Debug("Batch already running", zap.String("indexer_id", id))
	case err != nil:
		s.recordFailure(id)
		s.logger.Error("Batch run failed", zap.String("indexer_id", id), zap.Error(err))
	case result.Outcome == BatchFailed:
		s.recordFailure(id)
	default:
		s.clearFailure(id)
	}
}

func (s *Scheduler) inBackoff(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.backoff[id]
	return ok && s.now().Before(state.until)
}

// recordFailure doubles the wait before the next attempt, from ErrorBackoff
// up to MaxErrorBackoff
func (s *Scheduler) recordFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.backoff[id]
	state.failures++

	wait := s.config.ErrorBackoff
	for i := 1; i < state.failures && wait < s.config.MaxErrorBackoff; i++ {
		wait *= 2
	}
	if s.config.MaxErrorBackoff > 0 && wait > s.config.MaxErrorBackoff {
		wait = s.config.MaxErrorBackoff
	}

	state.until = s.now().Add(wait)
	s.backoff[id] = state

	s.logger.Warn("Indexer backing off",
		zap.String("indexer_id", id),
		zap.Int("failures", state.failures),
		zap.Duration("wait", wait),
	)
}

func (s *Scheduler) clearFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.backoff, id)
}
