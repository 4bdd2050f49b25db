package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/cache"
)

const systemMetricsKey = "system"

func indexerMetricsKey(id string) string {
	return "indexer:" + id
}

// Health states
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// IndexerMetrics describes the progress of one indexer
type IndexerMetrics struct {
	IndexerID          string                 `json:"indexer_id"`
	Name               string                 `json:"name"`
	Network            string                 `json:"network"`
	Status             entities.IndexerStatus `json:"status"`
	LastError          *string                `json:"last_error,omitempty"`
	LastRun            *time.Time             `json:"last_run,omitempty"`
	LastProcessedBlock *uint64                `json:"last_processed_block,omitempty"`
	ChainHead          uint64                 `json:"chain_head,string"`
	Lag                uint64                 `json:"lag,string"`
	LagKnown           bool                   `json:"lag_known"`
	BlocksProcessed    int64                  `json:"blocks_processed"`
	CompletedJobs      int64                  `json:"completed_jobs"`
	FailedJobs         int64                  `json:"failed_jobs"`
	GeneratedAt        time.Time              `json:"generated_at"`
}

// SystemMetrics aggregates every indexer
type SystemMetrics struct {
	TotalIndexers    int64                            `json:"total_indexers"`
	IndexersByStatus map[entities.IndexerStatus]int64 `json:"indexers_by_status"`
	StoredRows       entities.RangeCounts             `json:"stored_rows"`
	BlocksLastHour   int64                            `json:"blocks_last_hour"`
	BlocksPerMinute  float64                          `json:"blocks_per_minute"`
	ToolUsage        pricing.Usage                    `json:"tool_usage"`
	Contract         ContractStatus                   `json:"contract"`
	GeneratedAt      time.Time                        `json:"generated_at"`
}

// IndexerHealth is the health entry of one scheduled indexer
type IndexerHealth struct {
	IndexerID string                 `json:"indexer_id"`
	Name      string                 `json:"name"`
	Status    entities.IndexerStatus `json:"status"`
	Lag       uint64                 `json:"lag,string"`
	Healthy   bool                   `json:"healthy"`
	Reason    string                 `json:"reason,omitempty"`
}

// HealthStatus summarizes whether every scheduled indexer is keeping up
type HealthStatus struct {
	Status    string          `json:"status"`
	Healthy   bool            `json:"healthy"`
	Indexers  []IndexerHealth `json:"indexers"`
	Contract  ContractStatus  `json:"contract"`
	CheckedAt time.Time       `json:"checked_at"`
}

// MonitoringService answers metrics and health queries behind a short-TTL cache
type MonitoringService struct {
	indexers  repositories.IndexerRepository
	chainData repositories.ChainDataRepository
	jobs      repositories.JobRepository
	payments  repositories.PaymentRepository
	sources   map[string]ChainSource
	cache     MetricsCache
	contract  *ContractState
	config    config.IndexerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewMonitoringService creates a new monitoring service
func NewMonitoringService(
	indexers repositories.IndexerRepository,
	chainData repositories.ChainDataRepository,
	jobs repositories.JobRepository,
	payments repositories.PaymentRepository,
	sources map[string]ChainSource,
	cache MetricsCache,
	contract *ContractState,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) *MonitoringService {
	return &MonitoringService{
		indexers:  indexers,
		chainData: chainData,
		jobs:      jobs,
		payments:  payments,
		sources:   sources,
		cache:     cache,
		contract:  contract,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *MonitoringService) WithClock(now func() time.Time) *MonitoringService {
	s.now = now
	return s
}

// GetIndexerMetrics returns progress metrics for one indexer. The status
// fields are always read from the store, even on a cache hit.
func (s *MonitoringService) GetIndexerMetrics(ctx context.Context, id string) (*IndexerMetrics, error) {
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

	var metrics IndexerMetrics
	if s.cacheGet(ctx, indexerMetricsKey(id), &metrics) {
		overlayStatus(&metrics, indexer)
		return &metrics, nil
	}

	computed, err := s.computeIndexerMetrics(ctx, indexer)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, indexerMetricsKey(id), computed)

	return computed, nil
}

func overlayStatus(m *IndexerMetrics, indexer *entities.Indexer) {
	m.Name = indexer.Name
	m.Status = indexer.Status
	m.LastError = indexer.LastError
	m.LastRun = indexer.LastRun
}

func (s *MonitoringService) computeIndexerMetrics(ctx context.Context, indexer *entities.Indexer) (*IndexerMetrics, error) {
	values, err := s.indexers.GetConfig(ctx, indexer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexer config: %w", err)
	}

	stats, err := s.jobs.GetStats(ctx, indexer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}

	metrics := &IndexerMetrics{
		IndexerID:       indexer.ID,
		Network:         values[entities.ConfigNetwork],
		BlocksProcessed: stats.BlocksProcessed,
		CompletedJobs:   stats.CompletedJobs,
		FailedJobs:      stats.FailedJobs,
		GeneratedAt:     s.now(),
	}
	overlayStatus(metrics, indexer)

	// A broken configuration still yields metrics; the status carries the error
	settings, err := entities.ParseSettings(values)
	if err != nil {
		return metrics, nil
	}
	metrics.LastProcessedBlock = settings.LastProcessedBlock

	source, ok := s.sources[settings.Network]
	if !ok {
		return metrics, nil
	}
	head, err := source.GetSafeBlockNumber(ctx)
	if err != nil {
		s.logger.Warn("Failed to get chain head for metrics",
			zap.String("indexer_id", indexer.ID),
			zap.Error(err),
		)
		return metrics, nil
	}
	metrics.ChainHead = head
	metrics.Lag = lag(head, settings)
	metrics.LagKnown = true

	return metrics, nil
}

// GetSystemMetrics returns aggregates across all indexers. Status counts are
// always read from the store.
func (s *MonitoringService) GetSystemMetrics(ctx context.Context) (*SystemMetrics, error) {
	counts, err := s.indexers.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count indexers: %w", err)
	}

	var metrics SystemMetrics
	if !s.cacheGet(ctx, systemMetricsKey, &metrics) {
		computed, err := s.computeSystemMetrics(ctx)
		if err != nil {
			return nil, err
		}
		s.cacheSet(ctx, systemMetricsKey, computed)
		metrics = *computed
	}

	metrics.IndexersByStatus = counts
	metrics.TotalIndexers = 0
	for _, n := range counts {
		metrics.TotalIndexers += n
	}
	metrics.Contract = s.contract.Status()

	return &metrics, nil
}

func (s *MonitoringService) computeSystemMetrics(ctx context.Context) (*SystemMetrics, error) {
	now := s.now()

	totals, err := s.chainData.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stored rows: %w", err)
	}

	blocks, err := s.jobs.BlocksProcessedSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to get throughput: %w", err)
	}

	usage, err := s.toolUsage(ctx)
	if err != nil {
		return nil, err
	}

	return &SystemMetrics{
		StoredRows:      *totals,
		BlocksLastHour:  blocks,
		BlocksPerMinute: float64(blocks) / 60,
		ToolUsage:       usage,
		GeneratedAt:     now,
	}, nil
}

// toolUsage converts the stored tally to the typed catalogue map. Names
// outside the catalogue are dropped.
func (s *MonitoringService) toolUsage(ctx context.Context) (pricing.Usage, error) {
	usage := pricing.Usage{}
	if s.payments == nil {
		return usage, nil
	}

	raw, err := s.payments.ToolUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool usage: %w", err)
	}

	for name, n := range raw {
		tool, err := pricing.ParseToolName(name)
		if err != nil {
			s.logger.Warn("Ignoring usage of unknown tool", zap.String("tool", name))
			continue
		}
		_ = usage.Add(tool, n)
	}

	return usage, nil
}

// GetHealthStatus reports degraded when any scheduled indexer is in error or
// lags beyond the acceptable threshold, or the contract is degraded.
// It is never served from cache.
func (s *MonitoringService) GetHealthStatus(ctx context.Context) (*HealthStatus, error) {
	indexers, err := s.indexers.List(ctx, entities.IndexerFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}

	health := &HealthStatus{
		Status:    HealthHealthy,
		Healthy:   true,
		Indexers:  []IndexerHealth{},
		Contract:  s.contract.Status(),
		CheckedAt: s.now(),
	}

	heads := map[string]uint64{}
	headErrs := map[string]error{}

	for _, indexer := range indexers {
		if !indexer.Status.Runnable() {
			continue
		}

		entry := IndexerHealth{
			IndexerID: indexer.ID,
			Name:      indexer.Name,
			Status:    indexer.Status,
			Healthy:   true,
		}

		if indexer.Status == entities.IndexerStatusError {
			entry.Healthy = false
			entry.Reason = "indexer in error state"
			if indexer.LastError != nil {
				entry.Reason = *indexer.LastError
			}
		} else if reason := s.checkLag(ctx, indexer.ID, heads, headErrs, &entry); reason != "" {
			entry.Healthy = false
			entry.Reason = reason
		}

		if !entry.Healthy {
			health.Healthy = false
		}
		health.Indexers = append(health.Indexers, entry)
	}

	if health.Contract.Mode == ContractDegraded {
		health.Healthy = false
	}
	if !health.Healthy {
		health.Status = HealthDegraded
	}

	sort.Slice(health.Indexers, func(i, j int) bool {
		return health.Indexers[i].IndexerID < health.Indexers[j].IndexerID
	})

	return health, nil
}

// checkLag fills entry.Lag and returns a reason when the indexer is behind.
// Chain heads are fetched once per network per call.
func (s *MonitoringService) checkLag(ctx context.Context, id string, heads map[string]uint64, headErrs map[string]error, entry *IndexerHealth) string {
	values, err := s.indexers.GetConfig(ctx, id)
	if err != nil {
		return "failed to read config"
	}
	settings, err := entities.ParseSettings(values)
	if err != nil {
		return err.Error()
	}

	head, ok := heads[settings.Network]
	if !ok {
		if err, failed := headErrs[settings.Network]; failed {
			return "chain head unavailable: " + err.Error()
		}
		source, known := s.sources[settings.Network]
		if !known {
			return fmt.Sprintf("%s: %s", ErrUnknownNetwork, settings.Network)
		}
		head, err = source.GetSafeBlockNumber(ctx)
		if err != nil {
			headErrs[settings.Network] = err
			return "chain head unavailable: " + err.Error()
		}
		heads[settings.Network] = head
	}

	entry.Lag = lag(head, settings)
	if entry.Lag > s.config.MaxAcceptableLag {
		return fmt.Sprintf("lag %d exceeds %d blocks", entry.Lag, s.config.MaxAcceptableLag)
	}
	return ""
}

// ClearCache drops every memoized metric
func (s *MonitoringService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear metrics cache: %w", err)
	}
	s.logger.Info("Metrics cache cleared")
	return nil
}

func (s *MonitoringService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		s.logger.Debug("Cache hit", zap.String("key", key))
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Metrics cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *MonitoringService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("Failed to cache metrics", zap.String("key", key), zap.Error(err))
	}
}
