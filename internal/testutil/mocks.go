package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/ethereum"
)

// MockCall records one invocation of a mock method
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockIndexerRepository is an in-memory IndexerRepository
type MockIndexerRepository struct {
	mu       sync.RWMutex
	indexers map[string]entities.Indexer
	configs  map[string]map[string]string

	// Function hooks for custom behavior
	GetByIDFunc      func(ctx context.Context, id string) (*entities.Indexer, error)
	GetConfigFunc    func(ctx context.Context, id string) (map[string]string, error)
	UpdateStatusFunc func(ctx context.Context, id string, status entities.IndexerStatus, lastError *string) error

	// Call tracking
	Calls []MockCall
}

var _ repositories.IndexerRepository = (*MockIndexerRepository)(nil)

func NewMockIndexerRepository() *MockIndexerRepository {
	return &MockIndexerRepository{
		indexers: make(map[string]entities.Indexer),
		configs:  make(map[string]map[string]string),
		Calls:    make([]MockCall, 0),
	}
}

func (m *MockIndexerRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

// AddIndexer seeds an indexer with its configuration
func (m *MockIndexerRepository) AddIndexer(indexer entities.Indexer, config map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexers[indexer.ID] = indexer
	m.configs[indexer.ID] = copyConfig(config)
}

// Cursor returns the stored lastProcessedBlock, if any
func (m *MockIndexerRepository) Cursor(id string) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.configs[id][entities.ConfigLastProcessedBlock]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	return n, err == nil
}

// Status returns the stored status of an indexer
func (m *MockIndexerRepository) Status(id string) entities.IndexerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexers[id].Status
}

func (m *MockIndexerRepository) Create(ctx context.Context, indexer *entities.Indexer, config map[string]string) error {
	m.record("Create", indexer, config)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.indexers[indexer.ID]; exists {
		return fmt.Errorf("indexer %s already exists", indexer.ID)
	}
	now := time.Now()
	indexer.CreatedAt = now
	indexer.UpdatedAt = now
	m.indexers[indexer.ID] = *indexer
	m.configs[indexer.ID] = copyConfig(config)
	return nil
}

func (m *MockIndexerRepository) GetByID(ctx context.Context, id string) (*entities.Indexer, error) {
	m.record("GetByID", id)

	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	indexer, ok := m.indexers[id]
	if !ok {
		return nil, nil
	}
	return &indexer, nil
}

func (m *MockIndexerRepository) List(ctx context.Context, filter entities.IndexerFilter) ([]entities.Indexer, error) {
	m.record("List", filter)

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Indexer, 0, len(m.indexers))
	for _, indexer := range m.indexers {
		if filter.Status != nil && indexer.Status != *filter.Status {
			continue
		}
		if filter.OwnerID != nil && (indexer.OwnerID == nil || *indexer.OwnerID != *filter.OwnerID) {
			continue
		}
		result = append(result, indexer)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockIndexerRepository) CountByStatus(ctx context.Context) (map[entities.IndexerStatus]int64, error) {
	m.record("CountByStatus")

	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[entities.IndexerStatus]int64, len(entities.AllIndexerStatuses))
	for _, status := range entities.AllIndexerStatuses {
		counts[status] = 0
	}
	for _, indexer := range m.indexers {
		counts[indexer.Status]++
	}
	return counts, nil
}

func (m *MockIndexerRepository) UpdateStatus(ctx context.Context, id string, status entities.IndexerStatus, lastError *string) error {
	m.record("UpdateStatus", id, status, lastError)

	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, lastError)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	indexer, ok := m.indexers[id]
	if !ok {
		return fmt.Errorf("indexer %s: %w", id, repositories.ErrNotFound)
	}
	indexer.Status = status
	indexer.LastError = lastError
	m.indexers[id] = indexer
	return nil
}

func (m *MockIndexerRepository) MarkFailed(ctx context.Context, id, lastError string) error {
	m.record("MarkFailed", id, lastError)

	m.mu.Lock()
	defer m.mu.Unlock()
	indexer, ok := m.indexers[id]
	if !ok {
		return fmt.Errorf("indexer %s: %w", id, repositories.ErrNotFound)
	}
	if indexer.Status != entities.IndexerStatusInactive {
		indexer.Status = entities.IndexerStatusError
	}
	indexer.LastError = &lastError
	m.indexers[id] = indexer
	return nil
}

func (m *MockIndexerRepository) GetConfig(ctx context.Context, id string) (map[string]string, error) {
	m.record("GetConfig", id)

	if m.GetConfigFunc != nil {
		return m.GetConfigFunc(ctx, id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyConfig(m.configs[id]), nil
}

func (m *MockIndexerRepository) SetConfigValue(ctx context.Context, id, key, value string) error {
	m.record("SetConfigValue", id, key, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.configs[id] == nil {
		m.configs[id] = make(map[string]string)
	}
	m.configs[id][key] = value
	return nil
}

// commit applies the cursor compare-and-swap and status change of a batch
// commit; callers hold no lock
func (m *MockIndexerRepository) commit(c *entities.BatchCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, has := m.configs[c.IndexerID][entities.ConfigLastProcessedBlock]
	switch {
	case c.ExpectedCursor == nil && has:
		return repositories.ErrCursorConflict
	case c.ExpectedCursor != nil:
		stored, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || stored != *c.ExpectedCursor {
			return repositories.ErrCursorConflict
		}
	}

	if m.configs[c.IndexerID] == nil {
		m.configs[c.IndexerID] = make(map[string]string)
	}
	m.configs[c.IndexerID][entities.ConfigLastProcessedBlock] = strconv.FormatUint(c.Data.Range.To, 10)

	indexer := m.indexers[c.IndexerID]
	if indexer.Status != entities.IndexerStatusInactive {
		indexer.Status = entities.IndexerStatusActive
	}
	indexer.LastError = nil
	at := c.CommittedAt
	indexer.LastRun = &at
	m.indexers[c.IndexerID] = indexer
	return nil
}

func copyConfig(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MockChainDataRepository stores chain data in maps keyed like the real
// unique constraints, so re-ingesting a range is idempotent
type MockChainDataRepository struct {
	mu           sync.RWMutex
	indexers     *MockIndexerRepository
	jobs         *MockJobRepository
	blocks       map[string]entities.Block
	transactions map[string]entities.Transaction
	events       map[string]entities.Event

	// Function hooks for custom behavior
	CommitBatchFunc func(ctx context.Context, commit *entities.BatchCommit) error

	// Call tracking
	Calls []MockCall
}

var _ repositories.ChainDataRepository = (*MockChainDataRepository)(nil)

// NewMockChainDataRepository creates a store that advances cursors in
// indexers and appends completed jobs to jobs
func NewMockChainDataRepository(indexers *MockIndexerRepository, jobs *MockJobRepository) *MockChainDataRepository {
	return &MockChainDataRepository{
		indexers:     indexers,
		jobs:         jobs,
		blocks:       make(map[string]entities.Block),
		transactions: make(map[string]entities.Transaction),
		events:       make(map[string]entities.Event),
		Calls:        make([]MockCall, 0),
	}
}

func (m *MockChainDataRepository) CommitBatch(ctx context.Context, commit *entities.BatchCommit) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "CommitBatch", Args: []interface{}{commit}})
	m.mu.Unlock()

	if m.CommitBatchFunc != nil {
		return m.CommitBatchFunc(ctx, commit)
	}

	if err := m.indexers.commit(commit); err != nil {
		return err
	}

	m.mu.Lock()
	for _, b := range commit.Data.Blocks {
		m.blocks[fmt.Sprintf("%s/%d", b.Network, b.BlockNumber)] = b
	}
	for _, t := range commit.Data.Transactions {
		m.transactions[t.Network+"/"+t.Hash] = t
	}
	for _, e := range commit.Data.Events {
		m.events[fmt.Sprintf("%s/%d", e.TxHash, e.LogIndex)] = e
	}
	m.mu.Unlock()

	if m.jobs != nil {
		return m.jobs.Insert(ctx, &commit.Job)
	}
	return nil
}

func (m *MockChainDataRepository) CountRange(ctx context.Context, network string, r entities.BlockRange) (*entities.RangeCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := &entities.RangeCounts{}
	in := func(n uint64) bool { return n >= r.From && n <= r.To }
	for _, b := range m.blocks {
		if b.Network == network && in(b.BlockNumber) {
			counts.Blocks++
		}
	}
	for _, t := range m.transactions {
		if t.Network == network && in(t.BlockNumber) {
			counts.Transactions++
		}
	}
	for _, e := range m.events {
		if e.Network == network && in(e.BlockNumber) {
			counts.Events++
		}
	}
	return counts, nil
}

func (m *MockChainDataRepository) Totals(ctx context.Context) (*entities.RangeCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &entities.RangeCounts{
		Blocks:       int64(len(m.blocks)),
		Transactions: int64(len(m.transactions)),
		Events:       int64(len(m.events)),
	}, nil
}

// MockJobRepository is an in-memory JobRepository
type MockJobRepository struct {
	mu   sync.RWMutex
	Jobs []entities.IndexerJob

	InsertFunc func(ctx context.Context, job *entities.IndexerJob) error
}

var _ repositories.JobRepository = (*MockJobRepository)(nil)

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{Jobs: make([]entities.IndexerJob, 0)}
}

func (m *MockJobRepository) Insert(ctx context.Context, job *entities.IndexerJob) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Jobs = append(m.Jobs, *job)
	return nil
}

// ByStatus returns the recorded jobs with the given status
func (m *MockJobRepository) ByStatus(status entities.JobStatus) []entities.IndexerJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entities.IndexerJob
	for _, j := range m.Jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out
}

func (m *MockJobRepository) GetStats(ctx context.Context, indexerID string) (*entities.JobStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &entities.JobStats{}
	for _, j := range m.Jobs {
		if j.IndexerID != indexerID {
			continue
		}
		if j.Status == entities.JobStatusCompleted {
			stats.CompletedJobs++
			stats.BlocksProcessed += j.BlocksProcessed
		} else {
			stats.FailedJobs++
		}
		if j.FinishedAt != nil && (stats.LastFinishedAt == nil || j.FinishedAt.After(*stats.LastFinishedAt)) {
			finished := *j.FinishedAt
			stats.LastFinishedAt = &finished
		}
	}
	return stats, nil
}

func (m *MockJobRepository) BlocksProcessedSince(ctx context.Context, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, j := range m.Jobs {
		if j.Status == entities.JobStatusCompleted && j.FinishedAt != nil && j.FinishedAt.After(since) {
			total += j.BlocksProcessed
		}
	}
	return total, nil
}

func (m *MockJobRepository) ListRecent(ctx context.Context, indexerID string, limit int) ([]entities.IndexerJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []entities.IndexerJob
	for i := len(m.Jobs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Jobs[i].IndexerID == indexerID {
			out = append(out, m.Jobs[i])
		}
	}
	return out, nil
}

// MockPaymentRepository is an in-memory PaymentRepository
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]entities.Payment

	ToolUsageFunc func(ctx context.Context) (map[string]int64, error)

	Calls []MockCall
}

var _ repositories.PaymentRepository = (*MockPaymentRepository)(nil)

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]entities.Payment),
		Calls:    make([]MockCall, 0),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *entities.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "Create", Args: []interface{}{payment.ID}})
	m.payments[payment.ID] = *payment
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*entities.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MockPaymentRepository) LatestPending(ctx context.Context, wallet string) (*entities.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *entities.Payment
	for _, p := range m.payments {
		if p.WalletAddress != wallet || p.Status != entities.PaymentStatusPending {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			p := p
			latest = &p
		}
	}
	return latest, nil
}

// Seed stores a payment as is
func (m *MockPaymentRepository) Seed(payment entities.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
}

func (m *MockPaymentRepository) UpdateSettlement(ctx context.Context, id string, status entities.PaymentStatus, txHash, errorKind, errorMessage *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "UpdateSettlement", Args: []interface{}{id, status}})

	p, ok := m.payments[id]
	if !ok {
		return fmt.Errorf("payment %s: %w", id, repositories.ErrNotFound)
	}
	p.Status = status
	if txHash != nil {
		p.TxHash = txHash
	}
	p.ErrorKind = errorKind
	p.ErrorMessage = errorMessage
	m.payments[id] = p
	return nil
}

func (m *MockPaymentRepository) ToolUsage(ctx context.Context) (map[string]int64, error) {
	if m.ToolUsageFunc != nil {
		return m.ToolUsageFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	usage := make(map[string]int64)
	for _, p := range m.payments {
		if p.Status != entities.PaymentStatusConfirmed {
			continue
		}
		for _, tool := range p.Tools {
			usage[tool]++
		}
	}
	return usage, nil
}

// MockToolPriceRepository is an in-memory ToolPriceRepository
type MockToolPriceRepository struct {
	mu     sync.RWMutex
	prices map[string]entities.ToolPrice
}

var _ repositories.ToolPriceRepository = (*MockToolPriceRepository)(nil)

func NewMockToolPriceRepository() *MockToolPriceRepository {
	return &MockToolPriceRepository{prices: make(map[string]entities.ToolPrice)}
}

func (m *MockToolPriceRepository) UpsertAll(ctx context.Context, prices []entities.ToolPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range prices {
		m.prices[p.ToolID] = p
	}
	return nil
}

func (m *MockToolPriceRepository) GetAll(ctx context.Context) ([]entities.ToolPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.ToolPrice, 0, len(m.prices))
	for _, p := range m.prices {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MockChainSource serves a synthetic chain: one block per number, each with
// txsPerBlock transactions and one event per transaction
type MockChainSource struct {
	mu          sync.Mutex
	network     string
	head        uint64
	TxsPerBlock int

	HeadFunc       func(ctx context.Context) (uint64, error)
	FetchRangeFunc func(ctx context.Context, r entities.BlockRange, settings *entities.IndexerSettings) (*entities.BatchData, error)

	Fetched []entities.BlockRange
}

func NewMockChainSource(network string, head uint64) *MockChainSource {
	return &MockChainSource{network: network, head: head, TxsPerBlock: 1}
}

// SetHead moves the chain head
func (m *MockChainSource) SetHead(head uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = head
}

func (m *MockChainSource) Network() string {
	return m.network
}

func (m *MockChainSource) GetSafeBlockNumber(ctx context.Context) (uint64, error) {
	if m.HeadFunc != nil {
		return m.HeadFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head, nil
}

func (m *MockChainSource) FetchRange(ctx context.Context, r entities.BlockRange, settings *entities.IndexerSettings) (*entities.BatchData, error) {
	m.mu.Lock()
	m.Fetched = append(m.Fetched, r)
	m.mu.Unlock()

	if m.FetchRangeFunc != nil {
		return m.FetchRangeFunc(ctx, r, settings)
	}
	return SyntheticBatch(m.network, r, m.TxsPerBlock), nil
}

// FetchedRanges returns a copy of every requested range
func (m *MockChainSource) FetchedRanges() []entities.BlockRange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.BlockRange(nil), m.Fetched...)
}

// MockToolsContract is an in-memory DashboardTools contract
type MockToolsContract struct {
	mu              sync.Mutex
	address         common.Address
	prices          map[pricing.ToolID]*big.Int
	DiscountPercent int64
	Signer          bool

	IsToolRegisteredFunc  func(ctx context.Context, id pricing.ToolID) (bool, error)
	GetToolsPriceFunc     func(ctx context.Context, token common.Address, ids []pricing.ToolID) (*pricing.Quote, error)
	SetToolPriceFunc      func(ctx context.Context, id pricing.ToolID, price *big.Int) (common.Hash, error)
	SendTransactionFunc   func(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	WaitForReceiptFunc    func(ctx context.Context, hash common.Hash) error
	TransactionStatusFunc func(ctx context.Context, hash common.Hash) (ethereum.TxStatus, error)

	Calls []MockCall
}

func NewMockToolsContract() *MockToolsContract {
	return &MockToolsContract{
		address:         common.HexToAddress(ContractAddress),
		prices:          make(map[pricing.ToolID]*big.Int),
		DiscountPercent: 10,
		Signer:          true,
	}
}

func (m *MockToolsContract) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

// Register sets an on-chain price directly
func (m *MockToolsContract) Register(name pricing.ToolName, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[name.ID()] = big.NewInt(price)
}

// CallCount returns how often method was called
func (m *MockToolsContract) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *MockToolsContract) Address() common.Address { return m.address }

func (m *MockToolsContract) ChainID() *big.Int { return big.NewInt(ChainID) }

func (m *MockToolsContract) HasSigner() bool { return m.Signer }

func (m *MockToolsContract) IsToolRegistered(ctx context.Context, id pricing.ToolID) (bool, error) {
	m.record("IsToolRegistered", id)
	if m.IsToolRegisteredFunc != nil {
		return m.IsToolRegisteredFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.prices[id]
	return ok, nil
}

func (m *MockToolsContract) ToolPrice(ctx context.Context, id pricing.ToolID) (*big.Int, error) {
	m.record("ToolPrice", id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prices[id]; ok {
		return new(big.Int).Set(p), nil
	}
	return big.NewInt(0), nil
}

func (m *MockToolsContract) GetToolsPrice(ctx context.Context, token common.Address, ids []pricing.ToolID) (*pricing.Quote, error) {
	m.record("GetToolsPrice", token, ids)
	if m.GetToolsPriceFunc != nil {
		return m.GetToolsPriceFunc(ctx, token, ids)
	}

	m.mu.Lock()
	registry := make(pricing.Registry, len(m.prices))
	for id, p := range m.prices {
		registry[id] = pricing.PriceEntry{ID: id, Price: p, Registered: true}
	}
	m.mu.Unlock()

	quote, err := pricing.ComputePrice(ids, registry, m.DiscountPercent)
	if err != nil {
		return nil, errors.New("execution reverted: tool not registered")
	}
	return quote, nil
}

func (m *MockToolsContract) SetToolPrice(ctx context.Context, id pricing.ToolID, price *big.Int) (common.Hash, error) {
	m.record("SetToolPrice", id, price)
	if m.SetToolPriceFunc != nil {
		return m.SetToolPriceFunc(ctx, id, price)
	}
	m.mu.Lock()
	m.prices[id] = new(big.Int).Set(price)
	m.mu.Unlock()
	return common.BytesToHash(id.Bytes()), nil
}

func (m *MockToolsContract) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	m.record("SendTransaction", tx.Hash())
	if m.SendTransactionFunc != nil {
		return m.SendTransactionFunc(ctx, tx)
	}
	return tx.Hash(), nil
}

func (m *MockToolsContract) WaitForReceipt(ctx context.Context, hash common.Hash) error {
	m.record("WaitForReceipt", hash)
	if m.WaitForReceiptFunc != nil {
		return m.WaitForReceiptFunc(ctx, hash)
	}
	return nil
}

func (m *MockToolsContract) TransactionStatus(ctx context.Context, hash common.Hash) (ethereum.TxStatus, error) {
	m.record("TransactionStatus", hash)
	if m.TransactionStatusFunc != nil {
		return m.TransactionStatusFunc(ctx, hash)
	}
	return ethereum.TxConfirmed, nil
}

// MockRecorder counts metric events
type MockRecorder struct {
	mu        sync.Mutex
	Committed map[string]int
	Failed    map[string][]string
	Skipped   map[string]int
	Lag       map[string]uint64
	Payments  []entities.PaymentErrorKind
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		Committed: make(map[string]int),
		Failed:    make(map[string][]string),
		Skipped:   make(map[string]int),
		Lag:       make(map[string]uint64),
	}
}

func (m *MockRecorder) BatchCommitted(indexerID string, r entities.BlockRange, txs, events int, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Committed[indexerID]++
}

func (m *MockRecorder) BatchFailed(indexerID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failed[indexerID] = append(m.Failed[indexerID], reason)
}

func (m *MockRecorder) BatchSkipped(indexerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Skipped[indexerID]++
}

func (m *MockRecorder) CursorLag(indexerID string, lag uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lag[indexerID] = lag
}

func (m *MockRecorder) PaymentSettled(status entities.PaymentStatus, kind entities.PaymentErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payments = append(m.Payments, kind)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu    sync.Mutex
	Error error
	Calls int
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	m := &MockHealthChecker{}
	m.SetHealthy(healthy)
	return m
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Error = nil
	if !healthy {
		m.Error = errors.New("health check failed")
	}
}
