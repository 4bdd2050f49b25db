package services

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/cache"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/ethereum"
)

// ChainSource reads chain data for one network
type ChainSource interface {
	Network() string
	GetSafeBlockNumber(ctx context.Context) (uint64, error)
	FetchRange(ctx context.Context, r entities.BlockRange, settings *entities.IndexerSettings) (*entities.BatchData, error)
}

// MetricsCache memoizes computed metrics. Implementations must be safe for
// concurrent use; Get returns cache.ErrCacheMiss for absent or expired keys.
type MetricsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Locker hands out per-key try-locks
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (cache.ReleaseFunc, bool, error)
}

// MetricsRecorder receives batch and payment outcomes
type MetricsRecorder interface {
	BatchCommitted(indexerID string, r entities.BlockRange, txs, events int, took time.Duration)
	BatchFailed(indexerID, reason string)
	BatchSkipped(indexerID string)
	CursorLag(indexerID string, lag uint64)
	PaymentSettled(status entities.PaymentStatus, kind entities.PaymentErrorKind)
}

// ToolsContract is the DashboardTools contract surface. Purchases arrive
// signed by the buyer and are only relayed.
type ToolsContract interface {
	Address() common.Address
	ChainID() *big.Int
	HasSigner() bool
	IsToolRegistered(ctx context.Context, id pricing.ToolID) (bool, error)
	ToolPrice(ctx context.Context, id pricing.ToolID) (*big.Int, error)
	GetToolsPrice(ctx context.Context, token common.Address, ids []pricing.ToolID) (*pricing.Quote, error)
	SetToolPrice(ctx context.Context, id pricing.ToolID, price *big.Int) (common.Hash, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) error
	TransactionStatus(ctx context.Context, hash common.Hash) (ethereum.TxStatus, error)
}

// TokenMetadataReader resolves ERC-20 display metadata
type TokenMetadataReader interface {
	Metadata(ctx context.Context, token common.Address) *ethereum.TokenMetadata
}

type nopRecorder struct{}

func (nopRecorder) BatchCommitted(string, entities.BlockRange, int, int, time.Duration) {}
func (nopRecorder) BatchFailed(string, string) {}
func (nopRecorder) BatchSkipped(string) {}
func (nopRecorder) CursorLag(string, uint64) {}
func (nopRecorder) PaymentSettled(entities.PaymentStatus, entities.PaymentErrorKind) {}

func recorderOrNop(r MetricsRecorder) MetricsRecorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
