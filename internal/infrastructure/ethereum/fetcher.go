package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// blockReader is the subset of Client the fetcher needs
type blockReader interface {
	Network() string
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	GetBlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	GetBlockReceipts(ctx context.Context, number uint64) ([]*types.Receipt, error)
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// Fetcher pulls blocks, transactions and logs for one network
type Fetcher struct {
	client        blockReader
	signer        types.Signer
	confirmations uint64
	concurrency   int
	logger        *zap.Logger
}

// NewFetcher creates a new blockchain data fetcher
func NewFetcher(client *Client, ethCfg config.EthereumConfig, idxCfg config.IndexerConfig, logger *zap.Logger) *Fetcher {
	return newFetcher(client, types.LatestSignerForChainID(client.ChainID()), ethCfg, idxCfg, logger)
}

func newFetcher(client blockReader, signer types.Signer, ethCfg config.EthereumConfig, idxCfg config.IndexerConfig, logger *zap.Logger) *Fetcher {
	confirmations := uint64(0)
	if ethCfg.Confirmations > 0 {
		confirmations = uint64(ethCfg.Confirmations)
	}
	return &Fetcher{
		client:        client,
		signer:        signer,
		confirmations: confirmations,
		concurrency:   idxCfg.FetchConcurrency,
		logger:        logger.With(zap.String("network", client.Network())),
	}
}

// Network returns the network this fetcher reads
func (f *Fetcher) Network() string {
	return f.client.Network()
}

// GetSafeBlockNumber returns the latest block number minus confirmations
func (f *Fetcher) GetSafeBlockNumber(ctx context.Context) (uint64, error) {
	latest, err := f.client.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if latest < f.confirmations {
		return 0, nil
	}
	return latest - f.confirmations, nil
}

// FetchRange fetches every configured data type for the inclusive range.
// Any failure fails the whole range; nothing partial is returned.
func (f *Fetcher) FetchRange(ctx context.Context, r entities.BlockRange, settings *entities.IndexerSettings) (*entities.BatchData, error) {
	if r.To < r.From {
		return nil, fmt.Errorf("invalid block range %d-%d", r.From, r.To)
	}

	start := time.Now()
	data := &entities.BatchData{
		Network:      f.Network(),
		Range:        r,
		Blocks:       []entities.Block{},
		Transactions: []entities.Transaction{},
		Events:       []entities.Event{},
	}

	g, gCtx := errgroup.WithContext(ctx)

	if settings.DataTypes.Has(entities.DataTypeBlocks) || settings.DataTypes.Has(entities.DataTypeTransactions) {
		g.Go(func() error {
			return f.fetchBlocks(gCtx, r, settings, data)
		})
	}

	if settings.DataTypes.Has(entities.DataTypeEvents) {
		g.Go(func() error {
			events, err := f.fetchEvents(gCtx, r, settings.Filters)
			if err != nil {
				return err
			}
			data.Events = events
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.logger.Debug("Fetched range",
		zap.Uint64("from_block", r.From),
		zap.Uint64("to_block", r.To),
		zap.Int("blocks", len(data.Blocks)),
		zap.Int("transactions", len(data.Transactions)),
		zap.Int("events", len(data.Events)),
		zap.Duration("took", time.Since(start)),
	)

	return data, nil
}

// fetchBlocks fans out one goroutine per block, bounded by the indexer's
// concurrency setting
func (f *Fetcher) fetchBlocks(ctx context.Context, r entities.BlockRange, settings *entities.IndexerSettings, data *entities.BatchData) error {
	withTxs := settings.DataTypes.Has(entities.DataTypeTransactions)

	var mu sync.Mutex
	blocks := make([]entities.Block, 0, r.Len())
	var txs []entities.Transaction

	limit := settings.Concurrency
	if limit < 1 {
		limit = f.concurrency
	}
	if limit < 1 {
		limit = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for n := r.From; ; n++ {
		number := n
		g.Go(func() error {
			block, blockTxs, err := f.fetchBlock(gCtx, number, withTxs)
			if err != nil {
				return err
			}
			mu.Lock()
			blocks = append(blocks, *block)
			txs = append(txs, blockTxs...)
			mu.Unlock()
			return nil
		})
		if n == r.To {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].BlockNumber < blocks[j].BlockNumber })
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].BlockNumber != txs[j].BlockNumber {
			return txs[i].BlockNumber < txs[j].BlockNumber
		}
		return txs[i].TxIndex < txs[j].TxIndex
	})

	if settings.DataTypes.Has(entities.DataTypeBlocks) {
		data.Blocks = blocks
	}
	if withTxs {
		data.Transactions = txs
	}

	return nil
}

func (f *Fetcher) fetchBlock(ctx context.Context, number uint64, withTxs bool) (*entities.Block, []entities.Transaction, error) {
	raw, err := f.client.GetBlockByNumber(ctx, number)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get block %d: %w", number, err)
	}

	block := &entities.Block{
		Network:     f.Network(),
		BlockNumber: raw.NumberU64(),
		Hash:        raw.Hash().Hex(),
		ParentHash:  raw.ParentHash().Hex(),
		Timestamp:   time.Unix(int64(raw.Time()), 0).UTC(),
		TxCount:     len(raw.Transactions()),
	}

	if !withTxs || len(raw.Transactions()) == 0 {
		return block, nil, nil
	}

	receipts, err := f.client.GetBlockReceipts(ctx, number)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get receipts for block %d: %w", number, err)
	}
	byHash := make(map[common.Hash]*types.Receipt, len(receipts))
	for _, rc := range receipts {
		byHash[rc.TxHash] = rc
	}

	txs := make([]entities.Transaction, 0, len(raw.Transactions()))
	for i, tx := range raw.Transactions() {
		parsed, err := f.parseTransaction(block, uint(i), tx, byHash[tx.Hash()])
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, *parsed)
	}

	return block, txs, nil
}

func (f *Fetcher) parseTransaction(block *entities.Block, index uint, tx *types.Transaction, receipt *types.Receipt) (*entities.Transaction, error) {
	if receipt == nil {
		return nil, fmt.Errorf("missing receipt for tx %s in block %d", tx.Hash().Hex(), block.BlockNumber)
	}

	from, err := types.Sender(f.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender of tx %s: %w", tx.Hash().Hex(), err)
	}

	var to *string
	if tx.To() != nil {
		addr := strings.ToLower(tx.To().Hex())
		to = &addr
	}

	return &entities.Transaction{
		Network:     block.Network,
		Hash:        tx.Hash().Hex(),
		BlockNumber: block.BlockNumber,
		TxIndex:     index,
		FromAddress: strings.ToLower(from.Hex()),
		ToAddress:   to,
		Value:       tx.Value().String(),
		GasUsed:     receipt.GasUsed,
		Status:      receipt.Status,
	}, nil
}

func (f *Fetcher) fetchEvents(ctx context.Context, r entities.BlockRange, filter entities.EventFilter) ([]entities.Event, error) {
	logs, err := f.client.GetLogs(ctx, BuildFilterQuery(r, filter))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs for blocks %d-%d: %w", r.From, r.To, err)
	}

	events := make([]entities.Event, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		events = append(events, ParseLog(f.Network(), l))
	}

	return events, nil
}

// BuildFilterQuery builds a log filter for a block range. Filter topics match
// the first topic position (event signatures).
func BuildFilterQuery(r entities.BlockRange, filter entities.EventFilter) ethereum.FilterQuery {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(r.From),
		ToBlock:   new(big.Int).SetUint64(r.To),
	}

	for _, addr := range filter.Addresses {
		query.Addresses = append(query.Addresses, common.HexToAddress(addr))
	}

	if len(filter.Topics) > 0 {
		sigs := make([]common.Hash, 0, len(filter.Topics))
		for _, topic := range filter.Topics {
			sigs = append(sigs, common.HexToHash(topic))
		}
		query.Topics = [][]common.Hash{sigs}
	}

	return query
}
