package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
)

// Client wraps the Ethereum client with rate limiting and retry logic
type Client struct {
	client  *ethclient.Client
	network string
	config  config.EthereumConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	chainID *big.Int
	onRetry func(network, operation string)
}

// NewClient connects to rpcURL for the named network
func NewClient(network, rpcURL string, cfg config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s node: %w", network, err)
	}

	c := &Client{
		client:  client,
		network: network,
		config:  cfg,
		limiter: newLimiter(cfg.RateLimitRPS),
		logger:  logger.With(zap.String("network", network)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	chainID, err := withRetry(ctx, c, "chain_id", client.ChainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	// The configured chain id only pins the default network
	if network == cfg.Network && chainID.Int64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", cfg.ChainID, chainID.Int64())
	}
	c.chainID = chainID

	c.logger.Info("Connected to Ethereum node",
		zap.Int64("chain_id", chainID.Int64()),
	)

	return c, nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// OnRetry registers a hook invoked before every retried RPC call
func (c *Client) OnRetry(fn func(network, operation string)) {
	c.onRetry = fn
}

// Close closes the Ethereum client connection
func (c *Client) Close() {
	c.client.Close()
}

// Network returns the network name this client serves
func (c *Client) Network() string {
	return c.network
}

// withRetry runs fn under the client's rate limiter, retrying transient
// failures with exponential backoff. Non-retryable errors return at once.
func withRetry[T any](ctx context.Context, c *Client, operation string, fn func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt, c.config.RetryDelay, c.config.MaxRetryDelay)
			c.logger.Warn("Retrying RPC call",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
			if c.onRetry != nil {
				c.onRetry(c.network, operation)
			}

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return result, fmt.Errorf("%s cancelled during backoff: %w", operation, ctx.Err())
			}
		}

		if werr := c.limiter.Wait(ctx); werr != nil {
			return result, fmt.Errorf("%s rate limiter: %w", operation, werr)
		}

		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			return result, fmt.Errorf("%s failed: %w", operation, err)
		}
	}

	return result, fmt.Errorf("%s failed after %d retries: %w", operation, c.config.MaxRetries, err)
}

// GetLatestBlockNumber returns the latest block number
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	return withRetry(ctx, c, "block_number", c.client.BlockNumber)
}

// GetBlockByNumber returns a block with its transactions
func (c *Client) GetBlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	n := new(big.Int).SetUint64(number)
	return withRetry(ctx, c, "block_by_number", func(ctx context.Context) (*types.Block, error) {
		return c.client.BlockByNumber(ctx, n)
	})
}

// GetBlockReceipts returns every receipt of a block in one call
func (c *Client) GetBlockReceipts(ctx context.Context, number uint64) ([]*types.Receipt, error) {
	ref := rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(number))
	return withRetry(ctx, c, "block_receipts", func(ctx context.Context) ([]*types.Receipt, error) {
		return c.client.BlockReceipts(ctx, ref)
	})
}

// GetLogs retrieves logs matching the filter query
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return withRetry(ctx, c, "filter_logs", func(ctx context.Context) ([]types.Log, error) {
		return c.client.FilterLogs(ctx, query)
	})
}

// CallContract executes a read-only eth_call against the latest block
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	return withRetry(ctx, c, "call_contract", func(ctx context.Context) ([]byte, error) {
		return c.client.CallContract(ctx, msg, nil)
	})
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// EthClient returns the underlying ethclient for contract bindings
func (c *Client) EthClient() *ethclient.Client {
	return c.client
}
