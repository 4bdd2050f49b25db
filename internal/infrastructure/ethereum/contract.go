package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
)

// DashboardToolsABI covers the pricing and payment surface of the
// DashboardTools contract
const DashboardToolsABI = `[
	{"type":"function","name":"setToolPrice","stateMutability":"nonpayable",
	 "inputs":[{"name":"toolId","type":"bytes32"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"isToolRegistered","stateMutability":"view",
	 "inputs":[{"name":"toolId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"toolPrices","stateMutability":"view",
	 "inputs":[{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getToolsPrice","stateMutability":"view",
	 "inputs":[{"name":"token","type":"address"},{"name":"toolIds","type":"bytes32[]"}],
	 "outputs":[{"name":"subtotal","type":"uint256"},{"name":"finalPrice","type":"uint256"},{"name":"isFullBundleDiscount","type":"bool"}]},
	{"type":"function","name":"payForTools","stateMutability":"nonpayable",
	 "inputs":[{"name":"token","type":"address"},{"name":"toolIds","type":"bytes32[]"}],"outputs":[]}
]`

// ErrNoSigner is returned by admin write calls when no signer key is configured
var ErrNoSigner = errors.New("no contract signer configured")

// TxStatus is the settlement state of a relayed transaction
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxReverted  TxStatus = "reverted"
	TxDropped   TxStatus = "dropped"
)

// ToolsContract is a typed binding of the DashboardTools contract.
// Purchases are signed by the buyer's wallet and only relayed here; the
// optional signer key is used for admin price changes.
type ToolsContract struct {
	address   common.Address
	chainID   *big.Int
	contract  *bind.BoundContract
	backend   *ethclient.Client
	signer    *bind.TransactOpts
	txTimeout time.Duration
	logger    *zap.Logger
}

// NewToolsContract binds the configured contract address on the client's
// network. The signer is optional; without it setToolPrice is unavailable.
func NewToolsContract(client *Client, cfg config.ContractConfig, logger *zap.Logger) (*ToolsContract, error) {
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Address)
	}

	parsed, err := toolsABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	address := common.HexToAddress(cfg.Address)
	backend := client.EthClient()

	c := &ToolsContract{
		address:   address,
		chainID:   client.ChainID(),
		contract:  bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:   backend,
		txTimeout: cfg.TxTimeout,
		logger:    logger.With(zap.String("contract", address.Hex())),
	}

	if cfg.SignerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid signer key: %w", err)
		}
		c.signer, err = bind.NewKeyedTransactorWithChainID(key, client.ChainID())
		if err != nil {
			return nil, fmt.Errorf("failed to create transactor: %w", err)
		}
		c.logger.Info("Contract signer configured", zap.String("signer", c.signer.From.Hex()))
	}

	return c, nil
}

// Address returns the bound contract address
func (c *ToolsContract) Address() common.Address {
	return c.address
}

// ChainID returns the chain the contract is bound on
func (c *ToolsContract) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// HasSigner reports whether admin write calls are possible
func (c *ToolsContract) HasSigner() bool {
	return c.signer != nil
}

// IsToolRegistered calls isToolRegistered(toolId)
func (c *ToolsContract) IsToolRegistered(ctx context.Context, id pricing.ToolID) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isToolRegistered", [32]byte(id)); err != nil {
		return false, fmt.Errorf("isToolRegistered: %w", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// ToolPrice calls toolPrices(toolId)
func (c *ToolsContract) ToolPrice(ctx context.Context, id pricing.ToolID) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "toolPrices", [32]byte(id)); err != nil {
		return nil, fmt.Errorf("toolPrices: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetToolsPrice calls getToolsPrice(token, toolIds)
func (c *ToolsContract) GetToolsPrice(ctx context.Context, token common.Address, ids []pricing.ToolID) (*pricing.Quote, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getToolsPrice", token, toBytes32(ids)); err != nil {
		return nil, fmt.Errorf("getToolsPrice: %w", err)
	}

	return &pricing.Quote{
		Subtotal:             *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		FinalPrice:           *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		IsFullBundleDiscount: *abi.ConvertType(out[2], new(bool)).(*bool),
	}, nil
}

// SetToolPrice sends setToolPrice(toolId, price) and waits for it to be mined
func (c *ToolsContract) SetToolPrice(ctx context.Context, id pricing.ToolID, price *big.Int) (common.Hash, error) {
	tx, err := c.transact(ctx, "setToolPrice", [32]byte(id), price)
	if err != nil {
		return common.Hash{}, err
	}

	if _, err := c.WaitMined(ctx, tx); err != nil {
		return tx.Hash(), err
	}

	return tx.Hash(), nil
}

// SendTransaction relays a transaction signed elsewhere without waiting for it
func (c *ToolsContract) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", tx.Hash().Hex(), err)
	}

	c.logger.Info("Relayed signed transaction", zap.String("tx_hash", tx.Hash().Hex()))
	return tx.Hash(), nil
}

// TransactionStatus looks a transaction up once. A transaction the node
// knows neither as mined nor as pending is reported as dropped.
func (c *ToolsContract) TransactionStatus(ctx context.Context, hash common.Hash) (TxStatus, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	switch {
	case err == nil:
		if receipt.Status != types.ReceiptStatusSuccessful {
			return TxReverted, nil
		}
		return TxConfirmed, nil
	case !errors.Is(err, ethereum.NotFound):
		return "", fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}

	if _, _, err := c.backend.TransactionByHash(ctx, hash); err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return TxDropped, nil
		}
		return "", fmt.Errorf("transaction %s: %w", hash.Hex(), err)
	}
	return TxPending, nil
}

// WaitForReceipt waits for a previously sent transaction and fails when it reverted
func (c *ToolsContract) WaitForReceipt(ctx context.Context, hash common.Hash) error {
	ctx, cancel := c.withTxTimeout(ctx)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return checkReceipt(hash, receipt)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// WaitMined waits for tx and fails when it reverted
func (c *ToolsContract) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := c.withTxTimeout(ctx)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if err := checkReceipt(tx.Hash(), receipt); err != nil {
		return receipt, err
	}
	return receipt, nil
}

func (c *ToolsContract) transact(ctx context.Context, method string, params ...interface{}) (*types.Transaction, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}

	opts := *c.signer
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	c.logger.Info("Sent contract transaction",
		zap.String("method", method),
		zap.String("tx_hash", tx.Hash().Hex()),
	)

	return tx, nil
}

func (c *ToolsContract) withTxTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.txTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.txTimeout)
}

func checkReceipt(hash common.Hash, receipt *types.Receipt) error {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted in block %s", hash.Hex(), receipt.BlockNumber)
	}
	return nil
}

func toBytes32(ids []pricing.ToolID) [][32]byte {
	out := make([][32]byte, len(ids))
	for i, id := range ids {
		out[i] = [32]byte(id)
	}
	return out
}
