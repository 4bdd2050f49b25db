package testutil

import (
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/ethereum"
)

// ChainID is the chain the mock contract reports
const ChainID = 1

// Wallet is a throwaway key that signs payForTools transactions
type Wallet struct {
	t   testing.TB
	key *ecdsa.PrivateKey

	mu    sync.Mutex
	nonce uint64
}

// NewWallet generates a fresh wallet
func NewWallet(t testing.TB) *Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return &Wallet{t: t, key: key}
}

// Address returns the wallet address
func (w *Wallet) Address() common.Address {
	return crypto.PubkeyToAddress(w.key.PublicKey)
}

// Hex returns the lower-case wallet address as payments store it
func (w *Wallet) Hex() string {
	return strings.ToLower(w.Address().Hex())
}

// SignPayForTools signs payForTools(USDCAddress, names) to the mock
// contract and returns the hex encoded transaction
func (w *Wallet) SignPayForTools(names ...pricing.ToolName) string {
	w.t.Helper()
	data, err := ethereum.PackPayForTools(common.HexToAddress(USDCAddress), pricing.IDs(names))
	if err != nil {
		w.t.Fatalf("failed to pack payForTools: %v", err)
	}
	return w.SignCall(common.HexToAddress(ContractAddress), data)
}

// SignCall signs a zero-value call to the given address
func (w *Wallet) SignCall(to common.Address, data []byte) string {
	w.t.Helper()

	w.mu.Lock()
	nonce := w.nonce
	w.nonce++
	w.mu.Unlock()

	chainID := big.NewInt(ChainID)
	tx, err := types.SignNewTx(w.key, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
		Gas:       200_000,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	if err != nil {
		w.t.Fatalf("failed to sign transaction: %v", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		w.t.Fatalf("failed to encode transaction: %v", err)
	}
	return hexutil.Encode(raw)
}

// TxHashOf returns the hash of a signed transaction
func TxHashOf(t testing.TB, signed string) string {
	t.Helper()
	tx, err := ethereum.DecodeSignedTx(signed)
	if err != nil {
		t.Fatalf("failed to decode transaction: %v", err)
	}
	return tx.Hash().Hex()
}
