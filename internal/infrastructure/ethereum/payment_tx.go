package ethereum

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
)

var (
	// ErrMalformedTx is returned when a signed transaction cannot be decoded
	ErrMalformedTx = errors.New("malformed signed transaction")

	// ErrPayerMismatch is returned when the transaction was not signed by
	// the paying wallet
	ErrPayerMismatch = errors.New("transaction is not signed by the paying wallet")

	// ErrPaymentTxMismatch is returned when the transaction is not exactly
	// payForTools(token, ids) on the bound contract and chain
	ErrPaymentTxMismatch = errors.New("transaction does not pay for the quoted tools")
)

var toolsABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(DashboardToolsABI))
})

// PackPayForTools returns the calldata of payForTools(token, toolIds)
func PackPayForTools(token common.Address, ids []pricing.ToolID) ([]byte, error) {
	parsed, err := toolsABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return parsed.Pack("payForTools", token, toBytes32(ids))
}

// DecodeSignedTx parses the 0x-prefixed binary encoding of a signed
// transaction, as returned by eth_signTransaction
func DecodeSignedTx(raw string) (*types.Transaction, error) {
	b, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	return tx, nil
}

// VerifyPayForTools checks that tx was signed by payer for chainID and calls
// payForTools(token, ids) on contract without sending value
func VerifyPayForTools(tx *types.Transaction, chainID *big.Int, contract, payer, token common.Address, ids []pricing.ToolID) error {
	if !tx.Protected() {
		return fmt.Errorf("%w: not replay protected", ErrPaymentTxMismatch)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentTxMismatch, err)
	}
	if sender != payer {
		return fmt.Errorf("%w: signed by %s, wallet %s", ErrPayerMismatch, sender.Hex(), payer.Hex())
	}

	if tx.To() == nil || *tx.To() != contract {
		return fmt.Errorf("%w: not sent to %s", ErrPaymentTxMismatch, contract.Hex())
	}
	if tx.Value().Sign() != 0 {
		return fmt.Errorf("%w: carries value %s", ErrPaymentTxMismatch, tx.Value())
	}

	want, err := PackPayForTools(token, ids)
	if err != nil {
		return err
	}
	if !bytes.Equal(tx.Data(), want) {
		return fmt.Errorf("%w: calldata differs", ErrPaymentTxMismatch)
	}

	return nil
}
