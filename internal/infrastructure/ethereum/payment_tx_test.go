package ethereum

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
)

var (
	payChainID  = big.NewInt(1)
	payContract = common.HexToAddress("0x5555555555555555555555555555555555555555")
	payToken    = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	payTools    = []pricing.ToolID{pricing.MetadataAnalysis.ID(), pricing.KeywordAnalysis.ID()}
)

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func signCall(t *testing.T, key *ecdsa.PrivateKey, chainID *big.Int, to common.Address, value *big.Int, data []byte) *types.Transaction {
	t.Helper()
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     7,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
		Gas:       200_000,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return tx
}

func payCalldata(t *testing.T, ids []pricing.ToolID) []byte {
	t.Helper()
	data, err := PackPayForTools(payToken, ids)
	if err != nil {
		t.Fatalf("failed to pack: %v", err)
	}
	return data
}

func TestVerifyPayForTools(t *testing.T) {
	key, wallet := newKey(t)
	_, other := newKey(t)

	tests := []struct {
		name  string
		tx    func() *types.Transaction
		payer common.Address
		want  error
	}{
		{
			name:  "signed by the wallet",
			tx:    func() *types.Transaction { return signCall(t, key, payChainID, payContract, big.NewInt(0), payCalldata(t, payTools)) },
			payer: wallet,
		},
		{
			name:  "signed by another key",
			tx:    func() *types.Transaction { return signCall(t, key, payChainID, payContract, big.NewInt(0), payCalldata(t, payTools)) },
			payer: other,
			want:  ErrPayerMismatch,
		},
		{
			name:  "other tools",
			tx:    func() *types.Transaction { return signCall(t, key, payChainID, payContract, big.NewInt(0), payCalldata(t, payTools[:1])) },
			payer: wallet,
			want:  ErrPaymentTxMismatch,
		},
		{
			name:  "other contract",
			tx:    func() *types.Transaction { return signCall(t, key, payChainID, payToken, big.NewInt(0), payCalldata(t, payTools)) },
			payer: wallet,
			want:  ErrPaymentTxMismatch,
		},
		{
			name:  "other chain",
			tx:    func() *types.Transaction { return signCall(t, key, big.NewInt(137), payContract, big.NewInt(0), payCalldata(t, payTools)) },
			payer: wallet,
			want:  ErrPaymentTxMismatch,
		},
		{
			name:  "sends value",
			tx:    func() *types.Transaction { return signCall(t, key, payChainID, payContract, big.NewInt(1), payCalldata(t, payTools)) },
			payer: wallet,
			want:  ErrPaymentTxMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPayForTools(tt.tx(), payChainID, payContract, tt.payer, payToken, payTools)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeSignedTx(t *testing.T) {
	key, _ := newKey(t)
	tx := signCall(t, key, payChainID, payContract, big.NewInt(0), payCalldata(t, payTools))

	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	decoded, err := DecodeSignedTx(hexutil.Encode(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Hash() != tx.Hash() {
		t.Errorf("expected hash %s, got %s", tx.Hash().Hex(), decoded.Hash().Hex())
	}

	for _, bad := range []string{"", "0x", "0xzz", "0x02deadbeef"} {
		if _, err := DecodeSignedTx(bad); !errors.Is(err, ErrMalformedTx) {
			t.Errorf("DecodeSignedTx(%q): expected ErrMalformedTx, got %v", bad, err)
		}
	}
}
