/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// TokenMetadata holds the ERC-20 metadata of a payment token
type TokenMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	// Fallback is set when any field could not be read from the chain
	Fallback bool `json:"fallback,omitempty"`
}

// contractCaller is the eth_call subset of Client
type contractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// MetadataReader reads ERC-20 metadata via eth_call and memoizes complete
// results per token address
type MetadataReader struct {
	caller contractCaller
	logger *zap.Logger

	mu    sync.RWMutex
	known map[common.Address]*TokenMetadata
}

// NewMetadataReader creates a new metadata reader
func NewMetadataReader(client *Client, logger *zap.Logger) *MetadataReader {
	return newMetadataReader(client, logger)
}

func newMetadataReader(caller contractCaller, logger *zap.Logger) *MetadataReader {
	return &MetadataReader{
		caller: caller,
		logger: logger,
		known:  make(map[common.Address]*TokenMetadata),
	}
}

// ERC-20 view selectors
var (
	nameSig     = selector("name()")
	symbolSig   = selector("symbol()")
	decimalsSig = selector("decimals()")
)

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// Metadata returns token metadata, substituting fallbacks for unreadable
// fields. Fallback results are not memoized so a later call can recover.
func (r *MetadataReader) Metadata(ctx context.Context, token common.Address) *TokenMetadata {
	r.mu.RLock()
	cached, ok := r.known[token]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	md := &TokenMetadata{Address: strings.ToLower(token.Hex())}

	var err error
	if md.Name, err = r.readString(ctx, token, nameSig); err != nil {
		r.warnFallback(token, "name", err)
		md.Name, md.Fallback = "Unknown", true
	}
	if md.Symbol, err = r.readString(ctx, token, symbolSig); err != nil {
		r.warnFallback(token, "symbol", err)
		md.Symbol, md.Fallback = "UNK", true
	}
	if md.Decimals, err = r.readDecimals(ctx, token); err != nil {
		r.warnFallback(token, "decimals", err)
		md.Decimals, md.Fallback = 18, true
	}

	if !md.Fallback {
		r.mu.Lock()
		r.known[token] = md
		r.mu.Unlock()
	}

	return md
}

func (r *MetadataReader) warnFallback(token common.Address, field string, err error) {
	r.logger.Warn("Failed to read token metadata, using fallback",
		zap.String("token", token.Hex()),
		zap.String("field", field),
		zap.Error(err),
	)
}

func (r *MetadataReader) readString(ctx context.Context, token common.Address, sig []byte) (string, error) {
	result, err := r.caller.CallContract(ctx, token, sig)
	if err != nil {
		return "", err
	}
	return decodeStringOrBytes32(result)
}

func (r *MetadataReader) readDecimals(ctx context.Context, token common.Address) (uint8, error) {
	result, err := r.caller.CallContract(ctx, token, decimalsSig)
	if err != nil {
		return 0, err
	}
	if len(result) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(result))
	}

	// uint8 is right-aligned in its 32-byte word
	value := new(big.Int).SetBytes(result[:32])
	if !value.IsUint64() || value.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", value)
	}
	return uint8(value.Uint64()), nil
}

// decodeStringOrBytes32 decodes either an ABI-encoded string or a raw
// bytes32 (MKR style) return value
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	if len(data) >= 64 && new(big.Int).SetBytes(data[:32]).Uint64() == 32 {
		length := new(big.Int).SetBytes(data[32:64])
		if length.IsUint64() && uint64(len(data)-64) >= length.Uint64() {
			n := int(length.Uint64())
			return strings.TrimRight(string(data[64:64+n]), "\x00"), nil
		}
	}

	raw := bytes.TrimRight(data[:32], "\x00")
	if isPrintableASCII(raw) {
		return string(raw), nil
	}

	return "0x" + hex.EncodeToString(data[:32]), nil
}

func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}

// FormatUnits renders an integer amount of the smallest token unit as a
// decimal string, e.g. 15300000 with 6 decimals is "15.3"
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	neg := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()

	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}

	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
