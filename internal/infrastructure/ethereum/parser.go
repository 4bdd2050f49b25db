package ethereum

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// Well-known event signatures decoded during ingestion
var (
	TransferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	ApprovalEventSignature = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
)

// ParseLog converts a raw log into an Event. Logs with a known signature get
// a name and a JSON decoding; anything else is stored raw.
func ParseLog(network string, log types.Log) entities.Event {
	topics := make([]string, len(log.Topics))
	for i, t := range log.Topics {
		topics[i] = t.Hex()
	}

	event := entities.Event{
		Network:         network,
		TxHash:          log.TxHash.Hex(),
		LogIndex:        uint64(log.Index),
		BlockNumber:     log.BlockNumber,
		ContractAddress: strings.ToLower(log.Address.Hex()),
		Topics:          topics,
		Data:            hexutil.Encode(log.Data),
	}
	if log.Data == nil {
		event.Data = "0x"
	}

	name, decoded, err := decodeKnownEvent(log)
	if err != nil || name == "" {
		return event
	}

	event.EventName = name
	if raw, err := json.Marshal(decoded); err == nil {
		s := string(raw)
		event.Decoded = &s
	}

	return event
}

func decodeKnownEvent(log types.Log) (string, map[string]string, error) {
	if len(log.Topics) == 0 {
		return "", nil, nil
	}

	switch log.Topics[0] {
	case TransferEventSignature:
		return decodeTransferLike("Transfer", log)
	case ApprovalEventSignature:
		decoded, err := decodeTwoAddressesAndValue(log, "owner", "spender", "value")
		return "Approval", decoded, err
	}

	return "", nil, nil
}

// decodeTransferLike handles both ERC-20 (value in data) and ERC-721
// (tokenId as third indexed topic) transfers
func decodeTransferLike(name string, log types.Log) (string, map[string]string, error) {
	if len(log.Topics) == 4 && len(log.Data) == 0 {
		return name, map[string]string{
			"from":    lowerAddress(log.Topics[1]),
			"to":      lowerAddress(log.Topics[2]),
			"tokenId": log.Topics[3].Big().String(),
		}, nil
	}

	decoded, err := decodeTwoAddressesAndValue(log, "from", "to", "value")
	return name, decoded, err
}

func decodeTwoAddressesAndValue(log types.Log, first, second, value string) (map[string]string, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid number of topics: expected 3, got %d", len(log.Topics))
	}
	if len(log.Data) != 32 {
		return nil, fmt.Errorf("invalid data length: expected 32, got %d", len(log.Data))
	}

	return map[string]string{
		first:  lowerAddress(log.Topics[1]),
		second: lowerAddress(log.Topics[2]),
		value:  new(big.Int).SetBytes(log.Data).String(),
	}, nil
}

func lowerAddress(topic common.Hash) string {
	return strings.ToLower(common.BytesToAddress(topic.Bytes()).Hex())
}
