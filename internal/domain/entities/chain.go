package entities

import (
	"time"

	"github.com/lib/pq"
)

// Block is an ingested block header. Numeric chain values are serialized as
// decimal strings so JSON consumers never lose precision.
type Block struct {
	Network     string    `db:"network" json:"network"`
	BlockNumber uint64    `db:"block_number" json:"block_number,string"`
	Hash        string    `db:"hash" json:"hash"`
	ParentHash  string    `db:"parent_hash" json:"parent_hash"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
	TxCount     int       `db:"tx_count" json:"tx_count"`
}

// Transaction is an ingested transaction with its receipt gas usage
type Transaction struct {
	Network     string  `db:"network" json:"network"`
	Hash        string  `db:"hash" json:"hash"`
	BlockNumber uint64  `db:"block_number" json:"block_number,string"`
	TxIndex     uint    `db:"tx_index" json:"tx_index"`
	FromAddress string  `db:"from_address" json:"from_address"`
	ToAddress   *string `db:"to_address" json:"to_address,omitempty"`
	Value       string  `db:"value" json:"value"`
	GasUsed     uint64  `db:"gas_used" json:"gas_used,string"`
	Status      uint64  `db:"status" json:"status"`
}

// Event is an ingested contract log
type Event struct {
	Network         string         `db:"network" json:"network"`
	TxHash          string         `db:"tx_hash" json:"tx_hash"`
	LogIndex        uint64         `db:"log_index" json:"log_index,string"`
	BlockNumber     uint64         `db:"block_number" json:"block_number,string"`
	ContractAddress string         `db:"contract_address" json:"contract_address"`
	Topics          pq.StringArray `db:"topics" json:"topics"`
	Data            string         `db:"data" json:"data"`
	EventName       string         `db:"event_name" json:"event_name"`
	Decoded         *string        `db:"decoded" json:"decoded,omitempty"`
}

// BatchData is everything fetched for one block range
type BatchData struct {
	Network      string
	Range        BlockRange
	Blocks       []Block
	Transactions []Transaction
	Events       []Event
}

// RangeCounts holds stored row counts for a block range
type RangeCounts struct {
	Blocks       int64 `db:"blocks" json:"blocks"`
	Transactions int64 `db:"transactions" json:"transactions"`
	Events       int64 `db:"events" json:"events"`
}
