package testutil

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// Common test addresses
const (
	USDCAddress     = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	ContractAddress = "0x5555555555555555555555555555555555555555"
	AliceAddress    = "0x1111111111111111111111111111111111111111"
	BobAddress      = "0x2222222222222222222222222222222222222222"
)

// Indexer ids used by the default fixtures
const (
	IndexerID      = "7d9c4f2a-3b1e-4c5d-9a8b-0e1f2a3b4c5d"
	OtherIndexerID = "1e2f3a4b-5c6d-4e7f-8a9b-0c1d2e3f4a5b"
)

// CreateTestIndexer creates a test indexer with default values
func CreateTestIndexer(opts ...IndexerOption) entities.Indexer {
	created := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	indexer := entities.Indexer{
		ID:          IndexerID,
		Name:        "mainnet blocks",
		Description: "test indexer",
		Status:      entities.IndexerStatusActive,
		CreatedAt:   created,
		UpdatedAt:   created,
	}

	for _, opt := range opts {
		opt(&indexer)
	}

	return indexer
}

type IndexerOption func(*entities.Indexer)

func WithIndexerID(id string) IndexerOption {
	return func(i *entities.Indexer) {
		i.ID = id
	}
}

func WithStatus(status entities.IndexerStatus) IndexerOption {
	return func(i *entities.Indexer) {
		i.Status = status
	}
}

func WithLastError(msg string) IndexerOption {
	return func(i *entities.Indexer) {
		i.LastError = &msg
	}
}

func WithOwner(owner string) IndexerOption {
	return func(i *entities.Indexer) {
		i.OwnerID = &owner
	}
}

// IndexerConfig builds configuration rows. cursor < 0 means no cursor yet.
func IndexerConfig(network string, startBlock, batchSize uint64, cursor int64) map[string]string {
	config := map[string]string{
		entities.ConfigNetwork:    network,
		entities.ConfigStartBlock: strconv.FormatUint(startBlock, 10),
		entities.ConfigBatchSize:  strconv.FormatUint(batchSize, 10),
		entities.ConfigDataTypes:  "blocks,transactions,events",
	}
	if cursor >= 0 {
		config[entities.ConfigLastProcessedBlock] = strconv.FormatInt(cursor, 10)
	}
	return config
}

// SyntheticBatch builds deterministic chain data for a range
func SyntheticBatch(network string, r entities.BlockRange, txsPerBlock int) *entities.BatchData {
	data := &entities.BatchData{
		Network:      network,
		Range:        r,
		Blocks:       []entities.Block{},
		Transactions: []entities.Transaction{},
		Events:       []entities.Event{},
	}

	for n := r.From; n <= r.To; n++ {
		data.Blocks = append(data.Blocks, entities.Block{
			Network:     network,
			BlockNumber: n,
			Hash:        fmt.Sprintf("0x%064x", n),
			ParentHash:  fmt.Sprintf("0x%064x", n-1),
			Timestamp:   time.Unix(int64(1700000000+n*12), 0).UTC(),
			TxCount:     txsPerBlock,
		})
		for i := 0; i < txsPerBlock; i++ {
			hash := fmt.Sprintf("0x%056x%08x", n, i)
			to := BobAddress
			data.Transactions = append(data.Transactions, entities.Transaction{
				Network:     network,
				Hash:        hash,
				BlockNumber: n,
				TxIndex:     uint(i),
				FromAddress: AliceAddress,
				ToAddress:   &to,
				Value:       "1000",
				GasUsed:     21000,
				Status:      1,
			})
			data.Events = append(data.Events, entities.Event{
				Network:         network,
				TxHash:          hash,
				LogIndex:        uint64(i),
				BlockNumber:     n,
				ContractAddress: USDCAddress,
				Topics:          []string{},
				Data:            "0x",
			})
		}
		if n == r.To {
			break
		}
	}

	return data
}
