package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// IndexerStatus is the lifecycle state of an indexer
type IndexerStatus string

const (
	IndexerStatusInactive IndexerStatus = "inactive"
	IndexerStatusActive   IndexerStatus = "active"
	IndexerStatusError    IndexerStatus = "error"
	IndexerStatusPending  IndexerStatus = "pending"
)

// AllIndexerStatuses lists every status in a stable order
var AllIndexerStatuses = []IndexerStatus{
	IndexerStatusInactive,
	IndexerStatusActive,
	IndexerStatusError,
	IndexerStatusPending,
}

// Valid reports whether s is a known status
func (s IndexerStatus) Valid() bool {
	for _, known := range AllIndexerStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Runnable reports whether the scheduler should pick the indexer up
func (s IndexerStatus) Runnable() bool {
	return s == IndexerStatusActive || s == IndexerStatusPending || s == IndexerStatusError
}

// Indexer is one long-running ingestion job
type Indexer struct {
	ID          string        `db:"id" json:"id"`
	OwnerID     *string       `db:"owner_id" json:"owner_id,omitempty"`
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	Status      IndexerStatus `db:"status" json:"status"`
	LastError   *string       `db:"last_error" json:"last_error,omitempty"`
	LastRun     *time.Time    `db:"last_run" json:"last_run,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// IndexerFilter contains filters for listing indexers
type IndexerFilter struct {
	Status  *IndexerStatus
	OwnerID *string
}

// IndexerConfigEntry is one key/value configuration row of an indexer
type IndexerConfigEntry struct {
	IndexerID string    `db:"indexer_id"`
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Indexer configuration keys
const (
	ConfigNetwork            = "network"
	ConfigStartBlock         = "startBlock"
	ConfigBatchSize          = "batchSize"
	ConfigConcurrency        = "concurrency"
	ConfigLastProcessedBlock = "lastProcessedBlock"
	ConfigDataTypes          = "dataTypes"
	ConfigFilters            = "filters"
)

var configKeys = map[string]bool{
	ConfigNetwork:            true,
	ConfigStartBlock:         true,
	ConfigBatchSize:          true,
	ConfigConcurrency:        true,
	ConfigLastProcessedBlock: true,
	ConfigDataTypes:          true,
	ConfigFilters:            true,
}

// DefaultConcurrency is used when the concurrency key is absent
const DefaultConcurrency = 4

// ErrMissingConfigKey is returned when a required configuration key is absent
var ErrMissingConfigKey = errors.New("missing required indexer config key")

// ErrInvalidConfig is returned when a configuration value cannot be parsed
var ErrInvalidConfig = errors.New("invalid indexer config")

// DataType selects which entities a batch ingests
type DataType string

const (
	DataTypeBlocks       DataType = "blocks"
	DataTypeTransactions DataType = "transactions"
	DataTypeEvents       DataType = "events"
)

// DataTypeSet is the set of data types an indexer ingests
type DataTypeSet map[DataType]bool

// Has reports whether t is part of the set
func (s DataTypeSet) Has(t DataType) bool {
	return s[t]
}

// EventFilter narrows log ingestion to specific contracts and topics
type EventFilter struct {
	Addresses []string `json:"addresses,omitempty"`
	Topics    []string `json:"topics,omitempty"`
}

// IndexerSettings is the typed view of an indexer's configuration rows
type IndexerSettings struct {
	Network            string
	StartBlock         *uint64
	BatchSize          uint64
	Concurrency        int
	LastProcessedBlock *uint64
	DataTypes          DataTypeSet
	Filters            EventFilter
}

// NextFromBlock returns the first block the next batch should ingest
func (s *IndexerSettings) NextFromBlock() uint64 {
	if s.LastProcessedBlock != nil {
		return *s.LastProcessedBlock + 1
	}
	return *s.StartBlock
}

// ParseSettings validates configuration rows. Missing required keys are
// reported, never defaulted.
func ParseSettings(values map[string]string) (*IndexerSettings, error) {
	s := &IndexerSettings{
		Concurrency: DefaultConcurrency,
		DataTypes:   DataTypeSet{DataTypeBlocks: true},
	}

	for key := range values {
		if !configKeys[key] {
			return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, key)
		}
	}

	network := strings.TrimSpace(values[ConfigNetwork])
	if network == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfigKey, ConfigNetwork)
	}
	s.Network = network

	raw, ok := values[ConfigBatchSize]
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfigKey, ConfigBatchSize)
	}
	batchSize, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || batchSize == 0 {
		return nil, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidConfig, ConfigBatchSize, raw)
	}
	s.BatchSize = batchSize

	if s.StartBlock, err = parseOptionalBlock(values, ConfigStartBlock); err != nil {
		return nil, err
	}
	if s.LastProcessedBlock, err = parseOptionalBlock(values, ConfigLastProcessedBlock); err != nil {
		return nil, err
	}
	if s.StartBlock == nil && s.LastProcessedBlock == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfigKey, ConfigStartBlock)
	}

	if raw, ok := values[ConfigConcurrency]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidConfig, ConfigConcurrency, raw)
		}
		s.Concurrency = n
	}

	if raw, ok := values[ConfigDataTypes]; ok && raw != "" {
		s.DataTypes, err = ParseDataTypes(raw)
		if err != nil {
			return nil, err
		}
	}

	if raw, ok := values[ConfigFilters]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Filters); err != nil {
			return nil, fmt.Errorf("%w: %s is not valid JSON: %v", ErrInvalidConfig, ConfigFilters, err)
		}
		if err := s.Filters.validate(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (f EventFilter) validate() error {
	for _, addr := range f.Addresses {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: %s has invalid address %q", ErrInvalidConfig, ConfigFilters, addr)
		}
	}
	for _, topic := range f.Topics {
		if b, err := hexutil.Decode(topic); err != nil || len(b) != common.HashLength {
			return fmt.Errorf("%w: %s has invalid topic %q", ErrInvalidConfig, ConfigFilters, topic)
		}
	}
	return nil
}

// CanonicalConfig returns a copy of validated configuration rows with block
// numbers and counts in their shortest decimal form, so "0100" is stored
// as "100".
func CanonicalConfig(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		switch key {
		case ConfigNetwork:
			value = strings.TrimSpace(value)
		case ConfigStartBlock, ConfigLastProcessedBlock, ConfigBatchSize, ConfigConcurrency:
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				value = strconv.FormatUint(n, 10)
			}
		}
		out[key] = value
	}
	return out
}

// ParseDataTypes parses a comma-separated list such as "blocks,events"
func ParseDataTypes(raw string) (DataTypeSet, error) {
	set := DataTypeSet{}
	for _, part := range strings.Split(raw, ",") {
		t := DataType(strings.TrimSpace(part))
		switch t {
		case DataTypeBlocks, DataTypeTransactions, DataTypeEvents:
			set[t] = true
		case "":
		default:
			return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalidConfig, t)
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidConfig, ConfigDataTypes)
	}
	return set, nil
}

func parseOptionalBlock(values map[string]string, key string) (*uint64, error) {
	raw, ok := values[key]
	if !ok || raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a block number, got %q", ErrInvalidConfig, key, raw)
	}
	return &n, nil
}

// BlockRange is an inclusive range of block numbers
type BlockRange struct {
	From uint64 `json:"from,string"`
	To   uint64 `json:"to,string"`
}

// Len returns the number of blocks in the range
func (r BlockRange) Len() uint64 {
	return r.To - r.From + 1
}

// NextRange returns [from, min(from+batchSize-1, head)], or false when from
// is already past the chain head.
func NextRange(from, batchSize, head uint64) (BlockRange, bool) {
	if from > head || batchSize == 0 {
		return BlockRange{}, false
	}
	to := from + batchSize - 1
	if to < from || to > head {
		to = head
	}
	return BlockRange{From: from, To: to}, true
}
