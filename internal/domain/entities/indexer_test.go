package entities

import (
	"errors"
	"testing"
)

func TestParseSettings_Defaults(t *testing.T) {
	s, err := ParseSettings(map[string]string{
		ConfigNetwork:    "ethereum",
		ConfigBatchSize:  "10",
		ConfigStartBlock: "100",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Network != "ethereum" {
		t.Errorf("expected network ethereum, got %s", s.Network)
	}
	if s.BatchSize != 10 {
		t.Errorf("expected batch size 10, got %d", s.BatchSize)
	}
	if s.Concurrency != DefaultConcurrency {
		t.Errorf("expected default concurrency, got %d", s.Concurrency)
	}
	if !s.DataTypes.Has(DataTypeBlocks) || s.DataTypes.Has(DataTypeEvents) {
		t.Errorf("expected blocks-only default, got %v", s.DataTypes)
	}
	if s.NextFromBlock() != 100 {
		t.Errorf("expected next block 100 from startBlock, got %d", s.NextFromBlock())
	}
}

func TestParseSettings_CursorWinsOverStartBlock(t *testing.T) {
	s, err := ParseSettings(map[string]string{
		ConfigNetwork:            "ethereum",
		ConfigBatchSize:          "10",
		ConfigStartBlock:         "1",
		ConfigLastProcessedBlock: "100",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.NextFromBlock() != 101 {
		t.Errorf("expected 101, got %d", s.NextFromBlock())
	}
}

const (
	usdc          = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
)

func TestParseSettings_Full(t *testing.T) {
	s, err := ParseSettings(map[string]string{
		ConfigNetwork:            "polygon",
		ConfigBatchSize:          "50",
		ConfigLastProcessedBlock: "7",
		ConfigConcurrency:        "8",
		ConfigDataTypes:          "blocks, transactions,events",
		ConfigFilters:            `{"addresses":["` + usdc + `"],"topics":["` + transferTopic + `"]}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", s.Concurrency)
	}
	if len(s.DataTypes) != 3 {
		t.Errorf("expected 3 data types, got %v", s.DataTypes)
	}
	if len(s.Filters.Addresses) != 1 || s.Filters.Addresses[0] != usdc {
		t.Errorf("unexpected filters: %+v", s.Filters)
	}
}

func TestParseSettings_Errors(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   error
	}{
		{"missing network", map[string]string{ConfigBatchSize: "1", ConfigStartBlock: "0"}, ErrMissingConfigKey},
		{"missing batch size", map[string]string{ConfigNetwork: "ethereum", ConfigStartBlock: "0"}, ErrMissingConfigKey},
		{"missing start and cursor", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "1"}, ErrMissingConfigKey},
		{"zero batch size", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "0", ConfigStartBlock: "0"}, ErrInvalidConfig},
		{"bad start block", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "1", ConfigStartBlock: "-5"}, ErrInvalidConfig},
		{"bad concurrency", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "1", ConfigStartBlock: "0", ConfigConcurrency: "0"}, ErrInvalidConfig},
		{"bad data type", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "1", ConfigStartBlock: "0", ConfigDataTypes: "blocks,traces"}, ErrInvalidConfig},
		{"bad filters", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "1", ConfigStartBlock: "0", ConfigFilters: "{"}, ErrInvalidConfig},
		{"malformed filter address", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "1", ConfigStartBlock: "0", ConfigFilters: `{"addresses":["0xabc"]}`}, ErrInvalidConfig},
		{"short filter topic", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "1", ConfigStartBlock: "0", ConfigFilters: `{"topics":["0xddf2"]}`}, ErrInvalidConfig},
		{"unknown key", map[string]string{ConfigNetwork: "ethereum", ConfigBatchSize: "1", ConfigStartBlock: "0", "batchsize": "5"}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings(tt.values)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCanonicalConfig(t *testing.T) {
	values := map[string]string{
		ConfigNetwork:            " ethereum ",
		ConfigBatchSize:          "010",
		ConfigStartBlock:         "0",
		ConfigLastProcessedBlock: "0100",
		ConfigDataTypes:          "blocks",
	}
	if _, err := ParseSettings(values); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := CanonicalConfig(values)
	want := map[string]string{
		ConfigNetwork:            "ethereum",
		ConfigBatchSize:          "10",
		ConfigStartBlock:         "0",
		ConfigLastProcessedBlock: "100",
		ConfigDataTypes:          "blocks",
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("%s: expected %q, got %q", key, value, got[key])
		}
	}
	if values[ConfigLastProcessedBlock] != "0100" {
		t.Error("input rows must not be modified")
	}
}

func TestNextRange(t *testing.T) {
	tests := []struct {
		name      string
		from      uint64
		batchSize uint64
		head      uint64
		want      BlockRange
		ok        bool
	}{
		{"bounded by head", 101, 10, 105, BlockRange{From: 101, To: 105}, true},
		{"bounded by batch", 101, 10, 500, BlockRange{From: 101, To: 110}, true},
		{"single block", 105, 10, 105, BlockRange{From: 105, To: 105}, true},
		{"up to date", 106, 10, 105, BlockRange{}, false},
		{"genesis", 0, 1, 0, BlockRange{From: 0, To: 0}, true},
		{"overflow clamps to head", ^uint64(0) - 1, 10, ^uint64(0), BlockRange{From: ^uint64(0) - 1, To: ^uint64(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextRange(tt.from, tt.batchSize, tt.head)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestIndexerStatus_Runnable(t *testing.T) {
	if IndexerStatusInactive.Runnable() {
		t.Error("inactive indexers must not be scheduled")
	}
	for _, s := range []IndexerStatus{IndexerStatusActive, IndexerStatusPending, IndexerStatusError} {
		if !s.Runnable() {
			t.Errorf("%s should be runnable", s)
		}
	}
	if IndexerStatus("paused").Valid() {
		t.Error("unexpected valid status")
	}
}
