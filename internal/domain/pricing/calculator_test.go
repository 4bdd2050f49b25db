package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

func scenarioRegistry() (Registry, ToolID, ToolID, ToolID) {
	a := MetadataAnalysis.ID()
	b := KeywordAnalysis.ID()
	c := SmartContractAudit.ID()

	registry := NewRegistry(
		PriceEntry{ID: a, Price: big.NewInt(5_000_000), Registered: true},
		PriceEntry{ID: b, Price: big.NewInt(5_000_000), Registered: true},
		PriceEntry{ID: c, Price: big.NewInt(7_000_000), Registered: true},
	)
	return registry, a, b, c
}

func TestDeriveToolID_Deterministic(t *testing.T) {
	first := DeriveToolID("METADATA_ANALYSIS")
	second := DeriveToolID("METADATA_ANALYSIS")
	if first != second {
		t.Errorf("expected identical ids, got %s and %s", first.Hex(), second.Hex())
	}
	if first == (common.Hash{}) {
		t.Error("expected non-zero id")
	}
}

func TestDeriveToolID_MatchesIndependentKeccak(t *testing.T) {
	for _, name := range AllTools {
		h := sha3.NewLegacyKeccak256()
		h.Write([]byte(name))
		expected := common.BytesToHash(h.Sum(nil))

		if got := DeriveToolID(string(name)); got != expected {
			t.Errorf("%s: expected %s, got %s", name, expected.Hex(), got.Hex())
		}
	}
}

func TestDeriveToolID_CaseSensitiveNoTrim(t *testing.T) {
	base := DeriveToolID("METADATA_ANALYSIS")
	if DeriveToolID("metadata_analysis") == base {
		t.Error("expected lower-case name to derive a different id")
	}
	if DeriveToolID(" METADATA_ANALYSIS") == base {
		t.Error("expected padded name to derive a different id")
	}
}

func TestDeriveToolID_KnownVector(t *testing.T) {
	// keccak256("") is a well-known constant
	expected := common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if got := DeriveToolID(""); got != expected {
		t.Errorf("expected %s, got %s", expected.Hex(), got.Hex())
	}
}

func TestComputePrice_FullBundleScenario(t *testing.T) {
	registry, a, b, c := scenarioRegistry()

	quote, err := ComputePrice([]ToolID{a, b, c}, registry, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if quote.Subtotal.Cmp(big.NewInt(17_000_000)) != 0 {
		t.Errorf("expected subtotal 17000000, got %s", quote.Subtotal)
	}
	if quote.FinalPrice.Cmp(big.NewInt(15_300_000)) != 0 {
		t.Errorf("expected final price 15300000, got %s", quote.FinalPrice)
	}
	if !quote.IsFullBundleDiscount {
		t.Error("expected full bundle discount")
	}
}

func TestComputePrice_SubsetScenario(t *testing.T) {
	registry, a, b, _ := scenarioRegistry()

	quote, err := ComputePrice([]ToolID{a, b}, registry, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if quote.Subtotal.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Errorf("expected subtotal 10000000, got %s", quote.Subtotal)
	}
	if quote.FinalPrice.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Errorf("expected final price 10000000, got %s", quote.FinalPrice)
	}
	if quote.IsFullBundleDiscount {
		t.Error("expected no bundle discount for a subset")
	}
}

func TestComputePrice_Empty(t *testing.T) {
	registry, _, _, _ := scenarioRegistry()

	quote, err := ComputePrice(nil, registry, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Subtotal.Sign() != 0 || quote.FinalPrice.Sign() != 0 {
		t.Errorf("expected zero prices, got %s/%s", quote.Subtotal, quote.FinalPrice)
	}
	if quote.IsFullBundleDiscount {
		t.Error("empty selection must never be the full bundle")
	}
}

func TestComputePrice_EmptyAgainstEmptyRegistry(t *testing.T) {
	quote, err := ComputePrice([]ToolID{}, Registry{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.IsFullBundleDiscount {
		t.Error("empty selection must never be the full bundle")
	}
}

func TestComputePrice_UnregisteredFails(t *testing.T) {
	registry, a, _, _ := scenarioRegistry()

	tests := []struct {
		name     string
		registry Registry
		ids      []ToolID
	}{
		{"absent id", registry, []ToolID{a, CompetitorAnalysis.ID()}},
		{"flag false", NewRegistry(PriceEntry{ID: a, Price: big.NewInt(1), Registered: false}), []ToolID{a}},
		{"unknown hash", registry, []ToolID{DeriveToolID("NOT_A_TOOL")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := ComputePrice(tt.ids, tt.registry, 10)
			if !errors.Is(err, ErrUnregisteredTool) {
				t.Fatalf("expected ErrUnregisteredTool, got %v", err)
			}
			if quote != nil {
				t.Error("expected nil quote on error")
			}
		})
	}
}

func TestComputePrice_DuplicatesCollapsedForDiscount(t *testing.T) {
	registry, a, b, c := scenarioRegistry()

	quote, err := ComputePrice([]ToolID{a, b, c, a}, registry, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.IsFullBundleDiscount {
		t.Error("expected duplicates to still count as full set")
	}
	// 5+5+7+5 = 22, discounted 19.8
	if quote.Subtotal.Cmp(big.NewInt(22_000_000)) != 0 {
		t.Errorf("expected subtotal 22000000, got %s", quote.Subtotal)
	}
	if quote.FinalPrice.Cmp(big.NewInt(19_800_000)) != 0 {
		t.Errorf("expected final price 19800000, got %s", quote.FinalPrice)
	}

	quote, err = ComputePrice([]ToolID{a, a, b}, registry, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.IsFullBundleDiscount {
		t.Error("expected no discount for duplicated subset")
	}
}

func TestComputePrice_Truncation(t *testing.T) {
	a := MetadataAnalysis.ID()
	registry := NewRegistry(PriceEntry{ID: a, Price: big.NewInt(999), Registered: true})

	quote, err := ComputePrice([]ToolID{a}, registry, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 999 * 85 / 100 = 849.15 -> 849
	if quote.FinalPrice.Cmp(big.NewInt(849)) != 0 {
		t.Errorf("expected truncated 849, got %s", quote.FinalPrice)
	}
}

func TestComputePrice_LargeValues(t *testing.T) {
	a := MetadataAnalysis.ID()
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	registry := NewRegistry(PriceEntry{ID: a, Price: huge, Registered: true})

	quote, err := ComputePrice([]ToolID{a}, registry, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.FinalPrice.Cmp(huge) != 0 {
		t.Errorf("expected precision preserved, got %s", quote.FinalPrice)
	}
}

func TestComputePrice_InvalidDiscount(t *testing.T) {
	registry, a, _, _ := scenarioRegistry()
	for _, d := range []int64{-1, 101} {
		if _, err := ComputePrice([]ToolID{a}, registry, d); !errors.Is(err, ErrInvalidDiscount) {
			t.Errorf("discount %d: expected ErrInvalidDiscount, got %v", d, err)
		}
	}
}

func TestComputePrice_DoesNotMutateRegistry(t *testing.T) {
	registry, a, b, c := scenarioRegistry()
	if _, err := ComputePrice([]ToolID{a, b, c}, registry, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registry[a].Price.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Errorf("registry price mutated: %s", registry[a].Price)
	}
}
