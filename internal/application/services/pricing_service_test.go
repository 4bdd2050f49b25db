package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/ethereum"
	"github.com/wowseoweb3/dashboard-indexer/internal/testutil"
)

type stubTokenReader struct{}

func (stubTokenReader) Metadata(ctx context.Context, token common.Address) *ethereum.TokenMetadata {
	return &ethereum.TokenMetadata{Address: token.Hex(), Name: "USD Coin", Symbol: "USDC", Decimals: 6}
}

type pricingFixture struct {
	service  *PricingService
	contract *testutil.MockToolsContract
	state    *ContractState
	prices   *testutil.MockToolPriceRepository
}

var contractConfig = config.ContractConfig{
	Address:         testutil.ContractAddress,
	PaymentToken:    testutil.USDCAddress,
	DiscountPercent: 10,
}

// setupPricingService registers three tools at 5, 5 and 7 USDC and syncs
// the mirror
func setupPricingService(t *testing.T) *pricingFixture {
	t.Helper()

	f := &pricingFixture{
		contract: testutil.NewMockToolsContract(),
		state:    NewContractState(),
		prices:   testutil.NewMockToolPriceRepository(),
	}
	f.contract.Register(pricing.MetadataAnalysis, 5_000_000)
	f.contract.Register(pricing.ContentOptimization, 5_000_000)
	f.contract.Register(pricing.KeywordAnalysis, 7_000_000)

	f.service = NewPricingService(f.contract, f.state, f.prices, stubTokenReader{}, contractConfig, zap.NewNop())

	if _, err := f.service.SyncRegistry(context.Background()); err != nil {
		t.Fatalf("failed to sync registry: %v", err)
	}
	return f
}

func TestQuote(t *testing.T) {
	f := setupPricingService(t)

	tests := []struct {
		name         string
		tools        []string
		subtotal     string
		final        string
		display      string
		fullDiscount bool
	}{
		{
			name:         "full bundle gets the discount",
			tools:        []string{"METADATA_ANALYSIS", "CONTENT_OPTIMIZATION", "KEYWORD_ANALYSIS"},
			subtotal:     "17000000",
			final:        "15300000",
			display:      "15.3",
			fullDiscount: true,
		},
		{
			name:     "partial selection pays full price",
			tools:    []string{"METADATA_ANALYSIS", "KEYWORD_ANALYSIS"},
			subtotal: "12000000",
			final:    "12000000",
			display:  "12",
		},
		{
			name:     "duplicates are charged per entry",
			tools:    []string{"METADATA_ANALYSIS", "METADATA_ANALYSIS"},
			subtotal: "10000000",
			final:    "10000000",
			display:  "10",
		},
		{
			name:     "empty selection",
			tools:    []string{},
			subtotal: "0",
			final:    "0",
			display:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := f.service.Quote(context.Background(), tt.tools)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if quote.Subtotal != tt.subtotal {
				t.Errorf("expected subtotal %s, got %s", tt.subtotal, quote.Subtotal)
			}
			if quote.FinalPrice != tt.final {
				t.Errorf("expected final price %s, got %s", tt.final, quote.FinalPrice)
			}
			if quote.FinalPriceDisplay != tt.display {
				t.Errorf("expected display %s, got %s", tt.display, quote.FinalPriceDisplay)
			}
			if quote.IsFullBundleDiscount != tt.fullDiscount {
				t.Errorf("expected full bundle %v, got %v", tt.fullDiscount, quote.IsFullBundleDiscount)
			}
			if quote.Symbol != "USDC" || quote.Decimals != 6 {
				t.Errorf("unexpected token metadata: %s/%d", quote.Symbol, quote.Decimals)
			}
		})
	}
}

func TestQuote_Errors(t *testing.T) {
	f := setupPricingService(t)
	ctx := context.Background()

	if _, err := f.service.Quote(ctx, []string{"TECHNICAL_SEO"}); !errors.Is(err, pricing.ErrUnregisteredTool) {
		t.Errorf("expected ErrUnregisteredTool, got %v", err)
	}
	if _, err := f.service.Quote(ctx, []string{"metadata_analysis"}); !errors.Is(err, pricing.ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool for a lower-cased name, got %v", err)
	}
}

func TestQuote_WithoutMetadataReader(t *testing.T) {
	prices := testutil.NewMockToolPriceRepository()
	_ = prices.UpsertAll(context.Background(), []entities.ToolPrice{
		{ToolID: pricing.TechnicalSEO.ID().Hex(), Name: string(pricing.TechnicalSEO), Price: "2500000000000000000", Registered: true},
	})
	service := NewPricingService(nil, NewContractState(), prices, nil, contractConfig, zap.NewNop())

	quote, err := service.Quote(context.Background(), []string{"TECHNICAL_SEO"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Symbol != "UNK" || quote.Decimals != 18 || quote.FinalPriceDisplay != "2.25" {
		t.Errorf("unexpected fallback quote: %+v", quote)
	}
	if !quote.IsFullBundleDiscount {
		t.Error("the only registered tool is the full bundle")
	}
}

func TestSyncRegistry(t *testing.T) {
	f := setupPricingService(t)

	if f.state.Status().Mode != ContractConnected {
		t.Errorf("expected connected after sync, got %s", f.state.Status().Mode)
	}

	tools, err := f.service.ListTools(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != len(pricing.AllTools) {
		t.Fatalf("expected %d tools, got %d", len(pricing.AllTools), len(tools))
	}

	registered := 0
	for _, tool := range tools {
		if tool.Registered {
			registered++
		}
		if tool.Name == pricing.KeywordAnalysis && tool.Price != "7000000" {
			t.Errorf("expected KEYWORD_ANALYSIS at 7000000, got %s", tool.Price)
		}
		if tool.ID != tool.Name.ID().Hex() {
			t.Errorf("unexpected id for %s: %s", tool.Name, tool.ID)
		}
	}
	if registered != 3 {
		t.Errorf("expected 3 registered tools, got %d", registered)
	}
}

func TestSyncRegistry_FailureDegradesContract(t *testing.T) {
	f := setupPricingService(t)
	f.contract.IsToolRegisteredFunc = func(ctx context.Context, id pricing.ToolID) (bool, error) {
		return false, errors.New("dial tcp: connection refused")
	}

	if _, err := f.service.SyncRegistry(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	status := f.state.Status()
	if status.Mode != ContractDegraded || status.Reason == "" {
		t.Errorf("expected degraded with a reason, got %+v", status)
	}

	// The mirror still serves quotes
	quote, err := f.service.Quote(context.Background(), []string{"METADATA_ANALYSIS"})
	if err != nil || quote.FinalPrice != "5000000" {
		t.Errorf("expected quote from the mirror, got %v, %v", quote, err)
	}
}

func TestSyncRegistry_Disabled(t *testing.T) {
	service := NewPricingService(nil, NewContractState(), testutil.NewMockToolPriceRepository(), nil, contractConfig, zap.NewNop())

	if _, err := service.SyncRegistry(context.Background()); !errors.Is(err, ErrContractUnavailable) {
		t.Errorf("expected ErrContractUnavailable, got %v", err)
	}
}

func TestSetToolPrice(t *testing.T) {
	f := setupPricingService(t)

	result, err := f.service.SetToolPrice(context.Background(), "TECHNICAL_SEO", "3000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tool != pricing.TechnicalSEO || result.Price != "3000000" || result.TxHash == "" {
		t.Errorf("unexpected result: %+v", result)
	}

	// The mirror was refreshed, so the new tool joins the full bundle
	quote, err := f.service.Quote(context.Background(), []string{
		"METADATA_ANALYSIS", "CONTENT_OPTIMIZATION", "KEYWORD_ANALYSIS", "TECHNICAL_SEO",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Subtotal != "20000000" || quote.FinalPrice != "18000000" {
		t.Errorf("unexpected quote after price change: %+v", quote)
	}
}

func TestSetToolPrice_Errors(t *testing.T) {
	t.Run("invalid price", func(t *testing.T) {
		f := setupPricingService(t)
		for _, price := range []string{"0", "-5", "1.5", "abc"} {
			if _, err := f.service.SetToolPrice(context.Background(), "TECHNICAL_SEO", price); !errors.Is(err, ErrInvalidPrice) {
				t.Errorf("price %q: expected ErrInvalidPrice, got %v", price, err)
			}
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		f := setupPricingService(t)
		if _, err := f.service.SetToolPrice(context.Background(), "NOPE", "1"); !errors.Is(err, pricing.ErrUnknownTool) {
			t.Errorf("expected ErrUnknownTool, got %v", err)
		}
	})

	t.Run("missing role", func(t *testing.T) {
		f := setupPricingService(t)
		f.contract.SetToolPriceFunc = func(ctx context.Context, id pricing.ToolID, price *big.Int) (common.Hash, error) {
			return common.Hash{}, errors.New("execution reverted: AccessControl: account is missing role")
		}

		_, err := f.service.SetToolPrice(context.Background(), "TECHNICAL_SEO", "1")
		var callErr *ContractCallError
		if !errors.As(err, &callErr) {
			t.Fatalf("expected ContractCallError, got %v", err)
		}
		if callErr.Kind != entities.PaymentErrorPermissionDenied {
			t.Errorf("expected permission_denied, got %s", callErr.Kind)
		}
	})

	t.Run("degraded contract", func(t *testing.T) {
		f := setupPricingService(t)
		f.state.Degrade(testutil.ContractAddress, "rpc down")

		if _, err := f.service.SetToolPrice(context.Background(), "TECHNICAL_SEO", "1"); !errors.Is(err, ErrContractUnavailable) {
			t.Errorf("expected ErrContractUnavailable, got %v", err)
		}
		if f.contract.CallCount("SetToolPrice") != 0 {
			t.Error("no transaction should be sent while degraded")
		}
	})

	t.Run("read-only binding", func(t *testing.T) {
		f := setupPricingService(t)
		f.contract.Signer = false

		if _, err := f.service.SetToolPrice(context.Background(), "TECHNICAL_SEO", "1"); !errors.Is(err, ErrContractUnavailable) {
			t.Errorf("expected ErrContractUnavailable, got %v", err)
		}
	})
}
