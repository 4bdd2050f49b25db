package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/ethereum"
)

// ErrInvalidPrice is returned for prices that are not positive integers
var ErrInvalidPrice = errors.New("price must be a positive integer in the token's smallest unit")

// ContractCallError is a classified failure of a contract write
type ContractCallError struct {
	Kind entities.PaymentErrorKind
	Err  error
}

func (e *ContractCallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind.Message(), e.Err)
}

func (e *ContractCallError) Unwrap() error {
	return e.Err
}

func classify(err error) *ContractCallError {
	return &ContractCallError{Kind: ethereum.ClassifyPaymentError(err), Err: err}
}

// ToolInfo is a catalogue entry with its mirrored on-chain price
type ToolInfo struct {
	Name       pricing.ToolName `json:"name"`
	ID         string           `json:"id"`
	Price      string           `json:"price"`
	Registered bool             `json:"registered"`
	SyncedAt   *time.Time       `json:"synced_at,omitempty"`
}

// QuoteResult is a computed price with display metadata
type QuoteResult struct {
	Tools                []pricing.ToolName `json:"tools"`
	Token                string             `json:"token"`
	Symbol               string             `json:"symbol"`
	Decimals             uint8              `json:"decimals"`
	Subtotal             string             `json:"subtotal"`
	FinalPrice           string             `json:"final_price"`
	SubtotalDisplay      string             `json:"subtotal_display"`
	FinalPriceDisplay    string             `json:"final_price_display"`
	IsFullBundleDiscount bool               `json:"is_full_bundle_discount"`
	DiscountPercent      int64              `json:"discount_percent"`
}

// SetPriceResult is returned by a successful setToolPrice call
type SetPriceResult struct {
	Tool   pricing.ToolName `json:"tool"`
	ID     string           `json:"id"`
	Price  string           `json:"price"`
	TxHash string           `json:"tx_hash"`
}

// PricingService quotes tool bundles from the mirrored registry and manages
// on-chain prices
type PricingService struct {
	contract ToolsContract
	state    *ContractState
	prices   repositories.ToolPriceRepository
	metadata TokenMetadataReader
	config   config.ContractConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewPricingService creates a new pricing service. contract and metadata may
// be nil when the contract is disabled.
func NewPricingService(
	contract ToolsContract,
	state *ContractState,
	prices repositories.ToolPriceRepository,
	metadata TokenMetadataReader,
	cfg config.ContractConfig,
	logger *zap.Logger,
) *PricingService {
	return &PricingService{
		contract: contract,
		state:    state,
		prices:   prices,
		metadata: metadata,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// ListTools returns the catalogue joined with the price mirror
func (s *PricingService) ListTools(ctx context.Context) ([]ToolInfo, error) {
	rows, err := s.prices.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool prices: %w", err)
	}

	byID := make(map[string]entities.ToolPrice, len(rows))
	for _, row := range rows {
		byID[row.ToolID] = row
	}

	tools := make([]ToolInfo, 0, len(pricing.AllTools))
	for _, name := range pricing.AllTools {
		info := ToolInfo{Name: name, ID: name.ID().Hex(), Price: "0"}
		if row, ok := byID[info.ID]; ok {
			synced := row.SyncedAt
			info.Price = row.Price
			info.Registered = row.Registered
			info.SyncedAt = &synced
		}
		tools = append(tools, info)
	}

	return tools, nil
}

// registry builds the pricing registry from the mirror table
func (s *PricingService) registry(ctx context.Context) (pricing.Registry, error) {
	rows, err := s.prices.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool prices: %w", err)
	}

	registry := make(pricing.Registry, len(rows))
	for _, row := range rows {
		price, ok := new(big.Int).SetString(row.Price, 10)
		if !ok {
			return nil, fmt.Errorf("corrupt price %q for tool %s", row.Price, row.Name)
		}
		id := common.HexToHash(row.ToolID)
		registry[id] = pricing.PriceEntry{ID: id, Price: price, Registered: row.Registered}
	}

	return registry, nil
}

// compute prices names against the mirrored registry
func (s *PricingService) compute(ctx context.Context, names []pricing.ToolName) (*pricing.Quote, error) {
	registry, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}
	return pricing.ComputePrice(pricing.IDs(names), registry, s.config.DiscountPercent)
}

// Quote prices a tool selection in the configured payment token
func (s *PricingService) Quote(ctx context.Context, rawNames []string) (*QuoteResult, error) {
	names, err := pricing.ParseToolNames(rawNames)
	if err != nil {
		return nil, err
	}

	quote, err := s.compute(ctx, names)
	if err != nil {
		return nil, err
	}

	token := s.tokenMetadata(ctx)

	return &QuoteResult{
		Tools:                names,
		Token:                token.Address,
		Symbol:               token.Symbol,
		Decimals:             token.Decimals,
		Subtotal:             quote.Subtotal.String(),
		FinalPrice:           quote.FinalPrice.String(),
		SubtotalDisplay:      ethereum.FormatUnits(quote.Subtotal, token.Decimals),
		FinalPriceDisplay:    ethereum.FormatUnits(quote.FinalPrice, token.Decimals),
		IsFullBundleDiscount: quote.IsFullBundleDiscount,
		DiscountPercent:      s.config.DiscountPercent,
	}, nil
}

func (s *PricingService) tokenMetadata(ctx context.Context) *ethereum.TokenMetadata {
	token := common.HexToAddress(s.config.PaymentToken)
	if s.metadata != nil {
		return s.metadata.Metadata(ctx, token)
	}
	return &ethereum.TokenMetadata{
		Address:  token.Hex(),
		Name:     "Unknown",
		Symbol:   "UNK",
		Decimals: 18,
		Fallback: true,
	}
}

// SyncRegistry refreshes the price mirror from the contract
func (s *PricingService) SyncRegistry(ctx context.Context) ([]entities.ToolPrice, error) {
	if s.contract == nil {
		return nil, fmt.Errorf("%w: %s", ErrContractUnavailable, s.state.Status().Reason)
	}

	now := s.now().UTC()
	prices := make([]entities.ToolPrice, 0, len(pricing.AllTools))

	for _, name := range pricing.AllTools {
		id := name.ID()

		registered, err := s.contract.IsToolRegistered(ctx, id)
		if err != nil {
			s.state.Degrade(s.contract.Address().Hex(), err.Error())
			return nil, fmt.Errorf("failed to read registration of %s: %w", name, err)
		}

		price := big.NewInt(0)
		if registered {
			if price, err = s.contract.ToolPrice(ctx, id); err != nil {
				s.state.Degrade(s.contract.Address().Hex(), err.Error())
				return nil, fmt.Errorf("failed to read price of %s: %w", name, err)
			}
		}

		prices = append(prices, entities.ToolPrice{
			ToolID:     id.Hex(),
			Name:       string(name),
			Price:      price.String(),
			Registered: registered,
			SyncedAt:   now,
		})
	}

	if err := s.prices.UpsertAll(ctx, prices); err != nil {
		return nil, fmt.Errorf("failed to store tool prices: %w", err)
	}

	s.state.Connect(s.contract.Address().Hex())
	s.logger.Info("Synced tool price registry", zap.Int("tools", len(prices)))

	return prices, nil
}

// SetToolPrice sends setToolPrice and refreshes the mirror. Role failures
// come back as a ContractCallError with kind permission_denied.
func (s *PricingService) SetToolPrice(ctx context.Context, rawName, rawPrice string) (*SetPriceResult, error) {
	name, err := pricing.ParseToolName(rawName)
	if err != nil {
		return nil, err
	}

	price, ok := new(big.Int).SetString(rawPrice, 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, rawPrice)
	}

	if err := s.requireWritable(); err != nil {
		return nil, err
	}

	hash, err := s.contract.SetToolPrice(ctx, name.ID(), price)
	if err != nil {
		callErr := classify(err)
		s.logger.Warn("setToolPrice failed",
			zap.String("tool", string(name)),
			zap.String("kind", string(callErr.Kind)),
			zap.Error(err),
		)
		return nil, callErr
	}

	if _, err := s.SyncRegistry(ctx); err != nil {
		s.logger.Warn("Failed to refresh price mirror after setToolPrice", zap.Error(err))
	}

	return &SetPriceResult{
		Tool:   name,
		ID:     name.ID().Hex(),
		Price:  price.String(),
		TxHash: hash.Hex(),
	}, nil
}

func (s *PricingService) requireContract() error {
	if s.contract == nil || !s.state.Available() {
		status := s.state.Status()
		return fmt.Errorf("%w: %s %s", ErrContractUnavailable, status.Mode, status.Reason)
	}
	return nil
}

func (s *PricingService) requireWritable() error {
	if err := s.requireContract(); err != nil {
		return err
	}
	if !s.contract.HasSigner() {
		return fmt.Errorf("%w: %v", ErrContractUnavailable, ethereum.ErrNoSigner)
	}
	return nil
}
