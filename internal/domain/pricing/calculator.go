package pricing

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrUnregisteredTool is returned when a selected id has no registered price.
// The whole computation fails instead of pricing the tool at zero.
var ErrUnregisteredTool = errors.New("tool is not registered")

// ErrInvalidDiscount is returned for discount percentages outside [0,100]
var ErrInvalidDiscount = errors.New("discount percent must be within [0,100]")

// PriceEntry mirrors one row of the contract's toolPrices mapping
type PriceEntry struct {
	ID         ToolID
	Price      *big.Int
	Registered bool
}

// Registry maps tool ids to their on-chain price entries
type Registry map[ToolID]PriceEntry

// NewRegistry builds a registry from entries
func NewRegistry(entries ...PriceEntry) Registry {
	r := make(Registry, len(entries))
	for _, e := range entries {
		r[e.ID] = e
	}
	return r
}

// registeredCount returns how many entries carry the registered flag
func (r Registry) registeredCount() int {
	n := 0
	for _, e := range r {
		if e.Registered {
			n++
		}
	}
	return n
}

// Quote is the result of a price computation, in the token's smallest unit
type Quote struct {
	Subtotal             *big.Int
	FinalPrice           *big.Int
	IsFullBundleDiscount bool
}

// ComputePrice sums the registered prices of selected and applies the bundle
// discount only when the selection, as a set, equals the full set of
// registered tools. Every listed id is charged, duplicates included, which
// mirrors the contract's loop over the ids argument.
//
// finalPrice = subtotal * (100 - discountPercent) / 100, truncated.
func ComputePrice(selected []ToolID, registry Registry, discountPercent int64) (*Quote, error) {
	if discountPercent < 0 || discountPercent > 100 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDiscount, discountPercent)
	}

	subtotal := new(big.Int)
	unique := make(map[ToolID]struct{}, len(selected))

	for _, id := range selected {
		entry, ok := registry[id]
		if !ok || !entry.Registered || entry.Price == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnregisteredTool, describe(id))
		}
		subtotal.Add(subtotal, entry.Price)
		unique[id] = struct{}{}
	}

	full := len(unique) > 0 && len(unique) == registry.registeredCount()

	final := new(big.Int).Set(subtotal)
	if full {
		final.Mul(final, big.NewInt(100-discountPercent))
		final.Quo(final, big.NewInt(100))
	}

	return &Quote{
		Subtotal:             subtotal,
		FinalPrice:           final,
		IsFullBundleDiscount: full,
	}, nil
}

func describe(id ToolID) string {
	if name, ok := ToolByID(id); ok {
		return fmt.Sprintf("%s (%s)", name, id.Hex())
	}
	return id.Hex()
}
