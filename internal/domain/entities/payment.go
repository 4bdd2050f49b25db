package entities

import (
	"time"

	"github.com/lib/pq"
)

// PaymentStatus tracks the settlement of a payForTools transaction
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is one pay-per-tool purchase
type Payment struct {
	ID                   string         `db:"id" json:"id"`
	UserID               *string        `db:"user_id" json:"user_id,omitempty"`
	WalletAddress        string         `db:"wallet_address" json:"wallet_address"`
	TokenAddress         string         `db:"token_address" json:"token_address"`
	Tools                pq.StringArray `db:"tools" json:"tools"`
	Subtotal             string         `db:"subtotal" json:"subtotal"`
	FinalPrice           string         `db:"final_price" json:"final_price"`
	IsFullBundleDiscount bool           `db:"is_full_bundle_discount" json:"is_full_bundle_discount"`
	TxHash               *string        `db:"tx_hash" json:"tx_hash,omitempty"`
	Status               PaymentStatus  `db:"status" json:"status"`
	ErrorKind            *string        `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage         *string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// ToolPrice is the read-only mirror of the contract's toolPrices mapping
type ToolPrice struct {
	ToolID     string    `db:"tool_id" json:"tool_id"`
	Name       string    `db:"name" json:"name"`
	Price      string    `db:"price" json:"price"`
	Registered bool      `db:"registered" json:"registered"`
	SyncedAt   time.Time `db:"synced_at" json:"synced_at"`
}

// PaymentErrorKind is the human-readable classification of a failed payment
// or admin pricing call
type PaymentErrorKind string

const (
	PaymentErrorWalletRejected    PaymentErrorKind = "wallet_rejected"
	PaymentErrorInsufficientFunds PaymentErrorKind = "insufficient_funds"
	PaymentErrorPermissionDenied  PaymentErrorKind = "permission_denied"
	PaymentErrorPriceMismatch     PaymentErrorKind = "price_mismatch"
	PaymentErrorUnknown           PaymentErrorKind = "unknown"
)

// Message returns the user-facing description of the classification
func (k PaymentErrorKind) Message() string {
	switch k {
	case PaymentErrorWalletRejected:
		return "the transaction was rejected by the wallet"
	case PaymentErrorInsufficientFunds:
		return "insufficient token balance or allowance for this purchase"
	case PaymentErrorPermissionDenied:
		return "the signer is not allowed to perform this call"
	case PaymentErrorPriceMismatch:
		return "the on-chain price differs from the quoted price"
	default:
		return "the payment failed"
	}
}
