package ethereum

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// IsRetryable reports whether an RPC error is transient: network failures,
// timeouts, rate limiting and gateway errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

var retryableMarkers = []string{
	"timeout",
	"deadline exceeded",
	"429",
	"too many requests",
	"rate limit",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"connection reset",
	"connection refused",
	"eof",
	"header not found",
}

// backoff returns the wait before retry number attempt (1-based), doubling
// from base up to max with +/-25% jitter
func backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 || base <= 0 {
		return 0
	}

	d := float64(base) * math.Pow(2, float64(attempt-1))
	if max > 0 && d > float64(max) {
		d = float64(max)
	}

	jitter := d * 0.25
	d += rand.Float64()*2*jitter - jitter
	if d < 0 {
		d = 0
	}

	return time.Duration(d)
}

// ClassifyPaymentError maps wallet and contract failures to a payment error
// kind. The original error is always kept alongside the classification.
func ClassifyPaymentError(err error) entities.PaymentErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrPayerMismatch) {
		return entities.PaymentErrorWalletRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"),
		strings.Contains(msg, "rejected by user"),
		strings.Contains(msg, "action_rejected"):
		return entities.PaymentErrorWalletRejected
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient balance"),
		strings.Contains(msg, "insufficient allowance"),
		strings.Contains(msg, "exceeds balance"),
		strings.Contains(msg, "exceeds allowance"):
		return entities.PaymentErrorInsufficientFunds
	case strings.Contains(msg, "accesscontrol"),
		strings.Contains(msg, "missing role"),
		strings.Contains(msg, "not authorized"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "caller is not"):
		return entities.PaymentErrorPermissionDenied
	case strings.Contains(msg, "price mismatch"):
		return entities.PaymentErrorPriceMismatch
	default:
		return entities.PaymentErrorUnknown
	}
}
