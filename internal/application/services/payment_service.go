package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/repositories"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/ethereum"
)

// settleWriteTimeout bounds the status write that records a settlement
const settleWriteTimeout = 10 * time.Second

var (
	// ErrPaymentInFlight is returned while a previous payment of the same
	// wallet has not settled
	ErrPaymentInFlight = errors.New("a payment for this wallet is already in flight")

	// ErrPaymentNotFound is returned for unknown payment ids
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidWallet is returned for malformed wallet addresses
	ErrInvalidWallet = errors.New("invalid wallet address")

	// ErrEmptySelection is returned when no tool was selected
	ErrEmptySelection = errors.New("no tools selected")

	// ErrInvalidSignedTx is returned when the signed transaction is malformed
	// or does not pay for the requested tools
	ErrInvalidSignedTx = errors.New("invalid signed transaction")
)

// SubmitPaymentRequest holds a purchase request. SignedTx is the wallet's
// signed payForTools transaction, hex encoded.
type SubmitPaymentRequest struct {
	UserID   *string  `json:"user_id,omitempty"`
	Wallet   string   `json:"wallet"`
	Tools    []string `json:"tools"`
	SignedTx string   `json:"signed_tx"`
}

// PaymentService relays wallet-signed payForTools transactions and tracks
// their settlement
type PaymentService struct {
	contract ToolsContract
	pricing  *PricingService
	payments repositories.PaymentRepository
	recorder MetricsRecorder
	config   config.ContractConfig
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	contract ToolsContract,
	pricingService *PricingService,
	payments repositories.PaymentRepository,
	recorder MetricsRecorder,
	cfg config.ContractConfig,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		contract: contract,
		pricing:  pricingService,
		payments: payments,
		recorder: recorderOrNop(recorder),
		config:   cfg,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// acquire marks wallet as busy until the returned func is called
func (s *PaymentService) acquire(wallet string) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[wallet]; busy {
		return nil, false
	}
	s.inFlight[wallet] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.inFlight, wallet)
		s.mu.Unlock()
	}, true
}

// Submit prices the selection, checks the signed transaction and the on-chain
// quote, relays the transaction and waits for settlement. The stored payment
// is returned in every case where one was created; failures also return a
// *ContractCallError. A payment whose settlement could not be observed in
// time stays pending and is returned without error.
func (s *PaymentService) Submit(ctx context.Context, req SubmitPaymentRequest) (*entities.Payment, error) {
	if !common.IsHexAddress(req.Wallet) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWallet, req.Wallet)
	}
	payer := common.HexToAddress(req.Wallet)
	wallet := strings.ToLower(payer.Hex())

	names, err := pricing.ParseToolNames(req.Tools)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrEmptySelection
	}

	tx, err := ethereum.DecodeSignedTx(req.SignedTx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignedTx, err)
	}

	release, ok := s.acquire(wallet)
	if !ok {
		return nil, ErrPaymentInFlight
	}
	defer release()

	if err := s.pricing.requireContract(); err != nil {
		return nil, err
	}
	if err := s.checkPending(ctx, wallet); err != nil {
		return nil, err
	}

	token := common.HexToAddress(s.config.PaymentToken)
	ids := pricing.IDs(names)

	if err := ethereum.VerifyPayForTools(tx, s.contract.ChainID(), s.contract.Address(), payer, token, ids); err != nil {
		if errors.Is(err, ethereum.ErrPayerMismatch) {
			return nil, classify(err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignedTx, err)
	}

	local, err := s.pricing.compute(ctx, names)
	if err != nil {
		return nil, err
	}

	tools := make([]string, len(names))
	for i, name := range names {
		tools[i] = string(name)
	}

	txHash := tx.Hash().Hex()
	payment := &entities.Payment{
		ID:                   uuid.NewString(),
		UserID:               req.UserID,
		WalletAddress:        wallet,
		TokenAddress:         strings.ToLower(token.Hex()),
		Tools:                tools,
		Subtotal:             local.Subtotal.String(),
		FinalPrice:           local.FinalPrice.String(),
		IsFullBundleDiscount: local.IsFullBundleDiscount,
		TxHash:               &txHash,
		Status:               entities.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	logger := s.logger.With(
		zap.String("payment_id", payment.ID),
		zap.String("wallet", wallet),
		zap.String("tx_hash", txHash),
	)

	// Once the row exists the outcome is recorded even if the caller leaves
	settleCtx, cancel := s.settleContext(ctx)
	defer cancel()

	onchain, err := s.contract.GetToolsPrice(settleCtx, token, ids)
	if err != nil {
		return s.settleFailed(logger, payment, classify(err))
	}
	if onchain.Subtotal.Cmp(local.Subtotal) != 0 ||
		onchain.FinalPrice.Cmp(local.FinalPrice) != 0 ||
		onchain.IsFullBundleDiscount != local.IsFullBundleDiscount {
		mismatch := &ContractCallError{
			Kind: entities.PaymentErrorPriceMismatch,
			Err: fmt.Errorf("price mismatch: quoted %s, contract %s",
				local.FinalPrice, onchain.FinalPrice),
		}
		return s.settleFailed(logger, payment, mismatch)
	}

	if _, err := s.contract.SendTransaction(settleCtx, tx); err != nil {
		if unsettled(err) {
			logger.Warn("Payment left pending", zap.Error(err))
			return payment, nil
		}
		return s.settleFailed(logger, payment, classify(err))
	}
	logger.Info("Payment submitted")

	if err := s.contract.WaitForReceipt(settleCtx, tx.Hash()); err != nil {
		if unsettled(err) {
			logger.Warn("Payment left pending", zap.Error(err))
			return payment, nil
		}
		return s.settleFailed(logger, payment, classify(err))
	}

	return s.settleConfirmed(logger, payment)
}

// checkPending blocks a wallet whose previous payment is still pending. A
// pending row whose transaction has since settled is brought up to date first.
func (s *PaymentService) checkPending(ctx context.Context, wallet string) error {
	pending, err := s.payments.LatestPending(ctx, wallet)
	if err != nil {
		return fmt.Errorf("failed to check pending payments: %w", err)
	}
	if pending == nil {
		return nil
	}

	if s.reconcile(ctx, pending).Status == entities.PaymentStatusPending {
		return fmt.Errorf("%w: payment %s is pending", ErrPaymentInFlight, pending.ID)
	}
	return nil
}

// reconcile settles a pending payment from the current state of its
// transaction. Lookup failures leave it pending.
func (s *PaymentService) reconcile(ctx context.Context, payment *entities.Payment) *entities.Payment {
	if payment.Status != entities.PaymentStatusPending || payment.TxHash == nil || s.contract == nil {
		return payment
	}

	logger := s.logger.With(zap.String("payment_id", payment.ID), zap.String("tx_hash", *payment.TxHash))

	status, err := s.contract.TransactionStatus(ctx, common.HexToHash(*payment.TxHash))
	if err != nil {
		logger.Warn("Failed to look up payment transaction", zap.Error(err))
		return payment
	}

	switch status {
	case ethereum.TxConfirmed:
		payment, _ = s.settleConfirmed(logger, payment)
	case ethereum.TxReverted:
		payment, _ = s.settleFailed(logger, payment, classify(fmt.Errorf("transaction %s reverted", *payment.TxHash)))
	case ethereum.TxDropped:
		payment, _ = s.settleFailed(logger, payment, classify(fmt.Errorf("transaction %s was dropped", *payment.TxHash)))
	}
	return payment
}

// settleContext outlives ctx's cancellation but not the transaction timeout
func (s *PaymentService) settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.config.TxTimeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, s.config.TxTimeout)
}

// unsettled reports whether err only means the outcome was not observed
func unsettled(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (s *PaymentService) settleConfirmed(logger *zap.Logger, payment *entities.Payment) (*entities.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), settleWriteTimeout)
	defer cancel()

	payment.Status = entities.PaymentStatusConfirmed
	if err := s.payments.UpdateSettlement(ctx, payment.ID, payment.Status, payment.TxHash, nil, nil); err != nil {
		return payment, fmt.Errorf("payment %s confirmed on-chain but not recorded: %w", payment.ID, err)
	}
	s.recorder.PaymentSettled(payment.Status, "")

	logger.Info("Payment confirmed")
	return payment, nil
}

func (s *PaymentService) settleFailed(logger *zap.Logger, payment *entities.Payment, callErr *ContractCallError) (*entities.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), settleWriteTimeout)
	defer cancel()

	kind := string(callErr.Kind)
	msg := callErr.Err.Error()

	payment.Status = entities.PaymentStatusFailed
	payment.ErrorKind = &kind
	payment.ErrorMessage = &msg

	if err := s.payments.UpdateSettlement(ctx, payment.ID, payment.Status, payment.TxHash, &kind, &msg); err != nil {
		logger.Error("Failed to record payment failure", zap.Error(err))
	}
	s.recorder.PaymentSettled(payment.Status, callErr.Kind)

	logger.Warn("Payment failed", zap.String("kind", kind), zap.Error(callErr.Err))
	return payment, callErr
}

// Get returns a payment or ErrPaymentNotFound. A pending payment is
// refreshed from its transaction when possible.
func (s *PaymentService) Get(ctx context.Context, id string) (*entities.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	return s.reconcile(ctx, payment), nil
}
