package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kdero/trustx/internal/core/domain"
	"github.com/Kdero/trustx/internal/core/ports"
	"github.com/Kdero/trustx/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxIDAttempts bounds the payment id collision retry loop. The id space is
// 36^8; more than a couple of collisions means the generator is broken.
const maxIDAttempts = 5

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	paymentRepo   ports.PaymentRepository
	transferRepo  ports.TransferRepository
	reconciler    ports.Reconciler
	settlement    ports.SettlementService
	walletAddress string
	defaultExpiry time.Duration
	log           zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	transferRepo ports.TransferRepository,
	reconciler ports.Reconciler,
	settlement ports.SettlementService,
	walletAddress string,
	defaultExpiry time.Duration,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		paymentRepo:   paymentRepo,
		transferRepo:  transferRepo,
		reconciler:    reconciler,
		settlement:    settlement,
		walletAddress: walletAddress,
		defaultExpiry: defaultExpiry,
		log:           log,
	}
}

// Create registers a new payment intent with a fresh public identifier.
func (s *PaymentServiceImpl) Create(ctx context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Currency.IsValid() {
		return nil, apperror.ErrInvalidCurrency()
	}

	expiry := req.Expiry
	if expiry <= 0 {
		expiry = s.defaultExpiry
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:             uuid.New(),
		OwnerID:        req.OwnerID,
		Currency:       req.Currency,
		AmountExpected: req.Amount,
		AmountReceived: decimal.Zero,
		Status:         domain.PaymentStatusPending,
		Address:        s.walletAddress,
		Metadata:       req.Metadata,
		CallbackURL:    req.CallbackURL,
		ExpiresAt:      now.Add(expiry),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := domain.NewPaymentID()
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("generate payment id: %w", err))
		}

		existing, err := s.paymentRepo.GetByPaymentID(ctx, id)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("check payment id: %w", err))
		}
		if existing != nil {
			s.log.Warn().Str("payment_id", id).Msg("payment id collision, retrying")
			continue
		}

		payment.PaymentID = id
		if err := s.paymentRepo.Create(ctx, payment); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("create payment: %w", err))
		}

		s.log.Info().
			Str("payment_id", id).
			Str("currency", string(payment.Currency)).
			Str("amount", payment.AmountExpected.String()).
			Time("expires_at", payment.ExpiresAt).
			Msg("payment created")

		return payment, nil
	}

	return nil, apperror.ErrPaymentIDExhausted()
}

// GetStatus runs a synchronous reconciliation check for an open payment, then
// returns the current snapshot. An indexer hiccup degrades to returning the
// stored state rather than failing the lookup.
func (s *PaymentServiceImpl) GetStatus(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.find(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.IsOpen() {
		if _, err := s.reconciler.CheckPayment(ctx, payment); err != nil {
			s.log.Warn().Err(err).Str("payment_id", paymentID).Msg("synchronous recheck failed, returning stored state")
		}
	}

	return payment, nil
}

// GetDetail returns the payment with its linked transfer log.
func (s *PaymentServiceImpl) GetDetail(ctx context.Context, paymentID string) (*domain.Payment, []domain.TransferRecord, error) {
	payment, err := s.find(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}

	transfers, err := s.transferRepo.ListByPayment(ctx, payment.ID)
	if err != nil {
		return nil, nil, apperror.ErrDatabaseError(fmt.Errorf("list payment transfers: %w", err))
	}

	return payment, transfers, nil
}

// ListByOwner returns all payments for an owner, newest first.
func (s *PaymentServiceImpl) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Payment, error) {
	payments, err := s.paymentRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list payments: %w", err))
	}
	return payments, nil
}

// ForceComplete is the administrative approve path: it completes the payment
// and settles it as if the expected amount had been received. No-op on a
// payment already in a terminal state.
func (s *PaymentServiceImpl) ForceComplete(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.find(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.IsTerminal() {
		s.log.Info().Str("payment_id", paymentID).Str("status", string(payment.Status)).Msg("force-complete on terminal payment ignored")
		return payment, nil
	}

	now := time.Now().UTC()
	payment.Status = domain.PaymentStatusCompleted
	payment.CompletedAt = &now
	payment.UpdatedAt = now

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("persist force-complete: %w", err))
	}

	if err := s.settlement.Settle(ctx, payment); err != nil {
		return nil, err
	}

	s.log.Info().Str("payment_id", paymentID).Msg("payment force-completed")
	return payment, nil
}

// ForceFail is the administrative reject path. No-op on a terminal payment.
func (s *PaymentServiceImpl) ForceFail(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.find(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.IsTerminal() {
		s.log.Info().Str("payment_id", paymentID).Str("status", string(payment.Status)).Msg("force-fail on terminal payment ignored")
		return payment, nil
	}

	now := time.Now().UTC()
	payment.Status = domain.PaymentStatusFailed
	payment.UpdatedAt = now

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("persist force-fail: %w", err))
	}

	s.log.Info().Str("payment_id", paymentID).Msg("payment force-failed")
	return payment, nil
}

func (s *PaymentServiceImpl) find(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	return payment, nil
}
