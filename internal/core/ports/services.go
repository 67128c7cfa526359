package ports

import (
	"context"
	"time"

	"github.com/Kdero/trustx/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Service Ports (Business Logic) ---

// PaymentService is the registry of payment intents: creation, lookups and
// the privileged admin overrides.
type PaymentService interface {
	Create(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error)
	// GetStatus runs a synchronous reconciliation check for the payment before
	// returning the current snapshot.
	GetStatus(ctx context.Context, paymentID string) (*domain.Payment, error)
	// GetDetail returns the payment with its linked transfer log, without
	// triggering a reconciliation pass.
	GetDetail(ctx context.Context, paymentID string) (*domain.Payment, []domain.TransferRecord, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Payment, error)
	// ForceComplete is the administrative approve path: it completes the
	// payment and settles it as if the expected amount had been received.
	// No-op on a payment already in a terminal state.
	ForceComplete(ctx context.Context, paymentID string) (*domain.Payment, error)
	// ForceFail is the administrative reject path. No-op on a terminal payment.
	ForceFail(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// CreatePaymentRequest holds validated input for payment creation.
type CreatePaymentRequest struct {
	OwnerID     *uuid.UUID
	Currency    domain.Currency
	Amount      decimal.Decimal
	Metadata    domain.Metadata
	CallbackURL *string
	Expiry      time.Duration // zero means the configured default
}

// Reconciler drives the polling/reconciliation loop.
type Reconciler interface {
	// Run polls on a fixed interval until ctx is cancelled. In-flight
	// per-payment work finishes before the loop returns.
	Run(ctx context.Context)
	// RunOnce performs one full pass over all open payments. Per-payment
	// failures are logged and never abort the batch.
	RunOnce(ctx context.Context)
	// CheckPayment reconciles a single payment: expiry, transfer discovery,
	// ledger dedup, state advancement and settlement on completion.
	// Returns true if the payment changed.
	CheckPayment(ctx context.Context, payment *domain.Payment) (bool, error)
}

// SettlementService performs the terminal credit and callback delivery.
type SettlementService interface {
	// Settle credits the owner's balance by the expected amount, appends a
	// balance-history entry and fires the callback if one is configured.
	// Idempotent: a payment that already produced a balance entry is skipped.
	Settle(ctx context.Context, payment *domain.Payment) error
}

// TransferSeenCache is a best-effort fast path in front of the ledger's
// hash-uniqueness check. A miss or an error always falls through to the
// authoritative check-and-insert.
type TransferSeenCache interface {
	Seen(ctx context.Context, txHash string) (bool, error)
	MarkSeen(ctx context.Context, txHash string, ttl time.Duration) error
}

// ReconcileLock serialises reconciliation per payment so two pollers (or a
// tick overlapping a synchronous status check) never interleave work on the
// same payment.
type ReconcileLock interface {
	// Acquire returns true if the lock was taken.
	Acquire(ctx context.Context, paymentID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, paymentID string) error
}
