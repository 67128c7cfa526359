package ports

import (
	"context"

	"github.com/Kdero/trustx/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PaymentRepository defines persistence operations for payment intents.
// Payments are audit records: they are created once and mutated only through
// Update/UpdateStatus, never deleted.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Payment, error)
	// ListOpen returns payments still subject to reconciliation
	// (status pending or confirming), oldest first.
	ListOpen(ctx context.Context) ([]domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
}

// TransferRepository is the append-only ledger of observed on-chain transfers,
// deduplicated by transaction hash.
type TransferRepository interface {
	// RecordIfNew atomically inserts the record unless a record with the same
	// tx hash already exists. Returns created=false and the existing record
	// untouched on a duplicate, which makes re-polls a no-op.
	RecordIfNew(ctx context.Context, record *domain.TransferRecord) (created bool, existing *domain.TransferRecord, err error)
	// MarkProcessed sets processed=true and links the record to a payment.
	// Fails with an AlreadyProcessed error if the record was already processed
	// for a different payment.
	MarkProcessed(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error
	// RefreshConfirmations updates the observed confirmation count of a record
	// that has not been processed yet.
	RefreshConfirmations(ctx context.Context, id uuid.UUID, confirmations int64) error
	GetByTxHash(ctx context.Context, txHash string) (*domain.TransferRecord, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.TransferRecord, error)
}

// BalanceRepository defines persistence for owner accounts and the
// balance-history log. Locking reads and balance writes take a pgx.Tx so the
// credit is an atomic read-modify-write.
type BalanceRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// GetAccountForUpdate locks the account row. Must run inside tx.
	GetAccountForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance decimal.Decimal) error
	CreateEntry(ctx context.Context, tx pgx.Tx, entry *domain.BalanceEntry) error
	// HasEntryForPayment reports whether a balance entry referencing the given
	// public payment id already exists. Used as the settlement double-credit
	// guard in addition to the state machine's single completion edge.
	HasEntryForPayment(ctx context.Context, paymentRef string) (bool, error)
	ListEntries(ctx context.Context, accountID uuid.UUID) ([]domain.BalanceEntry, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
