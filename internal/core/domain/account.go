package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds an owner's internal balance credited by settled deposits.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BalanceEntryType represents the kind of balance movement.
type BalanceEntryType string

const (
	BalanceEntryDeposit BalanceEntryType = "deposit"
)

// BalanceEntry is an immutable balance-history record with before/after
// snapshots. PaymentRef carries the public payment id of the deposit that
// produced the entry; it is unique per payment, which makes settlement
// crediting idempotent at the storage level.
type BalanceEntry struct {
	ID            uuid.UUID        `json:"id"`
	AccountID     uuid.UUID        `json:"account_id"`
	EntryType     BalanceEntryType `json:"entry_type"`
	Amount        decimal.Decimal  `json:"amount"`
	BalanceBefore decimal.Decimal  `json:"balance_before"`
	BalanceAfter  decimal.Decimal  `json:"balance_after"`
	PaymentRef    string           `json:"payment_ref"`
	Description   string           `json:"description"`
	CreatedAt     time.Time        `json:"created_at"`
}
