package domain

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency represents a supported deposit currency.
type Currency string

const (
	CurrencyUSDT Currency = "USDT"
	CurrencyTRX  Currency = "TRX"
)

// IsValid reports whether the currency is supported.
func (c Currency) IsValid() bool {
	return c == CurrencyUSDT || c == CurrencyTRX
}

// PaymentStatus represents the lifecycle state of a payment intent.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusConfirming PaymentStatus = "confirming"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusExpired    PaymentStatus = "expired"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Payment is an intent to receive an on-chain deposit to the shared address.
// It is an audit record: rows are never deleted, only advanced through the
// state machine by the reconciler (or by an explicit admin override).
type Payment struct {
	ID             uuid.UUID       `json:"-"`
	PaymentID      string          `json:"payment_id"` // public 8-char identifier
	OwnerID        *uuid.UUID      `json:"owner_id,omitempty"`
	Currency       Currency        `json:"currency"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Status         PaymentStatus   `json:"status"`
	Address        string          `json:"address"` // destination TRC20 address
	TxHash         *string         `json:"tx_hash,omitempty"`
	Confirmations  int64           `json:"confirmations"`
	Metadata       Metadata        `json:"metadata,omitempty"`
	CallbackURL    *string         `json:"callback_url,omitempty"`
	ExpiresAt      time.Time       `json:"expires_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsTerminal returns true if no further automatic transitions are allowed.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted ||
		p.Status == PaymentStatusExpired ||
		p.Status == PaymentStatusFailed
}

// IsOpen returns true if the reconciler should still poll this payment.
func (p *Payment) IsOpen() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusConfirming
}

// ExpireIfDue transitions a pending payment with no observed transfers to
// expired once its deadline has passed. Returns true if the status changed.
func (p *Payment) ExpireIfDue(now time.Time) bool {
	if p.Status != PaymentStatusPending {
		return false
	}
	if !now.After(p.ExpiresAt) {
		return false
	}
	p.Status = PaymentStatusExpired
	p.UpdatedAt = now
	return true
}

// RegisterTransfer folds one newly observed transfer into the payment and
// recomputes the status against the confirmation threshold. AmountReceived is
// monotonically non-decreasing and confirmations never move backwards.
// Returns true if the payment just reached the completed state.
func (p *Payment) RegisterTransfer(amount decimal.Decimal, confirmations int64, txHash string, minConfirmations int64, now time.Time) bool {
	if p.IsTerminal() {
		return false
	}

	p.AmountReceived = p.AmountReceived.Add(amount)
	if confirmations > p.Confirmations {
		p.Confirmations = confirmations
	}
	if p.TxHash == nil {
		p.TxHash = &txHash
	}
	p.UpdatedAt = now

	if p.Confirmations >= minConfirmations && p.AmountReceived.GreaterThanOrEqual(p.AmountExpected) {
		p.Status = PaymentStatusCompleted
		p.CompletedAt = &now
		return true
	}

	p.Status = PaymentStatusConfirming
	return false
}

// SyncWithLedger reconciles the payment's aggregates against the totals the
// linked ledger records actually hold. It raises AmountReceived and
// Confirmations to the ledger's values (never lowers them) and recomputes the
// status. This covers two cases: transfers applied on earlier cycles gaining
// confirmations as the chain advances, and a payment whose persist failed
// after its ledger records were committed. Returns whether anything changed
// and whether the payment just reached the completed state.
func (p *Payment) SyncWithLedger(total decimal.Decimal, confirmations int64, txHash string, minConfirmations int64, now time.Time) (changed, completed bool) {
	if p.IsTerminal() {
		return false, false
	}

	if total.GreaterThan(p.AmountReceived) {
		p.AmountReceived = total
		changed = true
	}
	if confirmations > p.Confirmations {
		p.Confirmations = confirmations
		changed = true
	}
	if !changed {
		return false, false
	}

	if p.TxHash == nil && txHash != "" {
		p.TxHash = &txHash
	}
	p.UpdatedAt = now

	if p.Confirmations >= minConfirmations && p.AmountReceived.IsPositive() && p.AmountReceived.GreaterThanOrEqual(p.AmountExpected) {
		p.Status = PaymentStatusCompleted
		p.CompletedAt = &now
		return true, true
	}

	p.Status = PaymentStatusConfirming
	return true, false
}

const paymentIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// PaymentIDLength is the length of the public payment identifier.
const PaymentIDLength = 8

// NewPaymentID generates a random 8-character public payment identifier.
// The space is large but not collision-free; callers retry on conflict.
func NewPaymentID() (string, error) {
	buf := make([]byte, PaymentIDLength)
	max := big.NewInt(int64(len(paymentIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = paymentIDAlphabet[n.Int64()]
	}
	return string(buf), nil
}
