package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferRecord is an append-only ledger entry for an observed on-chain
// transfer. The chain transaction hash is globally unique: one on-chain
// transfer maps to at most one record, which is the dedup point that prevents
// double-crediting on re-poll.
type TransferRecord struct {
	ID            uuid.UUID       `json:"id"`
	TxHash        string          `json:"tx_hash"`
	FromAddress   string          `json:"from_address"`
	ToAddress     string          `json:"to_address"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	BlockNumber   int64           `json:"block_number"`
	Confirmations int64           `json:"confirmations"` // at observation time
	PaymentID     *uuid.UUID      `json:"payment_id,omitempty"`
	Processed     bool            `json:"processed"`
	CreatedAt     time.Time       `json:"created_at"`
}

// USDTDecimals is the fractional precision of TRC20 USDT.
const USDTDecimals = 6

// AmountFromRawTokenValue converts a raw integer token value (smallest unit,
// as reported by the indexer) to a decimal amount. USDT carries 6 decimals.
func AmountFromRawTokenValue(raw int64) decimal.Decimal {
	return decimal.New(raw, -USDTDecimals)
}
