package dto

import (
	"time"

	"github.com/Kdero/trustx/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CreatePaymentRequest is the request body for payment creation.
// Amount is a string so callers never lose precision to float parsing.
type CreatePaymentRequest struct {
	OwnerID       *string        `json:"owner_id,omitempty" binding:"omitempty,uuid"`
	Currency      string         `json:"currency" binding:"required,oneof=USDT TRX"`
	Amount        string         `json:"amount" binding:"required,deposit_amount"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CallbackURL   *string        `json:"callback_url,omitempty" binding:"omitempty,safe_url,max=2048"`
	ExpiryMinutes int            `json:"expiry_minutes,omitempty" binding:"omitempty,min=1,max=1440"`
}

// PaymentResponse is the payment snapshot returned by all payment endpoints.
type PaymentResponse struct {
	PaymentID      string          `json:"payment_id"`
	OwnerID        *string         `json:"owner_id,omitempty"`
	Currency       string          `json:"currency"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Status         string          `json:"status"`
	Address        string          `json:"address"`
	TxHash         *string         `json:"tx_hash,omitempty"`
	Confirmations  int64           `json:"confirmations"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CallbackURL    *string         `json:"callback_url,omitempty"`
	ExpiresAt      string          `json:"expires_at"`
	CompletedAt    *string         `json:"completed_at,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// TransferResponse is one ledger entry in a payment detail view.
type TransferResponse struct {
	TxHash        string          `json:"tx_hash"`
	FromAddress   string          `json:"from_address"`
	ToAddress     string          `json:"to_address"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BlockNumber   int64           `json:"block_number"`
	Confirmations int64           `json:"confirmations"`
	Processed     bool            `json:"processed"`
	CreatedAt     string          `json:"created_at"`
}

// PaymentDetailResponse is the payment with its linked transfer log.
type PaymentDetailResponse struct {
	Payment   PaymentResponse    `json:"payment"`
	Transfers []TransferResponse `json:"transfers"`
}

// ToPaymentResponse maps a domain payment to its API representation.
func ToPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		PaymentID:      p.PaymentID,
		Currency:       string(p.Currency),
		AmountExpected: p.AmountExpected,
		AmountReceived: p.AmountReceived,
		Status:         string(p.Status),
		Address:        p.Address,
		TxHash:         p.TxHash,
		Confirmations:  p.Confirmations,
		Metadata:       p.Metadata,
		CallbackURL:    p.CallbackURL,
		ExpiresAt:      p.ExpiresAt.Format(time.RFC3339),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	if p.OwnerID != nil {
		s := p.OwnerID.String()
		resp.OwnerID = &s
	}
	if p.CompletedAt != nil {
		s := p.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// ToPaymentDetailResponse maps a payment and its transfer log.
func ToPaymentDetailResponse(p *domain.Payment, transfers []domain.TransferRecord) PaymentDetailResponse {
	out := PaymentDetailResponse{
		Payment:   ToPaymentResponse(p),
		Transfers: make([]TransferResponse, 0, len(transfers)),
	}
	for _, t := range transfers {
		out.Transfers = append(out.Transfers, TransferResponse{
			TxHash:        t.TxHash,
			FromAddress:   t.FromAddress,
			ToAddress:     t.ToAddress,
			Amount:        t.Amount,
			Currency:      string(t.Currency),
			BlockNumber:   t.BlockNumber,
			Confirmations: t.Confirmations,
			Processed:     t.Processed,
			CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
