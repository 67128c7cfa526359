package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Kdero/trustx/internal/core/domain"
	"github.com/Kdero/trustx/internal/core/ports"
	"github.com/Kdero/trustx/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const callbackTimeout = 10 * time.Second

// HeaderCallbackSignature carries the hex HMAC-SHA256 of the callback body.
const HeaderCallbackSignature = "X-Trustx-Signature"

// SettlementServiceImpl implements ports.SettlementService: the terminal
// balance credit plus best-effort callback delivery.
type SettlementServiceImpl struct {
	balanceRepo   ports.BalanceRepository
	transactor    ports.DBTransactor
	sigSvc        *HMACSignatureService
	signingSecret string // empty disables callback signing
	httpClient    *http.Client
	log           zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	balanceRepo ports.BalanceRepository,
	transactor ports.DBTransactor,
	signingSecret string,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		balanceRepo:   balanceRepo,
		transactor:    transactor,
		sigSvc:        NewHMACSignatureService(),
		signingSecret: signingSecret,
		httpClient:    &http.Client{Timeout: callbackTimeout},
		log:           log,
	}
}

// Settle credits the owner's balance by the expected amount (overpayment
// beyond expected is not auto-credited), appends a balance-history entry and
// fires the callback if one is configured. The balance entry's unique payment
// reference makes the credit idempotent: a payment that already produced an
// entry is skipped entirely.
func (s *SettlementServiceImpl) Settle(ctx context.Context, payment *domain.Payment) error {
	exists, err := s.balanceRepo.HasEntryForPayment(ctx, payment.PaymentID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("settlement guard: %w", err))
	}
	if exists {
		s.log.Info().Str("payment_id", payment.PaymentID).Msg("payment already settled, skipping")
		return nil
	}

	if payment.OwnerID != nil {
		if err := s.credit(ctx, payment); err != nil {
			return err
		}
	} else {
		s.log.Info().Str("payment_id", payment.PaymentID).Msg("payment has no owner, skipping balance credit")
	}

	if payment.CallbackURL != nil && *payment.CallbackURL != "" {
		// Fire-and-forget: callback failure never reverts the credit.
		go s.deliverCallback(*payment.CallbackURL, payment)
	}

	return nil
}

func (s *SettlementServiceImpl) credit(ctx context.Context, payment *domain.Payment) error {
	amount := payment.AmountExpected

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.balanceRepo.GetAccountForUpdate(ctx, dbTx, *payment.OwnerID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		// First deposit for this owner: create the account, then lock it.
		account = &domain.Account{
			ID:        *payment.OwnerID,
			Balance:   decimal.Zero,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.balanceRepo.CreateAccount(ctx, account); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("create account: %w", err))
		}
		account, err = s.balanceRepo.GetAccountForUpdate(ctx, dbTx, *payment.OwnerID)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("lock new account: %w", err))
		}
		if account == nil {
			return apperror.ErrAccountNotFound()
		}
	}

	// Re-check under the account row lock. A concurrent settle (reconcile
	// racing an admin approve) can pass the unlocked guard above; whoever
	// commits first releases the lock, so the loser sees its entry here.
	exists, err := s.balanceRepo.HasEntryForPayment(ctx, payment.PaymentID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("settlement guard: %w", err))
	}
	if exists {
		s.log.Info().Str("payment_id", payment.PaymentID).Msg("payment settled concurrently, skipping credit")
		return nil
	}

	newBalance := account.Balance.Add(amount)

	if err := s.balanceRepo.UpdateBalance(ctx, dbTx, account.ID, newBalance); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("update balance: %w", err))
	}

	now := time.Now().UTC()
	entry := &domain.BalanceEntry{
		ID:            uuid.New(),
		AccountID:     account.ID,
		EntryType:     domain.BalanceEntryDeposit,
		Amount:        amount,
		BalanceBefore: account.Balance,
		BalanceAfter:  newBalance,
		PaymentRef:    payment.PaymentID,
		Description:   fmt.Sprintf("%s deposit %s", payment.Currency, payment.PaymentID),
		CreatedAt:     now,
	}
	if err := s.balanceRepo.CreateEntry(ctx, dbTx, entry); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("create balance entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit settlement: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.PaymentID).
		Str("account_id", account.ID.String()).
		Str("amount", amount.String()).
		Str("balance_after", newBalance.String()).
		Msg("balance credited")

	return nil
}

// callbackPayload is the JSON body sent to the configured callback URL.
type callbackPayload struct {
	PaymentID      string          `json:"payment_id"`
	Status         string          `json:"status"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Currency       string          `json:"currency"`
	TxHash         *string         `json:"tx_hash"`
	Metadata       domain.Metadata `json:"metadata"`
}

// deliverCallback issues one outbound POST with the payment's terminal state.
// Single attempt: failure is logged, never retried.
func (s *SettlementServiceImpl) deliverCallback(url string, payment *domain.Payment) {
	payload := callbackPayload{
		PaymentID:      payment.PaymentID,
		Status:         string(payment.Status),
		AmountExpected: payment.AmountExpected,
		AmountReceived: payment.AmountReceived,
		Currency:       string(payment.Currency),
		TxHash:         payment.TxHash,
		Metadata:       payment.Metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", payment.PaymentID).Msg("callback payload marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.log.Warn().Err(err).Str("payment_id", payment.PaymentID).Msg("callback request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.signingSecret != "" {
		req.Header.Set(HeaderCallbackSignature, s.sigSvc.Sign(s.signingSecret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Str("payment_id", payment.PaymentID).Str("url", url).Msg("callback delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn().
			Int("status", resp.StatusCode).
			Str("payment_id", payment.PaymentID).
			Str("url", url).
			Msg("callback rejected by receiver")
		return
	}

	s.log.Info().Str("payment_id", payment.PaymentID).Str("url", url).Msg("callback delivered")
}
