package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kdero/trustx/config"
	"github.com/Kdero/trustx/internal/core/domain"
	"github.com/Kdero/trustx/internal/core/ports"
	"github.com/Kdero/trustx/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReconcilerImpl implements ports.Reconciler: the polling loop that matches
// on-chain transfers to open payments, advances payment state and triggers
// settlement on completion.
type ReconcilerImpl struct {
	paymentRepo  ports.PaymentRepository
	transferRepo ports.TransferRepository
	chain        ports.ChainClient
	settlement   ports.SettlementService
	seenCache    ports.TransferSeenCache
	lock         ports.ReconcileLock

	usdtContract     string
	interval         time.Duration
	minConfirmations int64
	lockTTL          time.Duration
	seenTTL          time.Duration

	log zerolog.Logger
}

// NewReconciler creates a new ReconcilerImpl.
func NewReconciler(
	paymentRepo ports.PaymentRepository,
	transferRepo ports.TransferRepository,
	chain ports.ChainClient,
	settlement ports.SettlementService,
	seenCache ports.TransferSeenCache,
	lock ports.ReconcileLock,
	tronCfg config.TronConfig,
	recCfg config.ReconcilerConfig,
	log zerolog.Logger,
) *ReconcilerImpl {
	return &ReconcilerImpl{
		paymentRepo:      paymentRepo,
		transferRepo:     transferRepo,
		chain:            chain,
		settlement:       settlement,
		seenCache:        seenCache,
		lock:             lock,
		usdtContract:     tronCfg.USDTContract,
		interval:         recCfg.Interval,
		minConfirmations: recCfg.MinConfirmations,
		lockTTL:          recCfg.LockTTL,
		seenTTL:          recCfg.SeenCacheTTL,
		log:              log,
	}
}

// Run polls on a fixed interval until ctx is cancelled. The first pass runs
// immediately; in-flight per-payment work finishes before the loop returns.
func (s *ReconcilerImpl) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("reconciler loop started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reconciler loop stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one full pass over all open payments. Per-payment failures
// are logged and never abort the batch.
func (s *ReconcilerImpl) RunOnce(ctx context.Context) {
	payments, err := s.paymentRepo.ListOpen(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("listing open payments failed")
		return
	}
	if len(payments) == 0 {
		return
	}

	s.log.Debug().Int("open_payments", len(payments)).Msg("reconciliation pass started")

	checked, changed := 0, 0
	for i := range payments {
		if ctx.Err() != nil {
			return
		}
		didChange, err := s.CheckPayment(ctx, &payments[i])
		if err != nil {
			s.log.Warn().Err(err).Str("payment_id", payments[i].PaymentID).Msg("payment reconciliation failed")
			continue
		}
		checked++
		if didChange {
			changed++
		}
	}

	s.log.Debug().Int("checked", checked).Int("changed", changed).Msg("reconciliation pass finished")
}

// CheckPayment reconciles a single payment under its per-payment lock:
// expiry, transfer discovery, ledger dedup, state advancement and settlement
// on the completion edge. Returns true if the payment changed.
func (s *ReconcilerImpl) CheckPayment(ctx context.Context, payment *domain.Payment) (bool, error) {
	if payment.IsTerminal() {
		return false, nil
	}

	locked, err := s.lock.Acquire(ctx, payment.PaymentID, s.lockTTL)
	if err != nil {
		// Single-poller deployments stay correct without the lock; losing
		// Redis must not halt reconciliation.
		s.log.Warn().Err(err).Str("payment_id", payment.PaymentID).Msg("reconcile lock unavailable, proceeding unlocked")
	} else if !locked {
		s.log.Debug().Str("payment_id", payment.PaymentID).Msg("payment already being reconciled, skipping")
		return false, nil
	} else {
		defer func() {
			if err := s.lock.Release(ctx, payment.PaymentID); err != nil {
				s.log.Warn().Err(err).Str("payment_id", payment.PaymentID).Msg("reconcile lock release failed")
			}
		}()
	}

	return s.reconcile(ctx, payment)
}

func (s *ReconcilerImpl) reconcile(ctx context.Context, payment *domain.Payment) (bool, error) {
	now := time.Now().UTC()

	height, err := s.chain.CurrentBlockHeight(ctx)
	if err != nil {
		// Confirmations clamp to zero this cycle; the next pass recovers.
		s.log.Warn().Err(err).Msg("block height unavailable")
		height = 0
	}

	// The linked ledger records are authoritative for what the payment has
	// received. Re-derive the aggregates from them first: a crash or failed
	// persist on an earlier cycle can leave committed records the payment
	// row never absorbed, and transfers applied earlier gain confirmations
	// as the chain advances.
	changed, completed, err := s.syncFromLedger(ctx, payment, height, now)
	if err != nil {
		return false, err
	}

	if !completed {
		if payment.ExpireIfDue(now) {
			if err := s.paymentRepo.Update(ctx, payment); err != nil {
				return false, fmt.Errorf("persist expiry: %w", err)
			}
			s.log.Info().Str("payment_id", payment.PaymentID).Msg("payment expired")
			return true, nil
		}

		transfers, err := s.chain.IncomingTransfers(ctx, payment.Address, payment.CreatedAt, true)
		if err != nil {
			return changed, chainError(fmt.Errorf("list incoming transfers: %w", err))
		}

		for _, raw := range transfers {
			if !s.matches(raw, payment) {
				continue
			}

			applied, done, err := s.applyTransfer(ctx, payment, raw, height, now)
			if err != nil {
				return changed, err
			}
			changed = changed || applied
			completed = completed || done
		}
	}

	if changed {
		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			return true, fmt.Errorf("persist payment: %w", err)
		}
	}

	if completed {
		if err := s.settlement.Settle(ctx, payment); err != nil {
			return true, fmt.Errorf("settle payment: %w", err)
		}
		s.log.Info().
			Str("payment_id", payment.PaymentID).
			Str("amount_received", payment.AmountReceived.String()).
			Int64("confirmations", payment.Confirmations).
			Msg("payment completed and settled")
	}

	return changed, nil
}

// applyTransfer records one raw transfer in the ledger and folds it into the
// payment. The ledger's hash-uniqueness check is the dedup point: a transfer
// already recorded and processed is a no-op, which makes re-polls safe.
func (s *ReconcilerImpl) applyTransfer(ctx context.Context, payment *domain.Payment, raw ports.RawTransfer, height int64, now time.Time) (applied, completed bool, err error) {
	seen, err := s.seenCache.Seen(ctx, raw.TxID)
	if err != nil {
		s.log.Warn().Err(err).Str("tx_hash", raw.TxID).Msg("seen cache check failed, falling through to ledger")
	} else if seen {
		return false, false, nil
	}

	confirmations := confirmationsAt(height, raw.BlockNumber)
	amount := domain.AmountFromRawTokenValue(raw.RawValue)

	record := &domain.TransferRecord{
		ID:            uuid.New(),
		TxHash:        raw.TxID,
		FromAddress:   raw.From,
		ToAddress:     raw.To,
		Amount:        amount,
		Currency:      payment.Currency,
		BlockNumber:   raw.BlockNumber,
		Confirmations: confirmations,
		CreatedAt:     now,
	}

	created, existing, err := s.transferRepo.RecordIfNew(ctx, record)
	if err != nil {
		return false, false, fmt.Errorf("record transfer: %w", err)
	}

	if !created {
		if existing.Processed || existing.PaymentID != nil {
			// Already applied, to this payment or another sharing the address.
			s.markSeen(ctx, raw.TxID)
			return false, false, nil
		}
		// Recorded on an earlier cycle but never applied (a crash between
		// insert and processing). Pick it up now.
		record = existing
		if err := s.transferRepo.RefreshConfirmations(ctx, record.ID, confirmations); err != nil {
			return false, false, fmt.Errorf("refresh transfer confirmations: %w", err)
		}
		s.log.Info().Str("tx_hash", raw.TxID).Msg("recovering unprocessed ledger record")
	}

	completed = payment.RegisterTransfer(amount, confirmations, raw.TxID, s.minConfirmations, now)

	if err := s.transferRepo.MarkProcessed(ctx, record.ID, payment.ID); err != nil {
		return false, false, fmt.Errorf("mark transfer processed: %w", err)
	}
	s.markSeen(ctx, raw.TxID)

	s.log.Info().
		Str("payment_id", payment.PaymentID).
		Str("tx_hash", raw.TxID).
		Str("amount", amount.String()).
		Int64("confirmations", confirmations).
		Msg("transfer applied to payment")

	return true, completed, nil
}

func (s *ReconcilerImpl) syncFromLedger(ctx context.Context, payment *domain.Payment, height int64, now time.Time) (changed, completed bool, err error) {
	records, err := s.transferRepo.ListByPayment(ctx, payment.ID)
	if err != nil {
		return false, false, fmt.Errorf("list ledger records: %w", err)
	}
	if len(records) == 0 {
		return false, false, nil
	}

	total := decimal.Zero
	var best int64
	for _, r := range records {
		total = total.Add(r.Amount)
		conf := r.Confirmations
		if c := confirmationsAt(height, r.BlockNumber); c > conf {
			conf = c
		}
		if conf > best {
			best = conf
		}
	}

	changed, completed = payment.SyncWithLedger(total, best, records[0].TxHash, s.minConfirmations, now)
	return changed, completed, nil
}

// matches reports whether a raw transfer belongs to the payment: destination
// address and token must both line up.
func (s *ReconcilerImpl) matches(raw ports.RawTransfer, payment *domain.Payment) bool {
	if raw.To != payment.Address {
		return false
	}
	if payment.Currency == domain.CurrencyUSDT {
		return raw.TokenContract == s.usdtContract
	}
	return domain.Currency(raw.TokenSymbol) == payment.Currency
}

// markSeen is best-effort: a failed write only costs one extra ledger lookup
// on the next pass.
func (s *ReconcilerImpl) markSeen(ctx context.Context, txHash string) {
	if err := s.seenCache.MarkSeen(ctx, txHash, s.seenTTL); err != nil {
		s.log.Warn().Err(err).Str("tx_hash", txHash).Msg("seen cache write failed")
	}
}

// chainError classifies an indexer failure under the stable CHAIN error
// codes, keeping the underlying error in the chain for errors.Is.
func chainError(err error) error {
	if errors.Is(err, ports.ErrIndexerMalformed) {
		return apperror.ErrIndexerMalformed(err)
	}
	if errors.Is(err, ports.ErrIndexerUnavailable) {
		return apperror.ErrIndexerUnavailable(err)
	}
	return err
}

// confirmationsAt computes confirmations from the current block height,
// clamped to zero when the indexer cannot supply either number.
func confirmationsAt(height, block int64) int64 {
	if height <= 0 || block <= 0 || block > height {
		return 0
	}
	return height - block
}
