package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kdero/trustx/internal/core/domain"
	"github.com/Kdero/trustx/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transferColumns = `id, tx_hash, from_address, to_address, amount, currency,
	block_number, confirmations, payment_id, processed, created_at`

// TransferRepo implements ports.TransferRepository. The ledger dedup relies
// on the unique constraint on tx_hash: observing the same on-chain transfer
// twice can never produce two rows.
type TransferRepo struct {
	pool Pool
}

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(pool Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

// RecordIfNew atomically inserts the record unless its tx hash is already
// known. ON CONFLICT DO NOTHING keeps the insert race-free under concurrent
// pollers; when no row was inserted the existing record is returned untouched.
func (r *TransferRepo) RecordIfNew(ctx context.Context, t *domain.TransferRecord) (bool, *domain.TransferRecord, error) {
	query := `INSERT INTO transfers (id, tx_hash, from_address, to_address, amount, currency,
		block_number, confirmations, payment_id, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tx_hash) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		t.ID, t.TxHash, t.FromAddress, t.ToAddress, t.Amount, t.Currency,
		t.BlockNumber, t.Confirmations, t.PaymentID, t.Processed, t.CreatedAt,
	)
	if err != nil {
		return false, nil, fmt.Errorf("insert transfer: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, t, nil
	}

	existing, err := r.GetByTxHash(ctx, t.TxHash)
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		return false, nil, fmt.Errorf("transfer %s vanished after conflict", t.TxHash)
	}
	return false, existing, nil
}

// MarkProcessed sets processed=true and links the record to a payment.
// Calling it again with the same payment id is a no-op; a different payment
// id means the engine double-applied a transfer and is rejected.
func (r *TransferRepo) MarkProcessed(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error {
	query := `UPDATE transfers SET processed = true, payment_id = $1
		WHERE id = $2 AND (processed = false OR payment_id = $1)`

	tag, err := r.pool.Exec(ctx, query, paymentID, id)
	if err != nil {
		return fmt.Errorf("mark transfer processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrTransferAlreadyProcessed()
	}
	return nil
}

// RefreshConfirmations updates the observed confirmation count. Processed
// records are immutable, so the update only touches unprocessed rows.
func (r *TransferRepo) RefreshConfirmations(ctx context.Context, id uuid.UUID, confirmations int64) error {
	query := `UPDATE transfers SET confirmations = $1 WHERE id = $2 AND processed = false`

	if _, err := r.pool.Exec(ctx, query, confirmations, id); err != nil {
		return fmt.Errorf("refresh transfer confirmations: %w", err)
	}
	return nil
}

// GetByTxHash fetches a transfer record by chain transaction hash.
// Returns nil, nil when the hash has not been observed.
func (r *TransferRepo) GetByTxHash(ctx context.Context, txHash string) (*domain.TransferRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM transfers WHERE tx_hash = $1`, transferColumns)

	t := &domain.TransferRecord{}
	err := r.pool.QueryRow(ctx, query, txHash).Scan(
		&t.ID, &t.TxHash, &t.FromAddress, &t.ToAddress, &t.Amount, &t.Currency,
		&t.BlockNumber, &t.Confirmations, &t.PaymentID, &t.Processed, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer by tx hash: %w", err)
	}
	return t, nil
}

// ListByPayment fetches all transfer records linked to a payment.
func (r *TransferRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.TransferRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM transfers WHERE payment_id = $1 ORDER BY created_at ASC`, transferColumns)

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list transfers by payment: %w", err)
	}
	defer rows.Close()

	var transfers []domain.TransferRecord
	for rows.Next() {
		t := domain.TransferRecord{}
		err := rows.Scan(
			&t.ID, &t.TxHash, &t.FromAddress, &t.ToAddress, &t.Amount, &t.Currency,
			&t.BlockNumber, &t.Confirmations, &t.PaymentID, &t.Processed, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}
	return transfers, nil
}
