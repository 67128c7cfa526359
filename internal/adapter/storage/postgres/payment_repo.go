package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kdero/trustx/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, payment_id, owner_id, currency, amount_expected, amount_received,
	status, address, tx_hash, confirmations, metadata, callback_url,
	expires_at, completed_at, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new payment intent.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (id, payment_id, owner_id, currency, amount_expected, amount_received,
		status, address, tx_hash, confirmations, metadata, callback_url,
		expires_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.PaymentID, p.OwnerID, p.Currency, p.AmountExpected, p.AmountReceived,
		p.Status, p.Address, p.TxHash, p.Confirmations, p.Metadata, p.CallbackURL,
		p.ExpiresAt, p.CompletedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByPaymentID fetches a payment by its public 8-character identifier.
// Returns nil, nil when no payment exists.
func (r *PaymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE payment_id = $1`, paymentColumns)
	return r.scanPayment(r.pool.QueryRow(ctx, query, paymentID))
}

// ListByOwner fetches all payments for an owner, newest first.
func (r *PaymentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE owner_id = $1 ORDER BY created_at DESC`, paymentColumns)

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list payments by owner: %w", err)
	}
	defer rows.Close()

	return r.collectPayments(rows)
}

// ListOpen fetches payments still subject to reconciliation, oldest first so
// the earliest deposits are checked before newer ones.
func (r *PaymentRepo) ListOpen(ctx context.Context) ([]domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE status IN ('pending', 'confirming') ORDER BY created_at ASC`, paymentColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open payments: %w", err)
	}
	defer rows.Close()

	return r.collectPayments(rows)
}

// Update persists the mutable reconciliation fields of a payment.
func (r *PaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	query := `UPDATE payments SET amount_received = $1, status = $2, tx_hash = $3,
		confirmations = $4, completed_at = $5, updated_at = $6 WHERE id = $7`

	tag, err := r.pool.Exec(ctx, query,
		p.AmountReceived, p.Status, p.TxHash,
		p.Confirmations, p.CompletedAt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", p.ID)
	}
	return nil
}

// UpdateStatus updates only the status of a payment.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

func (r *PaymentRepo) collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p := domain.Payment{}
		err := rows.Scan(
			&p.ID, &p.PaymentID, &p.OwnerID, &p.Currency, &p.AmountExpected, &p.AmountReceived,
			&p.Status, &p.Address, &p.TxHash, &p.Confirmations, &p.Metadata, &p.CallbackURL,
			&p.ExpiresAt, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}

func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.PaymentID, &p.OwnerID, &p.Currency, &p.AmountExpected, &p.AmountReceived,
		&p.Status, &p.Address, &p.TxHash, &p.Confirmations, &p.Metadata, &p.CallbackURL,
		&p.ExpiresAt, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}
