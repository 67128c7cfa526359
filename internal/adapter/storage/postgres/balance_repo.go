package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kdero/trustx/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// CreateAccount inserts a new owner account. Concurrent settlements may race
// on the first deposit for an owner, so an existing row is left untouched.
func (r *BalanceRepo) CreateAccount(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (id, balance, created_at, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, a.ID, a.Balance, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount fetches an account without locking. Returns nil, nil when absent.
func (r *BalanceRepo) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, balance, created_at, updated_at FROM accounts WHERE id = $1`
	return r.scanAccount(r.pool.QueryRow(ctx, query, id))
}

// GetAccountForUpdate locks the account row for the duration of the
// transaction. Must be called within tx.
func (r *BalanceRepo) GetAccountForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, balance, created_at, updated_at FROM accounts WHERE id = $1 FOR UPDATE`
	return r.scanAccount(tx.QueryRow(ctx, query, id))
}

// UpdateBalance writes a new balance within a transaction.
func (r *BalanceRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1, updated_at = now() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, accountID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}
	return nil
}

// CreateEntry appends an immutable balance-history record within a transaction.
func (r *BalanceRepo) CreateEntry(ctx context.Context, tx pgx.Tx, e *domain.BalanceEntry) error {
	query := `INSERT INTO balance_entries (id, account_id, entry_type, amount,
		balance_before, balance_after, payment_ref, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.AccountID, e.EntryType, e.Amount,
		e.BalanceBefore, e.BalanceAfter, e.PaymentRef, e.Description, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert balance entry: %w", err)
	}
	return nil
}

// HasEntryForPayment reports whether a balance entry already references the
// given public payment id.
func (r *BalanceRepo) HasEntryForPayment(ctx context.Context, paymentRef string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM balance_entries WHERE payment_ref = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, paymentRef).Scan(&exists); err != nil {
		return false, fmt.Errorf("check balance entry exists: %w", err)
	}
	return exists, nil
}

// ListEntries fetches the balance history for an account, newest first.
func (r *BalanceRepo) ListEntries(ctx context.Context, accountID uuid.UUID) ([]domain.BalanceEntry, error) {
	query := `SELECT id, account_id, entry_type, amount, balance_before, balance_after,
		payment_ref, description, created_at
		FROM balance_entries WHERE account_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list balance entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.BalanceEntry
	for rows.Next() {
		e := domain.BalanceEntry{}
		err := rows.Scan(
			&e.ID, &e.AccountID, &e.EntryType, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
			&e.PaymentRef, &e.Description, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan balance entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance entry rows: %w", err)
	}
	return entries, nil
}

func (r *BalanceRepo) scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}
