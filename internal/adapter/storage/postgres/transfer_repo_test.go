package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kdero/trustx/internal/core/domain"
	"github.com/Kdero/trustx/pkg/apperror"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransfer() *domain.TransferRecord {
	return &domain.TransferRecord{
		ID:            uuid.New(),
		TxHash:        "abc123def456",
		FromAddress:   "TSenderAddress00000000000000000000",
		ToAddress:     "TMDLvTzQLeLp2SrcjwAwJ4CcZqiji12XZ6",
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      domain.CurrencyUSDT,
		BlockNumber:   64000000,
		Confirmations: 5,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestTransferRepo_RecordIfNew_Created(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransferRepo(mock)
	tr := sampleTransfer()

	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(tr.ID, tr.TxHash, tr.FromAddress, tr.ToAddress, tr.Amount, tr.Currency,
			tr.BlockNumber, tr.Confirmations, tr.PaymentID, tr.Processed, tr.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, rec, err := repo.RecordIfNew(context.Background(), tr)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, tr, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepo_RecordIfNew_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransferRepo(mock)
	tr := sampleTransfer()
	existingID := uuid.New()
	linkedPayment := uuid.New()

	// Conflict: no row inserted.
	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(tr.ID, tr.TxHash, tr.FromAddress, tr.ToAddress, tr.Amount, tr.Currency,
			tr.BlockNumber, tr.Confirmations, tr.PaymentID, tr.Processed, tr.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	mock.ExpectQuery("SELECT .+ FROM transfers WHERE tx_hash").
		WithArgs(tr.TxHash).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tx_hash", "from_address", "to_address", "amount", "currency",
			"block_number", "confirmations", "payment_id", "processed", "created_at",
		}).AddRow(existingID, tr.TxHash, tr.FromAddress, tr.ToAddress, tr.Amount, tr.Currency,
			tr.BlockNumber, int64(12), &linkedPayment, true, tr.CreatedAt))

	created, rec, err := repo.RecordIfNew(context.Background(), tr)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, rec)
	assert.Equal(t, existingID, rec.ID)
	assert.True(t, rec.Processed, "existing record must be returned untouched")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepo_MarkProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransferRepo(mock)
	id := uuid.New()
	paymentID := uuid.New()

	mock.ExpectExec("UPDATE transfers SET processed = true").
		WithArgs(paymentID, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.MarkProcessed(context.Background(), id, paymentID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepo_MarkProcessed_DifferentPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransferRepo(mock)
	id := uuid.New()
	paymentID := uuid.New()

	// Guard clause matched no rows: already processed for another payment.
	mock.ExpectExec("UPDATE transfers SET processed = true").
		WithArgs(paymentID, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.MarkProcessed(context.Background(), id, paymentID)
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PAY_006", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepo_GetByTxHash_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransferRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transfers WHERE tx_hash").
		WithArgs("unknown-hash").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tx_hash", "from_address", "to_address", "amount", "currency",
			"block_number", "confirmations", "payment_id", "processed", "created_at",
		}))

	rec, err := repo.GetByTxHash(context.Background(), "unknown-hash")
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepo_ListByPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransferRepo(mock)
	paymentID := uuid.New()
	tr := sampleTransfer()

	mock.ExpectQuery("SELECT .+ FROM transfers WHERE payment_id").
		WithArgs(paymentID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tx_hash", "from_address", "to_address", "amount", "currency",
			"block_number", "confirmations", "payment_id", "processed", "created_at",
		}).AddRow(tr.ID, tr.TxHash, tr.FromAddress, tr.ToAddress, tr.Amount, tr.Currency,
			tr.BlockNumber, tr.Confirmations, &paymentID, true, tr.CreatedAt))

	transfers, err := repo.ListByPayment(context.Background(), paymentID)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, tr.TxHash, transfers[0].TxHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}
