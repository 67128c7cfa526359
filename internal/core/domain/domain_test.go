package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayment_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status PaymentStatus
		want   bool
	}{
		{"pending", PaymentStatusPending, false},
		{"confirming", PaymentStatusConfirming, false},
		{"completed", PaymentStatusCompleted, true},
		{"expired", PaymentStatusExpired, true},
		{"failed", PaymentStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.status}
			assert.Equal(t, tt.want, p.IsTerminal())
			assert.Equal(t, !tt.want, p.IsOpen())
		})
	}
}

func TestPayment_ExpireIfDue(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		status    PaymentStatus
		expiresAt time.Time
		want      bool
	}{
		{"pending past deadline", PaymentStatusPending, now.Add(-time.Minute), true},
		{"pending before deadline", PaymentStatusPending, now.Add(time.Minute), false},
		{"confirming past deadline", PaymentStatusConfirming, now.Add(-time.Minute), false},
		{"completed past deadline", PaymentStatusCompleted, now.Add(-time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.status, ExpiresAt: tt.expiresAt}
			changed := p.ExpireIfDue(now)
			assert.Equal(t, tt.want, changed)
			if changed {
				assert.Equal(t, PaymentStatusExpired, p.Status)
			}
		})
	}
}

func TestPayment_RegisterTransfer_BelowThreshold(t *testing.T) {
	now := time.Now().UTC()
	p := &Payment{
		Status:         PaymentStatusPending,
		AmountExpected: decimal.RequireFromString("100.00"),
		AmountReceived: decimal.Zero,
	}

	completed := p.RegisterTransfer(decimal.RequireFromString("100.00"), 5, "hash-1", 19, now)
	assert.False(t, completed)
	assert.Equal(t, PaymentStatusConfirming, p.Status)
	assert.True(t, p.AmountReceived.Equal(decimal.RequireFromString("100.00")))
	assert.EqualValues(t, 5, p.Confirmations)
	require.NotNil(t, p.TxHash)
	assert.Equal(t, "hash-1", *p.TxHash)
	assert.Nil(t, p.CompletedAt)
}

func TestPayment_RegisterTransfer_ConfirmationsMonotonic(t *testing.T) {
	now := time.Now().UTC()
	p := &Payment{
		Status:         PaymentStatusConfirming,
		AmountExpected: decimal.RequireFromString("100.00"),
		AmountReceived: decimal.RequireFromString("60.00"),
		Confirmations:  25,
	}

	p.RegisterTransfer(decimal.RequireFromString("10.00"), 3, "hash-2", 19, now)
	assert.EqualValues(t, 25, p.Confirmations, "confirmations must never move backwards")
}

func TestPayment_RegisterTransfer_Completes(t *testing.T) {
	now := time.Now().UTC()
	p := &Payment{
		Status:         PaymentStatusConfirming,
		AmountExpected: decimal.RequireFromString("100.00"),
		AmountReceived: decimal.RequireFromString("60.00"),
		Confirmations:  5,
	}

	completed := p.RegisterTransfer(decimal.RequireFromString("50.00"), 20, "hash-3", 19, now)
	assert.True(t, completed)
	assert.Equal(t, PaymentStatusCompleted, p.Status)
	// Overpayment stays visible on the record: 60 + 50 = 110.
	assert.True(t, p.AmountReceived.Equal(decimal.RequireFromString("110.00")))
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, now, *p.CompletedAt)
}

func TestPayment_RegisterTransfer_TerminalNoOp(t *testing.T) {
	now := time.Now().UTC()
	received := decimal.RequireFromString("100.00")
	p := &Payment{
		Status:         PaymentStatusCompleted,
		AmountExpected: received,
		AmountReceived: received,
	}

	completed := p.RegisterTransfer(decimal.RequireFromString("5.00"), 30, "hash-late", 19, now)
	assert.False(t, completed)
	assert.True(t, p.AmountReceived.Equal(received), "terminal payments must not accumulate")
}

func TestPayment_RegisterTransfer_KeepsFirstTxHash(t *testing.T) {
	now := time.Now().UTC()
	p := &Payment{
		Status:         PaymentStatusPending,
		AmountExpected: decimal.RequireFromString("100.00"),
	}

	p.RegisterTransfer(decimal.RequireFromString("40.00"), 2, "hash-first", 19, now)
	p.RegisterTransfer(decimal.RequireFromString("40.00"), 4, "hash-second", 19, now)
	require.NotNil(t, p.TxHash)
	assert.Equal(t, "hash-first", *p.TxHash)
}

func TestPayment_SyncWithLedger(t *testing.T) {
	now := time.Now().UTC()
	hundred := decimal.RequireFromString("100.00")

	t.Run("completes once threshold reached", func(t *testing.T) {
		p := &Payment{
			Status:         PaymentStatusConfirming,
			AmountExpected: hundred,
			AmountReceived: hundred,
			Confirmations:  5,
		}

		changed, completed := p.SyncWithLedger(hundred, 20, "hash-1", 19, now)
		assert.True(t, changed)
		assert.True(t, completed)
		assert.Equal(t, PaymentStatusCompleted, p.Status)
		assert.EqualValues(t, 20, p.Confirmations)
		require.NotNil(t, p.CompletedAt)
	})

	t.Run("restores amount the payment never absorbed", func(t *testing.T) {
		p := &Payment{
			Status:         PaymentStatusPending,
			AmountExpected: hundred,
			AmountReceived: decimal.Zero,
		}

		changed, completed := p.SyncWithLedger(hundred, 5, "hash-1", 19, now)
		assert.True(t, changed)
		assert.False(t, completed)
		assert.Equal(t, PaymentStatusConfirming, p.Status)
		assert.True(t, p.AmountReceived.Equal(hundred))
		require.NotNil(t, p.TxHash)
		assert.Equal(t, "hash-1", *p.TxHash)
	})

	t.Run("stays confirming while amount short", func(t *testing.T) {
		p := &Payment{
			Status:         PaymentStatusConfirming,
			AmountExpected: hundred,
			AmountReceived: decimal.RequireFromString("60.00"),
			Confirmations:  5,
		}

		changed, completed := p.SyncWithLedger(decimal.RequireFromString("60.00"), 25, "hash-1", 19, now)
		assert.True(t, changed)
		assert.False(t, completed)
		assert.Equal(t, PaymentStatusConfirming, p.Status)
		assert.EqualValues(t, 25, p.Confirmations)
	})

	t.Run("never moves backwards", func(t *testing.T) {
		p := &Payment{
			Status:         PaymentStatusConfirming,
			AmountExpected: hundred,
			AmountReceived: hundred,
			Confirmations:  10,
		}

		changed, completed := p.SyncWithLedger(decimal.RequireFromString("40.00"), 8, "hash-1", 19, now)
		assert.False(t, changed)
		assert.False(t, completed)
		assert.True(t, p.AmountReceived.Equal(hundred))
		assert.EqualValues(t, 10, p.Confirmations)
	})

	t.Run("terminal no-op", func(t *testing.T) {
		p := &Payment{
			Status:         PaymentStatusExpired,
			AmountExpected: hundred,
			AmountReceived: hundred,
		}

		changed, completed := p.SyncWithLedger(hundred, 50, "hash-1", 19, now)
		assert.False(t, changed)
		assert.False(t, completed)
		assert.Equal(t, PaymentStatusExpired, p.Status)
	})
}

func TestNewPaymentID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewPaymentID()
		require.NoError(t, err)
		assert.Len(t, id, PaymentIDLength)
		for _, r := range id {
			assert.Contains(t, paymentIDAlphabet, string(r))
		}
		seen[id] = true
	}
	// Not a strict guarantee, but 100 collisions would mean a broken generator.
	assert.Greater(t, len(seen), 90)
}

func TestAmountFromRawTokenValue(t *testing.T) {
	tests := []struct {
		raw  int64
		want string
	}{
		{100000000, "100"},
		{1500000, "1.5"},
		{1, "0.000001"},
		{0, "0"},
	}

	for _, tt := range tests {
		got := AmountFromRawTokenValue(tt.raw)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "raw %d: got %s", tt.raw, got)
	}
}
