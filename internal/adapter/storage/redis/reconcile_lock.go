package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReconcileLock implements ports.ReconcileLock using Redis SET NX. It
// serialises reconciliation per payment: a loop tick and a synchronous status
// check (or two pollers) can never interleave work on the same payment. The
// TTL bounds how long a crashed holder can block a payment.
type ReconcileLock struct {
	client *goredis.Client
	prefix string
}

// NewReconcileLock creates a new Redis-backed per-payment lock.
func NewReconcileLock(client *goredis.Client) *ReconcileLock {
	return &ReconcileLock{
		client: client,
		prefix: "reconcile:lock:",
	}
}

// Acquire takes the lock for paymentID. Returns false if another holder has it.
func (l *ReconcileLock) Acquire(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+paymentID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock for paymentID.
func (l *ReconcileLock) Release(ctx context.Context, paymentID string) error {
	if err := l.client.Del(ctx, l.prefix+paymentID).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
