package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kdero/trustx/internal/core/domain"
	"github.com/Kdero/trustx/internal/core/ports"
	"github.com/Kdero/trustx/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu         sync.RWMutex
	payments   map[uuid.UUID]*domain.Payment
	updateErrs int // pending Update failures, for outage scenarios
}

// failUpdates makes the next n Update calls fail.
func (r *inMemoryPaymentRepo) failUpdates(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateErrs = n
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.PaymentID == paymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Payment
	for _, p := range r.payments {
		if p.OwnerID != nil && *p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *inMemoryPaymentRepo) ListOpen(ctx context.Context) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Payment
	for _, p := range r.payments {
		if p.IsOpen() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *inMemoryPaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErrs > 0 {
		r.updateErrs--
		return fmt.Errorf("payment store unavailable")
	}
	if _, ok := r.payments[p.ID]; !ok {
		return apperror.ErrPaymentNotFound()
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return apperror.ErrPaymentNotFound()
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Transfer Repo ---

type inMemoryTransferRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.TransferRecord
	byHash  map[string]uuid.UUID
}

func newInMemoryTransferRepo() *inMemoryTransferRepo {
	return &inMemoryTransferRepo{
		records: make(map[uuid.UUID]*domain.TransferRecord),
		byHash:  make(map[string]uuid.UUID),
	}
}

func (r *inMemoryTransferRepo) RecordIfNew(ctx context.Context, record *domain.TransferRecord) (bool, *domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byHash[record.TxHash]; ok {
		cp := *r.records[id]
		return false, &cp, nil
	}
	cp := *record
	r.records[record.ID] = &cp
	r.byHash[record.TxHash] = record.ID
	return true, nil, nil
}

func (r *inMemoryTransferRepo) MarkProcessed(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("unknown transfer record: %s", id)
	}
	if rec.Processed && rec.PaymentID != nil && *rec.PaymentID != paymentID {
		return apperror.ErrTransferAlreadyProcessed()
	}
	rec.Processed = true
	rec.PaymentID = &paymentID
	return nil
}

func (r *inMemoryTransferRepo) RefreshConfirmations(ctx context.Context, id uuid.UUID, confirmations int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok && !rec.Processed {
		rec.Confirmations = confirmations
	}
	return nil
}

func (r *inMemoryTransferRepo) GetByTxHash(ctx context.Context, txHash string) (*domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byHash[txHash]; ok {
		cp := *r.records[id]
		return &cp, nil
	}
	return nil, nil
}

func (r *inMemoryTransferRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TransferRecord
	for _, rec := range r.records {
		if rec.PaymentID != nil && *rec.PaymentID == paymentID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *inMemoryTransferRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// --- In-Memory Balance Repo ---

type inMemoryBalanceRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
	entries  []domain.BalanceEntry
}

func newInMemoryBalanceRepo() *inMemoryBalanceRepo {
	return &inMemoryBalanceRepo{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (r *inMemoryBalanceRepo) CreateAccount(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *inMemoryBalanceRepo) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (r *inMemoryBalanceRepo) GetAccountForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	return r.GetAccount(ctx, id)
}

func (r *inMemoryBalanceRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return apperror.ErrAccountNotFound()
	}
	a.Balance = balance
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryBalanceRepo) CreateEntry(ctx context.Context, tx pgx.Tx, entry *domain.BalanceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryBalanceRepo) HasEntryForPayment(ctx context.Context, paymentRef string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.PaymentRef == paymentRef {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryBalanceRepo) ListEntries(ctx context.Context, accountID uuid.UUID) ([]domain.BalanceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.BalanceEntry
	for _, e := range r.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *inMemoryBalanceRepo) entriesForPayment(paymentRef string) []domain.BalanceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.BalanceEntry
	for _, e := range r.entries {
		if e.PaymentRef == paymentRef {
			out = append(out, e)
		}
	}
	return out
}

// --- In-Memory Transactor ---

// noopTx satisfies pgx.Tx for repos that take their own locks; only Commit
// and Rollback are ever called by the settlement path.
type noopTx struct{ pgx.Tx }

func (t *noopTx) Commit(ctx context.Context) error   { return nil }
func (t *noopTx) Rollback(ctx context.Context) error { return nil }

type inMemoryTransactor struct{}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// --- Fake Chain Client ---

// fakeChain is a scripted indexer: tests append transfers and move the block
// height forward to simulate the chain advancing.
type fakeChain struct {
	mu        sync.Mutex
	height    int64
	transfers []ports.RawTransfer
}

var _ ports.ChainClient = (*fakeChain)(nil)

func newFakeChain(height int64) *fakeChain {
	return &fakeChain{height: height}
}

func (c *fakeChain) addTransfer(raw ports.RawTransfer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfers = append(c.transfers, raw)
}

func (c *fakeChain) setHeight(height int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = height
}

func (c *fakeChain) AccountInfo(ctx context.Context, address string) (*ports.AccountInfo, error) {
	return &ports.AccountInfo{Address: address}, nil
}

func (c *fakeChain) IncomingTransfers(ctx context.Context, address string, since time.Time, confirmedOnly bool) ([]ports.RawTransfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ports.RawTransfer
	for _, tr := range c.transfers {
		if tr.To == address && !tr.BlockTimestamp.Before(since) {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (c *fakeChain) TransferDetail(ctx context.Context, txHash string) (*ports.RawTransfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.transfers {
		if c.transfers[i].TxID == txHash {
			tr := c.transfers[i]
			return &tr, nil
		}
	}
	return nil, ports.ErrAccountNotFound
}

func (c *fakeChain) CurrentBlockHeight(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, nil
}

func (c *fakeChain) TokenBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
