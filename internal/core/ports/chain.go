package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Chain indexer failure modes. Both are transient: the caller must treat a
// failed call as having observed nothing new, never as a hard stop.
var (
	// ErrIndexerUnavailable covers network errors, timeouts and non-2xx
	// responses from the indexer.
	ErrIndexerUnavailable = errors.New("chain indexer unavailable")
	// ErrIndexerMalformed covers responses with an unexpected payload shape.
	ErrIndexerMalformed = errors.New("chain indexer returned malformed response")
	// ErrAccountNotFound is returned when the indexer has no data for an address.
	ErrAccountNotFound = errors.New("account not found on chain")
)

// AccountInfo is the subset of indexer account data the engine cares about.
type AccountInfo struct {
	Address       string
	BalanceTRX    decimal.Decimal
	TokenBalances map[string]decimal.Decimal // token contract address -> balance
	CreateTime    time.Time
	LatestOpTime  time.Time
}

// RawTransfer is a single TRC20 transfer as reported by the indexer.
type RawTransfer struct {
	TxID           string
	From           string
	To             string
	TokenContract  string
	TokenSymbol    string
	TokenDecimals  int
	RawValue       int64 // smallest token unit
	BlockNumber    int64 // 0 when the indexer omits it
	BlockTimestamp time.Time
}

// ChainClient is a thin wrapper over a blockchain indexing API.
// All calls carry a bounded timeout; exceeding it yields ErrIndexerUnavailable.
type ChainClient interface {
	AccountInfo(ctx context.Context, address string) (*AccountInfo, error)
	// IncomingTransfers returns TRC20 transfers to the address observed since
	// the given time, bounded by the indexer page limit.
	IncomingTransfers(ctx context.Context, address string, since time.Time, confirmedOnly bool) ([]RawTransfer, error)
	TransferDetail(ctx context.Context, txHash string) (*RawTransfer, error)
	CurrentBlockHeight(ctx context.Context) (int64, error)
	TokenBalance(ctx context.Context, address string) (decimal.Decimal, error)
}
