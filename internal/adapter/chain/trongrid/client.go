package trongrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Kdero/trustx/config"
	"github.com/Kdero/trustx/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const apiKeyHeader = "TRON-PRO-API-KEY"

// Client implements ports.ChainClient over the TronGrid HTTP API.
// Every call is bounded by the configured HTTP timeout; a timeout, transport
// error or non-2xx status is reported as ports.ErrIndexerUnavailable and an
// unparseable body as ports.ErrIndexerMalformed.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	usdtContract string
	pageLimit    int
	log          zerolog.Logger
}

// NewClient creates a TronGrid client from configuration.
func NewClient(cfg config.TronConfig, log zerolog.Logger) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = 50
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      cfg.BaseURL(),
		apiKey:       cfg.APIKey,
		usdtContract: cfg.USDTContract,
		pageLimit:    limit,
		log:          log,
	}
}

// NewClientWithBaseURL creates a client against an explicit base URL.
// Used by tests to point at a local server.
func NewClientWithBaseURL(baseURL string, cfg config.TronConfig, log zerolog.Logger) *Client {
	c := NewClient(cfg, log)
	c.baseURL = baseURL
	return c
}

type accountResponse struct {
	Data []struct {
		Address       string              `json:"address"`
		Balance       int64               `json:"balance"`
		CreateTime    int64               `json:"create_time"`
		LatestOprTime int64               `json:"latest_opration_time"`
		TRC20         []map[string]string `json:"trc20"`
	} `json:"data"`
}

// AccountInfo fetches indexer account data for an address.
func (c *Client) AccountInfo(ctx context.Context, address string) (*ports.AccountInfo, error) {
	body, err := c.get(ctx, "/v1/accounts/"+url.PathEscape(address), nil)
	if err != nil {
		return nil, err
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: account payload: %v", ports.ErrIndexerMalformed, err)
	}
	if len(resp.Data) == 0 {
		return nil, ports.ErrAccountNotFound
	}

	acc := resp.Data[0]
	info := &ports.AccountInfo{
		Address: acc.Address,
		// TRX carries 6 decimals, same as USDT.
		BalanceTRX:    decimal.New(acc.Balance, -6),
		TokenBalances: make(map[string]decimal.Decimal),
		CreateTime:    time.UnixMilli(acc.CreateTime),
		LatestOpTime:  time.UnixMilli(acc.LatestOprTime),
	}
	for _, tokens := range acc.TRC20 {
		for contract, raw := range tokens {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: token balance %q: %v", ports.ErrIndexerMalformed, raw, err)
			}
			info.TokenBalances[contract] = decimal.New(v, -6)
		}
	}
	return info, nil
}

type trc20Transfer struct {
	TransactionID  string `json:"transaction_id"`
	BlockTimestamp int64  `json:"block_timestamp"`
	Block          int64  `json:"block"` // absent on some indexer versions
	From           string `json:"from"`
	To             string `json:"to"`
	Value          string `json:"value"`
	TokenInfo      struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"token_info"`
}

type trc20Response struct {
	Data []trc20Transfer `json:"data"`
}

// IncomingTransfers fetches TRC20 transfers to the address observed since the
// given time, bounded by the indexer page limit.
func (c *Client) IncomingTransfers(ctx context.Context, address string, since time.Time, confirmedOnly bool) ([]ports.RawTransfer, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.pageLimit))
	params.Set("only_confirmed", strconv.FormatBool(confirmedOnly))
	if !since.IsZero() {
		params.Set("min_timestamp", strconv.FormatInt(since.UnixMilli(), 10))
	}

	body, err := c.get(ctx, "/v1/accounts/"+url.PathEscape(address)+"/transactions/trc20", params)
	if err != nil {
		return nil, err
	}

	var resp trc20Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: trc20 payload: %v", ports.ErrIndexerMalformed, err)
	}

	transfers := make([]ports.RawTransfer, 0, len(resp.Data))
	for _, tx := range resp.Data {
		raw, err := parseTransfer(tx)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, raw)
	}
	return transfers, nil
}

// TransferDetail fetches a single transfer by transaction hash.
func (c *Client) TransferDetail(ctx context.Context, txHash string) (*ports.RawTransfer, error) {
	body, err := c.get(ctx, "/v1/transactions/"+url.PathEscape(txHash), nil)
	if err != nil {
		return nil, err
	}

	var resp trc20Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: transaction payload: %v", ports.ErrIndexerMalformed, err)
	}
	if len(resp.Data) == 0 {
		return nil, ports.ErrAccountNotFound
	}
	raw, err := parseTransfer(resp.Data[0])
	if err != nil {
		return nil, err
	}
	return &raw, nil
}

type nowBlockResponse struct {
	BlockHeader struct {
		RawData struct {
			Number int64 `json:"number"`
		} `json:"raw_data"`
	} `json:"block_header"`
}

// CurrentBlockHeight fetches the latest block number.
func (c *Client) CurrentBlockHeight(ctx context.Context) (int64, error) {
	body, err := c.post(ctx, "/wallet/getnowblock")
	if err != nil {
		return 0, err
	}

	var resp nowBlockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: block payload: %v", ports.ErrIndexerMalformed, err)
	}
	if resp.BlockHeader.RawData.Number == 0 {
		return 0, fmt.Errorf("%w: block payload missing number", ports.ErrIndexerMalformed)
	}
	return resp.BlockHeader.RawData.Number, nil
}

// TokenBalance fetches the USDT balance of an address.
func (c *Client) TokenBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	info, err := c.AccountInfo(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	if balance, ok := info.TokenBalances[c.usdtContract]; ok {
		return balance, nil
	}
	return decimal.Zero, nil
}

func parseTransfer(tx trc20Transfer) (ports.RawTransfer, error) {
	value, err := strconv.ParseInt(tx.Value, 10, 64)
	if err != nil {
		return ports.RawTransfer{}, fmt.Errorf("%w: transfer value %q: %v", ports.ErrIndexerMalformed, tx.Value, err)
	}
	return ports.RawTransfer{
		TxID:           tx.TransactionID,
		From:           tx.From,
		To:             tx.To,
		TokenContract:  tx.TokenInfo.Address,
		TokenSymbol:    tx.TokenInfo.Symbol,
		TokenDecimals:  tx.TokenInfo.Decimals,
		RawValue:       value,
		BlockNumber:    tx.Block,
		BlockTimestamp: time.UnixMilli(tx.BlockTimestamp),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ports.ErrIndexerUnavailable, err)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ports.ErrIndexerUnavailable, err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrIndexerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().Int("status", resp.StatusCode).Str("url", req.URL.Path).Msg("trongrid non-2xx response")
		return nil, fmt.Errorf("%w: status %d", ports.ErrIndexerUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ports.ErrIndexerUnavailable, err)
	}
	return body, nil
}
