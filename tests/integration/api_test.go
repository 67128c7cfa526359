package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kdero/trustx/config"
	httpHandler "github.com/Kdero/trustx/internal/adapter/http/handler"
	"github.com/Kdero/trustx/internal/adapter/http/middleware"
	redisStorage "github.com/Kdero/trustx/internal/adapter/storage/redis"
	"github.com/Kdero/trustx/internal/core/ports"
	"github.com/Kdero/trustx/internal/service"
	"github.com/Kdero/trustx/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet        = "TWalletSharedDepositAddr111111111"
	testUSDTContract  = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	testAdminKey      = "integration-admin-key"
	testSigningSecret = "integration-callback-secret"
	minConfirmations  = 19
)

// testApp wires the full stack end to end: real HTTP layer, services and
// Redis stores (miniredis), with in-memory repos standing in for postgres and
// a scripted fakeChain standing in for TronGrid.
type testApp struct {
	server       *httptest.Server
	chain        *fakeChain
	paymentRepo  *inMemoryPaymentRepo
	transferRepo *inMemoryTransferRepo
	balanceRepo  *inMemoryBalanceRepo
	reconciler   *service.ReconcilerImpl
	mr           *miniredis.Miniredis
	rdb          *goredis.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := logger.New("error", false)

	app := &testApp{
		chain:        newFakeChain(1000),
		paymentRepo:  newInMemoryPaymentRepo(),
		transferRepo: newInMemoryTransferRepo(),
		balanceRepo:  newInMemoryBalanceRepo(),
		mr:           mr,
		rdb:          rdb,
	}

	tronCfg := config.TronConfig{
		USDTContract:  testUSDTContract,
		WalletAddress: testWallet,
	}
	recCfg := config.ReconcilerConfig{
		Interval:         50 * time.Millisecond,
		MinConfirmations: minConfirmations,
		PaymentExpiry:    time.Hour,
		LockTTL:          time.Minute,
		SeenCacheTTL:     time.Hour,
	}

	settlementSvc := service.NewSettlementService(app.balanceRepo, &inMemoryTransactor{}, testSigningSecret, log)
	app.reconciler = service.NewReconciler(
		app.paymentRepo,
		app.transferRepo,
		app.chain,
		settlementSvc,
		redisStorage.NewSeenCache(rdb),
		redisStorage.NewReconcileLock(rdb),
		tronCfg,
		recCfg,
		log,
	)
	paymentSvc := service.NewPaymentService(
		app.paymentRepo,
		app.transferRepo,
		app.reconciler,
		settlementSvc,
		testWallet,
		recCfg.PaymentExpiry,
		log,
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:  paymentSvc,
		AdminAPIKey: testAdminKey,
		Logger:      log,
	})
	app.server = httptest.NewServer(router)
	return app
}

func (app *testApp) close() {
	app.server.Close()
	app.rdb.Close()
	app.mr.Close()
}

// --- HTTP helpers ---

func (app *testApp) post(t *testing.T, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, app.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return app.do(t, req)
}

func (app *testApp) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, app.server.URL+path, nil)
	require.NoError(t, err)
	return app.do(t, req)
}

func (app *testApp) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), "non-JSON response: %s", raw)
	return resp.StatusCode, body
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func (app *testApp) createPayment(t *testing.T, body string) string {
	t.Helper()
	status, resp := app.post(t, "/api/v1/payments", body, nil)
	require.Equal(t, http.StatusCreated, status, "create failed: %v", resp)
	paymentID, _ := data(t, resp)["payment_id"].(string)
	require.Len(t, paymentID, 8)
	return paymentID
}

func (app *testApp) getStatus(t *testing.T, paymentID string) map[string]any {
	t.Helper()
	status, resp := app.get(t, "/api/v1/payments/"+paymentID)
	require.Equal(t, http.StatusOK, status, "status lookup failed: %v", resp)
	return data(t, resp)
}

// usdtDeposit builds a raw USDT transfer to the shared wallet. rawValue is in
// the smallest token unit (100 USDT = 100_000_000).
func usdtDeposit(txHash string, rawValue, block int64) ports.RawTransfer {
	return ports.RawTransfer{
		TxID:           txHash,
		From:           "TSenderAddr1111111111111111111111",
		To:             testWallet,
		TokenContract:  testUSDTContract,
		TokenSymbol:    "USDT",
		TokenDecimals:  6,
		RawValue:       rawValue,
		BlockNumber:    block,
		BlockTimestamp: time.Now().UTC(),
	}
}

// --- Lifecycle ---

func TestDepositLifecycle_PendingToCompleted(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ownerID := uuid.New()
	paymentID := app.createPayment(t, fmt.Sprintf(
		`{"currency":"USDT","amount":"100","owner_id":"%s"}`, ownerID))

	// No transfers yet: the synchronous recheck leaves the payment pending.
	snap := app.getStatus(t, paymentID)
	assert.Equal(t, "pending", snap["status"])
	assert.Equal(t, testWallet, snap["address"])

	// A matching 100 USDT transfer lands 5 blocks deep: below the threshold.
	app.chain.addTransfer(usdtDeposit("tx-lifecycle-1", 100_000_000, 995))
	snap = app.getStatus(t, paymentID)
	assert.Equal(t, "confirming", snap["status"])
	assert.Equal(t, "100", snap["amount_received"])
	assert.Equal(t, float64(5), snap["confirmations"])

	// No credit before the confirmation threshold.
	entries, err := app.balanceRepo.ListEntries(t.Context(), ownerID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The chain advances past the threshold.
	app.chain.setHeight(995 + minConfirmations)
	snap = app.getStatus(t, paymentID)
	assert.Equal(t, "completed", snap["status"])
	assert.NotNil(t, snap["completed_at"])

	// Exactly one credit of the expected amount.
	entries, err = app.balanceRepo.ListEntries(t.Context(), ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "100", entries[0].Amount.String())

	account, err := app.balanceRepo.GetAccount(t.Context(), ownerID)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "100", account.Balance.String())
}

func TestDepositLifecycle_SurvivesFailedPaymentPersist(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ownerID := uuid.New()
	paymentID := app.createPayment(t, fmt.Sprintf(
		`{"currency":"USDT","amount":"100","owner_id":"%s"}`, ownerID))

	// A fully confirmed deposit lands, but the payment store refuses the
	// write after the transfer was committed to the ledger.
	app.chain.addTransfer(usdtDeposit("tx-persist-1", 100_000_000, 981))
	app.paymentRepo.failUpdates(1)
	app.reconciler.RunOnce(t.Context())

	stored, err := app.paymentRepo.GetByPaymentID(t.Context(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(stored.Status), "failed persist leaves the stored row behind")

	// The next healthy pass restores the amount from the ledger and settles.
	app.reconciler.RunOnce(t.Context())

	snap := app.getStatus(t, paymentID)
	assert.Equal(t, "completed", snap["status"])
	assert.Equal(t, "100", snap["amount_received"])

	entries, err := app.balanceRepo.ListEntries(t.Context(), ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the recovered deposit is credited exactly once")
	assert.Equal(t, "100", entries[0].Amount.String())
	assert.Equal(t, 1, app.transferRepo.count())
}

func TestDepositLifecycle_RepollIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ownerID := uuid.New()
	paymentID := app.createPayment(t, fmt.Sprintf(
		`{"currency":"USDT","amount":"100","owner_id":"%s"}`, ownerID))

	app.chain.addTransfer(usdtDeposit("tx-repoll-1", 100_000_000, 995))
	app.chain.setHeight(995 + minConfirmations)

	for i := 0; i < 5; i++ {
		app.reconciler.RunOnce(t.Context())
	}
	snap := app.getStatus(t, paymentID)

	assert.Equal(t, "completed", snap["status"])
	assert.Equal(t, "100", snap["amount_received"], "re-polls must not double-count the transfer")
	assert.Equal(t, 1, app.transferRepo.count(), "one on-chain transfer maps to one ledger record")

	entries, err := app.balanceRepo.ListEntries(t.Context(), ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1, "settlement must credit exactly once")
}

func TestDepositLifecycle_OverpaymentCreditsExpectedOnly(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ownerID := uuid.New()
	paymentID := app.createPayment(t, fmt.Sprintf(
		`{"currency":"USDT","amount":"100","owner_id":"%s"}`, ownerID))

	// Two partial transfers totalling 110, both well past the threshold.
	app.chain.setHeight(2000)
	app.chain.addTransfer(usdtDeposit("tx-over-1", 60_000_000, 900))
	app.chain.addTransfer(usdtDeposit("tx-over-2", 50_000_000, 910))

	snap := app.getStatus(t, paymentID)
	assert.Equal(t, "completed", snap["status"])
	assert.Equal(t, "110", snap["amount_received"])

	entries, err := app.balanceRepo.ListEntries(t.Context(), ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "100", entries[0].Amount.String(), "only the expected amount is credited")
}

func TestDepositLifecycle_PartialPaymentStaysConfirming(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	paymentID := app.createPayment(t, `{"currency":"USDT","amount":"100"}`)

	app.chain.setHeight(2000)
	app.chain.addTransfer(usdtDeposit("tx-partial-1", 40_000_000, 900))

	snap := app.getStatus(t, paymentID)
	assert.Equal(t, "confirming", snap["status"])
	assert.Equal(t, "40", snap["amount_received"])
}

func TestDepositLifecycle_PendingPaymentExpires(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	paymentID := app.createPayment(t, `{"currency":"USDT","amount":"100"}`)

	// Push the deadline into the past directly in storage.
	p, err := app.paymentRepo.GetByPaymentID(t.Context(), paymentID)
	require.NoError(t, err)
	p.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, app.paymentRepo.Update(t.Context(), p))

	snap := app.getStatus(t, paymentID)
	assert.Equal(t, "expired", snap["status"])

	// A transfer arriving after expiry no longer moves the payment.
	app.chain.addTransfer(usdtDeposit("tx-late-1", 100_000_000, 995))
	snap = app.getStatus(t, paymentID)
	assert.Equal(t, "expired", snap["status"])
	assert.Equal(t, "0", snap["amount_received"])
}

func TestDepositLifecycle_ForeignTransferIgnored(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	paymentID := app.createPayment(t, `{"currency":"USDT","amount":"100"}`)

	// Right address, wrong token contract.
	wrongToken := usdtDeposit("tx-foreign-1", 100_000_000, 995)
	wrongToken.TokenContract = "TOtherTokenContract11111111111111"
	app.chain.addTransfer(wrongToken)

	app.chain.setHeight(2000)
	snap := app.getStatus(t, paymentID)
	assert.Equal(t, "pending", snap["status"])
	assert.Equal(t, "0", snap["amount_received"])
}

// --- Admin overrides ---

func TestAdminApprove_CompletesAndSettles(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ownerID := uuid.New()
	paymentID := app.createPayment(t, fmt.Sprintf(
		`{"currency":"USDT","amount":"100","owner_id":"%s"}`, ownerID))

	status, resp := app.post(t, "/api/v1/admin/payments/"+paymentID+"/approve", "",
		map[string]string{middleware.HeaderAdminKey: testAdminKey})
	require.Equal(t, http.StatusOK, status, "approve failed: %v", resp)
	assert.Equal(t, "completed", data(t, resp)["status"])

	entries, err := app.balanceRepo.ListEntries(t.Context(), ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "100", entries[0].Amount.String())

	// Approving again is a no-op: still one credit.
	status, _ = app.post(t, "/api/v1/admin/payments/"+paymentID+"/approve", "",
		map[string]string{middleware.HeaderAdminKey: testAdminKey})
	require.Equal(t, http.StatusOK, status)
	entries, err = app.balanceRepo.ListEntries(t.Context(), ownerID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAdminReject_FailsOpenPayment(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	paymentID := app.createPayment(t, `{"currency":"USDT","amount":"100"}`)

	status, resp := app.post(t, "/api/v1/admin/payments/"+paymentID+"/reject", "",
		map[string]string{middleware.HeaderAdminKey: testAdminKey})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "failed", data(t, resp)["status"])

	// Terminal: the reconciler never resurrects it.
	app.chain.addTransfer(usdtDeposit("tx-rejected-1", 100_000_000, 995))
	app.chain.setHeight(2000)
	app.reconciler.RunOnce(t.Context())
	snap := app.getStatus(t, paymentID)
	assert.Equal(t, "failed", snap["status"])
}

func TestAdminRoutes_RejectWrongKey(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	paymentID := app.createPayment(t, `{"currency":"USDT","amount":"100"}`)

	status, resp := app.post(t, "/api/v1/admin/payments/"+paymentID+"/approve", "",
		map[string]string{middleware.HeaderAdminKey: "wrong-key"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "ADM_001", resp["error_code"])
}

// --- Callback delivery ---

func TestSettlement_DeliversSignedCallback(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	type delivery struct {
		body      []byte
		signature string
	}
	received := make(chan delivery, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received <- delivery{body: raw, signature: r.Header.Get(service.HeaderCallbackSignature)}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	paymentID := app.createPayment(t, fmt.Sprintf(
		`{"currency":"USDT","amount":"100","callback_url":"%s"}`, hook.URL))

	app.chain.addTransfer(usdtDeposit("tx-callback-1", 100_000_000, 995))
	app.chain.setHeight(995 + minConfirmations)
	app.reconciler.RunOnce(t.Context())

	select {
	case got := <-received:
		var payload map[string]any
		require.NoError(t, json.Unmarshal(got.body, &payload))
		assert.Equal(t, paymentID, payload["payment_id"])
		assert.Equal(t, "completed", payload["status"])
		assert.Equal(t, "100", payload["amount_received"])
		assert.Equal(t, "tx-callback-1", payload["tx_hash"])
		assert.True(t, service.NewHMACSignatureService().Verify(testSigningSecret, got.body, got.signature),
			"callback body must carry a valid signature")
	case <-time.After(3 * time.Second):
		t.Fatal("callback was never delivered")
	}
}

// --- Validation surface ---

func TestCreatePayment_RejectsBadInput(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	cases := []struct {
		name string
		body string
	}{
		{"zero amount", `{"currency":"USDT","amount":"0"}`},
		{"too many decimals", `{"currency":"USDT","amount":"1.0000001"}`},
		{"unsupported currency", `{"currency":"BTC","amount":"100"}`},
		{"bad callback scheme", `{"currency":"USDT","amount":"100","callback_url":"ftp://example.com"}`},
		{"bad owner id", `{"currency":"USDT","amount":"100","owner_id":"not-a-uuid"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := app.post(t, "/api/v1/payments", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestGetPayment_UnknownID(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	status, resp := app.get(t, "/api/v1/payments/ZZZZZZZZ")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "PAY_001", resp["error_code"])
}
