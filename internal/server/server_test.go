package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mardiprk/Mini-MetaDAO/internal/engine"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/handler"
	"github.com/Mardiprk/Mini-MetaDAO/internal/service"
	"github.com/Mardiprk/Mini-MetaDAO/internal/store/memory"
)

const (
	admin = "admin-wallet"
	alice = "alice"
	bob   = "bob"
)

// apiFixture drives the composed HTTP handler end to end over the in-memory
// stores, with a controllable clock so close-time enforcement is testable.
type apiFixture struct {
	t       *testing.T
	handler http.Handler
	clock   time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		t:     t,
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := memory.NewLedger()
	audit := memory.NewAuditStore()
	locks := memory.NewLockManager()

	eng := engine.New(ledger, engine.Params{
		FeeBps:      200,
		MinBet:      100,
		MinDuration: time.Hour,
		MaxDuration: 7 * 24 * time.Hour,
	}, func() time.Time { return f.clock }, logger)

	settlement := service.NewSettlementService(eng, ledger, locks, nil, nil, audit, nil, logger)
	queries := service.NewQueryService(ledger, nil, audit, logger)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(logger),
		Dao:       handler.NewDaoHandler(settlement, queries, logger),
		Proposals: handler.NewProposalHandler(settlement, queries, logger),
		Markets:   handler.NewMarketHandler(settlement, queries, logger),
		Audit:     handler.NewAuditHandler(queries, logger),
	}

	srv := server.NewServer(server.Config{Port: 0}, handlers, nil, nil, logger)
	f.handler = srv.Handler()
	return f
}

func (f *apiFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// do issues a request against the composed handler and decodes the JSON
// response body into a generic map.
func (f *apiFixture) do(method, path, actor string, body any) (int, map[string]any) {
	f.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &out),
			"body: %s", rec.Body.String())
	}
	return rec.Code, out
}

func (f *apiFixture) initDao() {
	f.t.Helper()
	code, _ := f.do(http.MethodPost, "/api/dao/init", admin,
		map[string]any{"governance_mint": "gov-mint"})
	require.Equal(f.t, http.StatusCreated, code)
}

func (f *apiFixture) fund(target string, native uint64) {
	f.t.Helper()
	code, _ := f.do(http.MethodPost, "/api/balances", admin,
		map[string]any{"target": target, "native": native})
	require.Equal(f.t, http.StatusOK, code)
}

func (f *apiFixture) createProposal(creator string) uint64 {
	f.t.Helper()
	code, body := f.do(http.MethodPost, "/api/proposals", creator,
		map[string]any{"description": "fund the grants program"})
	require.Equal(f.t, http.StatusCreated, code)
	return uint64(body["ID"].(float64))
}

func (f *apiFixture) openMarket(id uint64, dur time.Duration) {
	f.t.Helper()
	code, _ := f.do(http.MethodPost, fmt.Sprintf("/api/proposals/%d/market", id), alice,
		map[string]any{"duration_seconds": int64(dur.Seconds())})
	require.Equal(f.t, http.StatusCreated, code)
}

func (f *apiFixture) placeBet(id uint64, bettor, side string, amount uint64) (int, map[string]any) {
	f.t.Helper()
	return f.do(http.MethodPost, fmt.Sprintf("/api/proposals/%d/bets", id), bettor,
		map[string]any{"side": side, "amount": amount})
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)

	code, body := f.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestInitDao(t *testing.T) {
	f := newAPIFixture(t)

	// Mutations require a caller identity.
	code, _ := f.do(http.MethodPost, "/api/dao/init", "",
		map[string]any{"governance_mint": "gov-mint"})
	assert.Equal(t, http.StatusBadRequest, code)

	// Reads before initialization 404.
	code, _ = f.do(http.MethodGet, "/api/dao", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	f.initDao()

	code, body := f.do(http.MethodGet, "/api/dao", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, admin, body["Admin"])

	// The DAO is a singleton.
	code, body = f.do(http.MethodPost, "/api/dao/init", admin,
		map[string]any{"governance_mint": "gov-mint"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_INITIALIZED", body["code"])
}

func TestFundAccount(t *testing.T) {
	f := newAPIFixture(t)
	f.initDao()

	// Only the admin may fund.
	code, body := f.do(http.MethodPost, "/api/balances", alice,
		map[string]any{"target": alice, "native": 1000})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	f.fund(alice, 1000)

	code, body = f.do(http.MethodGet, "/api/balances/"+alice, "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1000), body["Native"])

	// Unfunded accounts read as zero, not missing.
	code, body = f.do(http.MethodGet, "/api/balances/"+bob, "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), body["Native"])
}

func TestProposalLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	f.initDao()

	id := f.createProposal(alice)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(2), f.createProposal(bob))

	code, body := f.do(http.MethodGet, "/api/proposals/1", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, alice, body["Creator"])

	code, body = f.do(http.MethodGet, "/api/proposals/99", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	code, _ = f.do(http.MethodGet, "/api/proposals/not-a-number", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(http.MethodGet, "/api/proposals?limit=1", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["proposals"], 1)
}

func TestMarketLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	f.initDao()
	f.fund(alice, 20_000_000)
	f.fund(bob, 20_000_000)
	id := f.createProposal(alice)

	// No market yet.
	code, body := f.do(http.MethodGet, "/api/proposals/1/market", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	// Duration bounds are enforced.
	code, body = f.do(http.MethodPost, "/api/proposals/1/market", alice,
		map[string]any{"duration_seconds": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INVALID_MARKET_DURATION", body["code"])

	f.openMarket(id, 48*time.Hour)

	// One market per proposal.
	code, body = f.do(http.MethodPost, "/api/proposals/1/market", bob,
		map[string]any{"duration_seconds": int64((48 * time.Hour).Seconds())})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "MARKET_ALREADY_OPEN", body["code"])

	// Bets below the minimum are rejected.
	code, body = f.placeBet(id, alice, "yes", 1)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "BET_TOO_SMALL", body["code"])

	// An unknown side is a bad request.
	code, _ = f.placeBet(id, alice, "maybe", 1000)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.placeBet(id, alice, "yes", 10_000_000)
	require.Equal(t, http.StatusCreated, code)
	code, _ = f.placeBet(id, bob, "no", 5_000_000)
	require.Equal(t, http.StatusCreated, code)

	// Switching sides is rejected.
	code, body = f.placeBet(id, alice, "no", 1000)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "POSITION_SIDE_MISMATCH", body["code"])

	// 2% fee: 10_000_000 gross stakes 9_800_000 YES.
	code, body = f.do(http.MethodGet, "/api/proposals/1/market", "", nil)
	require.Equal(t, http.StatusOK, code)
	market := body["market"].(map[string]any)
	assert.Equal(t, float64(9_800_000), market["YesPool"])
	assert.Equal(t, float64(4_900_000), market["NoPool"])
	assert.Equal(t, float64(300_000), market["FeePool"])
	assert.InDelta(t, 9.8/14.7, body["yes_price"].(float64), 1e-9)

	code, body = f.do(http.MethodGet, "/api/proposals/1/bets", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["positions"], 2)
}

func TestResolveAndRedeem(t *testing.T) {
	f := newAPIFixture(t)
	f.initDao()
	f.fund(alice, 20_000_000)
	f.fund(bob, 20_000_000)
	id := f.createProposal(alice)
	f.openMarket(id, 48*time.Hour)

	code, _ := f.placeBet(id, alice, "yes", 10_000_000)
	require.Equal(t, http.StatusCreated, code)
	code, _ = f.placeBet(id, bob, "no", 5_000_000)
	require.Equal(t, http.StatusCreated, code)

	// Resolution before close time is rejected.
	code, body := f.do(http.MethodPost, "/api/proposals/1/resolve", admin,
		map[string]any{"outcome": "yes"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "MARKET_STILL_ACTIVE", body["code"])

	// Redemption before resolution is rejected.
	code, body = f.do(http.MethodPost, "/api/proposals/1/redeem", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "MARKET_NOT_RESOLVED", body["code"])

	f.advance(49 * time.Hour)

	// Only the admin may resolve.
	code, _ = f.do(http.MethodPost, "/api/proposals/1/resolve", alice,
		map[string]any{"outcome": "yes"})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = f.do(http.MethodPost, "/api/proposals/1/resolve", admin,
		map[string]any{"outcome": "yes"})
	require.Equal(t, http.StatusOK, code)
	market := body["market"].(map[string]any)
	assert.Equal(t, true, market["Resolved"])
	assert.Equal(t, true, market["OutcomeYes"])

	// Resolution is irreversible.
	code, body = f.do(http.MethodPost, "/api/proposals/1/resolve", admin,
		map[string]any{"outcome": "no"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "MARKET_ALREADY_RESOLVED", body["code"])

	// The losing side cannot redeem.
	code, body = f.do(http.MethodPost, "/api/proposals/1/redeem", bob, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "NOT_A_WINNER", body["code"])

	// Winner takes stake plus the full losing pool.
	code, body = f.do(http.MethodPost, "/api/proposals/1/redeem", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(14_700_000), body["payout"])

	code, body = f.do(http.MethodPost, "/api/proposals/1/redeem", alice, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_REDEEMED", body["code"])

	code, body = f.do(http.MethodGet, "/api/balances/"+alice, "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(10_000_000+14_700_000), body["Native"])
}

func TestAuditTrail(t *testing.T) {
	f := newAPIFixture(t)
	f.initDao()
	f.fund(alice, 1000)
	f.createProposal(alice)

	code, body := f.do(http.MethodGet, "/api/audit", "", nil)
	require.Equal(t, http.StatusOK, code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 3)

	// Newest first.
	first := entries[0].(map[string]any)
	assert.Equal(t, "proposal.created", first["Event"])
}
