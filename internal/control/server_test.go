package control

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/chain"
	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/internal/router"
	"github.com/nullpointer-labs/evmtrader/internal/trade"
)

func testServer(t *testing.T) *Server {
	cfg := &model.Config{MaxEthPerTrade: 0.1, MaxPositions: 3, GroupInterval: 1, MaxGroups: 50}
	store := NewConfigStore(filepath.Join(t.TempDir(), "config.yml"), cfg)

	var lc *trade.Lifecycle
	engine := aggregate.New(func() *model.Config { return store.Get() }, nil, func(pair string) bool { return lc.HasActiveTrade(pair) })

	clnt := chain.NewClient(nil, nil, common.HexToAddress("0x1234567890123456789012345678901234567890"), nil)

	lc = trade.New(
		func() *model.Config { return store.Get() },
		engine,
		clnt,
		nil,
		nil,
		trade.TokenAddresses{},
		router.Addresses{},
		func() map[string]float64 { return nil },
		nil,
		filepath.Join(t.TempDir(), "trades.json"),
		filepath.Join(t.TempDir(), "trades.log"),
	)

	return New(0, lc, engine, clnt, store, func() bool { return true }, func() bool { return true })
}

func TestStatusReportsPausedUptimeAndWallet(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["paused"])
	assert.Contains(t, body["wallet_address"], "0x")
}

func TestPauseThenResumeRoundTrips(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("POST", "/pause", nil))
	assert.Equal(t, 200, w.Code)
	assert.True(t, s.lifecycle.IsPaused())

	w = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("POST", "/resume", nil))
	assert.Equal(t, 200, w.Code)
	assert.False(t, s.lifecycle.IsPaused())
}

func TestGetConfigReturnsCurrentValues(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/config", nil))
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "max_eth_per_trade")
}

func TestPostConfigRejectsUnknownKey(t *testing.T) {
	s := testServer(t)

	body, _ := json.Marshal(map[string]interface{}{"not_a_real_key": 1})
	req := httptest.NewRequest("POST", "/config", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestPostConfigAppliesWhitelistedKey(t *testing.T) {
	s := testServer(t)

	body, _ := json.Marshal(map[string]interface{}{"max_eth_per_trade": 0.25})
	req := httptest.NewRequest("POST", "/config", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	assert.Equal(t, 0.25, s.store.Get().MaxEthPerTrade)
}

func TestSellWithNoActiveTradeReturns404(t *testing.T) {
	s := testServer(t)

	body, _ := json.Marshal(map[string]interface{}{"pair": "0xabc", "percent": 50})
	req := httptest.NewRequest("POST", "/sell", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
}

func TestSellRejectsOutOfRangePercent(t *testing.T) {
	s := testServer(t)

	body, _ := json.Marshal(map[string]interface{}{"pair": "0xabc", "percent": 0})
	req := httptest.NewRequest("POST", "/sell", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestBuyOnUnknownPairReturns404(t *testing.T) {
	s := testServer(t)

	body, _ := json.Marshal(map[string]interface{}{"pair": "0xabc", "ethAmount": 0.1})
	req := httptest.NewRequest("POST", "/buy", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
}

func TestUnknownRouteReturns404(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, 404, w.Code)
}

func TestHealthzReflectsReadiness(t *testing.T) {
	cfg := &model.Config{}
	store := NewConfigStore(filepath.Join(t.TempDir(), "config.yml"), cfg)
	var lc *trade.Lifecycle
	engine := aggregate.New(func() *model.Config { return store.Get() }, nil, func(pair string) bool { return lc.HasActiveTrade(pair) })
	clnt := chain.NewClient(nil, nil, common.HexToAddress("0x1234567890123456789012345678901234567890"), nil)
	lc = trade.New(func() *model.Config { return store.Get() }, engine, clnt, nil, nil, trade.TokenAddresses{}, router.Addresses{}, func() map[string]float64 { return nil }, nil, filepath.Join(t.TempDir(), "t.json"), filepath.Join(t.TempDir(), "t.log"))

	s := New(0, lc, engine, clnt, store, func() bool { return false }, func() bool { return true })

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 503, w.Code)
}
