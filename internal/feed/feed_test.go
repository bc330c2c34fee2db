package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/logx"
	"github.com/nullpointer-labs/evmtrader/internal/model"
)

func testEngine() *aggregate.Engine {
	cfg := &model.Config{GroupInterval: 1, MaxGroups: 100}
	return aggregate.New(func() *model.Config { return cfg }, nil, func(string) bool { return false })
}

// newFakeServer starts a websocket server that upgrades one connection and
// forwards every frame it reads onto the returned channel.
func newFakeServer(t *testing.T) (url string, received <-chan frame, closeServer func()) {
	upgrader := websocket.Upgrader{}
	ch := make(chan frame, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			ch <- f
		}
	}))

	url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return url, ch, srv.Close
}

func TestRunOnceSubscribesOnConnect(t *testing.T) {
	url, received, closeServer := newFakeServer(t)
	defer closeServer()

	c := New(url, []string{"base_v3"}, testEngine())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.runOnce(ctx) }()
	defer cancel()

	select {
	case f := <-received:
		assert.Equal(t, "subscribeMarketData", f.Event)
		assert.Contains(t, string(f.Data), "base_v3")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe frame")
	}
}

func TestHandleMarketDataIngestsIntoEngine(t *testing.T) {
	c := &Client{engine: testEngine(), log: logx.New("feed-test"), prices: map[string]float64{}}

	c.handleMarketData(context.Background(), mustMarshal(map[string]interface{}{
		"pair_address": "0xAAA",
		"last_price":   1.5,
		"minute_key":   100,
	}))

	pair := c.engine.Pair("0xaaa")
	require.NotNil(t, pair)
	assert.Equal(t, 1.5, pair.LastPrice)
}

func TestHandleMarketDataIgnoresUnresolvablePayload(t *testing.T) {
	c := &Client{engine: testEngine(), log: logx.New("feed-test"), prices: map[string]float64{}}
	c.handleMarketData(context.Background(), mustMarshal(map[string]interface{}{"last_price": 1.5}))
	assert.Equal(t, 0, c.engine.PairCount())
}

func TestHandleUsdRatesMergesSelectively(t *testing.T) {
	c := &Client{log: logx.New("feed-test"), prices: map[string]float64{"weth": 3000}}

	c.handleUsdRates(mustMarshal(map[string]float64{"ZORA": 0.002}))

	weth, ok := c.PriceUSD("weth")
	assert.True(t, ok)
	assert.Equal(t, 3000.0, weth)

	zora, ok := c.PriceUSD("zora")
	assert.True(t, ok)
	assert.Equal(t, 0.002, zora)
}

func TestHandleSubscribeAckDoesNotPanic(t *testing.T) {
	c := &Client{log: logx.New("feed-test"), prices: map[string]float64{}}
	raw := mustMarshal(frame{Event: "subscribeMarketDataAck", Data: mustMarshal(map[string]interface{}{"chains": []string{"base_v3"}})})
	assert.NotPanics(t, func() {
		c.handle(context.Background(), raw)
	})
}

func TestPricesReturnsIndependentSnapshot(t *testing.T) {
	c := &Client{log: logx.New("feed-test"), prices: map[string]float64{"weth": 3000}}
	snap := c.Prices()
	snap["weth"] = 1
	weth, _ := c.PriceUSD("weth")
	assert.Equal(t, 3000.0, weth)
}
