// Package feed is the market-data feed client (spec.md §4.7, C7): it
// keeps a persistent bidirectional connection to the feed server over
// gorilla/websocket, subscribes to the configured chain tags, and folds
// every accepted marketData event into the aggregation engine. Grounded
// on the teacher repo's pkg/txlistener polling-with-backoff shape
// (blackhole.go dials a client once and lets ethclient handle retries
// internally; this component instead owns its own reconnect loop since a
// websocket, unlike an RPC client, can actually drop).
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/logx"
)

// DefaultChainTags is the chain tag subscription list spec.md §4.7
// defaults to when none is configured.
var DefaultChainTags = []string{"base_v3", "base_v4"}

const (
	minBackoff = 1 * time.Second
	maxBackoff = 10 * time.Second
)

// frame is the envelope every message, inbound or outbound, is wrapped
// in: {"event": "...", "data": {...}}, matching spec.md §6's
// subscribeMarketData/subscribeMarketDataAck/marketData/usdRates_update
// event names.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client owns the feed connection, the in-memory USD price cache
// (spec.md §5's "written only by the feed's usdRates_update handler"),
// and delivery into the aggregation engine.
type Client struct {
	url       string
	chainTags []string
	engine    *aggregate.Engine
	log       *logx.Logger
	dialer    *websocket.Dialer

	mu     sync.RWMutex
	prices map[string]float64

	connMu sync.Mutex
	conn   *websocket.Conn
}

// New builds a feed client targeting serverURL, subscribing to chainTags
// (DefaultChainTags if empty), delivering normalized events into engine.
func New(serverURL string, chainTags []string, engine *aggregate.Engine) *Client {
	if len(chainTags) == 0 {
		chainTags = DefaultChainTags
	}
	return &Client{
		url:       serverURL,
		chainTags: chainTags,
		engine:    engine,
		log:       logx.New("feed"),
		dialer:    websocket.DefaultDialer,
		prices:    make(map[string]float64),
	}
}

// Run connects and reads frames until ctx is cancelled, reconnecting with
// exponential backoff (1s, capped at 10s) on any connection error, per
// spec.md §4.7's "infinite attempts" reconnect policy.
func (c *Client) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.log.Printf("connection lost: %v, reconnecting in %s", err, backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runOnce dials, subscribes, and reads frames until the connection drops
// or ctx is cancelled. A clean ctx cancellation returns nil.
func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", c.url, err)
	}
	defer conn.Close()

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer func() {
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
	}()

	if err := c.subscribe(); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	c.log.Printf("subscribed to chain tags %s", strings.Join(c.chainTags, ","))

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, raw)
	}
}

// Ready reports whether the feed currently holds a live connection, used
// by the control API's /healthz (spec.md §4.8).
func (c *Client) Ready() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

func (c *Client) subscribe() error {
	return c.send(frame{
		Event: "subscribeMarketData",
		Data:  mustMarshal(map[string]interface{}{"chains": c.chainTags}),
	})
}

func (c *Client) send(f frame) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("feed: not connected")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("feed: encode frame: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// handle dispatches one inbound frame by its event kind, per spec.md
// §4.7: marketData feeds aggregation, usdRates_update updates the price
// cache, subscribeMarketDataAck is logged only, anything else is ignored.
func (c *Client) handle(ctx context.Context, raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.log.Printf("malformed frame: %v", err)
		return
	}

	switch f.Event {
	case "marketData":
		c.handleMarketData(ctx, f.Data)
	case "usdRates_update":
		c.handleUsdRates(f.Data)
	case "subscribeMarketDataAck":
		c.log.Printf("subscribe ack: %s", string(f.Data))
	default:
		c.log.Printf("unhandled event kind %q", f.Event)
	}
}

func (c *Client) handleMarketData(ctx context.Context, data json.RawMessage) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		c.log.Printf("marketData: bad payload: %v", err)
		return
	}
	ev, ok := aggregate.Normalize(raw)
	if !ok {
		return
	}
	c.engine.Ingest(ctx, ev)
}

// handleUsdRates merges rate updates into the price cache; spec.md §5
// calls this "selective per-asset" so only present keys are overwritten.
func (c *Client) handleUsdRates(data json.RawMessage) {
	var rates map[string]float64
	if err := json.Unmarshal(data, &rates); err != nil {
		c.log.Printf("usdRates_update: bad payload: %v", err)
		return
	}

	c.mu.Lock()
	for asset, rate := range rates {
		c.prices[strings.ToLower(asset)] = rate
	}
	c.mu.Unlock()
}

// Prices returns a snapshot of the USD price cache, the shape
// internal/trade.PriceSource consumes for policy context building.
func (c *Client) Prices() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

// PriceUSD looks up a single cached asset price by symbol or address,
// case-insensitively.
func (c *Client) PriceUSD(asset string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.prices[strings.ToLower(asset)]
	return v, ok
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
