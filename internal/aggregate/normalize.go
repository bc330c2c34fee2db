// Package aggregate is the market-data ingestion and aggregation engine
// (spec.md §4.4, C4): it normalizes heterogeneous feed payloads into a
// flat event shape, folds each accepted event into the right PairState and
// Group, and dispatches to the policy/trade layer through the Dispatcher
// interface it owns no further knowledge of. Grounded on the teacher
// repo's defensive-parsing instinct (blackhole.go's receipt/event JSON
// walking in MintNftTokenId) generalized into spec.md §9's "defensive
// extractor that walks both candidates".
package aggregate

import (
	"strconv"

	"github.com/nullpointer-labs/evmtrader/internal/model"
)

// NormalizedEvent is the flat shape every heterogeneous feed payload is
// reduced to before it reaches the aggregation engine proper.
type NormalizedEvent struct {
	PairAddress string
	ChainTag    string

	LastPrice float64
	BuyVolume float64
	SellVolume float64
	Liquidity float64
	MinuteKey int64

	Token0         string
	Token1         string
	Token0Decimals uint8
	Token1Decimals uint8
	FeeBps         uint32
	Fork           model.Fork
	Protocol       model.Protocol
	TickSpacing    *int32
	Hooks          string

	Symbol     string
	Name       string
	BuyTaxBps  float64
	SellTaxBps float64
}

// Normalize walks a raw decoded JSON payload (map[string]interface{}) and
// extracts a NormalizedEvent, tolerating both a nested {"data": {...}}
// envelope and a flat shape, and both camelCase and snake_case field
// names, per spec.md §4.4/§9. It returns ok=false for anything that
// doesn't resolve to a usable pair_address and a positive last_price.
func Normalize(raw map[string]interface{}) (*NormalizedEvent, bool) {
	root := raw
	if nested, ok := asMap(raw["data"]); ok {
		root = mergeMaps(raw, nested)
	}

	pairAddress := lowerStr(firstString(root, "pair_address", "pairAddress", "pair", "address"))
	if pairAddress == "" {
		return nil, false
	}

	lastPrice, ok := firstFloat(root, "last_price", "lastPrice", "price")
	if !ok || lastPrice <= 0 {
		return nil, false
	}

	ev := &NormalizedEvent{
		PairAddress: pairAddress,
		ChainTag:    firstString(root, "chain_tag", "chainTag", "chain"),
		LastPrice:   lastPrice,
	}

	ev.BuyVolume, _ = firstFloat(root, "buy_volume", "buyVolume")
	ev.SellVolume, _ = firstFloat(root, "sell_volume", "sellVolume")
	ev.Liquidity, _ = firstFloat(root, "liquidity", "liquidityUsd", "liquidityUSD")

	if mk, ok := firstInt(root, "minute_key", "minuteKey"); ok {
		ev.MinuteKey = mk
	} else {
		ev.MinuteKey = model.MinuteKey(model.NowMillis())
	}

	ev.Token0 = lowerStr(firstString(root, "token0", "token0Address"))
	ev.Token1 = lowerStr(firstString(root, "token1", "token1Address"))

	if d, ok := firstInt(root, "token0_decimals", "token0Decimals"); ok {
		ev.Token0Decimals = uint8(d)
	}
	if d, ok := firstInt(root, "token1_decimals", "token1Decimals"); ok {
		ev.Token1Decimals = uint8(d)
	}

	if fee, ok := firstInt(root, "fee_bps", "feeBps", "fee"); ok {
		ev.FeeBps = uint32(fee)
	}

	ev.Fork = model.Fork(firstString(root, "fork"))
	ev.Protocol = model.Protocol(firstString(root, "protocol"))
	ev.Hooks = lowerStr(firstString(root, "hooks"))

	if ts, ok := firstInt(root, "tick_spacing", "tickSpacing"); ok {
		v := int32(ts)
		ev.TickSpacing = &v
	}

	ev.Symbol = firstString(root, "symbol")
	ev.Name = firstString(root, "name")
	ev.BuyTaxBps, _ = firstFloat(root, "buy_tax", "buyTax")
	ev.SellTaxBps, _ = firstFloat(root, "sell_tax", "sellTax")

	return ev, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// mergeMaps layers child over parent so a nested {"data": {...}} payload's
// fields win, but top-level fields (e.g. an envelope-level chain tag) are
// still visible to the extractor.
func mergeMaps(parent, child map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := toString(v); ok {
				return s
			}
		}
	}
	return ""
}

func firstFloat(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func firstInt(m map[string]interface{}, keys ...string) (int64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := toFloat(v); ok {
				return int64(f), true
			}
		}
	}
	return 0, false
}

func toString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func lowerStr(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
