// Package model holds the data shapes shared across the aggregation
// engine, policy sandbox, trade lifecycle and swap router: PairState and
// its Groups, trades, the policy evaluation context and the live config.
// None of these types own behavior beyond small, pure helpers — mutation
// and lifecycle rules live in the packages that own each entity per the
// ownership model (aggregation owns PairState.Groups; the trade lifecycle
// owns Active/InactiveTrade).
package model

import "time"

// Protocol identifies which DEX router family a pair trades through.
type Protocol string

const (
	ProtocolV2 Protocol = "V2"
	ProtocolV3 Protocol = "V3"
	ProtocolV4 Protocol = "V4"
)

// Fork identifies the specific V3 deployment a pair belongs to, since the
// router ABI and fee encoding differ between them.
type Fork string

const (
	ForkUniswap   Fork = "uniswap"
	ForkAerodrome Fork = "aerodrome"
)

// PairState is the durable, in-memory record of one observed on-chain
// pool. Identity and on-chain shape fields are set on first sight; of
// those, Fork, FeeBps and TickSpacing are overwritten whenever a later
// event carries a value for them. Everything else is refreshed by every
// accepted feed event.
type PairState struct {
	PairAddress string `json:"pair_address"`

	// Set on first observation; Fork, FeeBps and TickSpacing may be
	// refreshed by later events.
	Token0        string   `json:"token0"`
	Token1         string   `json:"token1"`
	Token0Decimals uint8    `json:"token0_decimals"`
	Token1Decimals uint8    `json:"token1_decimals"`
	Protocol       Protocol `json:"protocol"`
	Fork           Fork     `json:"fork,omitempty"`
	FeeBps         uint32   `json:"fee_bps"`
	TickSpacing    *int32   `json:"tick_spacing,omitempty"`
	Hooks          string   `json:"hooks,omitempty"`
	ChainTag       string   `json:"chain_tag"`

	// Mutable, refreshed on every accepted event.
	LastPrice    float64 `json:"last_price"`
	Liquidity    float64 `json:"liquidity"`
	Symbol       string  `json:"symbol,omitempty"`
	Name         string  `json:"name,omitempty"`
	BuyTaxBps    float64 `json:"buy_tax,omitempty"`
	SellTaxBps   float64 `json:"sell_tax,omitempty"`
	LastGroupKey int64   `json:"last_group_key"`
	FirstSeenTS  int64   `json:"first_seen_ts"`

	Groups map[int64]*Group `json:"groups"`
}

// NewPairState seeds a PairState's immutable identity fields at first
// sight of the pair; mutable fields and Groups are populated by the
// aggregation engine as events arrive.
func NewPairState(pairAddress string, nowMillis int64) *PairState {
	return &PairState{
		PairAddress: pairAddress,
		FirstSeenTS: nowMillis,
		Groups:      make(map[int64]*Group),
	}
}

// Group is one OHLCV-style rolling window for a pair, keyed by
// floor(minute_key / group_interval) * group_interval.
type Group struct {
	GroupKey int64 `json:"group_key"`

	FirstPrice     float64 `json:"first_price"`
	LastPrice      float64 `json:"last_price"`
	MinPrice       float64 `json:"min_price"`
	MaxPrice       float64 `json:"max_price"`
	PriceChange    float64 `json:"price_change"`
	PriceChangePct float64 `json:"price_change_pct"`

	BuyVolume   float64 `json:"buy_volume"`
	SellVolume  float64 `json:"sell_volume"`
	TotalVolume float64 `json:"total_volume"`
	BuyCount    int     `json:"buy_count"`
	SellCount   int     `json:"sell_count"`
	Volatility  float64 `json:"volatility"`
}

// NewGroup seeds first_price/min_price/max_price from the triggering
// event's price, per the "first_price is set exactly once" invariant.
func NewGroup(groupKey int64, seedPrice float64) *Group {
	return &Group{
		GroupKey:   groupKey,
		FirstPrice: seedPrice,
		LastPrice:  seedPrice,
		MinPrice:   seedPrice,
		MaxPrice:   seedPrice,
	}
}

// Apply folds one normalized event into the group: updates last_price,
// widens min/max, accumulates volume and recomputes the derived fields.
// liquidity is the pair's current liquidity, used for the volatility
// ratio; zero liquidity leaves volatility at zero rather than dividing
// by zero.
func (g *Group) Apply(price, buyVolume, sellVolume, liquidity float64) {
	g.LastPrice = price
	if price < g.MinPrice {
		g.MinPrice = price
	}
	if price > g.MaxPrice {
		g.MaxPrice = price
	}

	g.BuyVolume += buyVolume
	g.SellVolume += sellVolume
	if buyVolume > 0 {
		g.BuyCount++
	}
	if sellVolume > 0 {
		g.SellCount++
	}
	g.TotalVolume = g.BuyVolume + g.SellVolume

	g.PriceChange = g.LastPrice - g.FirstPrice
	if g.FirstPrice != 0 {
		g.PriceChangePct = g.PriceChange / g.FirstPrice * 100
	}
	if liquidity > 0 {
		g.Volatility = g.TotalVolume / liquidity * 100
	} else {
		g.Volatility = 0
	}
}

// GroupKey floors a minute key to the configured group interval (minutes).
func GroupKey(minuteKey int64, groupIntervalMinutes int64) int64 {
	if groupIntervalMinutes <= 0 {
		groupIntervalMinutes = 1
	}
	return (minuteKey / groupIntervalMinutes) * groupIntervalMinutes
}

// MinuteKey returns floor(timestamp_ms / 60_000), the default minute_key
// when a feed event omits one.
func MinuteKey(nowMillis int64) int64 {
	return nowMillis / 60_000
}

// NowMillis is the single clock read point for aggregation and retention;
// kept as a function value so tests can substitute a fixed clock.
var NowMillis = func() int64 { return time.Now().UnixMilli() }
