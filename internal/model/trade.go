package model

import (
	"math/big"
	"time"
)

// CloseReason records why an ActiveTrade was moved to InactiveTrade.
type CloseReason string

const (
	CloseReasonPolicyExit  CloseReason = "policy_exit"
	CloseReasonManual      CloseReason = "manual"
	CloseReasonZeroBalance CloseReason = "zero_balance"
)

// ActiveTrade is one open position on a pair. Pair metadata is snapshotted
// at entry so the swap router can replay the same protocol/fee/decimals
// even if the live PairState has since been evicted by retention.
type ActiveTrade struct {
	PairAddress    string   `json:"pair_address"`
	Protocol       Protocol `json:"protocol"`
	Fork           Fork     `json:"fork,omitempty"`
	FeeBps         uint32   `json:"fee_bps"`
	TickSpacing    *int32   `json:"tick_spacing,omitempty"`
	Token0         string   `json:"token0"`
	Token1         string   `json:"token1"`
	Token0Decimals uint8    `json:"token0_decimals"`
	Token1Decimals uint8    `json:"token1_decimals"`
	Symbol         string   `json:"symbol,omitempty"`

	BaseToken string `json:"base_token"`
	PolicyID  string `json:"policy_id"`

	EntryPrice   float64 `json:"entry_price"`
	EthSpent     float64 `json:"eth_spent"`
	EthSold      float64 `json:"eth_sold"`
	TokensBought float64 `json:"tokens_bought"`

	TokensInPossession    float64  `json:"tokens_in_possession"`
	TokensInPossessionRaw *big.Int `json:"tokens_in_possession_raw"`

	CurrentPrice       float64 `json:"current_price"`
	PriceChangePct     float64 `json:"price_change_pct"`
	MinPriceSinceEntry float64 `json:"min_price_since_entry"`
	MaxPriceSinceEntry float64 `json:"max_price_since_entry"`

	OpenedAt time.Time `json:"opened_at"`
}

// CurrentEthValue is the derived tokens_in_possession x current_price
// figure referenced throughout spec.md §3/§4.6 rather than a stored field,
// so it can never drift out of sync with its inputs.
func (t *ActiveTrade) CurrentEthValue() float64 {
	return t.TokensInPossession * t.CurrentPrice
}

// RecordEntry seeds min/max-since-entry at the entry price, per the
// invariant that both bounds start equal to the price the position opened
// at.
func (t *ActiveTrade) RecordEntry(price float64, now time.Time) {
	t.EntryPrice = price
	t.CurrentPrice = price
	t.MinPriceSinceEntry = price
	t.MaxPriceSinceEntry = price
	t.OpenedAt = now
}

// UpdatePrice refreshes the live-price-derived fields of an open trade
// (current_price, price_change_pct, and the running min/max since entry).
func (t *ActiveTrade) UpdatePrice(price float64) {
	t.CurrentPrice = price
	if t.EntryPrice != 0 {
		t.PriceChangePct = (price - t.EntryPrice) / t.EntryPrice * 100
	}
	if price < t.MinPriceSinceEntry {
		t.MinPriceSinceEntry = price
	}
	if price > t.MaxPriceSinceEntry {
		t.MaxPriceSinceEntry = price
	}
}

// Close converts an ActiveTrade into its closed counterpart. realizedPnlEth
// is computed here (eth_sold - eth_spent) rather than trusted from the
// caller, so the I6 invariant always holds by construction.
func (t *ActiveTrade) Close(exitPrice float64, reason CloseReason, now time.Time) InactiveTrade {
	realizedPnlEth := t.EthSold - t.EthSpent
	var realizedPnlPct float64
	if t.EthSpent != 0 {
		realizedPnlPct = realizedPnlEth / t.EthSpent * 100
	}
	return InactiveTrade{
		ActiveTrade:    *t,
		ExitPrice:      exitPrice,
		ClosedAt:       now,
		RealizedPnlEth: realizedPnlEth,
		RealizedPnlPct: realizedPnlPct,
		CloseReason:    reason,
	}
}

// InactiveTrade is a closed position retained for audit and summary
// reporting.
type InactiveTrade struct {
	ActiveTrade
	ExitPrice      float64     `json:"exit_price"`
	ClosedAt       time.Time   `json:"closed_at"`
	RealizedPnlEth float64     `json:"realized_pnl_eth"`
	RealizedPnlPct float64     `json:"realized_pnl_pct"`
	CloseReason    CloseReason `json:"close_reason"`
}

// Summary is the derived, non-authoritative rollup over active and
// inactive trades described in spec.md §4.6.
type Summary struct {
	OpenTrades      int     `json:"open_trades"`
	ClosedTrades    int     `json:"closed_trades"`
	UnrealizedPnlEth float64 `json:"unrealized_pnl_eth"`
	RealizedPnlEth  float64 `json:"realized_pnl_eth"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	AvgWinPct       float64 `json:"avg_win_pct"`
	AvgLossPct      float64 `json:"avg_loss_pct"`
	WinRatePct      float64 `json:"win_rate_pct"`
	VolumeEth       float64 `json:"volume_eth"`
	NetRoiPct       float64 `json:"net_roi_pct"`
}

// ComputeSummary folds active and inactive trades into a Summary exactly
// as spec.md §4.6 defines each field: unrealized PnL over open positions,
// realized PnL and win/loss stats over closed ones.
func ComputeSummary(active map[string]*ActiveTrade, inactive []InactiveTrade) Summary {
	var s Summary

	s.OpenTrades = len(active)
	s.ClosedTrades = len(inactive)

	var totalSpent float64
	for _, t := range active {
		s.UnrealizedPnlEth += t.CurrentEthValue() + t.EthSold - t.EthSpent
		s.VolumeEth += t.EthSpent
		totalSpent += t.EthSpent
	}

	var winPctSum, lossPctSum float64
	for _, t := range inactive {
		s.RealizedPnlEth += t.RealizedPnlEth
		s.VolumeEth += t.EthSpent
		totalSpent += t.EthSpent
		if t.EthSold >= t.EthSpent {
			s.Wins++
			winPctSum += t.RealizedPnlPct
		} else {
			s.Losses++
			lossPctSum += t.RealizedPnlPct
		}
	}

	if s.Wins > 0 {
		s.AvgWinPct = winPctSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLossPct = lossPctSum / float64(s.Losses)
	}
	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRatePct = float64(s.Wins) / float64(decided) * 100
	}
	if totalSpent > 0 {
		s.NetRoiPct = (s.UnrealizedPnlEth + s.RealizedPnlEth) / totalSpent * 100
	}

	return s
}
