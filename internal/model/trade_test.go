package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordEntrySeedsMinMaxAtEntryPrice(t *testing.T) {
	at := &ActiveTrade{}
	at.RecordEntry(10, time.Now())
	assert.Equal(t, 10.0, at.EntryPrice)
	assert.Equal(t, 10.0, at.CurrentPrice)
	assert.Equal(t, 10.0, at.MinPriceSinceEntry)
	assert.Equal(t, 10.0, at.MaxPriceSinceEntry)
}

func TestUpdatePriceWidensMinMaxAndTracksChangePct(t *testing.T) {
	at := &ActiveTrade{}
	at.RecordEntry(10, time.Now())

	at.UpdatePrice(15)
	assert.Equal(t, 15.0, at.MaxPriceSinceEntry)
	assert.Equal(t, 10.0, at.MinPriceSinceEntry)
	assert.InDelta(t, 50.0, at.PriceChangePct, 0.0001)

	at.UpdatePrice(5)
	assert.Equal(t, 5.0, at.MinPriceSinceEntry)
	assert.Equal(t, 15.0, at.MaxPriceSinceEntry)
	assert.InDelta(t, -50.0, at.PriceChangePct, 0.0001)
}

func TestCurrentEthValueMultipliesTokensByCurrentPrice(t *testing.T) {
	at := &ActiveTrade{TokensInPossession: 4, CurrentPrice: 2.5}
	assert.Equal(t, 10.0, at.CurrentEthValue())
}

func TestCloseComputesRealizedPnlFromEthSoldMinusEthSpent(t *testing.T) {
	at := &ActiveTrade{EthSpent: 1.0, EthSold: 1.5}
	inactive := at.Close(3.2, CloseReasonPolicyExit, time.Now())

	assert.Equal(t, 0.5, inactive.RealizedPnlEth)
	assert.InDelta(t, 50.0, inactive.RealizedPnlPct, 0.0001)
	assert.Equal(t, CloseReasonPolicyExit, inactive.CloseReason)
	assert.Equal(t, 3.2, inactive.ExitPrice)
}

func TestComputeSummaryCountsWinsAndLosses(t *testing.T) {
	active := map[string]*ActiveTrade{
		"a": {TokensInPossession: 2, CurrentPrice: 3, EthSold: 0, EthSpent: 1},
	}
	inactive := []InactiveTrade{
		{ActiveTrade: ActiveTrade{EthSpent: 1, EthSold: 2}, RealizedPnlEth: 1, RealizedPnlPct: 100},
		{ActiveTrade: ActiveTrade{EthSpent: 1, EthSold: 0.5}, RealizedPnlEth: -0.5, RealizedPnlPct: -50},
	}

	s := ComputeSummary(active, inactive)
	assert.Equal(t, 1, s.OpenTrades)
	assert.Equal(t, 2, s.ClosedTrades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 50.0, s.WinRatePct, 0.0001)
	assert.InDelta(t, 100.0, s.AvgWinPct, 0.0001)
	assert.InDelta(t, -50.0, s.AvgLossPct, 0.0001)
	assert.InDelta(t, 0.5, s.RealizedPnlEth, 0.0001)
	assert.InDelta(t, 5.0, s.UnrealizedPnlEth, 0.0001)
}

func TestComputeSummaryHandlesNoTradesWithoutDividingByZero(t *testing.T) {
	s := ComputeSummary(map[string]*ActiveTrade{}, nil)
	assert.Equal(t, 0, s.OpenTrades)
	assert.Equal(t, 0.0, s.WinRatePct)
	assert.Equal(t, 0.0, s.NetRoiPct)
}
