package trade

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/metrics"
	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/internal/policy"
	"github.com/nullpointer-labs/evmtrader/internal/router"
)

// runExit re-reads the on-chain balance of the held token, evaluates the
// owning policy's exit predicate, and performs a partial or full sell,
// per spec.md §4.6.
func (l *Lifecycle) runExit(ctx context.Context, cfg *model.Config, pair *model.PairState, ev *aggregate.NormalizedEvent, active *model.ActiveTrade) {
	active.UpdatePrice(pair.LastPrice)

	var predicate string
	for _, p := range cfg.Policies {
		if p.ID == active.PolicyID {
			predicate = p.ExitPredicate
			break
		}
	}
	if predicate == "" {
		return
	}

	evalCtx := l.buildContext(ctx, cfg, pair, ev, active)
	actionPct := l.sandbox.Evaluate(active.PolicyID, policy.KindExit, predicate, evalCtx)
	if actionPct <= 0 {
		return
	}

	l.executeExit(ctx, pair, active, actionPct, model.CloseReasonPolicyExit)
}

// executeExit implements spec.md §4.6's exit flow: re-read the actual
// balance, archive on zero balance, otherwise sell balance*percent/100 and
// either close the trade (percent >= 100) or keep it open with a refreshed
// tokens_in_possession.
func (l *Lifecycle) executeExit(ctx context.Context, pair *model.PairState, active *model.ActiveTrade, actionPct int, reason model.CloseReason) {
	log := l.log

	token0 := common.HexToAddress(active.Token0)
	token1 := common.HexToAddress(active.Token1)
	_, _, baseIsToken0, _ := l.resolveBaseToken(token0, token1, active.Token0Decimals, active.Token1Decimals)

	var heldAddr common.Address
	var heldDecimals uint8
	if baseIsToken0 {
		heldAddr, heldDecimals = token1, active.Token1Decimals
	} else {
		heldAddr, heldDecimals = token0, active.Token0Decimals
	}

	balanceRaw, err := l.chain.BalanceOf(ctx, heldAddr, l.chain.Owner())
	if err != nil {
		log.Printf("exit %s: balance read failed: %v", pair.PairAddress, err)
		return
	}

	if balanceRaw.Sign() == 0 {
		l.closeTrade(active.PairAddress, active.CurrentPrice, model.CloseReasonZeroBalance)
		return
	}

	sellRaw := percentOf(balanceRaw, actionPct)
	if sellRaw.Sign() == 0 {
		return
	}

	if err := l.ensureApprovals(ctx, pair, heldAddr, sellRaw); err != nil {
		log.Printf("exit %s: approval failed: %v", pair.PairAddress, err)
		l.appendLog(logEntry{Status: "ERROR", Symbol: active.Symbol, Pair: active.PairAddress, PolicyID: active.PolicyID, Action: "SELL", Error: err.Error()})
		return
	}

	// is_token0_in for a sell is the inverse of the buy direction
	// (spec.md §4.3): the held (non-base) token is the input side.
	isToken0In := !baseIsToken0
	metrics.SwapAttempts.WithLabelValues("sell").Inc()
	result := l.router.PerformSwap(ctx, pair, sellRaw, isToken0In, common.Big0, router.ActionSell)
	if !result.Success {
		metrics.SwapFailures.WithLabelValues("sell").Inc()
		log.Printf("exit %s: swap failed: %s", pair.PairAddress, result.Error)
		l.appendLog(logEntry{Status: "FAILED", Symbol: active.Symbol, Pair: active.PairAddress, PolicyID: active.PolicyID, Action: "SELL", Error: result.Error})
		return
	}

	active.EthSold += result.ReadableOut

	l.appendLog(logEntry{
		Status:        "SUCCESS",
		Symbol:        active.Symbol,
		Pair:          active.PairAddress,
		PolicyID:      active.PolicyID,
		ActionPercent: actionPct,
		EthAmount:     result.ReadableOut,
		TokenAmount:   toReadableAmount(sellRaw, heldDecimals),
		Action:        "SELL",
	})

	if actionPct >= 100 {
		l.closeTrade(active.PairAddress, pair.LastPrice, reason)
		return
	}

	remainingRaw := new(big.Int).Sub(balanceRaw, sellRaw)
	active.TokensInPossessionRaw = remainingRaw
	active.TokensInPossession = toReadableAmount(remainingRaw, heldDecimals)

	l.saveSnapshot()
}

// closeTrade moves a pair's ActiveTrade into InactiveTrade and persists
// the change, used by policy exits, zero-balance reconciliation and the
// manual sell-all control endpoint.
func (l *Lifecycle) closeTrade(pairAddress string, exitPrice float64, reason model.CloseReason) {
	l.mu.Lock()
	at, ok := l.active[pairAddress]
	if !ok {
		l.mu.Unlock()
		return
	}
	delete(l.active, pairAddress)
	inactive := at.Close(exitPrice, reason, time.Now())
	l.inactive = append(l.inactive, inactive)
	l.mu.Unlock()

	l.appendLog(logEntry{
		Status:   "SUCCESS",
		Symbol:   at.Symbol,
		Pair:     pairAddress,
		PolicyID: at.PolicyID,
		Action:   "CLOSE",
	})
	l.saveSnapshot()
}
