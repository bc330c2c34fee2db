package trade

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/metrics"
	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/internal/policy"
	"github.com/nullpointer-labs/evmtrader/internal/router"
)

// runEntry tries each policy's entry predicate in order and fires the
// first one that returns a positive action percent; at most one entry
// fires per evaluation cycle across policies, per spec.md §4.6.
func (l *Lifecycle) runEntry(ctx context.Context, cfg *model.Config, pair *model.PairState, ev *aggregate.NormalizedEvent) {
	l.mu.Lock()
	openCount := len(l.active)
	_, alreadyOpen := l.active[pair.PairAddress]
	l.mu.Unlock()

	if alreadyOpen || openCount >= cfg.MaxPositions {
		return
	}

	for _, p := range cfg.Policies {
		if p.EntryPredicate == "" {
			continue
		}
		evalCtx := l.buildContext(ctx, cfg, pair, ev, nil)
		actionPct := l.sandbox.Evaluate(p.ID, policy.KindEntry, p.EntryPredicate, evalCtx)
		if actionPct <= 0 {
			continue
		}

		ethAmount := cfg.MaxEthPerTrade * float64(actionPct) / 100
		l.executeEntry(ctx, pair, p.ID, ethAmount)
		return
	}
}

// executeEntry implements spec.md §4.6's entry steps 1-7: compute the
// base-token amount, ensure approvals for the protocol's spender, perform
// the buy, and on success create the ActiveTrade; on failure append an
// error log entry and release the lock (handled by the caller).
func (l *Lifecycle) executeEntry(ctx context.Context, pair *model.PairState, policyID string, ethAmount float64) {
	log := l.log
	if ethAmount <= 0 {
		return
	}

	token0 := common.HexToAddress(pair.Token0)
	token1 := common.HexToAddress(pair.Token1)
	baseAddr, baseDecimals, baseIsToken0, baseName := l.resolveBaseToken(token0, token1, pair.Token0Decimals, pair.Token1Decimals)

	amountInRaw := toRawAmount(ethAmount, baseDecimals)
	if amountInRaw.Sign() <= 0 {
		return
	}

	if err := l.ensureApprovals(ctx, pair, baseAddr, amountInRaw); err != nil {
		log.Printf("entry %s: approval failed: %v", pair.PairAddress, err)
		l.appendLog(logEntry{Status: "ERROR", Symbol: pair.Symbol, Pair: pair.PairAddress, PolicyID: policyID, Action: "BUY", Error: err.Error()})
		return
	}

	metrics.SwapAttempts.WithLabelValues("buy").Inc()
	result := l.router.PerformSwap(ctx, pair, amountInRaw, baseIsToken0, common.Big0, router.ActionBuy)
	if !result.Success {
		metrics.SwapFailures.WithLabelValues("buy").Inc()
		log.Printf("entry %s: swap failed: %s", pair.PairAddress, result.Error)
		l.appendLog(logEntry{Status: "FAILED", Symbol: pair.Symbol, Pair: pair.PairAddress, PolicyID: policyID, Action: "BUY", Error: result.Error})
		return
	}

	now := time.Now()
	at := &model.ActiveTrade{
		PairAddress:    pair.PairAddress,
		Protocol:       pair.Protocol,
		Fork:           pair.Fork,
		FeeBps:         pair.FeeBps,
		TickSpacing:    pair.TickSpacing,
		Token0:         pair.Token0,
		Token1:         pair.Token1,
		Token0Decimals: pair.Token0Decimals,
		Token1Decimals: pair.Token1Decimals,
		Symbol:         pair.Symbol,
		BaseToken:      baseName,
		PolicyID:       policyID,
		EthSpent:       ethAmount,
		TokensBought:   result.ReadableOut,
	}
	at.TokensInPossession = result.ReadableOut
	at.TokensInPossessionRaw = result.AmountOutRaw
	at.RecordEntry(pair.LastPrice, now)

	l.mu.Lock()
	l.active[pair.PairAddress] = at
	l.mu.Unlock()

	l.appendLog(logEntry{
		Status:        "SUCCESS",
		Symbol:        pair.Symbol,
		Pair:           pair.PairAddress,
		PolicyID:       policyID,
		ActionPercent:  100,
		EthAmount:      ethAmount,
		TokenAmount:    result.ReadableOut,
		Action:         "BUY",
	})
	l.saveSnapshot()
}
