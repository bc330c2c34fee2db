package trade

import (
	"context"
	"errors"

	"github.com/nullpointer-labs/evmtrader/internal/model"
)

// Errors returned by the manual control-plane operations (spec.md §4.8);
// the control API maps these to the HTTP status codes the endpoint table
// specifies.
var (
	ErrNoTrade     = errors.New("trade: no active trade on this pair")
	ErrLocked      = errors.New("trade: pair execution lock is held")
	ErrAlreadyOpen = errors.New("trade: pair already has an open position")
	ErrPairUnknown = errors.New("trade: pair not known to the feed")
)

// ManualSell implements POST /sell: a manual partial or full sell on an
// open position, subject to the same execution lock as a policy-driven
// exit.
func (l *Lifecycle) ManualSell(ctx context.Context, pairAddress string, percent int) error {
	l.mu.Lock()
	active, ok := l.active[pairAddress]
	l.mu.Unlock()
	if !ok {
		return ErrNoTrade
	}

	if !l.tryLock(pairAddress) {
		return ErrLocked
	}
	defer l.unlock(pairAddress)

	pair := l.engine.Pair(pairAddress)
	if pair == nil {
		return ErrPairUnknown
	}

	l.executeExit(ctx, pair, active, percent, model.CloseReasonManual)
	return nil
}

// ManualSellAll implements POST /sell-all: a 100% sell on every open
// position, returning a per-pair error (nil on success).
func (l *Lifecycle) ManualSellAll(ctx context.Context) map[string]error {
	l.mu.Lock()
	pairs := make([]string, 0, len(l.active))
	for addr := range l.active {
		pairs = append(pairs, addr)
	}
	l.mu.Unlock()

	results := make(map[string]error, len(pairs))
	for _, addr := range pairs {
		results[addr] = l.ManualSell(ctx, addr, 100)
	}
	return results
}

// ManualBuy implements POST /buy: opens a position directly for a fixed
// ETH amount (not a policy action percent), under a synthetic "manual"
// policy ID, per spec.md §4.8.
func (l *Lifecycle) ManualBuy(ctx context.Context, pairAddress string, ethAmount float64) error {
	l.mu.Lock()
	_, alreadyOpen := l.active[pairAddress]
	l.mu.Unlock()
	if alreadyOpen {
		return ErrAlreadyOpen
	}

	if !l.tryLock(pairAddress) {
		return ErrLocked
	}
	defer l.unlock(pairAddress)

	pair := l.engine.Pair(pairAddress)
	if pair == nil {
		return ErrPairUnknown
	}

	l.executeEntry(ctx, pair, "manual", ethAmount)
	return nil
}
