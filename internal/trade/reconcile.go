package trade

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nullpointer-labs/evmtrader/internal/model"
)

// Reconcile re-reads the on-chain balance of every ActiveTrade's held
// token: a zero balance archives the trade with close_reason=zero_balance,
// otherwise tokens_in_possession is refreshed from the chain value. Runs
// on startup (after Load) and every 5 minutes thereafter, per spec.md
// §4.6.
func (l *Lifecycle) Reconcile(ctx context.Context) {
	l.mu.Lock()
	trades := make([]*model.ActiveTrade, 0, len(l.active))
	for _, t := range l.active {
		cp := *t
		trades = append(trades, &cp)
	}
	l.mu.Unlock()

	changed := false
	for _, t := range trades {
		heldAddr, heldDecimals := l.heldToken(t)

		balanceRaw, err := l.chain.BalanceOf(ctx, heldAddr, l.chain.Owner())
		if err != nil {
			l.log.Printf("reconcile %s: balance read failed: %v", t.PairAddress, err)
			continue
		}

		if balanceRaw.Sign() == 0 {
			l.closeTrade(t.PairAddress, t.CurrentPrice, model.CloseReasonZeroBalance)
			changed = true
			continue
		}

		readable := toReadableAmount(balanceRaw, heldDecimals)

		l.mu.Lock()
		if cur, ok := l.active[t.PairAddress]; ok {
			if cur.TokensInPossessionRaw == nil || cur.TokensInPossessionRaw.Cmp(balanceRaw) != 0 {
				cur.TokensInPossessionRaw = balanceRaw
				cur.TokensInPossession = readable
				changed = true
			}
		}
		l.mu.Unlock()
	}

	if changed {
		l.saveSnapshot()
	}
}

// heldToken returns the address/decimals of whichever of an ActiveTrade's
// two tokens is NOT the base token, i.e. the position actually held.
func (l *Lifecycle) heldToken(t *model.ActiveTrade) (common.Address, uint8) {
	token0 := common.HexToAddress(t.Token0)
	token1 := common.HexToAddress(t.Token1)
	_, _, baseIsToken0, _ := l.resolveBaseToken(token0, token1, t.Token0Decimals, t.Token1Decimals)
	if baseIsToken0 {
		return token1, t.Token1Decimals
	}
	return token0, t.Token0Decimals
}
