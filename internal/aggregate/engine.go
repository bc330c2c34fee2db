package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nullpointer-labs/evmtrader/internal/logx"
	"github.com/nullpointer-labs/evmtrader/internal/model"
)

const (
	// pairEvictAfter is how long a pair with no active trade may go
	// without an update before retention deletes it, spec.md §3.
	pairEvictAfter = 30 * time.Minute
)

// Dispatcher is the policy/trade side of the data flow (Feed -> Aggregation
// -> Policy -> Trade Lifecycle), kept as an interface so this package never
// imports internal/trade or internal/policy directly. Locked reports
// whether the pair's execution lock (spec.md §4.6) is currently held;
// Dispatch fires an entry or exit evaluation for the pair that just
// changed.
type Dispatcher interface {
	Locked(pairAddress string) bool
	Dispatch(ctx context.Context, pair *model.PairState, ev *NormalizedEvent)
}

// ConfigSource returns the live, possibly-just-patched agent config; kept
// as a function rather than a held pointer since POST /config (spec.md
// §4.8) can swap it at any time.
type ConfigSource func() *model.Config

// Engine owns the in-memory map of PairState, the sole mutator of
// PairState.Groups (spec.md §5's ownership invariant), applying each
// accepted feed event and dispatching to the policy/trade layer.
type Engine struct {
	cfg        ConfigSource
	dispatcher Dispatcher
	log        *logx.Logger

	mu    sync.RWMutex
	pairs map[string]*model.PairState

	hasActiveTrade func(pairAddress string) bool
}

// New builds an Engine bound to a config source, a dispatcher and a
// predicate telling it whether a given pair currently has an open trade
// (used only by retention, spec.md §4.4, so a pair with an open position
// is never evicted out from under the trade lifecycle).
func New(cfg ConfigSource, dispatcher Dispatcher, hasActiveTrade func(string) bool) *Engine {
	return &Engine{
		cfg:            cfg,
		dispatcher:     dispatcher,
		log:            logx.New("aggregate"),
		pairs:          make(map[string]*model.PairState),
		hasActiveTrade: hasActiveTrade,
	}
}

// Ingest folds one normalized feed event into the right PairState/Group
// and, if the pair's execution lock is free, dispatches an evaluation.
// Implements spec.md §4.4's five integration steps plus the filter rules.
func (e *Engine) Ingest(ctx context.Context, ev *NormalizedEvent) {
	cfg := e.cfg()
	if !cfg.PairAllowed(ev.PairAddress) {
		return
	}

	now := model.NowMillis()

	e.mu.Lock()
	pair, ok := e.pairs[ev.PairAddress]
	if !ok {
		pair = model.NewPairState(ev.PairAddress, now)
		pair.ChainTag = ev.ChainTag
		pair.Token0 = ev.Token0
		pair.Token1 = ev.Token1
		pair.Token0Decimals = ev.Token0Decimals
		pair.Token1Decimals = ev.Token1Decimals
		pair.Protocol = ev.Protocol
		pair.Fork = ev.Fork
		pair.FeeBps = ev.FeeBps
		pair.Hooks = ev.Hooks
		if ev.TickSpacing != nil {
			pair.TickSpacing = ev.TickSpacing
		}
		e.pairs[ev.PairAddress] = pair
	}

	pair.LastPrice = ev.LastPrice
	pair.Liquidity = ev.Liquidity
	if ev.Symbol != "" {
		pair.Symbol = ev.Symbol
	}
	if ev.Name != "" {
		pair.Name = ev.Name
	}
	if ev.FeeBps != 0 {
		pair.FeeBps = ev.FeeBps
	}
	if ev.Fork != "" {
		pair.Fork = ev.Fork
	}
	if ev.TickSpacing != nil {
		pair.TickSpacing = ev.TickSpacing
	}
	pair.BuyTaxBps = ev.BuyTaxBps
	pair.SellTaxBps = ev.SellTaxBps

	groupKey := model.GroupKey(ev.MinuteKey, cfg.GroupInterval)
	group, ok := pair.Groups[groupKey]
	if !ok {
		group = model.NewGroup(groupKey, ev.LastPrice)
		pair.Groups[groupKey] = group
	}
	group.Apply(ev.LastPrice, ev.BuyVolume, ev.SellVolume, pair.Liquidity)

	if groupKey > pair.LastGroupKey {
		pair.LastGroupKey = groupKey
	}
	e.mu.Unlock()

	if e.dispatcher == nil || e.dispatcher.Locked(ev.PairAddress) {
		return
	}
	e.dispatcher.Dispatch(ctx, pair, ev)
}

// SetDispatcher wires the dispatcher after construction, used at startup
// when the dispatcher (internal/trade.Lifecycle) itself needs a reference
// to this Engine, so the two can be built in either order.
func (e *Engine) SetDispatcher(d Dispatcher) {
	e.dispatcher = d
}

// Pair returns the current PairState for a pair address, or nil.
func (e *Engine) Pair(pairAddress string) *model.PairState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pairs[pairAddress]
}

// PairCount returns the number of pairs currently tracked, used by the
// control API's /status endpoint.
func (e *Engine) PairCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pairs)
}

// OrderedGroups returns a pair's groups sorted oldest-to-newest, the shape
// the policy context's groups[] field needs (spec.md §3).
func (e *Engine) OrderedGroups(pairAddress string) []*model.Group {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pair, ok := e.pairs[pairAddress]
	if !ok {
		return nil
	}
	keys := make([]int64, 0, len(pair.Groups))
	for k := range pair.Groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]*model.Group, 0, len(keys))
	for _, k := range keys {
		out = append(out, pair.Groups[k])
	}
	return out
}

// RunRetention trims each pair's group map to the newest max_groups
// entries and evicts pairs with no recent activity and no open trade,
// per spec.md §4.4's periodic retention task. Intended to be called every
// 15 minutes by the supervisor.
func (e *Engine) RunRetention() {
	cfg := e.cfg()
	now := model.NowMillis()

	e.mu.Lock()
	defer e.mu.Unlock()

	for addr, pair := range e.pairs {
		trimGroups(pair, cfg.MaxGroups)

		newest := newestGroupKey(pair)
		stale := now-newest*60_000 >= pairEvictAfter.Milliseconds()
		if stale && !e.hasActiveTrade(addr) {
			delete(e.pairs, addr)
		}
	}
}

func trimGroups(pair *model.PairState, maxGroups int) {
	if maxGroups <= 0 || len(pair.Groups) <= maxGroups {
		return
	}
	keys := make([]int64, 0, len(pair.Groups))
	for k := range pair.Groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	for _, k := range keys[maxGroups:] {
		delete(pair.Groups, k)
	}
}

func newestGroupKey(pair *model.PairState) int64 {
	var newest int64 = -1
	for k := range pair.Groups {
		if k > newest {
			newest = k
		}
	}
	return newest
}
