// Package policy is the predicate sandbox (spec.md §4.5, C5): user
// policies carry entry/exit predicates written in JavaScript, compiled
// lazily and cached, and evaluated against a PolicyContext built fresh per
// call. Grounded on shubhamdubey02-coreth's embedding of goja for geth's
// JS console — the same "small, whitelisted scripting VM" spec.md §9
// calls for — wired here instead of an ad hoc expression language.
package policy

import (
	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/model"
)

// GasInfo is the gas field of the PolicyContext (spec.md §3): the agent's
// current fee suggestion, exposed read-only so a predicate can factor gas
// cost into its decision without triggering an RPC call itself.
type GasInfo struct {
	MaxFeePerGasGwei         float64 `json:"max_fee_per_gas_gwei"`
	MaxPriorityFeePerGasGwei float64 `json:"max_priority_fee_per_gas_gwei"`
}

// Context is the PolicyContext record of spec.md §3, built once per
// evaluation and never aliased by background tasks. CustomData and
// GlobalData are bound by reference (the same Go map instance is reused
// across evaluations) so predicate-side mutations persist exactly as
// spec.md §4.5/§9 requires.
type Context struct {
	Event      *aggregate.NormalizedEvent `json:"event"`
	Group      *model.Group               `json:"group"`
	Groups     []*model.Group             `json:"groups"`
	Pair       *model.PairState           `json:"pair"`
	Trade      *model.ActiveTrade         `json:"trade"`
	Prices     map[string]float64         `json:"prices"`
	Gas        GasInfo                    `json:"gas"`
	CustomData map[string]interface{}     `json:"custom_data"`
	GlobalData map[string]interface{}     `json:"global_data"`
}
