package model

// Policy names a pair of predicates — entry and exit — evaluated against a
// PolicyContext. Either predicate may be empty, in which case that side of
// the policy never fires.
type Policy struct {
	ID             string `json:"id" yaml:"id"`
	EntryPredicate string `json:"entry_predicate,omitempty" yaml:"entry_predicate,omitempty"`
	ExitPredicate  string `json:"exit_predicate,omitempty" yaml:"exit_predicate,omitempty"`
}

// Config is the live, mutable agent configuration described in spec.md §3.
// It is loaded from disk at startup, held in memory by the supervisor, and
// partially rewritable through POST /config (spec.md §4.8).
type Config struct {
	MaxEthPerTrade float64  `json:"max_eth_per_trade" yaml:"max_eth_per_trade"`
	Slippage       float64  `json:"slippage" yaml:"slippage"`
	MaxPositions   int      `json:"max_positions" yaml:"max_positions"`
	GroupInterval  int64    `json:"group_interval" yaml:"group_interval"`
	MaxGroups      int      `json:"max_groups" yaml:"max_groups"`
	OnlyPairs      []string `json:"only_pairs,omitempty" yaml:"only_pairs,omitempty"`
	ExcludePairs   []string `json:"exclude_pairs,omitempty" yaml:"exclude_pairs,omitempty"`
	Policies       []Policy `json:"policies" yaml:"policies"`

	// Deployment names the fixed per-chain contract addresses the router
	// and trade lifecycle need (base tokens, per-protocol router
	// addresses, Permit2). Generalizes the teacher's config.yml
	// contract_client map (configs/config.go's ContractClientYAMLData)
	// from an arbitrary named-ABI map down to the fixed address set this
	// agent's protocols require; not part of the POST /config whitelist
	// since it describes the deployment, not trading behavior.
	Deployment map[string]string `json:"deployment,omitempty" yaml:"deployment,omitempty"`
}

// Deployment address keys resolved from Config.Deployment into
// internal/trade.TokenAddresses and internal/router.Addresses.
const (
	DeploymentZora            = "zora"
	DeploymentClanker         = "clanker"
	DeploymentWeth            = "weth"
	DeploymentV2SwapperProxy  = "v2_swapper_proxy"
	DeploymentV3UniswapRouter = "v3_uniswap_router"
	DeploymentV3AerodromeRouter = "v3_aerodrome_router"
	DeploymentV4UniversalRouter = "v4_universal_router"
	DeploymentPermit2          = "permit2"
)

// ConfigPatchKeys lists the POST /config keys spec.md §4.8 whitelists for
// live update; anything else in the request body is rejected rather than
// silently ignored.
var ConfigPatchKeys = map[string]bool{
	"max_eth_per_trade": true,
	"slippage":          true,
	"max_positions":     true,
	"group_interval":    true,
	"max_groups":        true,
	"only_pairs":        true,
	"exclude_pairs":     true,
}

// Clone returns a deep-enough copy for safe concurrent reads while the
// supervisor swaps in a patched config (slices are copied; Policy values
// are immutable once loaded).
func (c *Config) Clone() *Config {
	out := *c
	if c.OnlyPairs != nil {
		out.OnlyPairs = append([]string(nil), c.OnlyPairs...)
	}
	if c.ExcludePairs != nil {
		out.ExcludePairs = append([]string(nil), c.ExcludePairs...)
	}
	if c.Policies != nil {
		out.Policies = append([]Policy(nil), c.Policies...)
	}
	return &out
}

// PairAllowed applies the only_pairs/exclude_pairs filters from spec.md
// §4.4: an empty only_pairs list allows everything; a non-empty one is a
// strict whitelist. exclude_pairs always wins.
func (c *Config) PairAllowed(pairAddress string) bool {
	if containsFold(c.ExcludePairs, pairAddress) {
		return false
	}
	if len(c.OnlyPairs) == 0 {
		return true
	}
	return containsFold(c.OnlyPairs, pairAddress)
}

func containsFold(list []string, target string) bool {
	for _, v := range list {
		if equalFold(v, target) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
