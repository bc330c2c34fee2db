// Package control is the local HTTP control surface (spec.md §4.8, C8):
// status, trade listing, balance reconciliation, config read/write, pause
// and resume, and manual buy/sell, plus the SPEC_FULL.md-additive
// /healthz and /metrics endpoints. Grounded on the teacher repo's
// channel-driven reporting loop in cmd/main.go (a strategy pushes string
// updates down a channel for the caller to print); here the control
// server instead serves the live state on demand over HTTP rather than
// pushing it, since spec.md §4.8 calls for a pull-based surface.
package control

import (
	"fmt"
	"sync"

	"github.com/nullpointer-labs/evmtrader/configs"
	"github.com/nullpointer-labs/evmtrader/internal/model"
)

// ConfigStore is the single in-memory, mutable copy of the agent config,
// read by the aggregation engine's ConfigSource and read/written by the
// control server's GET/POST /config handlers.
type ConfigStore struct {
	mu   sync.RWMutex
	cfg  *model.Config
	path string
}

// NewConfigStore wraps an already-loaded config, remembering the path it
// was loaded from so Patch can persist back to the same file.
func NewConfigStore(path string, cfg *model.Config) *ConfigStore {
	return &ConfigStore{cfg: cfg, path: path}
}

// Get returns a defensive clone of the current config, safe for a caller
// to read without holding any lock. Wired as the aggregate.ConfigSource.
func (s *ConfigStore) Get() *model.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Patch applies a whitelisted partial update (spec.md §4.8's POST
// /config key list, model.ConfigPatchKeys) and persists the result to
// disk atomically via configs.Save. Unknown keys are rejected outright
// rather than silently ignored.
func (s *ConfigStore) Patch(patch map[string]interface{}) error {
	for k := range patch {
		if !model.ConfigPatchKeys[k] {
			return fmt.Errorf("control: unknown config key %q", k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	if err := applyPatch(next, patch); err != nil {
		return err
	}

	if err := configs.Save(s.path, next); err != nil {
		return fmt.Errorf("control: persist config: %w", err)
	}
	s.cfg = next
	return nil
}

func applyPatch(cfg *model.Config, patch map[string]interface{}) error {
	for k, v := range patch {
		switch k {
		case "max_eth_per_trade":
			f, err := asFloat(k, v)
			if err != nil {
				return err
			}
			cfg.MaxEthPerTrade = f
		case "slippage":
			f, err := asFloat(k, v)
			if err != nil {
				return err
			}
			cfg.Slippage = f
		case "max_positions":
			f, err := asFloat(k, v)
			if err != nil {
				return err
			}
			cfg.MaxPositions = int(f)
		case "group_interval":
			f, err := asFloat(k, v)
			if err != nil {
				return err
			}
			cfg.GroupInterval = int64(f)
		case "max_groups":
			f, err := asFloat(k, v)
			if err != nil {
				return err
			}
			cfg.MaxGroups = int(f)
		case "only_pairs":
			ss, err := asStrings(k, v)
			if err != nil {
				return err
			}
			cfg.OnlyPairs = ss
		case "exclude_pairs":
			ss, err := asStrings(k, v)
			if err != nil {
				return err
			}
			cfg.ExcludePairs = ss
		}
	}
	return nil
}

func asFloat(key string, v interface{}) (float64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("control: %q must be a number", key)
	}
	return f, nil
}

func asStrings(key string, v interface{}) ([]string, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("control: %q must be a list of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("control: %q must be a list of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}
