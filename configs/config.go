// Package configs loads and atomically rewrites the agent's YAML config
// file (spec.md §3's Config record), the same gopkg.in/yaml.v3 library
// the teacher repo used for its contract-client/strategy config, aimed
// at the new shape instead.
package configs

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nullpointer-labs/evmtrader/internal/model"
)

// Load reads and parses the YAML config file into a model.Config.
func Load(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configs: read %s: %w", path, err)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("configs: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save rewrites the config file atomically (write to a temp file in the
// same directory, then rename), mirroring the snapshot persistence
// pattern internal/trade uses, so a POST /config (spec.md §4.8) write
// never corrupts the file on a mid-write crash.
func Save(path string, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("configs: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("configs: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("configs: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("configs: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("configs: rename into place: %w", err)
	}
	return nil
}
