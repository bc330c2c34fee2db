package configs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpointer-labs/evmtrader/internal/model"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	cfg := &model.Config{
		MaxEthPerTrade: 0.05,
		Slippage:       0.01,
		MaxPositions:   3,
		GroupInterval:  5,
		MaxGroups:      20,
		OnlyPairs:      []string{"0xabc"},
		Policies:       []model.Policy{{ID: "p1", EntryPredicate: "return true"}},
	}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.MaxEthPerTrade, loaded.MaxEthPerTrade)
	assert.Equal(t, cfg.MaxPositions, loaded.MaxPositions)
	assert.Equal(t, cfg.OnlyPairs, loaded.OnlyPairs)
	assert.Equal(t, cfg.Policies, loaded.Policies)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
