package control

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpointer-labs/evmtrader/configs"
	"github.com/nullpointer-labs/evmtrader/internal/model"
)

func TestPatchRejectsUnknownKey(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), "c.yml"), &model.Config{})
	err := store.Patch(map[string]interface{}{"bogus": 1})
	assert.Error(t, err)
}

func TestPatchUpdatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yml")
	store := NewConfigStore(path, &model.Config{MaxEthPerTrade: 0.1})

	err := store.Patch(map[string]interface{}{
		"max_eth_per_trade": 0.5,
		"only_pairs":        []interface{}{"0xabc"},
	})
	require.NoError(t, err)

	got := store.Get()
	assert.Equal(t, 0.5, got.MaxEthPerTrade)
	assert.Equal(t, []string{"0xabc"}, got.OnlyPairs)

	reloaded, err := configs.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, reloaded.MaxEthPerTrade)
}
