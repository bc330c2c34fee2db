package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairAllowedEmptyOnlyPairsAllowsEverything(t *testing.T) {
	c := &Config{}
	assert.True(t, c.PairAllowed("0xAbC"))
}

func TestPairAllowedOnlyPairsIsStrictWhitelist(t *testing.T) {
	c := &Config{OnlyPairs: []string{"0xAAA"}}
	assert.True(t, c.PairAllowed("0xaaa"))
	assert.False(t, c.PairAllowed("0xbbb"))
}

func TestPairAllowedExcludeAlwaysWins(t *testing.T) {
	c := &Config{OnlyPairs: []string{"0xAAA"}, ExcludePairs: []string{"0xaaa"}}
	assert.False(t, c.PairAllowed("0xAAA"))
}

func TestCloneCopiesSlicesIndependently(t *testing.T) {
	c := &Config{OnlyPairs: []string{"0xAAA"}, Policies: []Policy{{ID: "p1"}}}
	clone := c.Clone()

	clone.OnlyPairs[0] = "changed"
	clone.Policies[0].ID = "changed"

	assert.Equal(t, "0xAAA", c.OnlyPairs[0])
	assert.Equal(t, "p1", c.Policies[0].ID)
}
