package router

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nullpointer-labs/evmtrader/internal/model"
)

func TestToReadableScalesByDecimals(t *testing.T) {
	got := toReadable(big.NewInt(1_500_000), 6)
	assert.Equal(t, 1.5, got)
}

func TestToReadableNilIsZero(t *testing.T) {
	assert.Equal(t, 0.0, toReadable(nil, 18))
}

func TestRoundTaxBpsRoundsAndFloorsNegative(t *testing.T) {
	assert.Equal(t, big.NewInt(3), roundTaxBps(2.6))
	assert.Equal(t, big.NewInt(0), roundTaxBps(-1))
}

func TestDefaultTickSpacingPrefersExplicitValue(t *testing.T) {
	ts := int32(42)
	pair := &model.PairState{TickSpacing: &ts}
	assert.Equal(t, int32(42), defaultTickSpacing(pair))
}

func TestDefaultTickSpacingFallsBackToFeeTable(t *testing.T) {
	pair := &model.PairState{FeeBps: 500}
	assert.Equal(t, int32(10), defaultTickSpacing(pair))
}

func TestDefaultTickSpacingDefaultsTo60ForUnknownFee(t *testing.T) {
	pair := &model.PairState{FeeBps: 999}
	assert.Equal(t, int32(60), defaultTickSpacing(pair))
}

func TestOutputDecimalsPicksOtherSide(t *testing.T) {
	pair := &model.PairState{Token0Decimals: 18, Token1Decimals: 6}
	assert.Equal(t, uint8(6), outputDecimals(pair, true))
	assert.Equal(t, uint8(18), outputDecimals(pair, false))
}
