package trade

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/internal/router"
)

func TestToRawAmountScalesUpByDecimals(t *testing.T) {
	got := toRawAmount(1.5, 6)
	assert.Equal(t, big.NewInt(1_500_000), got)
}

func TestToRawAmountNonPositiveIsZero(t *testing.T) {
	assert.Equal(t, big.NewInt(0), toRawAmount(0, 18))
	assert.Equal(t, big.NewInt(0), toRawAmount(-1, 18))
}

func TestToReadableAmountScalesDown(t *testing.T) {
	got := toReadableAmount(big.NewInt(2_000_000), 6)
	assert.Equal(t, 2.0, got)
}

func TestPercentOfComputesExactFraction(t *testing.T) {
	got := percentOf(big.NewInt(1000), 25)
	assert.Equal(t, big.NewInt(250), got)
}

func TestPercentOfClampsAboveHundred(t *testing.T) {
	got := percentOf(big.NewInt(1000), 250)
	assert.Equal(t, big.NewInt(1000), got)
}

func TestPercentOfZeroOrNegativeIsZero(t *testing.T) {
	assert.Equal(t, big.NewInt(0), percentOf(big.NewInt(1000), 0))
	assert.Equal(t, big.NewInt(0), percentOf(big.NewInt(0), 50))
}

func testLifecycle(tokens TokenAddresses) *Lifecycle {
	return &Lifecycle{tokens: tokens}
}

func TestResolveBaseTokenPrefersZoraOverWeth(t *testing.T) {
	zora := common.HexToAddress("0x1")
	weth := common.HexToAddress("0x2")
	l := testLifecycle(TokenAddresses{ZORA: zora, WETH: weth})

	addr, decimals, isToken0, name := l.resolveBaseToken(zora, weth, 18, 9)
	assert.Equal(t, zora, addr)
	assert.Equal(t, uint8(18), decimals)
	assert.True(t, isToken0)
	assert.Equal(t, "ZORA", name)
}

func TestResolveBaseTokenFallsBackToWeth(t *testing.T) {
	other := common.HexToAddress("0x3")
	weth := common.HexToAddress("0x4")
	l := testLifecycle(TokenAddresses{WETH: weth})

	addr, _, isToken0, name := l.resolveBaseToken(other, weth, 18, 18)
	assert.Equal(t, weth, addr)
	assert.False(t, isToken0)
	assert.Equal(t, "WETH", name)
}

func TestSpenderForDispatchesByProtocolAndFork(t *testing.T) {
	addrs := router.Addresses{
		V2SwapperProxy:    common.HexToAddress("0x10"),
		V3UniswapRouter:   common.HexToAddress("0x11"),
		V3AerodromeRouter: common.HexToAddress("0x12"),
		V4UniversalRouter: common.HexToAddress("0x13"),
		Permit2:           common.HexToAddress("0x14"),
	}
	l := &Lifecycle{addrs: addrs}

	assert.Equal(t, addrs.V2SwapperProxy, l.spenderFor(&model.PairState{Protocol: model.ProtocolV2}))
	assert.Equal(t, addrs.V3UniswapRouter, l.spenderFor(&model.PairState{Protocol: model.ProtocolV3}))
	assert.Equal(t, addrs.V3AerodromeRouter, l.spenderFor(&model.PairState{Protocol: model.ProtocolV3, Fork: model.ForkAerodrome}))
	assert.Equal(t, addrs.Permit2, l.spenderFor(&model.PairState{Protocol: model.ProtocolV4}))
}
