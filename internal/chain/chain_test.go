package chain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFeeBuffer(t *testing.T) {
	got := applyFeeBuffer(big.NewInt(1_000_000_000))
	assert.Equal(t, big.NewInt(1_010_000_000), got)
}

func TestMaxBigInt(t *testing.T) {
	got := maxBigInt(big.NewInt(5), big.NewInt(12), big.NewInt(3))
	assert.Equal(t, big.NewInt(12), got)
}

func TestFallbackFee(t *testing.T) {
	fee := fallbackFee()
	assert.Equal(t, big.NewInt(fallbackMaxFeeWei), fee.MaxFeePerGas)
	assert.Equal(t, big.NewInt(fallbackPriorityFeeWei), fee.MaxPriorityFeePerGas)
}

func TestIsNonceError(t *testing.T) {
	assert.True(t, isNonceError(errors.New("nonce too low")))
	assert.True(t, isNonceError(errors.New("replacement transaction: nonce expired")))
	assert.False(t, isNonceError(errors.New("execution reverted")))
	assert.False(t, isNonceError(nil))
}

func TestIsTransientNetworkError(t *testing.T) {
	assert.True(t, isTransientNetworkError(errors.New("dial tcp: connection refused")))
	assert.True(t, isTransientNetworkError(errors.New("context deadline exceeded")))
	assert.False(t, isTransientNetworkError(errors.New("insufficient funds for gas * price + value")))
	assert.False(t, isTransientNetworkError(nil))
}

func TestUint256AndUint160MaxBounds(t *testing.T) {
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", uint256Max.String())
	assert.Equal(t, "1461501637330902918203684832716283019655932542975", uint160Max.String())
}
