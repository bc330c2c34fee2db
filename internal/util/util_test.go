package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHex2Bytes(t *testing.T) {
	b := Hex2Bytes("0xa9059cbb")
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, b)

	assert.Nil(t, Hex2Bytes("not-hex"))
}

func TestExtractGasCost(t *testing.T) {
	cost, err := ExtractGasCost("0x5208", "0x3b9aca00")
	assert.NoError(t, err)
	assert.Equal(t, "21000000000000", cost.String())
}

func TestExtractGasCostInvalid(t *testing.T) {
	_, err := ExtractGasCost("not-a-number", "0x1")
	assert.Error(t, err)
}
