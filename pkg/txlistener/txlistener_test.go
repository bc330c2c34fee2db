package txlistener

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
)

func TestToTxReceiptConvertsFields(t *testing.T) {
	r := &types.Receipt{
		TxHash:            common.HexToHash("0xabc"),
		BlockNumber:       big.NewInt(42),
		BlockHash:         common.HexToHash("0xdef"),
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
		Status:            1,
		Logs: []*types.Log{
			{
				Address: common.HexToAddress("0x1"),
				Topics:  []common.Hash{common.HexToHash("0x2")},
				Data:    []byte{0x01, 0x02},
				Index:   0,
			},
		},
	}

	out := toTxReceipt(r)
	assert.Equal(t, "0x2a", out.BlockNumber)
	assert.Equal(t, "0x5208", out.GasUsed)
	assert.Equal(t, "0x1", out.Status)
	assert.Len(t, out.Logs, 1)
	assert.Equal(t, common.HexToAddress("0x1").Hex(), out.Logs[0].Address)
}

func TestWithOptions(t *testing.T) {
	l := NewTxListener(nil, WithPollInterval(1), WithTimeout(2))
	assert.Equal(t, int64(1), int64(l.pollInterval))
	assert.Equal(t, int64(2), int64(l.timeout))
}
