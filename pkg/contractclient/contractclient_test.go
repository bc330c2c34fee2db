package contractclient

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const erc20ABIJSON = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

func loadERC20ABI(t *testing.T) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	require.NoError(t, err)
	return &parsed
}

func TestDecodeTransactionApprove(t *testing.T) {
	erc20ABI := loadERC20ABI(t)
	c := NewContractClient(nil, common.HexToAddress("0x1"), erc20ABI)

	spender := common.HexToAddress("0x3fED017EC0f5517Cdf2E8a9a4156c64d74252146")
	amount, ok := new(big.Int).SetString("3750793819555087051", 10)
	require.True(t, ok)

	packed, err := erc20ABI.Pack("approve", spender, amount)
	require.NoError(t, err)

	decoded, err := c.DecodeTransaction(packed)
	require.NoError(t, err)
	assert.Equal(t, "approve", decoded.MethodName)
	assert.Equal(t, spender, decoded.Parameter["spender"])
	assert.Equal(t, amount, decoded.Parameter["amount"])
}

func TestDecodeTransactionTooShort(t *testing.T) {
	c := NewContractClient(nil, common.HexToAddress("0x1"), loadERC20ABI(t))
	_, err := c.DecodeTransaction([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestDecodeTransactionUnknownSelector(t *testing.T) {
	c := NewContractClient(nil, common.HexToAddress("0x1"), loadERC20ABI(t))
	_, err := c.DecodeTransaction([]byte{0xde, 0xad, 0xbe, 0xef, 0x00})
	assert.Error(t, err)
}

func TestParseReceiptLogsMatchesTransferEvent(t *testing.T) {
	erc20ABI := loadERC20ABI(t)
	c := NewContractClient(nil, common.HexToAddress("0x1"), erc20ABI)

	from := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	to := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	value := big.NewInt(1_000_000)

	event := erc20ABI.Events["Transfer"]
	packedData, err := event.Inputs.NonIndexed().Pack(value)
	require.NoError(t, err)

	logs := []*types.Log{
		{
			Address: common.HexToAddress("0x000000000000000000000000000000000000aa"),
			Topics: []common.Hash{
				event.ID,
				common.BytesToHash(from.Bytes()),
				common.BytesToHash(to.Bytes()),
			},
			Data: packedData,
		},
	}

	decoded := c.ParseReceiptLogs(logs)
	require.Len(t, decoded, 1)
	assert.Equal(t, "Transfer", decoded[0].EventName)
	assert.Equal(t, value, decoded[0].Parameter["value"])
}

func TestParseReceiptLogsSkipsUnrecognizedLogs(t *testing.T) {
	c := NewContractClient(nil, common.HexToAddress("0x1"), loadERC20ABI(t))
	logs := []*types.Log{
		{Topics: []common.Hash{common.HexToHash("0xnotarealtopic")}},
		nil,
	}
	assert.Empty(t, c.ParseReceiptLogs(logs))
}
