package router

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nullpointer-labs/evmtrader/pkg/txtypes"
)

// findLastTransferTo scans a receipt's logs in order and returns the
// value field of the last ERC-20 Transfer event whose `to` is owner,
// per spec.md §4.3's V2/V4 result-parsing rule ("the last Transfer log
// to owner").
func findLastTransferTo(receipt *txtypes.TxReceipt, owner common.Address) (*big.Int, bool) {
	var last *big.Int
	found := false

	for _, lg := range receipt.Logs {
		if len(lg.Topics) < 3 {
			continue
		}
		if !strings.EqualFold(lg.Topics[0], transferEventID.Hex()) {
			continue
		}
		to := common.HexToAddress(lg.Topics[2])
		if to != owner {
			continue
		}
		value, err := decodeUint256(lg.Data)
		if err != nil {
			continue
		}
		last = value
		found = true
	}

	return last, found
}

// findSwapEvent locates the pool's Swap event in a receipt and returns its
// signed amount0/amount1 fields, per spec.md §4.3's V3 result-parsing
// rule.
func findSwapEvent(receipt *txtypes.TxReceipt, pool common.Address) (amount0, amount1 *big.Int, found bool) {
	for _, lg := range receipt.Logs {
		if len(lg.Topics) == 0 {
			continue
		}
		if !strings.EqualFold(lg.Topics[0], swapEventID.Hex()) {
			continue
		}
		if !strings.EqualFold(lg.Address, pool.Hex()) {
			continue
		}

		data, err := hexToBytes(lg.Data)
		if err != nil {
			continue
		}
		values, err := poolABI.Events["Swap"].Inputs.NonIndexed().UnpackValues(data)
		if err != nil || len(values) < 2 {
			continue
		}
		a0, ok0 := values[0].(*big.Int)
		a1, ok1 := values[1].(*big.Int)
		if !ok0 || !ok1 {
			continue
		}
		return a0, a1, true
	}
	return nil, nil, false
}

func decodeUint256(hexData string) (*big.Int, error) {
	b, err := hexToBytes(hexData)
	if err != nil {
		return nil, err
	}
	if len(b) < 32 {
		return nil, fmt.Errorf("router: log data too short for uint256 (%d bytes)", len(b))
	}
	return new(big.Int).SetBytes(b[len(b)-32:]), nil
}

func hexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("router: invalid hex in log data: %w", err)
	}
	return out, nil
}

// absBig returns |v| as a new big.Int, used to turn the signed
// two's-complement amount0/amount1 pool event fields into the unsigned
// output amount spec.md §4.3 wants.
func absBig(v *big.Int) *big.Int {
	if v.Sign() < 0 {
		return new(big.Int).Neg(v)
	}
	return new(big.Int).Set(v)
}
