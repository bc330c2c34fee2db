package router

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/pkg/contractclient"
	"github.com/nullpointer-labs/evmtrader/pkg/txlistener"
	"github.com/nullpointer-labs/evmtrader/pkg/txtypes"
)

const (
	v3SwapGasLimit = 800_000
	v3SwapDeadline = 30 * time.Second
)

// swapV3 chooses the fork-specific V3 router (fee-keyed for uniswap_v3,
// tickSpacing-keyed for aerodrome) and parses the output amount from the
// pool's Swap event, per spec.md §4.3.
func (r *Router) swapV3(ctx context.Context, pair *model.PairState, amountInRaw *big.Int, isToken0In bool, minAmountOutRaw *big.Int, action Action) SwapResult {
	tokenIn, tokenOut := v3TokenPair(pair, isToken0In)
	recipient := r.chain.Owner()
	dl := deadline(v3SwapDeadline)

	var (
		routerAddr common.Address
		method     string
		args       []interface{}
	)

	switch pair.Fork {
	case model.ForkAerodrome:
		tickSpacing, err := r.cachedTickSpacing(ctx, common.HexToAddress(pair.PairAddress))
		if err != nil {
			return failResult("router: v3 aerodrome: %v", err)
		}
		routerAddr = r.addrs.V3AerodromeRouter
		method = "exactInputSingleTickSpacing"
		args = []interface{}{struct {
			TokenIn           common.Address
			TokenOut          common.Address
			TickSpacing       *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountIn          *big.Int
			AmountOutMinimum  *big.Int
			SqrtPriceLimitX96 *big.Int
		}{tokenIn, tokenOut, big.NewInt(int64(tickSpacing)), recipient, dl, amountInRaw, minAmountOutRaw, big.NewInt(0)}}
	default: // uniswap_v3 and anything else defaults to the canonical fee-keyed router
		routerAddr = r.addrs.V3UniswapRouter
		method = "exactInputSingleFee"
		fee := big.NewInt(int64(pair.FeeBps) * 10000)
		args = []interface{}{struct {
			TokenIn           common.Address
			TokenOut          common.Address
			Fee               *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountIn          *big.Int
			AmountOutMinimum  *big.Int
			SqrtPriceLimitX96 *big.Int
		}{tokenIn, tokenOut, fee, recipient, dl, amountInRaw, minAmountOutRaw, big.NewInt(0)}}
	}

	cc := newClient(r.chain.Eth(), routerAddr, v3RouterABI)
	hash, err := r.chain.Submit(ctx, func(ctx context.Context, fee txtypes.FeeSuggestion, nonce uint64) (common.Hash, error) {
		return cc.Send(ctx, contractclient.TxParams{
			ChainID:              r.chain.ChainID(),
			Nonce:                nonce,
			GasLimit:             v3SwapGasLimit,
			MaxFeePerGas:         fee.MaxFeePerGas,
			MaxPriorityFeePerGas: fee.MaxPriorityFeePerGas,
		}, r.chain.PrivateKey(), method, args...)
	})
	if err != nil {
		return failResult("router: v3 swap (%s): %v", method, err)
	}

	listener := txlistener.NewTxListener(r.chain.Eth())
	receipt, err := listener.WaitForTransaction(hash)
	if err != nil {
		return failResult("router: v3 wait for receipt: %v", err)
	}

	return r.parseV3Result(pair, isToken0In, receipt, hash)
}

// parseV3Result implements spec.md §4.3's V3 amount_out rule: amount_out
// = |amount1| if token0 was the input side, else |amount0|.
func (r *Router) parseV3Result(pair *model.PairState, isToken0In bool, receipt *txtypes.TxReceipt, hash common.Hash) SwapResult {
	amount0, amount1, found := findSwapEvent(receipt, common.HexToAddress(pair.PairAddress))
	if !found {
		return failResult("router: v3 swap mined but no Swap event found in receipt")
	}

	var outRaw *big.Int
	var outDecimals uint8
	if isToken0In {
		outRaw = absBig(amount1)
		outDecimals = pair.Token1Decimals
	} else {
		outRaw = absBig(amount0)
		outDecimals = pair.Token0Decimals
	}

	return SwapResult{
		Success:      true,
		AmountOutRaw: outRaw,
		ReadableOut:  toReadable(outRaw, outDecimals),
		TxHash:       hash,
	}
}

func v3TokenPair(pair *model.PairState, isToken0In bool) (tokenIn, tokenOut common.Address) {
	t0 := common.HexToAddress(pair.Token0)
	t1 := common.HexToAddress(pair.Token1)
	if isToken0In {
		return t0, t1
	}
	return t1, t0
}
