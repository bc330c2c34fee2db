package router

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/pkg/contractclient"
	"github.com/nullpointer-labs/evmtrader/pkg/txlistener"
	"github.com/nullpointer-labs/evmtrader/pkg/txtypes"
)

const v2SwapGasLimit = 300_000

// swapV2 calls the custom swapper proxy's swap(pair, amountIn, minOut,
// isToken0In, taxBps) per spec.md §4.3's V2 path, then parses the
// result from the last Transfer log to the owner.
func (r *Router) swapV2(ctx context.Context, pair *model.PairState, amountInRaw *big.Int, isToken0In bool, minAmountOutRaw *big.Int, action Action) SwapResult {
	cc := newClient(r.chain.Eth(), r.addrs.V2SwapperProxy, v2SwapperABI)

	taxPct := pair.BuyTaxBps
	if action == ActionSell {
		taxPct = pair.SellTaxBps
	}
	taxBps := roundTaxBps(taxPct)

	hash, err := r.chain.Submit(ctx, func(ctx context.Context, fee txtypes.FeeSuggestion, nonce uint64) (common.Hash, error) {
		return cc.Send(ctx, contractclient.TxParams{
			ChainID:              r.chain.ChainID(),
			Nonce:                nonce,
			GasLimit:             v2SwapGasLimit,
			MaxFeePerGas:         fee.MaxFeePerGas,
			MaxPriorityFeePerGas: fee.MaxPriorityFeePerGas,
		}, r.chain.PrivateKey(), "swap", common.HexToAddress(pair.PairAddress), amountInRaw, minAmountOutRaw, isToken0In, taxBps)
	})
	if err != nil {
		return failResult("router: v2 swap: %v", err)
	}

	listener := txlistener.NewTxListener(r.chain.Eth())
	receipt, err := listener.WaitForTransaction(hash)
	if err != nil {
		return failResult("router: v2 wait for receipt: %v", err)
	}

	outDecimals := outputDecimals(pair, isToken0In)
	value, found := findLastTransferTo(receipt, r.chain.Owner())
	if !found {
		return failResult("router: v2 swap mined but no Transfer to owner found in receipt")
	}

	return SwapResult{
		Success:      true,
		AmountOutRaw: value,
		ReadableOut:  toReadable(value, outDecimals),
		TxHash:       hash,
	}
}

// outputDecimals picks the decimals of whichever token is the output side
// of the swap. isToken0In already reflects the actual call direction (the
// trade lifecycle inverts it for a sell before calling PerformSwap, per
// spec.md §4.3), so the output side is simply the other token.
func outputDecimals(pair *model.PairState, isToken0In bool) uint8 {
	if isToken0In {
		return pair.Token1Decimals
	}
	return pair.Token0Decimals
}
