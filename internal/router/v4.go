package router

import (
	"bytes"
	"context"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/pkg/contractclient"
	"github.com/nullpointer-labs/evmtrader/pkg/txlistener"
	"github.com/nullpointer-labs/evmtrader/pkg/txtypes"
)

const (
	v4SwapGasLimit = 800_000
	v4SwapDeadline = 60 * time.Second

	v4CommandV4Swap = 0x10

	v4ActionSwapExactInSingle = 0x06
	v4ActionSettleAll         = 0x0c
	v4ActionTakeAll           = 0x0f
)

// v4PoolKey mirrors Uniswap v4's PoolKey struct for ABI encoding.
type v4PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         *big.Int
	TickSpacing *big.Int
	Hooks       common.Address
}

// v4ExactInputSingleParams mirrors the V4Router ExactInputSingleParams
// struct encoded as the SWAP_EXACT_IN_SINGLE action's payload.
type v4ExactInputSingleParams struct {
	PoolKey          v4PoolKey
	ZeroForOne       bool
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	HookData         []byte
}

// swapV4 builds a single V4_SWAP Universal Router command (spec.md §4.3),
// attempts a staticcall simulation first (logging, not failing, on
// simulation error per §4.3/§9's open question), then submits. Result is
// parsed from the last Transfer to owner, falling back to V3-style Swap
// log parsing if none is found.
func (r *Router) swapV4(ctx context.Context, pair *model.PairState, amountInRaw *big.Int, isToken0In bool, minAmountOutRaw *big.Int, action Action) SwapResult {
	tokenIn, tokenOut := v3TokenPair(pair, isToken0In)
	currency0, currency1 := sortAddresses(common.HexToAddress(pair.Token0), common.HexToAddress(pair.Token1))
	zeroForOne := tokenIn == currency0

	tickSpacing := defaultTickSpacing(pair)
	hooks := common.Address{}
	if pair.Hooks != "" {
		hooks = common.HexToAddress(pair.Hooks)
	}

	poolKey := v4PoolKey{
		Currency0:   currency0,
		Currency1:   currency1,
		Fee:         big.NewInt(int64(pair.FeeBps)),
		TickSpacing: big.NewInt(int64(tickSpacing)),
		Hooks:       hooks,
	}

	swapParams := v4ExactInputSingleParams{
		PoolKey:          poolKey,
		ZeroForOne:       zeroForOne,
		AmountIn:         amountInRaw,
		AmountOutMinimum: minAmountOutRaw,
		HookData:         []byte{},
	}

	packedSwap, err := packArgs(v4EncodingABI, "packExactInputSingle", swapParams)
	if err != nil {
		return failResult("router: v4 encode swap params: %v", err)
	}
	packedSettle, err := packArgs(v4EncodingABI, "packCurrencyAmount", tokenIn, amountInRaw)
	if err != nil {
		return failResult("router: v4 encode settle params: %v", err)
	}
	packedTake, err := packArgs(v4EncodingABI, "packCurrencyAmount", tokenOut, minAmountOutRaw)
	if err != nil {
		return failResult("router: v4 encode take params: %v", err)
	}

	actions := []byte{v4ActionSwapExactInSingle, v4ActionSettleAll, v4ActionTakeAll}
	v4Input, err := packArgs(v4EncodingABI, "packActionsAndParams", actions, [][]byte{packedSwap, packedSettle, packedTake})
	if err != nil {
		return failResult("router: v4 encode actions: %v", err)
	}

	commands := []byte{v4CommandV4Swap}
	inputs := [][]byte{v4Input}
	dl := deadline(v4SwapDeadline)

	cc := newClient(r.chain.Eth(), r.addrs.V4UniversalRouter, universalRouterABI)

	r.simulateV4(ctx, commands, inputs, dl)

	hash, err := r.chain.Submit(ctx, func(ctx context.Context, fee txtypes.FeeSuggestion, nonce uint64) (common.Hash, error) {
		return cc.Send(ctx, contractclient.TxParams{
			ChainID:              r.chain.ChainID(),
			Nonce:                nonce,
			GasLimit:             v4SwapGasLimit,
			MaxFeePerGas:         fee.MaxFeePerGas,
			MaxPriorityFeePerGas: fee.MaxPriorityFeePerGas,
		}, r.chain.PrivateKey(), "execute", commands, inputs, dl)
	})
	if err != nil {
		return failResult("router: v4 swap: %v", err)
	}

	listener := txlistener.NewTxListener(r.chain.Eth())
	receipt, err := listener.WaitForTransaction(hash)
	if err != nil {
		return failResult("router: v4 wait for receipt: %v", err)
	}

	return r.parseV4Result(pair, isToken0In, receipt, hash)
}

// simulateV4 attempts a staticcall of the execute() calldata before
// submission. Per spec.md §4.3/§9, simulation failure is logged, never
// fatal — execution is still attempted.
func (r *Router) simulateV4(ctx context.Context, commands []byte, inputs [][]byte, dl *big.Int) {
	data, err := universalRouterABI.Pack("execute", commands, inputs, dl)
	if err != nil {
		r.log.Printf("v4 simulation: failed to encode calldata: %v", err)
		return
	}

	owner := r.chain.Owner()
	to := r.addrs.V4UniversalRouter
	_, err = r.chain.Eth().CallContract(ctx, ethereum.CallMsg{From: owner, To: &to, Data: data}, nil)
	if err != nil {
		r.log.Printf("v4 simulation failed (continuing with submission): %v", err)
	}
}

func (r *Router) parseV4Result(pair *model.PairState, isToken0In bool, receipt *txtypes.TxReceipt, hash common.Hash) SwapResult {
	outDecimals := outputDecimals(pair, isToken0In)
	if value, found := findLastTransferTo(receipt, r.chain.Owner()); found {
		return SwapResult{
			Success:      true,
			AmountOutRaw: value,
			ReadableOut:  toReadable(value, outDecimals),
			TxHash:       hash,
		}
	}

	r.log.Printf("v4 swap %s: no Transfer log found, falling back to Swap log parsing", hash.Hex())
	return r.parseV3Result(pair, isToken0In, receipt, hash)
}

func sortAddresses(a, b common.Address) (lower, higher common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) <= 0 {
		return a, b
	}
	return b, a
}
