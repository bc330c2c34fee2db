package router

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/nullpointer-labs/evmtrader/internal/chain"
	"github.com/nullpointer-labs/evmtrader/pkg/contractclient"
)

// v2SwapperABIJSON is the custom swapper proxy spec.md §4.3/§6 names:
// swap(pair, amountIn, minOut, isToken0In, taxBps).
const v2SwapperABIJSON = `[
  {"type":"function","name":"swap","stateMutability":"nonpayable","inputs":[
    {"name":"pair","type":"address"},
    {"name":"amountIn","type":"uint256"},
    {"name":"minOut","type":"uint256"},
    {"name":"isToken0In","type":"bool"},
    {"name":"taxBps","type":"uint256"}
  ],"outputs":[]}
]`

// v3RouterABIJSON covers both the Uniswap V3 SwapRouter (fee-keyed pools)
// and the Aerodrome V3 router (tickSpacing-keyed pools); spec.md §4.3
// picks the field by fork, so both exactInputSingle overloads are kept
// here distinguished by method name.
const v3RouterABIJSON = `[
  {"type":"function","name":"exactInputSingleFee","stateMutability":"payable","inputs":[
    {"name":"params","type":"tuple","components":[
      {"name":"tokenIn","type":"address"},
      {"name":"tokenOut","type":"address"},
      {"name":"fee","type":"uint24"},
      {"name":"recipient","type":"address"},
      {"name":"deadline","type":"uint256"},
      {"name":"amountIn","type":"uint256"},
      {"name":"amountOutMinimum","type":"uint256"},
      {"name":"sqrtPriceLimitX96","type":"uint160"}
    ]}
  ],"outputs":[{"name":"amountOut","type":"uint256"}]},
  {"type":"function","name":"exactInputSingleTickSpacing","stateMutability":"payable","inputs":[
    {"name":"params","type":"tuple","components":[
      {"name":"tokenIn","type":"address"},
      {"name":"tokenOut","type":"address"},
      {"name":"tickSpacing","type":"int24"},
      {"name":"recipient","type":"address"},
      {"name":"deadline","type":"uint256"},
      {"name":"amountIn","type":"uint256"},
      {"name":"amountOutMinimum","type":"uint256"},
      {"name":"sqrtPriceLimitX96","type":"uint160"}
    ]}
  ],"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

// poolABIJSON covers the read-only pool surface the router needs: the
// Aerodrome tickSpacing() lookup and decoding the V3-style Swap event.
const poolABIJSON = `[
  {"type":"function","name":"tickSpacing","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int24"}]},
  {"type":"event","name":"Swap","anonymous":false,"inputs":[
    {"name":"sender","type":"address","indexed":true},
    {"name":"recipient","type":"address","indexed":true},
    {"name":"amount0","type":"int256","indexed":false},
    {"name":"amount1","type":"int256","indexed":false},
    {"name":"sqrtPriceX96","type":"uint160","indexed":false},
    {"name":"liquidity","type":"uint128","indexed":false},
    {"name":"tick","type":"int24","indexed":false}
  ]}
]`

// erc20TransferABIJSON is used purely for decoding Transfer logs found in
// a receipt (V2's and V4's result-parsing paths), not for calls.
const erc20TransferABIJSON = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}
  ]}
]`

// universalRouterABIJSON is the V4 Universal Router's entrypoint.
const universalRouterABIJSON = `[
  {"type":"function","name":"execute","stateMutability":"payable","inputs":[
    {"name":"commands","type":"bytes"},
    {"name":"inputs","type":"bytes[]"},
    {"name":"deadline","type":"uint256"}
  ],"outputs":[]}
]`

// v4EncodingABIJSON defines throwaway functions used only to ABI-encode
// the nested structures the V4_SWAP action expects (PoolKey,
// ExactInputSingleParams, the actions/params pair, and the SETTLE_ALL /
// TAKE_ALL currency+amount tuples). None of these are ever called
// on-chain; Pack() is used purely as a tuple/array encoder and the
// 4-byte selector it prepends is stripped by packArgs below.
const v4EncodingABIJSON = `[
  {"type":"function","name":"packExactInputSingle","stateMutability":"pure","inputs":[
    {"name":"params","type":"tuple","components":[
      {"name":"poolKey","type":"tuple","components":[
        {"name":"currency0","type":"address"},
        {"name":"currency1","type":"address"},
        {"name":"fee","type":"uint24"},
        {"name":"tickSpacing","type":"int24"},
        {"name":"hooks","type":"address"}
      ]},
      {"name":"zeroForOne","type":"bool"},
      {"name":"amountIn","type":"uint128"},
      {"name":"amountOutMinimum","type":"uint128"},
      {"name":"hookData","type":"bytes"}
    ]}
  ],"outputs":[]},
  {"type":"function","name":"packActionsAndParams","stateMutability":"pure","inputs":[
    {"name":"actions","type":"bytes"},
    {"name":"params","type":"bytes[]"}
  ],"outputs":[]},
  {"type":"function","name":"packCurrencyAmount","stateMutability":"pure","inputs":[
    {"name":"currency","type":"address"},
    {"name":"amount","type":"uint256"}
  ],"outputs":[]}
]`

var (
	v2SwapperABI       = mustParseABI(v2SwapperABIJSON)
	v3RouterABI        = mustParseABI(v3RouterABIJSON)
	poolABI            = mustParseABI(poolABIJSON)
	erc20TransferABI   = mustParseABI(erc20TransferABIJSON)
	universalRouterABI = mustParseABI(universalRouterABIJSON)
	v4EncodingABI      = mustParseABI(v4EncodingABIJSON)

	swapEventID     = poolABI.Events["Swap"].ID
	transferEventID = erc20TransferABI.Events["Transfer"].ID
)

func mustParseABI(raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("router: invalid embedded ABI: " + err.Error())
	}
	return &parsed
}

// packArgs ABI-encodes args against the named throwaway function and
// strips the 4-byte selector Pack always prepends, leaving the pure
// ABI-encoded argument bytes the V4 action payloads expect.
func packArgs(contractABI *abi.ABI, method string, args ...interface{}) ([]byte, error) {
	packed, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return packed[4:], nil
}

func newClient(eth *ethclient.Client, address common.Address, contractABI *abi.ABI) contractclient.ContractClient {
	return contractclient.NewContractClient(eth, address, contractABI)
}

func newPoolClient(c *chain.Client, pool common.Address) contractclient.ContractClient {
	return newClient(c.Eth(), pool, poolABI)
}
