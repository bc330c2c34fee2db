package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nullpointer-labs/evmtrader/pkg/contractclient"
	"github.com/nullpointer-labs/evmtrader/pkg/txtypes"
)

const (
	allowanceReadRetries = 3
	allowanceReadDelay   = time.Second

	erc20ApproveGasLimit    = 60_000
	permit2ApproveGasLimit  = 80_000
	permit2ApprovalDuration = 30 * 24 * time.Hour
)

// uint256Max and uint160Max are the two "infinite approval" sentinels the
// agent grants: the full ERC-20 allowance width for direct spenders, and
// the narrower Permit2 allowance width (uint160) for the Universal Router.
var (
	uint256Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	uint160Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
)

// EnsureERC20Approval reads the owner's current allowance for spender on
// token (retrying transient read failures up to three times, one second
// apart) and, if it is already sufficient, returns without submitting
// anything. Otherwise it submits a single approval for the maximum
// uint256 amount through the chain client's retrying submission path.
func (c *Client) EnsureERC20Approval(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	cc := contractclient.NewContractClient(c.eth, token, erc20ABI)

	allowance, err := readAllowanceWithRetry(ctx, cc, c.owner, spender)
	if err != nil {
		return fmt.Errorf("chain: read erc20 allowance: %w", err)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	_, err = c.Submit(ctx, func(ctx context.Context, fee txtypes.FeeSuggestion, nonce uint64) (common.Hash, error) {
		return cc.Send(ctx, contractclient.TxParams{
			ChainID:              c.chainID,
			Nonce:                nonce,
			GasLimit:             erc20ApproveGasLimit,
			MaxFeePerGas:         fee.MaxFeePerGas,
			MaxPriorityFeePerGas: fee.MaxPriorityFeePerGas,
		}, c.privateKey, "approve", spender, uint256Max)
	})
	if err != nil {
		return fmt.Errorf("chain: submit erc20 approval: %w", err)
	}
	return nil
}

func readAllowanceWithRetry(ctx context.Context, cc contractclient.ContractClient, owner, spender common.Address) (*big.Int, error) {
	var lastErr error
	for attempt := 0; attempt < allowanceReadRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(allowanceReadDelay)
		}
		out, err := cc.Call(ctx, nil, "allowance", owner, spender)
		if err == nil {
			allowance, ok := out[0].(*big.Int)
			if !ok {
				return nil, fmt.Errorf("unexpected allowance return type")
			}
			return allowance, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// permit2Allowance mirrors Permit2.allowance's three-tuple return.
type permit2Allowance struct {
	Amount     *big.Int
	Expiration uint64
}

// EnsurePermit2Approval is the V4-path counterpart of EnsureERC20Approval:
// it reads Permit2's delegated allowance of token to spender (the
// Universal Router) on the owner's behalf, and tops it up to the maximum
// uint160 amount with a 30-day expiration if the current grant is either
// insufficient or expired.
func (c *Client) EnsurePermit2Approval(ctx context.Context, permit2, token, spender common.Address, amount *big.Int) error {
	cc := contractclient.NewContractClient(c.eth, permit2, permit2ABI)

	current, err := readPermit2Allowance(ctx, cc, c.owner, token, spender)
	if err != nil {
		return fmt.Errorf("chain: read permit2 allowance: %w", err)
	}

	if current.Amount.Cmp(amount) >= 0 && current.Expiration > uint64(time.Now().Unix()) {
		return nil
	}

	expiration := uint64(time.Now().Add(permit2ApprovalDuration).Unix())
	_, err = c.Submit(ctx, func(ctx context.Context, fee txtypes.FeeSuggestion, nonce uint64) (common.Hash, error) {
		return cc.Send(ctx, contractclient.TxParams{
			ChainID:              c.chainID,
			Nonce:                nonce,
			GasLimit:             permit2ApproveGasLimit,
			MaxFeePerGas:         fee.MaxFeePerGas,
			MaxPriorityFeePerGas: fee.MaxPriorityFeePerGas,
		}, c.privateKey, "approve", token, spender, uint160Max, expiration)
	})
	if err != nil {
		return fmt.Errorf("chain: submit permit2 approval: %w", err)
	}
	return nil
}

func readPermit2Allowance(ctx context.Context, cc contractclient.ContractClient, owner, token, spender common.Address) (permit2Allowance, error) {
	var lastErr error
	for attempt := 0; attempt < allowanceReadRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(allowanceReadDelay)
		}
		out, err := cc.Call(ctx, nil, "allowance", owner, token, spender)
		if err == nil {
			amount, ok := out[0].(*big.Int)
			if !ok {
				return permit2Allowance{}, fmt.Errorf("unexpected permit2 amount return type")
			}
			expirationBig, ok := out[1].(*big.Int)
			if !ok {
				return permit2Allowance{}, fmt.Errorf("unexpected permit2 expiration return type")
			}
			return permit2Allowance{Amount: amount, Expiration: expirationBig.Uint64()}, nil
		}
		lastErr = err
	}
	return permit2Allowance{}, lastErr
}
