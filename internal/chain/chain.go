// Package chain centralizes every concern the rest of the agent must not
// duplicate: fee estimation, the single monotonic nonce source, balance
// reads and the retrying submission path every write transaction goes
// through. It is built the way the teacher repo's blackhole.go drives a
// bound ethclient.Client plus contractclient.ContractClient, generalized
// to arbitrary ERC-20s and fee-bumped per gas_policy instead of a single
// fixed GasTipCap.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/nullpointer-labs/evmtrader/pkg/contractclient"
	"github.com/nullpointer-labs/evmtrader/pkg/txtypes"
)

const (
	maxSubmitRetries = 3
	submitRetrySleep = 250 * time.Millisecond

	gwei = 1_000_000_000

	minPriorityFeeWei = 10_000_000 // 0.01 gwei
	feeBufferNumer    = 10100      // both fees are multiplied by 1.01
	feeBufferDenom    = 10000

	fallbackMaxFeeWei      = 50_000_000 // 0.05 gwei
	fallbackPriorityFeeWei = 1_000_000  // 0.001 gwei
)

// TxBuilder packs, signs and submits one transaction attempt using the fee
// suggestion and nonce Submit hands it, returning the transaction hash.
// Ownership of *how* the call is encoded (which method, which contract)
// stays with the caller (internal/chain/approvals.go, internal/router);
// Client only owns retry, fee and nonce policy.
type TxBuilder func(ctx context.Context, fee txtypes.FeeSuggestion, nonce uint64) (common.Hash, error)

// Client is the single owner of fee policy, nonce issuance and native/ERC-20
// balance reads for one wallet on one chain.
type Client struct {
	eth        *ethclient.Client
	chainID    *big.Int
	owner      common.Address
	privateKey *ecdsa.PrivateKey

	mu         sync.Mutex
	nonce      uint64
	nonceValid bool
}

// NewClient binds a Client to an already-dialed RPC connection, chain ID,
// wallet address and the key that signs every outgoing transaction. Chain
// ID and owner are supplied by the caller (cmd/agent's main resolves them
// once at startup) rather than queried lazily, since every signed
// transaction needs them.
func NewClient(eth *ethclient.Client, chainID *big.Int, owner common.Address, privateKey *ecdsa.PrivateKey) *Client {
	return &Client{eth: eth, chainID: chainID, owner: owner, privateKey: privateKey}
}

// ChainID returns the chain this client is bound to.
func (c *Client) ChainID() *big.Int { return c.chainID }

// NonceReady reports whether the monotonic nonce counter has been seeded
// from the node, used by the control API's /healthz (spec.md §4.8).
func (c *Client) NonceReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonceValid
}

// Owner returns the wallet address this client issues nonces and reads
// balances for.
func (c *Client) Owner() common.Address { return c.owner }

// PrivateKey returns the signing key for this wallet, for callers
// (approvals, router) that build and sign their own transactions through
// Submit.
func (c *Client) PrivateKey() *ecdsa.PrivateKey { return c.privateKey }

// Eth exposes the underlying RPC client for callers (router, approvals)
// that need to build their own contractclient.ContractClient instances.
func (c *Client) Eth() *ethclient.Client { return c.eth }

// FeeSuggestion computes (max_fee, priority_fee) per the agent's gas
// policy: base = latest gas price; priority = max(0.01 gwei, the node's
// reported priority fee, 10% of base); both are then scaled by 1.01. Any
// RPC failure falls back to a fixed, conservative suggestion rather than
// blocking submission.
func (c *Client) FeeSuggestion(ctx context.Context) txtypes.FeeSuggestion {
	base, err := c.eth.SuggestGasPrice(ctx)
	if err != nil || base == nil {
		return fallbackFee()
	}

	reportedTip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil || reportedTip == nil {
		reportedTip = big.NewInt(0)
	}

	tenPctBase := new(big.Int).Div(base, big.NewInt(10))
	priority := maxBigInt(big.NewInt(minPriorityFeeWei), reportedTip, tenPctBase)

	return txtypes.FeeSuggestion{
		MaxFeePerGas:         applyFeeBuffer(base),
		MaxPriorityFeePerGas: applyFeeBuffer(priority),
	}
}

func fallbackFee() txtypes.FeeSuggestion {
	return txtypes.FeeSuggestion{
		MaxFeePerGas:         big.NewInt(fallbackMaxFeeWei),
		MaxPriorityFeePerGas: big.NewInt(fallbackPriorityFeeWei),
	}
}

func applyFeeBuffer(v *big.Int) *big.Int {
	buffered := new(big.Int).Mul(v, big.NewInt(feeBufferNumer))
	return buffered.Div(buffered, big.NewInt(feeBufferDenom))
}

func maxBigInt(values ...*big.Int) *big.Int {
	out := values[0]
	for _, v := range values[1:] {
		if v.Cmp(out) > 0 {
			out = v
		}
	}
	return out
}

// NextNonce issues the next nonce from the single monotonic in-memory
// counter, lazily seeded from the node's pending-nonce view. Every
// submission, across every contract and every router path, goes through
// this one counter so two in-flight transactions never collide.
func (c *Client) NextNonce(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.nonceValid {
		n, err := c.eth.PendingNonceAt(ctx, c.owner)
		if err != nil {
			return 0, fmt.Errorf("chain: seed nonce: %w", err)
		}
		c.nonce = n
		c.nonceValid = true
	}

	n := c.nonce
	c.nonce++
	return n, nil
}

// refetchNonceFromLatest re-seeds the nonce counter from the latest
// mined block, used after the node rejects a nonce as too low or expired.
func (c *Client) refetchNonceFromLatest(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.eth.NonceAt(ctx, c.owner, nil)
	if err != nil {
		c.nonceValid = false
		return
	}
	c.nonce = n
	c.nonceValid = true
}

// BalanceOf reads an ERC-20 balance for owner.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	cc := contractclient.NewContractClient(c.eth, token, erc20ABI)
	out, err := cc.Call(ctx, nil, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOf(%s): %w", token.Hex(), err)
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: balanceOf(%s): unexpected return type", token.Hex())
	}
	return bal, nil
}

// NativeBalance reads the chain's native asset balance for owner.
func (c *Client) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: native balance: %w", err)
	}
	return bal, nil
}

// Decimals reads an ERC-20's decimals() value.
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	cc := contractclient.NewContractClient(c.eth, token, erc20ABI)
	out, err := cc.Call(ctx, nil, "decimals")
	if err != nil {
		return 0, fmt.Errorf("chain: decimals(%s): %w", token.Hex(), err)
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("chain: decimals(%s): unexpected return type", token.Hex())
	}
	return dec, nil
}

// Submit drives up to three attempts of build through a fresh fee
// suggestion and a freshly issued nonce each time. A nonce-rejection
// refetches the counter from the latest block and retries immediately;
// a transient network error sleeps 250ms before retrying; any other
// error is terminal and returned without further attempts.
func (c *Client) Submit(ctx context.Context, build TxBuilder) (common.Hash, error) {
	var lastErr error

	for attempt := 1; attempt <= maxSubmitRetries; attempt++ {
		fee := c.FeeSuggestion(ctx)
		nonce, err := c.NextNonce(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("chain: submit: %w", err)
		}

		hash, err := build(ctx, fee, nonce)
		if err == nil {
			return hash, nil
		}
		lastErr = err

		switch {
		case isNonceError(err):
			c.refetchNonceFromLatest(ctx)
		case isTransientNetworkError(err):
			if attempt < maxSubmitRetries {
				time.Sleep(submitRetrySleep)
			}
		default:
			return common.Hash{}, fmt.Errorf("chain: submit: %w", err)
		}
	}

	return common.Hash{}, fmt.Errorf("chain: submit failed after %d attempts: %w", maxSubmitRetries, lastErr)
}
