package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpointer-labs/evmtrader/pkg/contractclient"
)

// fakeContractClient stubs contractclient.ContractClient with a canned
// Call() return, used to exercise allowance decoding without an RPC node.
type fakeContractClient struct {
	out []interface{}
	err error
}

func (f *fakeContractClient) Address() common.Address { return common.Address{} }
func (f *fakeContractClient) Abi() *abi.ABI            { return nil }
func (f *fakeContractClient) Call(ctx context.Context, caller *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	return f.out, f.err
}
func (f *fakeContractClient) Send(ctx context.Context, tx contractclient.TxParams, pk *ecdsa.PrivateKey, method string, args ...interface{}) (common.Hash, error) {
	return common.Hash{}, nil
}
func (f *fakeContractClient) DecodeTransaction(data []byte) (*contractclient.DecodedCall, error) {
	return nil, nil
}
func (f *fakeContractClient) TransactionData(ctx context.Context, hash common.Hash) ([]byte, error) {
	return nil, nil
}
func (f *fakeContractClient) ParseReceiptLogs(logs []*types.Log) []contractclient.DecodedEvent {
	return nil
}

// Permit2's allowance() returns (uint160 amount, uint48 expiration, uint48
// nonce); go-ethereum's abi decoder only maps integer widths 8/16/32/64 to
// native Go ints, so both uint160 and uint48 outputs arrive as *big.Int.
func TestReadPermit2AllowanceDecodesBigIntExpiration(t *testing.T) {
	cc := &fakeContractClient{out: []interface{}{big.NewInt(1_000), big.NewInt(1_893_456_000)}}

	got, err := readPermit2Allowance(context.Background(), cc, common.Address{}, common.Address{}, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000), got.Amount)
	assert.Equal(t, uint64(1_893_456_000), got.Expiration)
}

func TestReadPermit2AllowanceRejectsWrongAmountType(t *testing.T) {
	cc := &fakeContractClient{out: []interface{}{"not-a-bigint", big.NewInt(1)}}

	_, err := readPermit2Allowance(context.Background(), cc, common.Address{}, common.Address{}, common.Address{})
	assert.Error(t, err)
}

func TestReadPermit2AllowanceRejectsWrongExpirationType(t *testing.T) {
	cc := &fakeContractClient{out: []interface{}{big.NewInt(1_000), "not-a-bigint"}}

	_, err := readPermit2Allowance(context.Background(), cc, common.Address{}, common.Address{}, common.Address{})
	assert.Error(t, err)
}

func TestReadPermit2AllowanceRetriesThenFails(t *testing.T) {
	cc := &fakeContractClient{err: errors.New("rpc unavailable")}

	_, err := readPermit2Allowance(context.Background(), cc, common.Address{}, common.Address{}, common.Address{})
	assert.Error(t, err)
}
