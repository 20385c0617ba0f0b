package chainclient

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Fake is a deterministic, in-memory Client for tests, matching the
// teacher's convention of fakes over network mocks for on-chain state.
type Fake struct {
	chainID int64

	// ReadResults maps "address:method" to the value ReadContract should
	// return. The address component disambiguates identically-named
	// methods on different contracts, e.g. ERC20.allowance vs.
	// AllowanceVault.allowance.
	ReadResults map[string]interface{}
	ReadErrs    map[string]error

	// Receipts maps a tx hash to the receipt WaitForReceipt/GetReceipt return.
	Receipts map[common.Hash]*Receipt

	// Writes records every WriteContract call for assertions.
	Writes []FakeWrite

	// NextTxHash is returned by the next WriteContract call, then advanced
	// by the caller via SetNextTxHash for subsequent calls.
	NextTxHash common.Hash

	LogsToReturn []*types.Log
}

type FakeWrite struct {
	Address common.Address
	Method  string
	Args    []interface{}
	TxHash  common.Hash
}

func NewFake(chainID int64) *Fake {
	return &Fake{
		chainID:     chainID,
		ReadResults: map[string]interface{}{},
		ReadErrs:    map[string]error{},
		Receipts:    map[common.Hash]*Receipt{},
	}
}

func (f *Fake) ChainID() int64 { return f.chainID }

func (f *Fake) ReadContract(ctx context.Context, address common.Address, abiJSON []byte, method string, args ...interface{}) (interface{}, error) {
	key := fmt.Sprintf("%s:%s", address.Hex(), method)
	if err, ok := f.ReadErrs[key]; ok {
		return nil, err
	}
	if err, ok := f.ReadErrs[method]; ok {
		return nil, err
	}
	if v, ok := f.ReadResults[key]; ok {
		return v, nil
	}
	return f.ReadResults[method], nil
}

func (f *Fake) WriteContract(ctx context.Context, address common.Address, abiJSON []byte, method string, args ...interface{}) (common.Hash, error) {
	txHash := f.NextTxHash
	f.Writes = append(f.Writes, FakeWrite{Address: address, Method: method, Args: args, TxHash: txHash})
	return txHash, nil
}

func (f *Fake) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*Receipt, error) {
	return f.GetReceipt(ctx, txHash)
}

func (f *Fake) GetReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	r, ok := f.Receipts[txHash]
	if !ok {
		return &Receipt{Status: 1, TxHash: txHash}, nil
	}
	return r, nil
}

func (f *Fake) GetLogs(ctx context.Context, filter LogFilter) ([]*types.Log, error) {
	return f.LogsToReturn, nil
}
