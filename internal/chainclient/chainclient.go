// Package chainclient wraps RPC access to a single chain: readContract,
// writeContract, waitForReceipt, getLogs. Writes require the admin signer.
package chainclient

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/stablerouter/router/internal/routererr"
)

// Receipt is the subset of a mined transaction's receipt the core needs.
type Receipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      common.Hash
	Logs        []*types.Log
}

// Succeeded reports whether the receipt's status is success (1).
func (r *Receipt) Succeeded() bool { return r.Status == 1 }

// LogFilter narrows GetLogs to a contract address and a block range.
type LogFilter struct {
	Address   common.Address
	FromBlock uint64
	ToBlock   uint64 // 0 means "latest"
}

// Client is a single chain's read/write RPC surface (C2).
type Client interface {
	ReadContract(ctx context.Context, address common.Address, abiJSON []byte, method string, args ...interface{}) (interface{}, error)
	WriteContract(ctx context.Context, address common.Address, abiJSON []byte, method string, args ...interface{}) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*Receipt, error)
	GetReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
	GetLogs(ctx context.Context, filter LogFilter) ([]*types.Log, error)
	ChainID() int64
}

func parseABI(abiJSON []byte) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return abi.ABI{}, routererr.Wrap(routererr.InternalError, "parse contract ABI", err)
	}
	return parsed, nil
}

// unpackResult mirrors the teacher's ReadContract return convention: zero
// outputs is nil, one output is unwrapped, more than one is returned as a
// slice.
func unpackResult(outputs []interface{}) interface{} {
	switch len(outputs) {
	case 0:
		return nil
	case 1:
		return outputs[0]
	default:
		return outputs
	}
}
