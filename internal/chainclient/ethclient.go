package chainclient

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/routererr"
)

// EthClient is the go-ethereum-backed Client implementation for a single
// chain. Writes are signed with the admin private key; callers are
// responsible for serializing writes per chain (see WriteQueue).
type EthClient struct {
	chainID    int64
	rpc        *ethclient.Client
	adminKey   *ecdsa.PrivateKey
	adminAddr  common.Address
	log        *zap.Logger
}

// Dial connects to rpcURL and constructs an EthClient for chainID, signing
// writes with adminKey.
func Dial(ctx context.Context, chainID int64, rpcURL string, adminKey *ecdsa.PrivateKey, log *zap.Logger) (*EthClient, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, routererr.Wrap(routererr.ConfigurationError, "dial chain RPC", err)
	}
	return &EthClient{
		chainID:   chainID,
		rpc:       rpc,
		adminKey:  adminKey,
		adminAddr: crypto.PubkeyToAddress(adminKey.PublicKey),
		log:       log,
	}, nil
}

func (c *EthClient) ChainID() int64 { return c.chainID }

// ReadContract packs method+args against abiJSON, calls the contract, and
// unpacks the result.
func (c *EthClient) ReadContract(ctx context.Context, address common.Address, abiJSON []byte, method string, args ...interface{}) (interface{}, error) {
	contractABI, err := parseABI(abiJSON)
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "pack "+method, err)
	}

	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &address, Data: data}, nil)
	if err != nil {
		return nil, routererr.Wrap(routererr.ValidationError, "call "+method, err)
	}

	outputs, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "unpack "+method, err)
	}
	return unpackResult(outputs), nil
}

// WriteContract signs and sends a transaction calling method on address.
// Callers on the same chain must serialize calls to this method (see
// WriteQueue) to avoid nonce races — see §5.
func (c *EthClient) WriteContract(ctx context.Context, address common.Address, abiJSON []byte, method string, args ...interface{}) (common.Hash, error) {
	contractABI, err := parseABI(abiJSON)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, routererr.Wrap(routererr.InternalError, "pack "+method, err)
	}

	nonce, err := c.rpc.PendingNonceAt(ctx, c.adminAddr)
	if err != nil {
		return common.Hash{}, routererr.Wrap(routererr.InternalError, "fetch admin nonce", err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, routererr.Wrap(routererr.InternalError, "suggest gas price", err)
	}
	gasLimit, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: c.adminAddr, To: &address, Data: data})
	if err != nil {
		return common.Hash{}, routererr.Wrap(routererr.InternalError, "estimate gas", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &address,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.NewEIP155Signer(big.NewInt(c.chainID))
	signedTx, err := types.SignTx(tx, signer, c.adminKey)
	if err != nil {
		return common.Hash{}, routererr.Wrap(routererr.InternalError, "sign tx", err)
	}

	if err := c.rpc.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, routererr.Wrap(routererr.InternalError, "send tx", err)
	}

	c.log.Debug("submitted admin write",
		zap.String("method", method),
		zap.Int64("chainId", c.chainID),
		zap.String("txHash", signedTx.Hash().Hex()))

	return signedTx.Hash(), nil
}

// WaitForReceipt polls for a transaction receipt until it is mined or
// timeout elapses, surfacing ReceiptTimeout per §4.2.
func (c *EthClient) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*Receipt, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := c.GetReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if time.Now().After(deadline) {
			return nil, routererr.New(routererr.ReceiptTimeout, "transaction not mined before timeout",
				map[string]any{"txHash": txHash.Hex(), "chainId": c.chainID})
		}
		select {
		case <-ctx.Done():
			return nil, routererr.Wrap(routererr.InternalError, "waitForReceipt cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetReceipt fetches a transaction receipt if it has been mined, returning
// (nil, nil) when it is still pending.
func (c *EthClient) GetReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	r, err := c.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		if err == ethereum.NotFound {
			return nil, nil
		}
		return nil, routererr.Wrap(routererr.InternalError, "fetch receipt", err)
	}
	logs := make([]*types.Log, len(r.Logs))
	copy(logs, r.Logs)
	return &Receipt{
		Status:      r.Status,
		BlockNumber: r.BlockNumber.Uint64(),
		TxHash:      r.TxHash,
		Logs:        logs,
	}, nil
}

// GetLogs scans for logs emitted by filter.Address in the given block range,
// used to extract the MessageSent event from a burn receipt.
func (c *EthClient) GetLogs(ctx context.Context, filter LogFilter) ([]*types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(int64(filter.FromBlock)),
		Addresses: []common.Address{filter.Address},
	}
	if filter.ToBlock != 0 {
		query.ToBlock = big.NewInt(int64(filter.ToBlock))
	}
	logs, err := c.rpc.FilterLogs(ctx, query)
	if err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "filter logs", err)
	}
	out := make([]*types.Log, len(logs))
	for i := range logs {
		out[i] = &logs[i]
	}
	return out, nil
}
