package chainclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/routererr"
)

// Pool lazily dials and caches one Client per chain id, resolving RPC URLs
// from a fixed map built at startup from configuration.
type Pool struct {
	mu       sync.Mutex
	rpcURLs  map[int64]string
	adminKey *ecdsa.PrivateKey
	log      *zap.Logger
	clients  map[int64]Client
}

func NewPool(rpcURLs map[int64]string, adminKey *ecdsa.PrivateKey, log *zap.Logger) *Pool {
	return &Pool{rpcURLs: rpcURLs, adminKey: adminKey, log: log, clients: map[int64]Client{}}
}

// Client returns the cached Client for chainID, dialing on first use.
func (p *Pool) Client(chainID int64) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[chainID]; ok {
		return c, nil
	}
	rpcURL, ok := p.rpcURLs[chainID]
	if !ok {
		return nil, routererr.New(routererr.UnsupportedChain, fmt.Sprintf("no RPC URL configured for chain %d", chainID),
			map[string]any{"chainId": chainID})
	}
	c, err := Dial(context.Background(), chainID, rpcURL, p.adminKey, p.log)
	if err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "dial chain rpc", err)
	}
	p.clients[chainID] = c
	return c, nil
}
