// Package chainregistry is a purely declarative mapping of chain ids to RPC
// endpoints, token contract addresses, burn-mint contract addresses, and
// destination-domain ids.
package chainregistry

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stablerouter/router/internal/routererr"
)

// allowanceVaultAddress is constant across every supported chain.
const allowanceVaultAddress = "0x000000000022D473030F116dDEE9F6B43aC78BA3"

// ChainConfig is the per-chain declarative metadata entry.
type ChainConfig struct {
	ChainID                 int64
	RPCURL                  string
	TokenMessengerAddress   common.Address
	MessageTransmitterAddr  common.Address
	DestinationDomain       uint32
	HasDestinationDomain    bool
	Tokens                  map[string]common.Address // symbol -> address, uppercased keys
}

// Registry is the immutable-after-construction Chain Registry (C1).
type Registry struct {
	chains   map[int64]ChainConfig
	decimals map[string]uint // symbol -> decimals, uppercased keys
}

// New builds a Registry from a slice of chain configs. All supported
// stablecoins use 6 decimals.
func New(chains []ChainConfig) *Registry {
	r := &Registry{
		chains:   make(map[int64]ChainConfig, len(chains)),
		decimals: map[string]uint{"USDC": 6, "PYUSD": 6},
	}
	for _, c := range chains {
		r.chains[c.ChainID] = c
	}
	return r
}

func (r *Registry) lookup(chainID int64) (ChainConfig, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return ChainConfig{}, routererr.New(routererr.UnsupportedChain,
			"chain is outside the configured set", map[string]any{"chainId": chainID})
	}
	return c, nil
}

// TokenAddress resolves a token symbol to its contract address on chainID.
// Returns the zero address and no error when the token is unconfigured.
func (r *Registry) TokenAddress(symbol string, chainID int64) (common.Address, error) {
	c, err := r.lookup(chainID)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := c.Tokens[strings.ToUpper(symbol)]
	if !ok {
		return common.Address{}, nil
	}
	return addr, nil
}

// AllowanceVaultAddress returns the AllowanceVault address, constant on
// every chain.
func (r *Registry) AllowanceVaultAddress() common.Address {
	return common.HexToAddress(allowanceVaultAddress)
}

// TokenMessengerAddress returns the burn-side contract address for chainID.
func (r *Registry) TokenMessengerAddress(chainID int64) (common.Address, error) {
	c, err := r.lookup(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return c.TokenMessengerAddress, nil
}

// MessageTransmitterAddress returns the mint-side contract address for chainID.
func (r *Registry) MessageTransmitterAddress(chainID int64) (common.Address, error) {
	c, err := r.lookup(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return c.MessageTransmitterAddr, nil
}

// DestinationDomain returns the attestation protocol's domain id for chainID.
// ok is false when the chain has no assigned domain (it cannot be a
// cross-chain source or target).
func (r *Registry) DestinationDomain(chainID int64) (domain uint32, ok bool) {
	c, err := r.lookup(chainID)
	if err != nil {
		return 0, false
	}
	return c.DestinationDomain, c.HasDestinationDomain
}

// RPCURL returns the RPC endpoint configured for chainID.
func (r *Registry) RPCURL(chainID int64) (string, error) {
	c, err := r.lookup(chainID)
	if err != nil {
		return "", err
	}
	return c.RPCURL, nil
}

// Decimals returns the base-unit decimals for a supported stablecoin symbol.
func (r *Registry) Decimals(symbol string) uint {
	return r.decimals[strings.ToUpper(symbol)]
}

// ChainIDs returns every configured chain id.
func (r *Registry) ChainIDs() []int64 {
	ids := make([]int64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	return ids
}
