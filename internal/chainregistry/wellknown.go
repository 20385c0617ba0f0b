package chainregistry

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/stablerouter/router/internal/config"
)

// Testnet CCTP contract addresses, identical across supported testnets by
// CREATE2 deployment.
const (
	tokenMessengerTestnet      = "0x8FE6B999Dc680CcFDD5Bf7EB0974218be2542DAA"
	messageTransmitterTestnet = "0xE737e5cEBEEBa77EFE34D4aa090756590b1CE275"
)

// defaultChains is the built-in testnet configuration exercised by the
// end-to-end scenarios in the error handling and testable properties
// sections: Ethereum Sepolia as a cross-chain source, Base Sepolia as the
// typical publisher payout chain.
func defaultChains() []ChainConfig {
	return []ChainConfig{
		{
			ChainID:                84532, // Base Sepolia
			TokenMessengerAddress:  common.HexToAddress(tokenMessengerTestnet),
			MessageTransmitterAddr: common.HexToAddress(messageTransmitterTestnet),
			DestinationDomain:      6,
			HasDestinationDomain:   true,
			Tokens: map[string]common.Address{
				"USDC": common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			},
		},
		{
			ChainID:                11155111, // Ethereum Sepolia
			TokenMessengerAddress:  common.HexToAddress(tokenMessengerTestnet),
			MessageTransmitterAddr: common.HexToAddress(messageTransmitterTestnet),
			DestinationDomain:      0,
			HasDestinationDomain:   true,
			Tokens: map[string]common.Address{
				"USDC":  common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
				"PYUSD": common.HexToAddress("0xCaC524BcA292aaade2DF8A05cC58F0a65B1B3bB9"),
			},
		},
	}
}

// FromConfig builds a Registry from the environment-loaded config, applying
// RPC_URL_{chainId} overrides and CHAIN_ID_{symbol} token-address overrides
// on top of the built-in testnet defaults.
func FromConfig(cfg *config.Config) *Registry {
	chains := defaultChains()
	for i := range chains {
		if url, ok := cfg.RPCURLs[chains[i].ChainID]; ok {
			chains[i].RPCURL = url
		}
	}
	for symbol, addr := range cfg.TokenOverrides {
		if !common.IsHexAddress(addr) {
			continue
		}
		for i := range chains {
			if chains[i].Tokens == nil {
				chains[i].Tokens = map[string]common.Address{}
			}
			chains[i].Tokens[symbol] = common.HexToAddress(addr)
		}
	}
	return New(chains)
}
