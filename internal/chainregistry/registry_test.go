package chainregistry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablerouter/router/internal/routererr"
)

func testRegistry() *Registry {
	return New([]ChainConfig{
		{
			ChainID:              84532,
			RPCURL:               "https://sepolia.base.org",
			DestinationDomain:    6,
			HasDestinationDomain: true,
			Tokens: map[string]common.Address{
				"USDC": common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			},
		},
		{
			ChainID: 11155111,
			RPCURL:  "https://sepolia.infura.io",
		},
	})
}

func TestTokenAddressResolves(t *testing.T) {
	r := testRegistry()
	addr, err := r.TokenAddress("usdc", 84532)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"), addr)
}

func TestTokenAddressUnknownSymbolReturnsZeroAddress(t *testing.T) {
	r := testRegistry()
	addr, err := r.TokenAddress("DAI", 84532)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, addr)
}

func TestUnsupportedChainIsAnError(t *testing.T) {
	r := testRegistry()
	_, err := r.TokenAddress("USDC", 999999)
	require.Error(t, err)

	var re *routererr.RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, routererr.UnsupportedChain, re.Code)
}

func TestDestinationDomainMissingIsNotOK(t *testing.T) {
	r := testRegistry()
	_, ok := r.DestinationDomain(11155111)
	assert.False(t, ok)

	domain, ok := r.DestinationDomain(84532)
	require.True(t, ok)
	assert.Equal(t, uint32(6), domain)
}

func TestDecimalsAreSixForSupportedStablecoins(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, uint(6), r.Decimals("USDC"))
	assert.Equal(t, uint(6), r.Decimals("PYUSD"))
}
