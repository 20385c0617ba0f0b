package chainvalidator

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablerouter/router/internal/chainclient"
)

var (
	token   = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	user    = common.HexToAddress("0xAAAA00000000000000000000000000000000AAAA")
	vault   = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
	admin   = common.HexToAddress("0x00000000000000000000000000000000000bad")
)

func TestCheckBalanceSufficientIsInclusive(t *testing.T) {
	fake := chainclient.NewFake(84532)
	fake.ReadResults["balanceOf"] = big.NewInt(100)

	v := New()
	result, err := v.CheckBalance(context.Background(), fake, token, user, big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, result.Sufficient, "amount == requiredAmount is allowed (inclusive >=)")
}

func TestCheckBalanceInsufficient(t *testing.T) {
	fake := chainclient.NewFake(84532)
	fake.ReadResults["balanceOf"] = big.NewInt(50_000)

	v := New()
	result, err := v.CheckBalance(context.Background(), fake, token, user, big.NewInt(100_000))
	require.NoError(t, err)
	assert.False(t, result.Sufficient)
}

func TestCheckVaultAllowanceExpirationIsStrict(t *testing.T) {
	fake := chainclient.NewFake(84532)
	now := int64(1_700_000_000)
	fake.ReadResults["allowance"] = []interface{}{big.NewInt(1_000_000), big.NewInt(now), big.NewInt(5)}

	v := New()
	result, err := v.CheckVaultAllowance(context.Background(), fake, vault, user, token, admin, big.NewInt(1_000_000), now)
	require.NoError(t, err)
	assert.True(t, result.Sufficient)
	assert.True(t, result.Expired, "expiration == now is expired (strict >)")
	assert.False(t, result.Valid())
}

func TestCheckVaultAllowanceValidWhenNotExpired(t *testing.T) {
	fake := chainclient.NewFake(84532)
	now := int64(1_700_000_000)
	fake.ReadResults["allowance"] = []interface{}{big.NewInt(1_000_000), big.NewInt(now + 1), big.NewInt(5)}

	v := New()
	result, err := v.CheckVaultAllowance(context.Background(), fake, vault, user, token, admin, big.NewInt(1_000_000), now)
	require.NoError(t, err)
	assert.True(t, result.Valid())
	assert.Equal(t, int64(5), result.Nonce)
}
