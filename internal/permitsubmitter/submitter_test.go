package permitsubmitter

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/chainclient"
	"github.com/stablerouter/router/internal/chainregistry"
	"github.com/stablerouter/router/internal/chainvalidator"
	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/routererr"
)

var (
	adminAddr = common.HexToAddress("0x00000000000000000000000000000000000bad")
	tokenAddr = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	vaultAddr = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
)

func key(addr common.Address, method string) string {
	return fmt.Sprintf("%s:%s", addr.Hex(), method)
}

func testRegistry() *chainregistry.Registry {
	return chainregistry.New([]chainregistry.ChainConfig{
		{
			ChainID: 84532,
			Tokens: map[string]common.Address{
				"USDC": tokenAddr,
			},
		},
	})
}

func basePermit() *domain.Permit {
	return &domain.Permit{
		ID:             "permit-1",
		UserAddress:    "0xaaaa00000000000000000000000000000000aaaa",
		Token:          "USDC",
		ChainID:        84532,
		SpenderAddress: adminAddr.Hex(),
		Amount:         big.NewInt(10_000_000),
		Nonce:          big.NewInt(0),
		Deadline:       9_999_999_999,
		Status:         domain.PermitActive,
	}
}

func TestSubmitRejectsStaleNonce(t *testing.T) {
	fake := chainclient.NewFake(84532)
	fake.ReadResults[key(vaultAddr, "allowance")] = []interface{}{big.NewInt(0), big.NewInt(9_999_999_999), big.NewInt(1)} // on-chain nonce 1

	s := New(testRegistry(), chainvalidator.New(), chainclient.NewWriteQueue(), adminAddr, zap.NewNop())
	err := s.Submit(context.Background(), fake, basePermit()) // permit nonce 0

	require.Error(t, err)
	var re *routererr.RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, routererr.PermitStale, re.Code)
	assert.Empty(t, fake.Writes, "no submission should be attempted on a stale nonce")
}

func TestSubmitAbortsOnInsufficientBalanceBeforeApproval(t *testing.T) {
	fake := chainclient.NewFake(84532)
	fake.ReadResults[key(vaultAddr, "allowance")] = []interface{}{big.NewInt(0), big.NewInt(9_999_999_999), big.NewInt(0)}
	fake.ReadResults[key(tokenAddr, "balanceOf")] = big.NewInt(50_000)

	s := New(testRegistry(), chainvalidator.New(), chainclient.NewWriteQueue(), adminAddr, zap.NewNop())
	err := s.Submit(context.Background(), fake, basePermit())

	require.Error(t, err)
	var re *routererr.RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, routererr.InsufficientBalance, re.Code)
	assert.Empty(t, fake.Writes)
}

func TestSubmitSkipsEIP2612WhenTokenAllowanceAlreadySufficient(t *testing.T) {
	fake := chainclient.NewFake(84532)
	fake.ReadResults[key(tokenAddr, "balanceOf")] = big.NewInt(10_000_000)
	fake.ReadResults[key(vaultAddr, "allowance")] = []interface{}{big.NewInt(0), big.NewInt(9_999_999_999), big.NewInt(0)}
	fake.ReadResults[key(tokenAddr, "allowance")] = big.NewInt(10_000_000) // already approved

	s := New(testRegistry(), chainvalidator.New(), chainclient.NewWriteQueue(), adminAddr, zap.NewNop())
	p := basePermit()
	p.Signature = domain.Signature{V: 27}

	err := s.Submit(context.Background(), fake, p)
	require.NoError(t, err)

	require.Len(t, fake.Writes, 1, "only the vault permit should be submitted; no TokenPermitSig means no EIP-2612 call")
	assert.Equal(t, "permit", fake.Writes[0].Method)
	assert.Equal(t, vaultAddr, fake.Writes[0].Address)
}

func TestSubmitSubmitsEIP2612WhenAllowanceInsufficientAndSigPresent(t *testing.T) {
	fake := chainclient.NewFake(84532)
	fake.ReadResults[key(tokenAddr, "balanceOf")] = big.NewInt(10_000_000)
	fake.ReadResults[key(vaultAddr, "allowance")] = []interface{}{big.NewInt(0), big.NewInt(9_999_999_999), big.NewInt(0)}
	fake.ReadResults[key(tokenAddr, "allowance")] = big.NewInt(0) // not yet approved

	s := New(testRegistry(), chainvalidator.New(), chainclient.NewWriteQueue(), adminAddr, zap.NewNop())
	p := basePermit()
	p.Signature = domain.Signature{V: 27}
	p.TokenPermitSig = &domain.TokenPermitSig{Signature: domain.Signature{V: 27}, Deadline: 9_999_999_999}

	err := s.Submit(context.Background(), fake, p)
	require.NoError(t, err)

	require.Len(t, fake.Writes, 2)
	assert.Equal(t, "permit", fake.Writes[0].Method)
	assert.Equal(t, tokenAddr, fake.Writes[0].Address)
	assert.Equal(t, "permit", fake.Writes[1].Method)
	assert.Equal(t, vaultAddr, fake.Writes[1].Address)
}
