// Package chainvalidator implements the balance, token allowance, and
// AllowanceVault allowance checks used to pre-authorize a metered call (C5).
package chainvalidator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stablerouter/router/internal/chainabi"
	"github.com/stablerouter/router/internal/chainclient"
	"github.com/stablerouter/router/internal/routererr"
)

// BalanceResult is the structured outcome of a balance check.
type BalanceResult struct {
	Balance    *big.Int
	Sufficient bool
}

// TokenAllowanceResult is the structured outcome of a token→AllowanceVault
// allowance check.
type TokenAllowanceResult struct {
	Allowance  *big.Int
	Sufficient bool
}

// VaultAllowanceResult is the structured outcome of an
// AllowanceVault→admin allowance check.
type VaultAllowanceResult struct {
	Amount     *big.Int
	Expiration int64
	Nonce      int64
	Sufficient bool // amount >= required
	Expired    bool // expiration <= now (strict >)
}

// Valid reports whether the vault allowance can fund a call: sufficient
// amount and not expired.
func (r *VaultAllowanceResult) Valid() bool {
	return r.Sufficient && !r.Expired
}

// Validator runs the on-chain checks of C5 against a Client for a single
// chain.
type Validator struct{}

func New() *Validator { return &Validator{} }

// CheckBalance reads balanceOf(user) on the token contract.
func (v *Validator) CheckBalance(ctx context.Context, client chainclient.Client, token, user common.Address, required *big.Int) (*BalanceResult, error) {
	raw, err := client.ReadContract(ctx, token, chainabi.ERC20BalanceOfABI, "balanceOf", user)
	if err != nil {
		return nil, routererr.Wrap(routererr.ValidationError, "read balanceOf", err)
	}
	balance, ok := raw.(*big.Int)
	if !ok {
		return nil, routererr.New(routererr.ValidationError, "unexpected balanceOf return type", nil)
	}
	return &BalanceResult{Balance: balance, Sufficient: balance.Cmp(required) >= 0}, nil
}

// CheckTokenAllowance reads allowance(user, allowanceVault) on the token
// contract: whether the user has approved the AllowanceVault to draw funds.
func (v *Validator) CheckTokenAllowance(ctx context.Context, client chainclient.Client, token, user, allowanceVault common.Address, required *big.Int) (*TokenAllowanceResult, error) {
	raw, err := client.ReadContract(ctx, token, chainabi.ERC20AllowanceABI, "allowance", user, allowanceVault)
	if err != nil {
		return nil, routererr.Wrap(routererr.ValidationError, "read token allowance", err)
	}
	allowance, ok := raw.(*big.Int)
	if !ok {
		return nil, routererr.New(routererr.ValidationError, "unexpected allowance return type", nil)
	}
	return &TokenAllowanceResult{Allowance: allowance, Sufficient: allowance.Cmp(required) >= 0}, nil
}

// CheckVaultAllowance reads allowance(user, token, admin) on the
// AllowanceVault: valid iff amount >= required and expiration > now.
func (v *Validator) CheckVaultAllowance(ctx context.Context, client chainclient.Client, vault, user, token, admin common.Address, required *big.Int, now int64) (*VaultAllowanceResult, error) {
	raw, err := client.ReadContract(ctx, vault, chainabi.AllowanceVaultAllowanceABI, "allowance", user, token, admin)
	if err != nil {
		return nil, routererr.Wrap(routererr.ValidationError, "read vault allowance", err)
	}
	outputs, ok := raw.([]interface{})
	if !ok || len(outputs) != 3 {
		return nil, routererr.New(routererr.ValidationError, "unexpected vault allowance return shape", nil)
	}
	amount, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, routererr.New(routererr.ValidationError, "unexpected vault allowance amount type", nil)
	}
	expiration := toInt64(outputs[1])
	nonce := toInt64(outputs[2])

	return &VaultAllowanceResult{
		Amount:     amount,
		Expiration: expiration,
		Nonce:      nonce,
		Sufficient: amount.Cmp(required) >= 0,
		Expired:    expiration <= now,
	}, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case *big.Int:
		return n.Int64()
	case uint64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
