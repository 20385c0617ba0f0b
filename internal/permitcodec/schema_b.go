package permitcodec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// allowanceVaultTypes is the AllowanceVault's PermitSingle type, domain
// {name="Permit2", version="1", chainId, verifyingContract=allowanceVault}.
var allowanceVaultTypes = map[string][]Field{
	"PermitDetails": {
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint160"},
		{Name: "expiration", Type: "uint48"},
		{Name: "nonce", Type: "uint48"},
	},
	"PermitSingle": {
		{Name: "details", Type: "PermitDetails"},
		{Name: "spender", Type: "address"},
		{Name: "sigDeadline", Type: "uint256"},
	},
}

// SchemaB is the codec for the AllowanceVault's PermitSingle.
var SchemaB = NewCodec(allowanceVaultTypes, "PermitSingle")

// AllowanceVaultDomain builds the Schema B EIP-712 domain.
func AllowanceVaultDomain(chainID int64, allowanceVault common.Address) Domain {
	return Domain{
		Name:              "Permit2",
		Version:           "1",
		ChainID:           big.NewInt(chainID),
		VerifyingContract: allowanceVault,
	}
}

// PermitSingleMessage builds the message map for Schema B's PermitSingle
// struct.
func PermitSingleMessage(token common.Address, amount *big.Int, expiration, nonce int64, spender common.Address, sigDeadline *big.Int) map[string]interface{} {
	return map[string]interface{}{
		"details": map[string]interface{}{
			"token":      token.Hex(),
			"amount":     amount,
			"expiration": big.NewInt(expiration),
			"nonce":      big.NewInt(nonce),
		},
		"spender":     spender.Hex(),
		"sigDeadline": sigDeadline,
	}
}
