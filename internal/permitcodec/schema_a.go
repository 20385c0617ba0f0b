package permitcodec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// eip2612Types is the stablecoin's own EIP-2612 Permit type, domain
// {name, version, chainId, verifyingContract=token}.
var eip2612Types = map[string][]Field{
	"Permit": {
		{Name: "owner", Type: "address"},
		{Name: "spender", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

// SchemaA is the codec for the stablecoin's EIP-2612 Permit.
var SchemaA = NewCodec(eip2612Types, "Permit")

// tokenVersion is the (name, version) pair for a recognized (symbol, chainId).
type tokenVersion struct {
	Name    string
	Version string
}

const sepoliaChainID = 11155111

// TokenNameVersion resolves the EIP-712 domain name/version for a stablecoin
// symbol on a chain. Version disambiguation is a hard invariant — signing
// with the wrong version yields unrecoverable signatures.
func TokenNameVersion(symbol string, chainID int64) tokenVersion {
	switch symbol {
	case "USDC":
		if chainID == sepoliaChainID {
			return tokenVersion{Name: "USD Coin", Version: "2"}
		}
		return tokenVersion{Name: "USD Coin", Version: "1"}
	case "PYUSD":
		return tokenVersion{Name: "PayPal USD", Version: "1"}
	default:
		return tokenVersion{Name: "USD Coin", Version: "1"}
	}
}

// EIP2612PermitMessage builds the message map for Schema A's Permit struct.
func EIP2612PermitMessage(owner, spender common.Address, value, nonce, deadline *big.Int) map[string]interface{} {
	return map[string]interface{}{
		"owner":    owner.Hex(),
		"spender":  spender.Hex(),
		"value":    value,
		"nonce":    nonce,
		"deadline": deadline,
	}
}

// EIP2612Domain builds the Schema A EIP-712 domain for a given token.
func EIP2612Domain(symbol string, chainID int64, token common.Address) Domain {
	nv := TokenNameVersion(symbol, chainID)
	return Domain{
		Name:              nv.Name,
		Version:           nv.Version,
		ChainID:           big.NewInt(chainID),
		VerifyingContract: token,
	}
}
