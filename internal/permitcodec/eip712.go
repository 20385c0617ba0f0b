// Package permitcodec implements EIP-712 domain construction, signed-typed
// data encoding, and signature recovery for both the stablecoin's EIP-2612
// permit and the AllowanceVault's PermitSingle scheme. Both are tagged
// variants sharing the Codec interface.
package permitcodec

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is an EIP-712 domain separator.
type Domain struct {
	Name              string
	Version           string // empty for domains that omit it, e.g. AllowanceVault's Permit2-style domain
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Field is a single EIP-712 struct field.
type Field struct {
	Name string
	Type string
}

// Codec is the shared interface for both typed-data schemas, per the
// "duck-typed signatures" design note: the source's ad-hoc string
// concatenation becomes two tagged variants sharing one codec trait.
type Codec interface {
	// EncodeDigest returns the 32-byte EIP-712 digest for message.
	EncodeDigest(domain Domain, message map[string]interface{}) ([]byte, error)
}

type codec struct {
	types       map[string][]Field
	primaryType string
}

// NewCodec builds a Codec for a fixed set of EIP-712 types and primary type.
func NewCodec(types map[string][]Field, primaryType string) Codec {
	return &codec{types: types, primaryType: primaryType}
}

// EncodeDigest computes keccak256("\x19\x01" ‖ domainSeparator ‖ structHash).
func (c *codec) EncodeDigest(domain Domain, message map[string]interface{}) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: c.primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: message,
	}

	for typeName, fields := range c.types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, f := range fields {
			typedFields[i] = apitypes.Type{Name: f.Name, Type: f.Type}
		}
		typedData.Types[typeName] = typedFields
	}

	if _, exists := typedData.Types["EIP712Domain"]; !exists {
		typedData.Types["EIP712Domain"] = domainFields(domain)
	}

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash struct: %w", err)
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(dataHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, dataHash...)
	return crypto.Keccak256(raw), nil
}

// domainFields returns the EIP712Domain type, omitting "version" when the
// domain doesn't carry one (the AllowanceVault domain has no version field).
func domainFields(domain Domain) []apitypes.Type {
	fields := []apitypes.Type{{Name: "name", Type: "string"}}
	if domain.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	fields = append(fields,
		apitypes.Type{Name: "chainId", Type: "uint256"},
		apitypes.Type{Name: "verifyingContract", Type: "address"},
	)
	return fields
}

// RecoverSigner recovers the signer address from a digest and a (r, s, v)
// signature, used to validate submissions (§5).
func RecoverSigner(digest []byte, sig [65]byte) (common.Address, error) {
	// crypto.Ecrecover expects recovery id in {0, 1}; signatures are
	// transported with v in {27, 28}.
	adjusted := sig
	if adjusted[64] >= 27 {
		adjusted[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, adjusted[:])
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a (r, s, v) signature over digest with v adjusted to 27/28,
// matching the on-chain ecrecover convention.
func Sign(digest []byte, privateKey *ecdsa.PrivateKey) ([65]byte, error) {
	sig, err := crypto.Sign(digest, privateKey)
	var out [65]byte
	if err != nil {
		return out, fmt.Errorf("sign: %w", err)
	}
	copy(out[:], sig)
	out[64] += 27
	return out, nil
}
