package transferengine

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/stablerouter/router/internal/attestation"
	"github.com/stablerouter/router/internal/routererr"
)

// decodeAttestation parses the attestation provider's hex-string message
// and attestation fields into the byte slices receiveMessage expects.
func decodeAttestation(att *attestation.Attestation) (message []byte, attestationBytes []byte, err error) {
	message, err = hexutil.Decode(ensure0x(att.Message))
	if err != nil {
		return nil, nil, routererr.Wrap(routererr.AttestationFailed, "decode attestation message hex", err)
	}
	attestationBytes, err = hexutil.Decode(ensure0x(att.Attestation))
	if err != nil {
		return nil, nil, routererr.Wrap(routererr.AttestationFailed, "decode attestation signature hex", err)
	}
	return message, attestationBytes, nil
}

func ensure0x(s string) string {
	if strings.HasPrefix(s, "0x") {
		return s
	}
	return "0x" + s
}
