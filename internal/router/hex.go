package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func hexTo32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hexutil.Decode(ensureHexPrefix(s))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func ensureHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && s[1] == 'x' {
		return s
	}
	return "0x" + s
}
