package config

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func setAdminEnv(t *testing.T) {
	t.Helper()
	privKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(privKey.PublicKey)

	t.Setenv("ADMIN_PKEY", hex.EncodeToString(crypto.FromECDSA(privKey)))
	t.Setenv("ADMIN_ADDRESS", addr.Hex())
}

func TestLoadRejectsMissingAdminKey(t *testing.T) {
	t.Setenv("ADMIN_PKEY", "")
	t.Setenv("ADMIN_ADDRESS", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsMismatchedAddress(t *testing.T) {
	setAdminEnv(t)
	t.Setenv("ADMIN_ADDRESS", "0x000000000000000000000000000000000000dEaD")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesRPCURLsAndDefaults(t *testing.T) {
	setAdminEnv(t)
	t.Setenv("RPC_URL_84532", "https://sepolia.base.org")
	t.Setenv("RPC_URL_11155111", "https://sepolia.infura.io")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://sepolia.base.org", cfg.RPCURLs[84532])
	require.Equal(t, "https://sepolia.infura.io", cfg.RPCURLs[11155111])
	require.Equal(t, defaultAttestationAPIURL, cfg.AttestationAPIURL)
}
