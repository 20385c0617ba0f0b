// Package config loads the router's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"

	"github.com/stablerouter/router/internal/routererr"
)

const defaultAttestationAPIURL = "https://iris-api-sandbox.circle.com"

// Config is the router's immutable, env-driven configuration.
type Config struct {
	AdminPKey    string // hex, no 0x prefix
	AdminAddress common.Address

	AttestationAPIURL string

	// RPCURLs maps chain id to RPC endpoint, from RPC_URL_{chainId}.
	RPCURLs map[int64]string

	// TokenOverrides maps token symbol to contract address, from
	// CHAIN_ID_{symbol}, matching the optional override knob named in §6.
	TokenOverrides map[string]string

	ReceiptTimeout    time.Duration
	AttestationBudget time.Duration
	PublisherTimeout  time.Duration
	ListenAddr        string

	DatabaseURL string
}

// Load reads an optional .env file (if present) then the process
// environment, validating the admin key/address pair. Missing required
// variables produce ConfigurationError rather than a zero-value Config.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; absence of .env is not an error

	pkeyHex := strings.TrimPrefix(os.Getenv("ADMIN_PKEY"), "0x")
	if pkeyHex == "" {
		return nil, routererr.New(routererr.ConfigurationError, "ADMIN_PKEY is required", nil)
	}
	privKey, err := crypto.HexToECDSA(pkeyHex)
	if err != nil {
		return nil, routererr.Wrap(routererr.ConfigurationError, "ADMIN_PKEY is not a valid secp256k1 key", err)
	}
	derived := crypto.PubkeyToAddress(privKey.PublicKey)

	wantAddr := os.Getenv("ADMIN_ADDRESS")
	if wantAddr == "" {
		return nil, routererr.New(routererr.ConfigurationError, "ADMIN_ADDRESS is required", nil)
	}
	if !common.IsHexAddress(wantAddr) {
		return nil, routererr.New(routererr.ConfigurationError, "ADMIN_ADDRESS is not a valid address", nil)
	}
	if common.HexToAddress(wantAddr) != derived {
		return nil, routererr.New(routererr.ConfigurationError,
			"ADMIN_ADDRESS does not match the address derived from ADMIN_PKEY",
			map[string]any{"expected": derived.Hex(), "configured": wantAddr})
	}

	cfg := &Config{
		AdminPKey:          pkeyHex,
		AdminAddress:       derived,
		AttestationAPIURL:  getOr("ATTESTATION_API_URL", defaultAttestationAPIURL),
		RPCURLs:            map[int64]string{},
		TokenOverrides:     map[string]string{},
		ReceiptTimeout:     getDurationOr("ROUTER_RECEIPT_TIMEOUT", 2*time.Minute),
		AttestationBudget:  getDurationOr("ROUTER_ATTESTATION_BUDGET", 20*time.Minute),
		PublisherTimeout:   getDurationOr("ROUTER_PUBLISHER_TIMEOUT", 13*time.Second),
		ListenAddr:         getOr("ROUTER_LISTEN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(k, "RPC_URL_"):
			chainIDStr := strings.TrimPrefix(k, "RPC_URL_")
			chainID, err := strconv.ParseInt(chainIDStr, 10, 64)
			if err != nil {
				return nil, routererr.Wrap(routererr.ConfigurationError,
					fmt.Sprintf("invalid chain id in %s", k), err)
			}
			cfg.RPCURLs[chainID] = v
		case strings.HasPrefix(k, "CHAIN_ID_"):
			symbol := strings.TrimPrefix(k, "CHAIN_ID_")
			cfg.TokenOverrides[symbol] = v
		}
	}

	return cfg, nil
}

func getOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
