// Command routerd runs the stablecoin payment router: it wires the Chain
// Registry, permit store, on-chain submitter, attestation client, and
// transfer engine into the gin HTTP surface described in SPEC_FULL.md §6.
package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stablerouter/router/internal/attestation"
	"github.com/stablerouter/router/internal/chainclient"
	"github.com/stablerouter/router/internal/chainregistry"
	"github.com/stablerouter/router/internal/chainvalidator"
	"github.com/stablerouter/router/internal/config"
	"github.com/stablerouter/router/internal/directory"
	"github.com/stablerouter/router/internal/permitadmin"
	"github.com/stablerouter/router/internal/permitstore"
	"github.com/stablerouter/router/internal/permitstore/gormstore"
	"github.com/stablerouter/router/internal/permitstore/memstore"
	"github.com/stablerouter/router/internal/permitsubmitter"
	"github.com/stablerouter/router/internal/router"
	"github.com/stablerouter/router/internal/transferengine"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	adminKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.AdminPKey, "0x"))
	if err != nil {
		log.Fatal("parse admin key", zap.Error(err))
	}

	registry := chainregistry.FromConfig(cfg)
	pool := chainclient.NewPool(cfg.RPCURLs, adminKey, log)
	writeQueue := chainclient.NewWriteQueue()
	validator := chainvalidator.New()

	store := openStore(cfg, log)

	submitter := permitsubmitter.New(registry, validator, writeQueue, cfg.AdminAddress, log)

	attester := newAttestationClient(cfg)

	engine := transferengine.New(registry, store, pool, attester, writeQueue, cfg.AdminAddress, log)

	dir := directory.New()
	if path := os.Getenv("DIRECTORY_SEED_FILE"); path != "" {
		if err := directory.LoadSeedFile(dir, path); err != nil {
			log.Fatal("load directory seed file", zap.Error(err))
		}
	}

	publisher := router.NewPublisherClient(cfg.PublisherTimeout)
	r := router.New(store, dir, dir, validator, registry, pool, engine, publisher, log)
	admin := permitadmin.New(store, submitter, registry, pool, cfg.AdminAddress, log)

	server := router.NewServer(r, admin, log)

	log.Info("routerd listening", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, server.Handler()); err != nil {
		log.Fatal("http server exited", zap.Error(err))
	}
}

func openStore(cfg *config.Config, log *zap.Logger) permitstore.Store {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, using in-memory permit store")
		return memstore.New()
	}
	conn, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	store := gormstore.New(conn)
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatal("migrate database", zap.Error(err))
	}
	return store
}

func newAttestationClient(cfg *config.Config) *attestation.Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if os.Getenv("ATTESTATION_API_VERSION") == "v1" {
		return attestation.NewV1Client(cfg.AttestationAPIURL, httpClient, cfg.AttestationBudget)
	}
	return attestation.NewV2Client(cfg.AttestationAPIURL, httpClient, cfg.AttestationBudget)
}
