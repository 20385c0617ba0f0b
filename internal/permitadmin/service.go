// Package permitadmin ties the EIP-712 codec, the permit store, and the
// on-chain submitter together into the permit-admin surface exposed over
// HTTP: create, list, patch, and revoke (§6).
package permitadmin

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/chainclient"
	"github.com/stablerouter/router/internal/chainregistry"
	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitcodec"
	"github.com/stablerouter/router/internal/permitstore"
	"github.com/stablerouter/router/internal/permitsubmitter"
	"github.com/stablerouter/router/internal/routererr"
)

// ClientResolver resolves a chain-scoped client for permit submission.
type ClientResolver interface {
	Client(chainID int64) (chainclient.Client, error)
}

// CreateRequest is the decoded body of POST /permits.
type CreateRequest struct {
	UserAddress    string
	AgentID        string
	Token          string
	ChainID        int64
	Amount         *big.Int
	Nonce          *big.Int
	Deadline       int64
	Signature      domain.Signature
	TokenPermitSig *domain.TokenPermitSig
	MaxCalls       int64
	CostPerCall    *big.Rat
}

// Service implements the permit-admin surface: verify the signer, persist,
// submit on-chain, and report the resulting lifecycle status.
type Service struct {
	store      permitstore.Store
	submitter  *permitsubmitter.Submitter
	registry   *chainregistry.Registry
	clients    ClientResolver
	adminAddr  common.Address
	log        *zap.Logger
}

func New(store permitstore.Store, submitter *permitsubmitter.Submitter, registry *chainregistry.Registry, clients ClientResolver, adminAddr common.Address, log *zap.Logger) *Service {
	return &Service{store: store, submitter: submitter, registry: registry, clients: clients, adminAddr: adminAddr, log: log}
}

// Create verifies req's PermitSingle signature, persists the permit, then
// submits it on-chain per C6. A submission failure leaves the permit
// persisted with a non-active status rather than losing the record.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Permit, error) {
	tokenAddr, err := s.registry.TokenAddress(req.Token, req.ChainID)
	if err != nil {
		return nil, err
	}
	vaultAddr := s.registry.AllowanceVaultAddress()

	domainB := permitcodec.AllowanceVaultDomain(req.ChainID, vaultAddr)
	message := permitcodec.PermitSingleMessage(tokenAddr, req.Amount, req.Deadline, req.Nonce.Int64(), s.adminAddr, big.NewInt(req.Deadline))
	digest, err := permitcodec.SchemaB.EncodeDigest(domainB, message)
	if err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "encode permit digest", err)
	}

	sig := signatureBytes(req.Signature)
	recovered, err := permitcodec.RecoverSigner(digest, sig)
	if err != nil {
		return nil, routererr.Wrap(routererr.ValidationError, "recover permit signer", err)
	}
	if !sameAddress(recovered, req.UserAddress) {
		return nil, routererr.New(routererr.ValidationError, "signature does not match userAddress",
			map[string]any{"recovered": recovered.Hex(), "claimed": req.UserAddress})
	}

	now := time.Now()
	p := &domain.Permit{
		ID: uuid.NewString(), UserAddress: normalizeAddress(req.UserAddress), AgentID: req.AgentID,
		Token: req.Token, ChainID: req.ChainID, SpenderAddress: s.adminAddr.Hex(),
		Amount: req.Amount, Nonce: req.Nonce, Deadline: req.Deadline, Signature: req.Signature,
		TokenPermitSig: req.TokenPermitSig, Status: domain.PermitActive,
		CreatedAt: now.UnixMilli(), ExpiresAt: req.Deadline * 1000,
		MaxCalls: req.MaxCalls, CallsUsed: 0, CostPerCall: req.CostPerCall,
	}
	if err := s.store.CreatePermit(ctx, p); err != nil {
		return nil, err
	}

	client, err := s.clients.Client(req.ChainID)
	if err != nil {
		return nil, err
	}
	if err := s.submitter.Submit(ctx, client, p); err != nil {
		// A stale-nonce permit stays active but unusable: it is filtered out
		// at validation time rather than misreported as expired.
		var rerr *routererr.RouterError
		if !(errors.As(err, &rerr) && rerr.Code == routererr.PermitStale) {
			if updErr := s.store.UpdatePermitStatus(ctx, p.ID, domain.PermitExpired); updErr != nil {
				s.log.Error("failed to mark failed permit submission", zap.String("permitId", p.ID), zap.Error(updErr))
			}
		}
		return nil, err
	}

	return p, nil
}

// List returns every permit belonging to userAddress.
func (s *Service) List(ctx context.Context, userAddress string) ([]*domain.Permit, error) {
	return s.store.ListPermitsByUser(ctx, userAddress)
}

// UpdateStatus transitions a permit's lifecycle status directly, used for
// admin-side corrections that don't require an on-chain action.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.PermitStatus) error {
	return s.store.UpdatePermitStatus(ctx, id, status)
}

// Revoke marks a permit revoked. The AllowanceVault allowance itself expires
// with the permit's deadline or is superseded by the next submitted permit
// for the same (owner, token, spender); revocation here only stops the
// router from selecting this permit for future calls.
func (s *Service) Revoke(ctx context.Context, id string) error {
	return s.store.UpdatePermitStatus(ctx, id, domain.PermitRevoked)
}

func signatureBytes(sig domain.Signature) [65]byte {
	var out [65]byte
	copy(out[0:32], sig.R[:])
	copy(out[32:64], sig.S[:])
	out[64] = sig.V
	return out
}

func sameAddress(a common.Address, b string) bool {
	return a == common.HexToAddress(b)
}

func normalizeAddress(s string) string {
	return common.HexToAddress(s).Hex()
}
