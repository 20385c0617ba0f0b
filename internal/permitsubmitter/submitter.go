// Package permitsubmitter brings on-chain state in sync with a freshly
// created Permit (C6).
package permitsubmitter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/chainabi"
	"github.com/stablerouter/router/internal/chainclient"
	"github.com/stablerouter/router/internal/chainregistry"
	"github.com/stablerouter/router/internal/chainvalidator"
	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/routererr"
)

// maxUint256 is the sentinel "infinite approval" amount used for the
// conditional EIP-2612 submission.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Submitter drives Permit Submitter (C6).
type Submitter struct {
	registry   *chainregistry.Registry
	validator  *chainvalidator.Validator
	writeQueue *chainclient.WriteQueue
	adminAddr  common.Address
	log        *zap.Logger
}

func New(registry *chainregistry.Registry, validator *chainvalidator.Validator, writeQueue *chainclient.WriteQueue, adminAddr common.Address, log *zap.Logger) *Submitter {
	return &Submitter{registry: registry, validator: validator, writeQueue: writeQueue, adminAddr: adminAddr, log: log}
}

// Submit runs the four-step sequence of §4.6 against client for permit's
// chain. It is idempotent on PermitStale: if the on-chain nonce has already
// advanced past the permit's nonce, the permit was already consumed and the
// caller may rely on the AllowanceVault's current state rather than
// retrying.
func (s *Submitter) Submit(ctx context.Context, client chainclient.Client, p *domain.Permit) error {
	tokenAddr, err := s.registry.TokenAddress(p.Token, p.ChainID)
	if err != nil {
		return err
	}
	vaultAddr := s.registry.AllowanceVaultAddress()
	userAddr := common.HexToAddress(p.UserAddress)

	// Step 1: stale-nonce guard.
	vaultState, err := s.validator.CheckVaultAllowance(ctx, client, vaultAddr, userAddr, tokenAddr, s.adminAddr, p.Amount, nowUnix())
	if err != nil {
		return err
	}
	if vaultState.Nonce != p.Nonce.Int64() {
		s.log.Info("permit nonce stale, not submitting",
			zap.String("permitId", p.ID), zap.Int64("onChainNonce", vaultState.Nonce), zap.Int64("permitNonce", p.Nonce.Int64()))
		return routererr.New(routererr.PermitStale, "on-chain nonce has advanced past the permit's nonce",
			map[string]any{"permitId": p.ID, "onChainNonce": vaultState.Nonce, "permitNonce": p.Nonce.Int64()})
	}

	// Step 4 (ordered before step 2 in the implementation): balance
	// short-circuit — spending gas on approval with no balance is wasted.
	balance, err := s.validator.CheckBalance(ctx, client, tokenAddr, userAddr, p.Amount)
	if err != nil {
		return err
	}
	if !balance.Sufficient {
		return routererr.New(routererr.InsufficientBalance, "user balance below permit amount",
			map[string]any{"permitId": p.ID, "balance": balance.Balance.String(), "required": p.Amount.String()})
	}

	return s.writeQueue.Do(p.ChainID, func() error {
		// Step 2: conditional EIP-2612 submission.
		tokenAllowance, err := s.validator.CheckTokenAllowance(ctx, client, tokenAddr, userAddr, vaultAddr, p.Amount)
		if err != nil {
			return err
		}
		if !tokenAllowance.Sufficient && p.TokenPermitSig != nil {
			if err := s.submitEIP2612(ctx, client, tokenAddr, userAddr, p.TokenPermitSig); err != nil {
				return err
			}
		}

		// Step 3: AllowanceVault submission.
		return s.submitVaultPermit(ctx, client, vaultAddr, tokenAddr, userAddr, p)
	})
}

func (s *Submitter) submitEIP2612(ctx context.Context, client chainclient.Client, token, user common.Address, sig *domain.TokenPermitSig) error {
	txHash, err := client.WriteContract(ctx, token, chainabi.ERC2612PermitABI, "permit",
		user, s.registry.AllowanceVaultAddress(), maxUint256, big.NewInt(sig.Deadline), sig.V, sig.R, sig.S)
	if err != nil {
		return routererr.Wrap(routererr.InternalError, "submit eip2612 permit", err)
	}
	receipt, err := client.WaitForReceipt(ctx, txHash, defaultReceiptTimeout)
	if err != nil {
		return err
	}
	if !receipt.Succeeded() {
		return routererr.New(routererr.InternalError, "eip2612 permit transaction reverted", map[string]any{"txHash": txHash.Hex()})
	}
	return nil
}

func (s *Submitter) submitVaultPermit(ctx context.Context, client chainclient.Client, vault, token, user common.Address, p *domain.Permit) error {
	details := [4]interface{}{token, p.Amount, big.NewInt(p.Deadline), p.Nonce}
	permitSingle := struct {
		Details     [4]interface{}
		Spender     common.Address
		SigDeadline *big.Int
	}{Details: details, Spender: s.adminAddr, SigDeadline: big.NewInt(p.Deadline)}

	signature := append(append(p.Signature.R[:], p.Signature.S[:]...), p.Signature.V)

	txHash, err := client.WriteContract(ctx, vault, chainabi.AllowanceVaultPermitABI, "permit", user, permitSingle, signature)
	if err != nil {
		return routererr.Wrap(routererr.InternalError, "submit vault permit", err)
	}
	receipt, err := client.WaitForReceipt(ctx, txHash, defaultReceiptTimeout)
	if err != nil {
		return err
	}
	if !receipt.Succeeded() {
		return routererr.New(routererr.InternalError, "vault permit transaction reverted", map[string]any{"txHash": txHash.Hex()})
	}
	return nil
}
