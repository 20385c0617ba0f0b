// Package transferengine decides the settlement route for a paid call and
// drives it to completion: a single transferFrom for same-chain, or the
// seven-step burn-and-mint sequence for cross-chain (C8).
package transferengine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/attestation"
	"github.com/stablerouter/router/internal/chainabi"
	"github.com/stablerouter/router/internal/chainclient"
	"github.com/stablerouter/router/internal/chainregistry"
	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitstore"
	"github.com/stablerouter/router/internal/routererr"
)

const defaultReceiptTimeout = 2 * time.Minute

// TransferType selects the CCTP finality threshold for a burn. "fast" opts
// into soft finality (threshold 1000); anything else uses hard finality.
type TransferType string

const (
	TransferFast     TransferType = "fast"
	TransferStandard TransferType = "standard"
)

// ClientResolver returns the chainclient.Client for a given chain ID,
// letting the engine address any registered chain without holding its own
// client map.
type ClientResolver interface {
	Client(chainID int64) (chainclient.Client, error)
}

// AttestationWaiter is the subset of attestation.Client the engine needs;
// modeled as an interface so tests can substitute a fake without a real
// HTTP round trip.
type AttestationWaiter interface {
	Wait(ctx context.Context, req attestation.Request) (*attestation.Attestation, error)
}

// Result is returned by a completed transfer.
type Result struct {
	TransactionHash     string
	MessageHash         string // empty for same-chain transfers
	CrossChainPaymentID string // empty for same-chain transfers
}

// Engine drives Transfer Engine (C8).
type Engine struct {
	registry   *chainregistry.Registry
	store      permitstore.Store
	clients    ClientResolver
	attester   AttestationWaiter
	writeQueue *chainclient.WriteQueue
	adminAddr  common.Address
	log        *zap.Logger
}

func New(registry *chainregistry.Registry, store permitstore.Store, clients ClientResolver, attester AttestationWaiter, writeQueue *chainclient.WriteQueue, adminAddr common.Address, log *zap.Logger) *Engine {
	return &Engine{registry: registry, store: store, clients: clients, attester: attester, writeQueue: writeQueue, adminAddr: adminAddr, log: log}
}

// Transfer settles amount of token from user to the agent's payout address,
// picking the same-chain or cross-chain path per §4.8's gate.
func (e *Engine) Transfer(ctx context.Context, userID string, permit *domain.Permit, agent *domain.Agent, amount *big.Int, transferType TransferType) (*Result, error) {
	sourceChainID := permit.ChainID
	targetChainID := agent.PaymentPreferences.PayoutChainID
	token := permit.Token

	if token == agent.PaymentPreferences.PayoutToken && sourceChainID == targetChainID {
		return e.transferSameChain(ctx, permit, agent, amount)
	}

	if token != "USDC" {
		return nil, routererr.New(routererr.UnsupportedRoute, "cross-chain settlement only supports USDC",
			map[string]any{"token": token, "sourceChainId": sourceChainID, "targetChainId": targetChainID})
	}
	return e.transferCrossChain(ctx, userID, permit, agent, amount, transferType)
}

func (e *Engine) transferSameChain(ctx context.Context, permit *domain.Permit, agent *domain.Agent, amount *big.Int) (*Result, error) {
	client, err := e.clients.Client(permit.ChainID)
	if err != nil {
		return nil, err
	}
	tokenAddr, err := e.registry.TokenAddress(permit.Token, permit.ChainID)
	if err != nil {
		return nil, err
	}
	vaultAddr := e.registry.AllowanceVaultAddress()
	userAddr := common.HexToAddress(permit.UserAddress)
	publisherAddr := common.HexToAddress(agent.PublisherWalletAddr)

	var txHash common.Hash
	err = e.writeQueue.Do(permit.ChainID, func() error {
		h, err := client.WriteContract(ctx, vaultAddr, chainabi.AllowanceVaultTransferFromABI, "transferFrom",
			userAddr, publisherAddr, amount, tokenAddr)
		if err != nil {
			return routererr.Wrap(routererr.InternalError, "same-chain transferFrom", err)
		}
		txHash = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	receipt, err := client.WaitForReceipt(ctx, txHash, defaultReceiptTimeout)
	if err != nil {
		return nil, routererr.Wrap(routererr.ReceiptTimeout, "same-chain transfer receipt", err)
	}
	if !receipt.Succeeded() {
		return nil, routererr.New(routererr.InternalError, "same-chain transfer reverted", map[string]any{"txHash": txHash.Hex()})
	}

	if err := e.store.UpdatePermitUsage(ctx, permit.ID, permit.CallsUsed+1); err != nil {
		return nil, err
	}
	return &Result{TransactionHash: txHash.Hex()}, nil
}

func (e *Engine) transferCrossChain(ctx context.Context, userID string, permit *domain.Permit, agent *domain.Agent, amount *big.Int, transferType TransferType) (*Result, error) {
	sourceClient, err := e.clients.Client(permit.ChainID)
	if err != nil {
		return nil, err
	}
	targetChainID := agent.PaymentPreferences.PayoutChainID
	targetClient, err := e.clients.Client(targetChainID)
	if err != nil {
		return nil, err
	}

	tokenAddr, err := e.registry.TokenAddress(permit.Token, permit.ChainID)
	if err != nil {
		return nil, err
	}
	vaultAddr := e.registry.AllowanceVaultAddress()
	tokenMessenger, err := e.registry.TokenMessengerAddress(permit.ChainID)
	if err != nil {
		return nil, err
	}
	messageTransmitter, err := e.registry.MessageTransmitterAddress(targetChainID)
	if err != nil {
		return nil, err
	}
	destinationDomain, ok := e.registry.DestinationDomain(targetChainID)
	if !ok {
		return nil, routererr.New(routererr.UnsupportedChain, "no CCTP destination domain for target chain",
			map[string]any{"chainId": targetChainID})
	}
	sourceDomain, ok := e.registry.DestinationDomain(permit.ChainID)
	if !ok {
		return nil, routererr.New(routererr.UnsupportedChain, "no CCTP destination domain for source chain",
			map[string]any{"chainId": permit.ChainID})
	}
	userAddr := common.HexToAddress(permit.UserAddress)
	publisherAddr := common.HexToAddress(agent.PublisherWalletAddr)

	payment := &domain.CrossChainPayment{
		ID: newID(), UserID: userID, AgentID: agent.ID,
		SourceChainID: permit.ChainID, TargetChainID: targetChainID,
		Amount: amount, Token: permit.Token, PermitID: permit.ID,
		AttestationStatus: domain.AttestationPending, Phase: domain.PhaseCreated,
		CreatedAt: nowUnix(),
	}

	// Step 1: pull to admin, under the AllowanceVault permission.
	payment.Phase = domain.PhaseBurning
	var pullTxHash common.Hash
	err = e.writeQueue.Do(permit.ChainID, func() error {
		h, err := sourceClient.WriteContract(ctx, vaultAddr, chainabi.AllowanceVaultTransferFromABI, "transferFrom",
			userAddr, e.adminAddr, amount, tokenAddr)
		if err != nil {
			return routererr.Wrap(routererr.InternalError, "pull to admin", err)
		}
		pullTxHash = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := e.waitSucceeded(ctx, sourceClient, pullTxHash); err != nil {
		return nil, err
	}

	// Step 2: admin approves the burner.
	err = e.writeQueue.Do(permit.ChainID, func() error {
		h, err := sourceClient.WriteContract(ctx, tokenAddr, chainabi.ERC20ApproveABI, "approve", tokenMessenger, amount)
		if err != nil {
			return routererr.Wrap(routererr.InternalError, "approve burner", err)
		}
		_, err = e.waitSucceeded(ctx, sourceClient, h)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Step 3: burn.
	finalityThreshold := uint32(2000)
	if transferType == TransferFast {
		finalityThreshold = 1000
	}
	maxFee := new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(5)), big.NewInt(1000))
	mintRecipient := chainabi.AddressToBytes32(publisherAddr)
	var hookData [32]byte

	var burnReceipt *chainclient.Receipt
	err = e.writeQueue.Do(permit.ChainID, func() error {
		h, err := sourceClient.WriteContract(ctx, tokenMessenger, chainabi.TokenMessengerDepositForBurnABI, "depositForBurn",
			amount, destinationDomain, mintRecipient, tokenAddr, hookData, maxFee, finalityThreshold)
		if err != nil {
			return routererr.Wrap(routererr.InternalError, "depositForBurn", err)
		}
		r, err := e.waitSucceeded(ctx, sourceClient, h)
		burnReceipt = r
		return err
	})
	if err != nil {
		return nil, err
	}

	// Step 4: extract messageHash and persist before the attestation wait.
	messageHash, err := extractMessageHash(burnReceipt)
	if err != nil {
		return nil, err
	}
	payment.MessageHash = messageHash
	payment.SourceTransactionHash = burnReceipt.TxHash.Hex()
	if err := e.store.CreateCrossChainPayment(ctx, payment); err != nil {
		return nil, err
	}

	// Step 5: attestation wait.
	phase := domain.PhaseAwaitingAttestation
	_ = e.store.UpdateCrossChainPayment(ctx, payment.ID, permitstore.CrossChainPaymentPatch{Phase: &phase})

	att, waitErr := e.attester.Wait(ctx, attestation.Request{
		MessageHash:  messageHash,
		SourceTxHash: payment.SourceTransactionHash,
		SourceDomain: sourceDomain,
	})
	if waitErr != nil {
		e.failPayment(ctx, payment.ID, waitErr)
		return nil, waitErr
	}

	// Step 6: redeem on target chain.
	phase = domain.PhaseRedeeming
	_ = e.store.UpdateCrossChainPayment(ctx, payment.ID, permitstore.CrossChainPaymentPatch{Phase: &phase})

	messageBytes, attestationBytes, err := decodeAttestation(att)
	if err != nil {
		e.failPayment(ctx, payment.ID, err)
		return nil, err
	}

	var redeemTxHash common.Hash
	err = e.writeQueue.Do(targetChainID, func() error {
		h, err := targetClient.WriteContract(ctx, messageTransmitter, chainabi.MessageTransmitterReceiveMessageABI,
			"receiveMessage", messageBytes, attestationBytes)
		if err != nil {
			return routererr.Wrap(routererr.InternalError, "receiveMessage", err)
		}
		redeemTxHash = h
		return nil
	})
	if err != nil {
		e.failPayment(ctx, payment.ID, err)
		return nil, err
	}
	if _, err := e.waitSucceeded(ctx, targetClient, redeemTxHash); err != nil {
		e.failPayment(ctx, payment.ID, err)
		return nil, err
	}

	// Step 7: finalize.
	completedAt := nowUnix()
	completePhase := domain.PhaseComplete
	completeStatus := domain.AttestationComplete
	targetTxHex := redeemTxHash.Hex()
	if err := e.store.UpdateCrossChainPayment(ctx, payment.ID, permitstore.CrossChainPaymentPatch{
		Phase: &completePhase, AttestationStatus: &completeStatus,
		TargetTransactionHash: &targetTxHex, CompletedAt: &completedAt,
	}); err != nil {
		return nil, err
	}
	if err := e.store.UpdatePermitUsage(ctx, permit.ID, permit.CallsUsed+1); err != nil {
		return nil, err
	}

	return &Result{TransactionHash: targetTxHex, MessageHash: messageHash, CrossChainPaymentID: payment.ID}, nil
}

func (e *Engine) failPayment(ctx context.Context, id string, cause error) {
	failedPhase := domain.PhaseFailed
	failedStatus := domain.AttestationFailed
	msg := cause.Error()
	if err := e.store.UpdateCrossChainPayment(ctx, id, permitstore.CrossChainPaymentPatch{
		Phase: &failedPhase, AttestationStatus: &failedStatus, ErrorMessage: &msg,
	}); err != nil {
		e.log.Error("failed to mark cross-chain payment failed", zap.String("id", id), zap.Error(err))
	}
}

func (e *Engine) waitSucceeded(ctx context.Context, client chainclient.Client, txHash common.Hash) (*chainclient.Receipt, error) {
	receipt, err := client.WaitForReceipt(ctx, txHash, defaultReceiptTimeout)
	if err != nil {
		return nil, routererr.Wrap(routererr.ReceiptTimeout, "waiting for receipt", err)
	}
	if !receipt.Succeeded() {
		return nil, routererr.New(routererr.InternalError, "transaction reverted", map[string]any{"txHash": txHash.Hex()})
	}
	return receipt, nil
}

// extractMessageHash scans a burn receipt's logs for MessageSent(bytes) and
// returns keccak256(data) as a 0x-prefixed hex string.
func extractMessageHash(receipt *chainclient.Receipt) (string, error) {
	for _, l := range receipt.Logs {
		if len(l.Topics) > 0 && l.Topics[0] == chainabi.MessageSentTopic {
			hash := crypto.Keccak256(l.Data)
			return common.BytesToHash(hash).Hex(), nil
		}
	}
	return "", routererr.New(routererr.InternalError, "MessageSent event not found in burn receipt", nil)
}
