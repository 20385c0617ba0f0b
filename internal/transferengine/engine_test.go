package transferengine

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/attestation"
	"github.com/stablerouter/router/internal/chainabi"
	"github.com/stablerouter/router/internal/chainclient"
	"github.com/stablerouter/router/internal/chainregistry"
	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitstore/memstore"
	"github.com/stablerouter/router/internal/routererr"
)

var (
	tokenAddr  = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	vaultAddr  = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
	adminAddr  = common.HexToAddress("0x00000000000000000000000000000000000bad")
	publisher  = common.HexToAddress("0x00000000000000000000000000000000c0ffee")
	tokenMsgr  = common.HexToAddress("0x000000000000000000000000000000000a1234")
	msgXmitter = common.HexToAddress("0x000000000000000000000000000000000b5678")
)

type fakeResolver struct {
	clients map[int64]chainclient.Client
}

func (r *fakeResolver) Client(chainID int64) (chainclient.Client, error) {
	c, ok := r.clients[chainID]
	if !ok {
		return nil, routererr.New(routererr.UnsupportedChain, "no client for chain", map[string]any{"chainId": chainID})
	}
	return c, nil
}

type fakeAttester struct {
	att *attestation.Attestation
	err error
}

func (f *fakeAttester) Wait(ctx context.Context, req attestation.Request) (*attestation.Attestation, error) {
	return f.att, f.err
}

func registry() *chainregistry.Registry {
	return chainregistry.New([]chainregistry.ChainConfig{
		{
			ChainID: 11155111, Tokens: map[string]common.Address{"USDC": tokenAddr},
			TokenMessengerAddress: tokenMsgr, DestinationDomain: 0, HasDestinationDomain: true,
		},
		{
			ChainID: 84532, Tokens: map[string]common.Address{"USDC": tokenAddr},
			MessageTransmitterAddr: msgXmitter, DestinationDomain: 6, HasDestinationDomain: true,
		},
	})
}

func testPermit() *domain.Permit {
	return &domain.Permit{ID: "permit-1", UserAddress: "0xaaaa00000000000000000000000000000000aaaa", Token: "USDC", ChainID: 11155111, CallsUsed: 0}
}

func TestTransferSameChainCallsVaultTransferFrom(t *testing.T) {
	fake := chainclient.NewFake(11155111)
	resolver := &fakeResolver{clients: map[int64]chainclient.Client{11155111: fake}}
	store := memstore.New()
	require.NoError(t, store.CreatePermit(context.Background(), testPermit()))

	e := New(registry(), store, resolver, &fakeAttester{}, chainclient.NewWriteQueue(), adminAddr, zap.NewNop())

	agent := &domain.Agent{ID: "agent-1", PublisherWalletAddr: publisher.Hex(),
		PaymentPreferences: domain.PaymentPreferences{PayoutToken: "USDC", PayoutChainID: 11155111}}

	result, err := e.Transfer(context.Background(), "user-1", testPermit(), agent, big.NewInt(100_000), TransferStandard)
	require.NoError(t, err)
	assert.Empty(t, result.MessageHash)

	require.Len(t, fake.Writes, 1)
	assert.Equal(t, vaultAddr, fake.Writes[0].Address)
	assert.Equal(t, "transferFrom", fake.Writes[0].Method)

	got, err := store.GetPermit(context.Background(), "permit-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CallsUsed)
}

func TestTransferCrossChainGatesNonUSDC(t *testing.T) {
	fake := chainclient.NewFake(11155111)
	resolver := &fakeResolver{clients: map[int64]chainclient.Client{11155111: fake}}
	store := memstore.New()

	e := New(registry(), store, resolver, &fakeAttester{}, chainclient.NewWriteQueue(), adminAddr, zap.NewNop())

	agent := &domain.Agent{ID: "agent-1", PublisherWalletAddr: publisher.Hex(),
		PaymentPreferences: domain.PaymentPreferences{PayoutToken: "USDC", PayoutChainID: 84532}}
	p := testPermit()
	p.Token = "PYUSD"

	_, err := e.Transfer(context.Background(), "user-1", p, agent, big.NewInt(100_000), TransferStandard)
	require.Error(t, err)
	var re *routererr.RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, routererr.UnsupportedRoute, re.Code)
}

func TestTransferCrossChainFullSequence(t *testing.T) {
	sourceFake := chainclient.NewFake(11155111)
	targetFake := chainclient.NewFake(84532)
	resolver := &fakeResolver{clients: map[int64]chainclient.Client{11155111: sourceFake, 84532: targetFake}}
	store := memstore.New()
	require.NoError(t, store.CreatePermit(context.Background(), testPermit()))

	// burn receipt carries a MessageSent(bytes) log so messageHash extraction succeeds.
	burnTxHash := common.HexToHash("0xburn")
	sourceFake.NextTxHash = burnTxHash
	sourceFake.Receipts[burnTxHash] = &chainclient.Receipt{
		Status: 1, TxHash: burnTxHash,
		Logs: []*types.Log{{Topics: []common.Hash{chainabi.MessageSentTopic}, Data: []byte("message-bytes")}},
	}

	attester := &fakeAttester{att: &attestation.Attestation{Status: "complete", Message: "0x1234", Attestation: "0x5678"}}

	e := New(registry(), store, resolver, attester, chainclient.NewWriteQueue(), adminAddr, zap.NewNop())

	agent := &domain.Agent{ID: "agent-1", PublisherWalletAddr: publisher.Hex(),
		PaymentPreferences: domain.PaymentPreferences{PayoutToken: "USDC", PayoutChainID: 84532}}

	result, err := e.Transfer(context.Background(), "user-1", testPermit(), agent, big.NewInt(100_000), TransferStandard)
	require.NoError(t, err)
	assert.NotEmpty(t, result.MessageHash)
	assert.NotEmpty(t, result.CrossChainPaymentID)

	require.Len(t, sourceFake.Writes, 3, "pull, approve, depositForBurn")
	assert.Equal(t, "transferFrom", sourceFake.Writes[0].Method)
	assert.Equal(t, "approve", sourceFake.Writes[1].Method)
	assert.Equal(t, "depositForBurn", sourceFake.Writes[2].Method)

	require.Len(t, targetFake.Writes, 1)
	assert.Equal(t, "receiveMessage", targetFake.Writes[0].Method)

	ccp, err := store.GetCrossChainPayment(context.Background(), result.CrossChainPaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, ccp.Phase)
	assert.Equal(t, domain.AttestationComplete, ccp.AttestationStatus)
	assert.NotZero(t, ccp.CompletedAt)

	permit, err := store.GetPermit(context.Background(), "permit-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), permit.CallsUsed)
}

func TestTransferCrossChainMarksFailedOnAttestationTimeout(t *testing.T) {
	sourceFake := chainclient.NewFake(11155111)
	targetFake := chainclient.NewFake(84532)
	resolver := &fakeResolver{clients: map[int64]chainclient.Client{11155111: sourceFake, 84532: targetFake}}
	store := memstore.New()
	require.NoError(t, store.CreatePermit(context.Background(), testPermit()))

	burnTxHash := common.HexToHash("0xburn2")
	sourceFake.NextTxHash = burnTxHash
	sourceFake.Receipts[burnTxHash] = &chainclient.Receipt{
		Status: 1, TxHash: burnTxHash,
		Logs: []*types.Log{{Topics: []common.Hash{chainabi.MessageSentTopic}, Data: []byte("message-bytes")}},
	}

	attester := &fakeAttester{err: routererr.New(routererr.AttestationFailed, "budget exhausted", nil)}
	e := New(registry(), store, resolver, attester, chainclient.NewWriteQueue(), adminAddr, zap.NewNop())

	agent := &domain.Agent{ID: "agent-1", PublisherWalletAddr: publisher.Hex(),
		PaymentPreferences: domain.PaymentPreferences{PayoutToken: "USDC", PayoutChainID: 84532}}

	_, err := e.Transfer(context.Background(), "user-1", testPermit(), agent, big.NewInt(100_000), TransferStandard)
	require.Error(t, err)
	var re *routererr.RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, routererr.AttestationFailed, re.Code)

	require.Empty(t, targetFake.Writes, "redeem must not be attempted once attestation fails")
}
