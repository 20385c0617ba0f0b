package router

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/attestation"
	"github.com/stablerouter/router/internal/chainclient"
	"github.com/stablerouter/router/internal/chainregistry"
	"github.com/stablerouter/router/internal/chainvalidator"
	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitstore/memstore"
	"github.com/stablerouter/router/internal/routererr"
	"github.com/stablerouter/router/internal/transferengine"
)

var (
	userAddr = common.HexToAddress("0x00000000000000000000000000000000000a11")
	adminA   = common.HexToAddress("0x00000000000000000000000000000000000bad")
	tokenA   = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	vaultA   = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
)

type fakeAgents struct{ agent *domain.Agent }

func (f *fakeAgents) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	if f.agent == nil || f.agent.ID != agentID {
		return nil, routererr.New(routererr.AgentNotFound, "no such agent", nil)
	}
	return f.agent, nil
}

type fakeUsers struct{ user *domain.User }

func (f *fakeUsers) GetUserByAPIKey(ctx context.Context, apiKey string) (*domain.User, error) {
	if f.user == nil || f.user.APIKey != apiKey {
		return nil, routererr.New(routererr.Unauthorized, "bad api key", nil)
	}
	return f.user, nil
}

type singleClientResolver struct{ client chainclient.Client }

func (r *singleClientResolver) Client(chainID int64) (chainclient.Client, error) { return r.client, nil }

func testRegistry() *chainregistry.Registry {
	return chainregistry.New([]chainregistry.ChainConfig{
		{ChainID: 84532, Tokens: map[string]common.Address{"USDC": tokenA}},
	})
}

func newTestServer(publisherHandler http.HandlerFunc) (*httptest.Server, *Router, *memstore.Store, *chainclient.Fake) {
	pub := httptest.NewServer(publisherHandler)

	fake := chainclient.NewFake(84532)
	fake.ReadResults[tokenA.Hex()+":balanceOf"] = big.NewInt(1_000_000)
	fake.ReadResults[vaultA.Hex()+":allowance"] = []interface{}{big.NewInt(1_000_000), uint64(9_999_999_999), uint64(0)}

	store := memstore.New()
	registry := testRegistry()
	resolver := &singleClientResolver{client: fake}
	validator := chainvalidator.New()
	engine := transferengine.New(registry, store, resolver, &alwaysCompleteAttester{}, chainclient.NewWriteQueue(), adminA, zap.NewNop())
	publisher := NewPublisherClient(2 * time.Second)

	agent := &domain.Agent{
		ID: "agent-1", PricePerCallUSD: big.NewRat(1, 100),
		PaymentPreferences: domain.PaymentPreferences{PayoutToken: "USDC", PayoutChainID: 84532},
		PublisherWalletAddr: common.HexToAddress("0x00000000000000000000000000000000c0ffee").Hex(),
		APIEndpoint: pub.URL, PublisherAPIKey: "publisher-secret",
	}
	user := &domain.User{ID: "user-1", APIKey: "user-key", Address: userAddr.Hex(), IsApproved: true}

	r := New(store, &fakeAgents{agent: agent}, &fakeUsers{user: user}, validator, registry, resolver, engine, publisher, zap.NewNop())
	return pub, r, store, fake
}

type alwaysCompleteAttester struct{}

func (a *alwaysCompleteAttester) Wait(ctx context.Context, req attestation.Request) (*attestation.Attestation, error) {
	return &attestation.Attestation{Status: "complete", Message: "0x1234", Attestation: "0x5678"}, nil
}

func TestHandleCallFreeTrialShortCircuitsSettlement(t *testing.T) {
	pub, r, store, fake := newTestServer(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"answer": 42})
	})
	defer pub.Close()

	store.PutSubscription(&domain.Subscription{ID: "sub-1", UserID: "user-1", AgentID: "agent-1", Status: domain.SubscriptionActive, FreeTrialsRemaining: 3})

	result, err := r.HandleCall(context.Background(), "agent-1", "user-key", CallRequest{Method: "GET /answer"})
	require.NoError(t, err)
	assert.Equal(t, domain.CallFreeTrial, result.Billing.CallType)
	assert.Empty(t, fake.Writes, "free trial calls must not touch chain")
}

func TestHandleCallRejectsMissingSubscription(t *testing.T) {
	pub, r, _, _ := newTestServer(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer pub.Close()

	_, err := r.HandleCall(context.Background(), "agent-1", "user-key", CallRequest{Method: "GET /x"})
	require.Error(t, err)
	var re *routererr.RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, routererr.SubscriptionRequired, re.Code)
}

func TestHandleCallRejectsBadAPIKey(t *testing.T) {
	pub, r, _, _ := newTestServer(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer pub.Close()

	_, err := r.HandleCall(context.Background(), "agent-1", "wrong-key", CallRequest{Method: "GET /x"})
	require.Error(t, err)
	var re *routererr.RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, routererr.Unauthorized, re.Code)
}

func TestHandleCallPropagatesPublisherFailureWithoutSettlement(t *testing.T) {
	pub, r, store, fake := newTestServer(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer pub.Close()

	store.PutSubscription(&domain.Subscription{ID: "sub-1", UserID: "user-1", AgentID: "agent-1", Status: domain.SubscriptionActive, FreeTrialsRemaining: 0})
	p := &domain.Permit{
		ID: "permit-1", UserAddress: userAddr.Hex(), Token: "USDC", ChainID: 84532,
		SpenderAddress: adminA.Hex(), Amount: big.NewInt(1_000_000), Nonce: big.NewInt(0),
		Deadline: 9_999_999_999, Status: domain.PermitActive, MaxCalls: 100, CallsUsed: 0,
		CostPerCall: big.NewRat(1, 100), CreatedAt: 1,
	}
	require.NoError(t, store.CreatePermit(context.Background(), p))

	_, err := r.HandleCall(context.Background(), "agent-1", "user-key", CallRequest{Method: "GET /x"})
	require.Error(t, err)
	var re *routererr.RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, routererr.ApiCallFailed, re.Code)
	assert.Empty(t, fake.Writes, "a failed publisher call must never trigger settlement")

	calls, statusErr := store.GetPermit(context.Background(), "permit-1")
	require.NoError(t, statusErr)
	assert.Equal(t, int64(0), calls.CallsUsed, "no settlement means no permit usage")
}

func TestHandleCallSettlesPerCallCostNotPermitTotal(t *testing.T) {
	pub, r, store, fake := newTestServer(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"answer": 42})
	})
	defer pub.Close()

	store.PutSubscription(&domain.Subscription{ID: "sub-1", UserID: "user-1", AgentID: "agent-1", Status: domain.SubscriptionActive, FreeTrialsRemaining: 0})
	p := &domain.Permit{
		// 100 calls at $0.01/call, matching the agent's PricePerCallUSD in newTestServer.
		ID: "permit-1", UserAddress: userAddr.Hex(), Token: "USDC", ChainID: 84532,
		SpenderAddress: adminA.Hex(), Amount: big.NewInt(1_000_000), Nonce: big.NewInt(0),
		Deadline: 9_999_999_999, Status: domain.PermitActive, MaxCalls: 100, CallsUsed: 0,
		CostPerCall: big.NewRat(1, 100), CreatedAt: 1,
	}
	require.NoError(t, store.CreatePermit(context.Background(), p))

	result, err := r.HandleCall(context.Background(), "agent-1", "user-key", CallRequest{Method: "GET /answer"})
	require.NoError(t, err)
	assert.Equal(t, domain.CallPaid, result.Billing.CallType)

	require.Len(t, fake.Writes, 1)
	write := fake.Writes[0]
	assert.Equal(t, "transferFrom", write.Method)
	require.Len(t, write.Args, 4)
	// $0.01 at USDC's 6 decimals is 10_000 base units, not the permit's 1_000_000 total.
	assert.Equal(t, big.NewInt(10_000), write.Args[2])

	updated, err := store.GetPermit(context.Background(), "permit-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.CallsUsed)
}

func TestCallTypeOfDistinguishesFreeTrialFromPaid(t *testing.T) {
	assert.Equal(t, domain.CallFreeTrial, callTypeOf(&settlementPlan{isFreeTrial: true}))
	assert.Equal(t, domain.CallPaid, callTypeOf(&settlementPlan{isFreeTrial: false}))
}
