// Package router is the top-level per-request orchestrator (C10):
// authenticate, check subscription, pre-authorize, forward to the
// publisher, log, settle, and respond.
package router

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/chainregistry"
	"github.com/stablerouter/router/internal/chainvalidator"
	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitstore"
	"github.com/stablerouter/router/internal/routererr"
	"github.com/stablerouter/router/internal/selector"
	"github.com/stablerouter/router/internal/transferengine"
)

// RouterVersion is reported in every forwarded publisher call's metadata.
const RouterVersion = "1.0"

// AgentProvider resolves an agent's pricing and payout configuration.
// Agents are external, read-only data per the ownership boundary in §3; the
// core treats this as an interface to an external collaborator.
type AgentProvider interface {
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
}

// UserProvider resolves the bearer-token-authenticated caller.
type UserProvider interface {
	GetUserByAPIKey(ctx context.Context, apiKey string) (*domain.User, error)
}

// CallRequest is the router HTTP surface's decoded request body.
type CallRequest struct {
	Method     string
	Parameters map[string]interface{}
	Metadata   map[string]interface{}
}

// Billing is the billing section of a successful response.
type Billing struct {
	CallType            domain.CallType
	CostUSD             *big.Rat
	FreeTrialsRemaining int64
	BalanceAfterCall    *big.Rat
}

// CallResult is the router's per-call outcome.
type CallResult struct {
	Data      map[string]interface{}
	Billing   Billing
	RequestID string
	AgentID   string
	Timestamp int64
}

// Router wires every component C1-C9 into the per-request pipeline.
type Router struct {
	store      permitstore.Store
	agents     AgentProvider
	users      UserProvider
	validator  *chainvalidator.Validator
	registry   *chainregistry.Registry
	clients    transferengine.ClientResolver
	engine     *transferengine.Engine
	publisher  *PublisherClient
	log        *zap.Logger
}

func New(
	store permitstore.Store,
	agents AgentProvider,
	users UserProvider,
	validator *chainvalidator.Validator,
	registry *chainregistry.Registry,
	clients transferengine.ClientResolver,
	engine *transferengine.Engine,
	publisher *PublisherClient,
	log *zap.Logger,
) *Router {
	return &Router{
		store: store, agents: agents, users: users, validator: validator,
		registry: registry, clients: clients, engine: engine, publisher: publisher, log: log,
	}
}

// HandleCall runs the full per-request pipeline against agentID on behalf
// of the caller identified by apiKey.
func (r *Router) HandleCall(ctx context.Context, agentID, apiKey string, req CallRequest) (*CallResult, error) {
	requestStart := time.Now()

	// Step 1: authenticate.
	user, err := r.users.GetUserByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, routererr.Wrap(routererr.Unauthorized, "invalid API key", err)
	}
	if !user.IsApproved {
		return nil, routererr.New(routererr.Unauthorized, "user is not approved", map[string]any{"userId": user.ID})
	}

	agent, err := r.agents.GetAgent(ctx, agentID)
	if err != nil {
		return nil, routererr.Wrap(routererr.AgentNotFound, "agent not found", err)
	}

	// Step 2: subscription check.
	sub, err := r.store.GetSubscription(ctx, user.ID, agentID)
	if err != nil || sub.Status != domain.SubscriptionActive {
		return nil, routererr.New(routererr.SubscriptionRequired, "no active subscription for this agent",
			map[string]any{"userId": user.ID, "agentId": agentID})
	}

	// Step 3: pre-authorize.
	plan, err := r.preAuthorize(ctx, user, agent, sub)
	if err != nil {
		return nil, err
	}

	// Step 4: forward to the publisher.
	apiCallID := uuid.NewString()
	resp, callErr := r.publisher.Call(ctx, agent.APIEndpoint, agent.PublisherAPIKey, req.Method, req.Parameters, agentID)

	// Step 5: log the call unconditionally.
	responseEnd := time.Now()
	httpStatus := 0
	if resp != nil {
		httpStatus = resp.StatusCode
	}
	logErr := r.store.LogApiCall(ctx, &domain.ApiCallRecord{
		ID: apiCallID, UserID: user.ID, AgentID: agentID,
		RequestTimestamp: requestStart.UnixMilli(), ResponseTimestamp: responseEnd.UnixMilli(),
		HTTPStatus: httpStatus, ResponseTimeMs: responseEnd.Sub(requestStart).Milliseconds(),
		IsFreeTrial: plan.isFreeTrial, ChargedAmountUSD: plan.cost,
	})
	if logErr != nil {
		r.log.Error("failed to log api call", zap.String("apiCallId", apiCallID), zap.Error(logErr))
	}

	if callErr != nil {
		return nil, callErr
	}

	// Step 6: settle, only on 2xx (guaranteed by publisher.Call returning no error).
	billing, err := r.settle(ctx, apiCallID, user, agent, sub, plan)
	if err != nil {
		callsTotal.WithLabelValues(string(callTypeOf(plan)), "settlement_failed").Inc()
		return nil, err
	}
	callsTotal.WithLabelValues(string(callTypeOf(plan)), "ok").Inc()

	return &CallResult{
		Data:      resp.Body,
		Billing:   *billing,
		RequestID: apiCallID,
		AgentID:   agentID,
		Timestamp: responseEnd.Unix(),
	}, nil
}

// settlementPlan is the outcome of pre-authorization: what Step 6 should
// settle once the publisher call has succeeded.
type settlementPlan struct {
	isFreeTrial bool
	cost        *big.Rat
	amount      *big.Int // per-call cost in the permit token's base units
	permit      *domain.Permit
	crossChain  bool
}

func callTypeOf(plan *settlementPlan) domain.CallType {
	if plan.isFreeTrial {
		return domain.CallFreeTrial
	}
	return domain.CallPaid
}

// costToBaseUnits converts a USD fixed-point cost into a stablecoin's base
// units, truncating toward zero. Every supported stablecoin is USD-pegged
// 1:1, so this is a straight decimal shift.
func costToBaseUnits(costUSD *big.Rat, decimals uint) *big.Int {
	scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	scaled := new(big.Rat).Mul(costUSD, scale)
	return new(big.Int).Div(scaled.Num(), scaled.Denom())
}

func (r *Router) preAuthorize(ctx context.Context, user *domain.User, agent *domain.Agent, sub *domain.Subscription) (*settlementPlan, error) {
	if sub.FreeTrialsRemaining > 0 {
		return &settlementPlan{isFreeTrial: true, cost: big.NewRat(0, 1)}, nil
	}

	permits, err := r.store.ListPermitsByUser(ctx, user.Address)
	if err != nil {
		return nil, err
	}
	active := make([]*domain.Permit, 0, len(permits))
	for _, p := range permits {
		if p.Status == domain.PermitActive {
			active = append(active, p)
		}
	}

	cost := agent.PricePerCallUSD
	best := selector.Select(active, agent, cost)
	if best == nil {
		return nil, routererr.New(routererr.NoValidPermits, "no permit has sufficient remaining value for this call",
			map[string]any{"userId": user.ID, "agentId": agent.ID})
	}

	tokenAddr, err := r.registry.TokenAddress(best.Token, best.ChainID)
	if err != nil {
		return nil, err
	}
	client, err := r.clients.Client(best.ChainID)
	if err != nil {
		return nil, err
	}
	userAddr := addressOf(best.UserAddress)
	vaultAddr := r.registry.AllowanceVaultAddress()
	adminAddr := addressOf(best.SpenderAddress)
	amount := costToBaseUnits(cost, r.registry.Decimals(best.Token))

	balance, err := r.validator.CheckBalance(ctx, client, tokenAddr, userAddr, amount)
	if err != nil {
		return nil, err
	}
	if !balance.Sufficient {
		return nil, routererr.New(routererr.InsufficientBalance, "user balance below per-call cost",
			map[string]any{"permitId": best.ID})
	}

	allowance, err := r.validator.CheckVaultAllowance(ctx, client, vaultAddr, userAddr, tokenAddr, adminAddr, amount, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if !allowance.Valid() {
		return nil, routererr.New(routererr.InsufficientAllowance, "AllowanceVault allowance is insufficient or expired",
			map[string]any{"permitId": best.ID})
	}

	crossChain := best.Token != agent.PaymentPreferences.PayoutToken || best.ChainID != agent.PaymentPreferences.PayoutChainID

	return &settlementPlan{isFreeTrial: false, cost: cost, amount: amount, permit: best, crossChain: crossChain}, nil
}

func (r *Router) settle(ctx context.Context, apiCallID string, user *domain.User, agent *domain.Agent, sub *domain.Subscription, plan *settlementPlan) (*Billing, error) {
	if plan.isFreeTrial {
		if err := r.store.UpdateSubscriptionUsage(ctx, apiCallID, sub.ID, true); err != nil {
			return nil, err
		}
		if _, err := r.store.CreatePayment(ctx, apiCallID, &domain.Payment{
			ID: uuid.NewString(), Amount: big.NewInt(0), Status: domain.PaymentCompleted,
		}); err != nil {
			return nil, err
		}
		return &Billing{CallType: domain.CallFreeTrial, CostUSD: big.NewRat(0, 1), FreeTrialsRemaining: sub.FreeTrialsRemaining - 1}, nil
	}

	amount := plan.amount
	result, err := r.engine.Transfer(ctx, user.ID, plan.permit, agent, amount, transferengine.TransferStandard)
	if err != nil {
		// §7: failed transfers do not refund the API call; the caller sees ApiCallFailed.
		return nil, routererr.Wrap(routererr.ApiCallFailed, "settlement failed after a successful publisher call", err)
	}

	if err := r.store.UpdateSubscriptionUsage(ctx, apiCallID, sub.ID, false); err != nil {
		return nil, err
	}

	// engine.Transfer only returns without error once the transfer has
	// fully landed (same-chain synchronously, cross-chain after
	// redemption), so the payment is always completed by this point.
	if _, err := r.store.CreatePayment(ctx, apiCallID, &domain.Payment{
		ID: uuid.NewString(), Amount: amount, Token: plan.permit.Token, Network: plan.permit.ChainID,
		TransactionHash: result.TransactionHash, Status: domain.PaymentCompleted, MessageHash: result.MessageHash,
		CrossChainPaymentID: result.CrossChainPaymentID,
	}); err != nil {
		return nil, err
	}

	remainingPermit := plan.permit.RemainingValueUSD()
	return &Billing{CallType: domain.CallPaid, CostUSD: plan.cost, BalanceAfterCall: remainingPermit}, nil
}
