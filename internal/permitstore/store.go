// Package permitstore owns every mutable record the router produces:
// permits, subscriptions, payments, cross-chain payments, and call logs
// (C4). Nothing outside this package mutates them.
package permitstore

import (
	"context"

	"github.com/stablerouter/router/internal/domain"
)

// CrossChainPaymentPatch updates a subset of a CrossChainPayment's fields.
// Zero-value fields are left unchanged; use the explicit bool flags to
// distinguish "leave alone" from "set to the zero value".
type CrossChainPaymentPatch struct {
	TargetTransactionHash *string
	AttestationStatus     *domain.AttestationStatus
	Phase                 *domain.TransferPhase
	ErrorMessage          *string
	CompletedAt           *int64
}

// Store is the persistence contract C4 exposes to the rest of the router.
// All reads may run concurrently; status and usage updates on a single
// record must be atomic (serialized per-record, not globally).
type Store interface {
	CreatePermit(ctx context.Context, p *domain.Permit) error
	GetPermit(ctx context.Context, id string) (*domain.Permit, error)
	ListPermitsByUser(ctx context.Context, userAddress string) ([]*domain.Permit, error)
	UpdatePermitStatus(ctx context.Context, id string, status domain.PermitStatus) error
	UpdatePermitUsage(ctx context.Context, id string, callsUsed int64) error

	CreateCrossChainPayment(ctx context.Context, p *domain.CrossChainPayment) error
	GetCrossChainPayment(ctx context.Context, id string) (*domain.CrossChainPayment, error)
	UpdateCrossChainPayment(ctx context.Context, id string, patch CrossChainPaymentPatch) error

	// CreatePayment and LogApiCall are idempotent on apiCallID: a second
	// call with the same id is a no-op returning the first result, per the
	// at-most-once-billing requirement.
	CreatePayment(ctx context.Context, apiCallID string, p *domain.Payment) (*domain.Payment, error)
	LogApiCall(ctx context.Context, rec *domain.ApiCallRecord) error

	GetSubscription(ctx context.Context, userID, agentID string) (*domain.Subscription, error)
	// UpdateSubscriptionUsage and the call's CreatePayment must be durable
	// together for a single api_call_id; implementations that cannot offer
	// a real multi-row transaction must make this call idempotent on
	// apiCallID as well.
	UpdateSubscriptionUsage(ctx context.Context, apiCallID string, subscriptionID string, wasFreeTrial bool) error
}
