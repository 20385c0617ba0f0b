// Package memstore is an in-memory permitstore.Store, suitable for a
// single-instance deployment or for tests, grounded on the teacher's
// mutex-protected-map idempotency store.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitstore"
	"github.com/stablerouter/router/internal/routererr"
)

// Store is a thread-safe, process-local permitstore.Store. Because every
// write lives behind the single mutex, UpdateSubscriptionUsage and
// CreatePayment for one call are genuinely atomic here, and CreatePayment's
// apiCallID idempotency check needs no separate locking scheme.
type Store struct {
	mu sync.Mutex

	permits       map[string]*domain.Permit
	permitsByUser map[string][]string

	crossChainPayments map[string]*domain.CrossChainPayment

	payments         map[string]*domain.Payment // by Payment.ID
	paymentsByCallID map[string]*domain.Payment // idempotency index

	apiCalls []*domain.ApiCallRecord

	subscriptionsByKey map[string]*domain.Subscription // userID+":"+agentID
	subscriptionsByID  map[string]*domain.Subscription
}

func New() *Store {
	return &Store{
		permits:            map[string]*domain.Permit{},
		permitsByUser:      map[string][]string{},
		crossChainPayments: map[string]*domain.CrossChainPayment{},
		payments:           map[string]*domain.Payment{},
		paymentsByCallID:   map[string]*domain.Payment{},
		subscriptionsByKey: map[string]*domain.Subscription{},
		subscriptionsByID:  map[string]*domain.Subscription{},
	}
}

func subKey(userID, agentID string) string { return userID + ":" + agentID }

func (s *Store) CreatePermit(ctx context.Context, p *domain.Permit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *p
	s.permits[p.ID] = &copied
	userKey := strings.ToLower(p.UserAddress)
	s.permitsByUser[userKey] = append(s.permitsByUser[userKey], p.ID)
	return nil
}

func (s *Store) GetPermit(ctx context.Context, id string) (*domain.Permit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.permits[id]
	if !ok {
		return nil, routererr.New(routererr.AgentNotFound, "permit not found", map[string]any{"permitId": id})
	}
	copied := *p
	return &copied, nil
}

func (s *Store) ListPermitsByUser(ctx context.Context, userAddress string) ([]*domain.Permit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.permitsByUser[strings.ToLower(userAddress)]
	out := make([]*domain.Permit, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.permits[id]; ok {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *Store) UpdatePermitStatus(ctx context.Context, id string, status domain.PermitStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.permits[id]
	if !ok {
		return routererr.New(routererr.AgentNotFound, "permit not found", map[string]any{"permitId": id})
	}
	p.Status = status
	return nil
}

func (s *Store) UpdatePermitUsage(ctx context.Context, id string, callsUsed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.permits[id]
	if !ok {
		return routererr.New(routererr.AgentNotFound, "permit not found", map[string]any{"permitId": id})
	}
	if callsUsed > p.CallsUsed {
		p.CallsUsed = callsUsed
	}
	return nil
}

func (s *Store) CreateCrossChainPayment(ctx context.Context, p *domain.CrossChainPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *p
	s.crossChainPayments[p.ID] = &copied
	return nil
}

func (s *Store) GetCrossChainPayment(ctx context.Context, id string) (*domain.CrossChainPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.crossChainPayments[id]
	if !ok {
		return nil, routererr.New(routererr.AgentNotFound, "cross-chain payment not found", map[string]any{"id": id})
	}
	copied := *p
	return &copied, nil
}

func (s *Store) UpdateCrossChainPayment(ctx context.Context, id string, patch permitstore.CrossChainPaymentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.crossChainPayments[id]
	if !ok {
		return routererr.New(routererr.AgentNotFound, "cross-chain payment not found", map[string]any{"id": id})
	}
	if patch.TargetTransactionHash != nil {
		p.TargetTransactionHash = *patch.TargetTransactionHash
	}
	if patch.AttestationStatus != nil {
		p.AttestationStatus = *patch.AttestationStatus
	}
	if patch.Phase != nil {
		p.Phase = *patch.Phase
	}
	if patch.ErrorMessage != nil {
		p.ErrorMessage = *patch.ErrorMessage
	}
	if patch.CompletedAt != nil {
		p.CompletedAt = *patch.CompletedAt
	}
	return nil
}

func (s *Store) CreatePayment(ctx context.Context, apiCallID string, p *domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.paymentsByCallID[apiCallID]; ok {
		copied := *existing
		return &copied, nil
	}

	copied := *p
	copied.APICallID = apiCallID
	s.payments[copied.ID] = &copied
	s.paymentsByCallID[apiCallID] = &copied

	result := copied
	return &result, nil
}

func (s *Store) LogApiCall(ctx context.Context, rec *domain.ApiCallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	s.apiCalls = append(s.apiCalls, &copied)
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, userID, agentID string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptionsByKey[subKey(userID, agentID)]
	if !ok {
		return nil, routererr.New(routererr.AgentOrUserNotFound, "subscription not found",
			map[string]any{"userId": userID, "agentId": agentID})
	}
	copied := *sub
	return &copied, nil
}

// UpdateSubscriptionUsage decrements FreeTrialsRemaining or increments
// TotalPaidCalls depending on wasFreeTrial. It shares this Store's single
// mutex with CreatePayment, so a caller that holds no external lock still
// gets "logically one transaction" for the pair as long as both calls run
// back to back without another goroutine's update interleaving in between
// — callers needing a hard atomicity guarantee should wrap both calls for
// one api_call_id in WithTx (gormstore provides a real one).
func (s *Store) UpdateSubscriptionUsage(ctx context.Context, apiCallID string, subscriptionID string, wasFreeTrial bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptionsByID[subscriptionID]
	if !ok {
		return routererr.New(routererr.AgentOrUserNotFound, "subscription not found", map[string]any{"subscriptionId": subscriptionID})
	}
	if wasFreeTrial {
		if sub.FreeTrialsRemaining > 0 {
			sub.FreeTrialsRemaining--
		}
		sub.FreeTrialsUsed++
	} else {
		sub.TotalPaidCalls++
	}
	return nil
}

// PutSubscription seeds or replaces a subscription record; exposed for
// tests and for the router's subscription-provisioning path.
func (s *Store) PutSubscription(sub *domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sub
	s.subscriptionsByKey[subKey(sub.UserID, sub.AgentID)] = &copied
	s.subscriptionsByID[sub.ID] = &copied
}

var _ permitstore.Store = (*Store)(nil)
