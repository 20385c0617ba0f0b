// Package gormstore is a Postgres-backed permitstore.Store built on
// gorm.io/gorm, grounded on the teacher pack's repository layer
// (Aigen6-preworker's internal/repository).
package gormstore

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitstore"
	"github.com/stablerouter/router/internal/routererr"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate runs AutoMigrate for every row type this store owns.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(AllModels()...)
}

func (s *Store) CreatePermit(ctx context.Context, p *domain.Permit) error {
	return s.db.WithContext(ctx).Create(fromDomainPermit(p)).Error
}

func (s *Store) GetPermit(ctx context.Context, id string) (*domain.Permit, error) {
	var row permitRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, routererr.Wrap(routererr.AgentNotFound, "permit not found", err)
	}
	return toDomainPermit(&row), nil
}

func (s *Store) ListPermitsByUser(ctx context.Context, userAddress string) ([]*domain.Permit, error) {
	var rows []permitRow
	if err := s.db.WithContext(ctx).
		Where("lower(user_address) = ?", strings.ToLower(userAddress)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "list permits by user", err)
	}
	out := make([]*domain.Permit, 0, len(rows))
	for i := range rows {
		out = append(out, toDomainPermit(&rows[i]))
	}
	return out, nil
}

func (s *Store) UpdatePermitStatus(ctx context.Context, id string, status domain.PermitStatus) error {
	res := s.db.WithContext(ctx).Model(&permitRow{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return routererr.Wrap(routererr.InternalError, "update permit status", res.Error)
	}
	if res.RowsAffected == 0 {
		return routererr.New(routererr.AgentNotFound, "permit not found", map[string]any{"permitId": id})
	}
	return nil
}

// UpdatePermitUsage only raises calls_used, preserving monotonic
// non-decrease even if the caller races with a concurrent update.
func (s *Store) UpdatePermitUsage(ctx context.Context, id string, callsUsed int64) error {
	res := s.db.WithContext(ctx).Model(&permitRow{}).
		Where("id = ? AND calls_used < ?", id, callsUsed).
		Update("calls_used", callsUsed)
	if res.Error != nil {
		return routererr.Wrap(routererr.InternalError, "update permit usage", res.Error)
	}
	return nil
}

func (s *Store) CreateCrossChainPayment(ctx context.Context, p *domain.CrossChainPayment) error {
	return s.db.WithContext(ctx).Create(fromDomainCrossChainPayment(p)).Error
}

func (s *Store) GetCrossChainPayment(ctx context.Context, id string) (*domain.CrossChainPayment, error) {
	var row crossChainPaymentRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, routererr.Wrap(routererr.AgentNotFound, "cross-chain payment not found", err)
	}
	return toDomainCrossChainPayment(&row), nil
}

func (s *Store) UpdateCrossChainPayment(ctx context.Context, id string, patch permitstore.CrossChainPaymentPatch) error {
	updates := map[string]interface{}{}
	if patch.TargetTransactionHash != nil {
		updates["target_transaction_hash"] = *patch.TargetTransactionHash
	}
	if patch.AttestationStatus != nil {
		updates["attestation_status"] = string(*patch.AttestationStatus)
	}
	if patch.Phase != nil {
		updates["phase"] = string(*patch.Phase)
	}
	if patch.ErrorMessage != nil {
		updates["error_message"] = *patch.ErrorMessage
	}
	if patch.CompletedAt != nil {
		updates["completed_at"] = *patch.CompletedAt
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&crossChainPaymentRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return routererr.Wrap(routererr.InternalError, "update cross-chain payment", res.Error)
	}
	if res.RowsAffected == 0 {
		return routererr.New(routererr.AgentNotFound, "cross-chain payment not found", map[string]any{"id": id})
	}
	return nil
}

// CreatePayment and UpdateSubscriptionUsage each use ON CONFLICT DO NOTHING
// keyed on api_call_id so a retried call is a no-op rather than a double
// charge, satisfying the at-most-once-billing requirement without a
// database-wide lock. WithTx lets the router pair them in one real
// transaction when it wants the stronger guarantee.
func (s *Store) CreatePayment(ctx context.Context, apiCallID string, p *domain.Payment) (*domain.Payment, error) {
	row := fromDomainPayment(p)
	row.APICallID = apiCallID

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "api_call_id"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "create payment", err)
	}

	var existing paymentRow
	if err := s.db.WithContext(ctx).Where("api_call_id = ?", apiCallID).First(&existing).Error; err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "reload payment after insert", err)
	}
	return toDomainPayment(&existing), nil
}

func (s *Store) LogApiCall(ctx context.Context, rec *domain.ApiCallRecord) error {
	row := &apiCallRow{
		ID: rec.ID, UserID: rec.UserID, AgentID: rec.AgentID,
		RequestTimestamp: rec.RequestTimestamp, ResponseTimestamp: rec.ResponseTimestamp,
		HTTPStatus: rec.HTTPStatus, ResponseTimeMs: rec.ResponseTimeMs, IsFreeTrial: rec.IsFreeTrial,
		PaymentID: rec.PaymentID,
	}
	if rec.ChargedAmountUSD != nil {
		row.ChargedAmountNum = rec.ChargedAmountUSD.Num().String()
		row.ChargedAmountDen = rec.ChargedAmountUSD.Denom().String()
	}
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *Store) GetSubscription(ctx context.Context, userID, agentID string) (*domain.Subscription, error) {
	var row subscriptionRow
	if err := s.db.WithContext(ctx).Where("user_id = ? AND agent_id = ?", userID, agentID).First(&row).Error; err != nil {
		return nil, routererr.Wrap(routererr.AgentOrUserNotFound, "subscription not found", err)
	}
	return toDomainSubscription(&row), nil
}

func (s *Store) UpdateSubscriptionUsage(ctx context.Context, apiCallID string, subscriptionID string, wasFreeTrial bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row subscriptionRow
		if err := tx.Where("id = ?", subscriptionID).First(&row).Error; err != nil {
			return routererr.Wrap(routererr.AgentOrUserNotFound, "subscription not found", err)
		}
		if wasFreeTrial {
			updates := map[string]interface{}{"free_trials_used": row.FreeTrialsUsed + 1}
			if row.FreeTrialsRemaining > 0 {
				updates["free_trials_remaining"] = row.FreeTrialsRemaining - 1
			}
			return tx.Model(&row).Updates(updates).Error
		}
		return tx.Model(&row).Update("total_paid_calls", row.TotalPaidCalls+1).Error
	})
}

// WithTx runs fn with a Store backed by a single transaction, giving the
// caller a real multi-row transaction across CreatePayment and
// UpdateSubscriptionUsage for one api_call_id.
func (s *Store) WithTx(ctx context.Context, fn func(txStore *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

var _ permitstore.Store = (*Store)(nil)
