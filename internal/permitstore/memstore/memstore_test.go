package memstore

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitstore"
)

func TestCreatePaymentIsIdempotentOnAPICallID(t *testing.T) {
	s := New()
	ctx := context.Background()

	p1, err := s.CreatePayment(ctx, "call-1", &domain.Payment{ID: "pay-1", Amount: big.NewInt(100)})
	require.NoError(t, err)

	p2, err := s.CreatePayment(ctx, "call-1", &domain.Payment{ID: "pay-2", Amount: big.NewInt(999)})
	require.NoError(t, err)

	assert.Equal(t, p1.ID, p2.ID, "second call with the same api_call_id must return the first payment, not create a new one")
	assert.Equal(t, int64(100), p1.Amount.Int64())
}

func TestUpdatePermitUsageIsMonotonic(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreatePermit(ctx, &domain.Permit{ID: "p1", UserAddress: "0xabc", CallsUsed: 5}))
	require.NoError(t, s.UpdatePermitUsage(ctx, "p1", 3))

	got, err := s.GetPermit(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.CallsUsed, "usage must never decrease")

	require.NoError(t, s.UpdatePermitUsage(ctx, "p1", 7))
	got, err = s.GetPermit(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.CallsUsed)
}

func TestListPermitsByUserIsCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreatePermit(ctx, &domain.Permit{ID: "p1", UserAddress: "0xABCDEF"}))

	got, err := s.ListPermitsByUser(ctx, "0xabcdef")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func TestUpdateSubscriptionUsageTracksFreeTrialVsPaid(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.PutSubscription(&domain.Subscription{ID: "sub-1", UserID: "u1", AgentID: "a1", FreeTrialsRemaining: 2})

	require.NoError(t, s.UpdateSubscriptionUsage(ctx, "call-1", "sub-1", true))
	sub, err := s.GetSubscription(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sub.FreeTrialsRemaining)
	assert.Equal(t, int64(1), sub.FreeTrialsUsed)

	require.NoError(t, s.UpdateSubscriptionUsage(ctx, "call-2", "sub-1", false))
	sub, err = s.GetSubscription(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sub.TotalPaidCalls)
}

func TestUpdateCrossChainPaymentPatchesOnlySetFields(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateCrossChainPayment(ctx, &domain.CrossChainPayment{
		ID: "ccp-1", Phase: domain.PhaseBurning, SourceTransactionHash: "0xsrc",
	}))

	phase := domain.PhaseComplete
	txHash := "0xtarget"
	require.NoError(t, s.UpdateCrossChainPayment(ctx, "ccp-1", permitstore.CrossChainPaymentPatch{
		Phase:                 &phase,
		TargetTransactionHash: &txHash,
	}))

	got, err := s.GetCrossChainPayment(ctx, "ccp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, got.Phase)
	assert.Equal(t, "0xtarget", got.TargetTransactionHash)
	assert.Equal(t, "0xsrc", got.SourceTransactionHash, "fields absent from the patch must survive unchanged")
}
