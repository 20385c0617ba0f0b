// Package selector picks which active Permit to spend against for a call,
// per the preference order in §4.9 (C9).
package selector

import (
	"math/big"

	"github.com/stablerouter/router/internal/domain"
)

// Select returns the best permit to use for a call costing cost USD against
// agent, or nil if none of permits has enough remaining value. permits must
// already be filtered to the caller's active, non-expired permits.
func Select(permits []*domain.Permit, agent *domain.Agent, cost *big.Rat) *domain.Permit {
	eligible := make([]*domain.Permit, 0, len(permits))
	for _, p := range permits {
		if p.RemainingValueUSD().Cmp(cost) >= 0 {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	if match := bestOf(filterMatching(eligible, agent.PaymentPreferences.PayoutToken, agent.PaymentPreferences.PayoutChainID)); match != nil {
		return match
	}
	if usdc := bestOf(filterByToken(eligible, "USDC")); usdc != nil {
		return usdc
	}
	return bestOf(eligible)
}

func filterMatching(permits []*domain.Permit, token string, chainID int64) []*domain.Permit {
	out := make([]*domain.Permit, 0, len(permits))
	for _, p := range permits {
		if p.Token == token && p.ChainID == chainID {
			out = append(out, p)
		}
	}
	return out
}

func filterByToken(permits []*domain.Permit, token string) []*domain.Permit {
	out := make([]*domain.Permit, 0, len(permits))
	for _, p := range permits {
		if p.Token == token {
			out = append(out, p)
		}
	}
	return out
}

// bestOf returns the permit with the largest remaining value, breaking
// ties by the newest createdAt. Returns nil for an empty slice.
func bestOf(permits []*domain.Permit) *domain.Permit {
	var best *domain.Permit
	for _, p := range permits {
		if best == nil {
			best = p
			continue
		}
		cmp := p.RemainingValueUSD().Cmp(best.RemainingValueUSD())
		if cmp > 0 || (cmp == 0 && p.CreatedAt > best.CreatedAt) {
			best = p
		}
	}
	return best
}
