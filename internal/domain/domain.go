// Package domain holds the core data model: Permit, Subscription, Agent,
// CrossChainPayment, Payment, and ApiCallRecord. Nothing outside the
// permitstore package mutates these once persisted.
package domain

import "math/big"

// PermitStatus is the lifecycle status of a Permit.
type PermitStatus string

const (
	PermitActive  PermitStatus = "active"
	PermitExpired PermitStatus = "expired"
	PermitRevoked PermitStatus = "revoked"
)

// Signature is an ECDSA signature transported as (r, s, v); the on-chain
// concatenation order is r ‖ s ‖ v.
type Signature struct {
	R [32]byte
	S [32]byte
	V uint8
}

// TokenPermitSig is the optional EIP-2612 signature authorizing the
// AllowanceVault to draw from the user's token balance.
type TokenPermitSig struct {
	Signature
	Deadline int64
}

// Permit is an off-chain EIP-712 spending authorization over a stablecoin,
// submitted on-chain by the admin. See invariants I1–I4.
type Permit struct {
	ID             string
	UserAddress    string // lowercased 20-byte hex address
	AgentID        string // optional
	Token          string // symbol, resolved via Chain Registry
	ChainID        int64
	SpenderAddress string // the admin account; constant within a deployment
	Amount         *big.Int
	Nonce          *big.Int
	Deadline       int64 // unix seconds
	Signature      Signature
	TokenPermitSig *TokenPermitSig
	Status         PermitStatus
	CreatedAt      int64 // unix millis
	ExpiresAt      int64 // unix millis
	MaxCalls       int64
	CallsUsed      int64
	CostPerCall    *big.Rat // USD fixed-point
}

// RemainingValueUSD returns (maxCalls - callsUsed) * costPerCall.
func (p *Permit) RemainingValueUSD() *big.Rat {
	remainingCalls := new(big.Rat).SetInt64(p.MaxCalls - p.CallsUsed)
	return new(big.Rat).Mul(remainingCalls, p.CostPerCall)
}

// SubscriptionStatus is the lifecycle status of a Subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// Subscription tracks a user's standing with a single agent.
type Subscription struct {
	ID                  string
	UserID              string
	AgentID             string
	Status              SubscriptionStatus
	FreeTrialsRemaining int64
	FreeTrialsUsed      int64
	TotalPaidCalls      int64
}

// PaymentPreferences describes where an agent wants to be paid.
type PaymentPreferences struct {
	PayoutToken   string
	PayoutChainID int64
}

// Agent is external, read-only data about a metered API provider.
type Agent struct {
	ID                   string
	PricePerCallUSD      *big.Rat
	PaymentPreferences   PaymentPreferences
	PublisherWalletAddr  string
	APIEndpoint          string
	PublisherAPIKey      string
	FreeTrialTries       int64
}

// AttestationStatus is the lifecycle status of a CrossChainPayment's
// attestation.
type AttestationStatus string

const (
	AttestationPending  AttestationStatus = "pending"
	AttestationComplete AttestationStatus = "complete"
	AttestationFailed   AttestationStatus = "failed"
)

// TransferPhase is the settlement state machine phase of a CrossChainPayment.
type TransferPhase string

const (
	PhaseCreated             TransferPhase = "created"
	PhaseBurning             TransferPhase = "burning"
	PhaseAwaitingAttestation TransferPhase = "awaiting-attestation"
	PhaseRedeeming           TransferPhase = "redeeming"
	PhaseComplete            TransferPhase = "complete"
	PhaseFailed              TransferPhase = "failed"
)

// CrossChainPayment records a single burn-and-mint transfer.
type CrossChainPayment struct {
	ID                    string
	UserID                string
	AgentID               string
	SourceChainID         int64
	TargetChainID         int64
	Amount                *big.Int
	Token                 string
	MessageHash           string
	SourceTransactionHash string
	TargetTransactionHash string
	AttestationStatus     AttestationStatus
	Phase                 TransferPhase
	PermitID              string
	CreatedAt             int64
	CompletedAt           int64
	ErrorMessage          string
}

// PaymentStatus is the terminal status of a per-call Payment record.
type PaymentStatus string

const (
	PaymentCompleted         PaymentStatus = "completed"
	PaymentPendingAttestation PaymentStatus = "pending_attestation"
	PaymentFailed            PaymentStatus = "failed"
)

// Payment is a per-call receipt.
type Payment struct {
	ID                 string
	Amount             *big.Int
	Token              string
	Network            int64
	TransactionHash    string
	Status             PaymentStatus
	APICallID          string
	MessageHash        string
	CrossChainPaymentID string
}

// CallType distinguishes a free-trial call from a paid call.
type CallType string

const (
	CallFreeTrial CallType = "free_trial"
	CallPaid      CallType = "paid"
)

// ApiCallRecord is a log entry for a single metered API call.
type ApiCallRecord struct {
	ID                string
	UserID            string
	AgentID           string
	RequestTimestamp  int64
	ResponseTimestamp int64
	HTTPStatus        int
	ResponseTimeMs    int64
	IsFreeTrial       bool
	ChargedAmountUSD  *big.Rat
	PaymentID         string
}

// User is the bearer-token-authenticated caller of the router HTTP surface.
type User struct {
	ID         string
	APIKey     string
	Address    string
	IsApproved bool
	CreatedAt  int64
}
