package gormstore

import (
	"encoding/hex"
	"math/big"

	"github.com/stablerouter/router/internal/domain"
)

// permitRow, crossChainPaymentRow, paymentRow, apiCallRow and subscriptionRow
// mirror the domain types as gorm models. *big.Int/*big.Rat fields are
// stored as decimal strings since gorm has no native 256-bit numeric type.

type permitRow struct {
	ID             string `gorm:"primaryKey"`
	UserAddress    string `gorm:"index"`
	AgentID        string
	Token          string
	ChainID        int64
	SpenderAddress string
	Amount         string
	Nonce          string
	Deadline       int64
	SigR           string
	SigS           string
	SigV           uint8
	HasTokenPermit bool
	TokenPermitR   string
	TokenPermitS   string
	TokenPermitV   uint8
	TokenPermitExp int64
	Status         string `gorm:"index"`
	CreatedAt      int64
	ExpiresAt      int64
	MaxCalls       int64
	CallsUsed      int64
	CostPerCallNum string
	CostPerCallDen string
}

func (permitRow) TableName() string { return "permits" }

type crossChainPaymentRow struct {
	ID                    string `gorm:"primaryKey"`
	UserID                string `gorm:"index"`
	AgentID               string
	SourceChainID         int64
	TargetChainID         int64
	Amount                string
	Token                 string
	MessageHash           string `gorm:"index"`
	SourceTransactionHash string
	TargetTransactionHash string
	AttestationStatus     string
	Phase                 string `gorm:"index"`
	PermitID              string
	CreatedAt             int64
	CompletedAt           int64
	ErrorMessage          string
}

func (crossChainPaymentRow) TableName() string { return "cross_chain_payments" }

type paymentRow struct {
	ID                  string `gorm:"primaryKey"`
	Amount              string
	Token               string
	Network             int64
	TransactionHash     string
	Status              string
	APICallID           string `gorm:"uniqueIndex"`
	MessageHash         string
	CrossChainPaymentID string
}

func (paymentRow) TableName() string { return "payments" }

type apiCallRow struct {
	ID                string `gorm:"primaryKey"`
	UserID            string `gorm:"index"`
	AgentID           string `gorm:"index"`
	RequestTimestamp  int64
	ResponseTimestamp int64
	HTTPStatus        int
	ResponseTimeMs    int64
	IsFreeTrial       bool
	ChargedAmountNum  string
	ChargedAmountDen  string
	PaymentID         string
}

func (apiCallRow) TableName() string { return "api_calls" }

type subscriptionRow struct {
	ID                  string `gorm:"primaryKey"`
	UserID              string `gorm:"uniqueIndex:idx_user_agent"`
	AgentID             string `gorm:"uniqueIndex:idx_user_agent"`
	Status              string
	FreeTrialsRemaining int64
	FreeTrialsUsed      int64
	TotalPaidCalls      int64
}

func (subscriptionRow) TableName() string { return "subscriptions" }

// AllModels lists every row type for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&permitRow{}, &crossChainPaymentRow{}, &paymentRow{}, &apiCallRow{}, &subscriptionRow{},
	}
}

func mustBigInt(s string) *big.Int {
	n := new(big.Int)
	n.SetString(s, 10)
	return n
}

func fromDomainPermit(p *domain.Permit) *permitRow {
	row := &permitRow{
		ID: p.ID, UserAddress: p.UserAddress, AgentID: p.AgentID, Token: p.Token,
		ChainID: p.ChainID, SpenderAddress: p.SpenderAddress,
		Amount: p.Amount.String(), Nonce: p.Nonce.String(), Deadline: p.Deadline,
		SigR: hex.EncodeToString(p.Signature.R[:]), SigS: hex.EncodeToString(p.Signature.S[:]), SigV: p.Signature.V,
		Status: string(p.Status), CreatedAt: p.CreatedAt, ExpiresAt: p.ExpiresAt,
		MaxCalls: p.MaxCalls, CallsUsed: p.CallsUsed,
	}
	if p.CostPerCall != nil {
		row.CostPerCallNum = p.CostPerCall.Num().String()
		row.CostPerCallDen = p.CostPerCall.Denom().String()
	}
	if p.TokenPermitSig != nil {
		row.HasTokenPermit = true
		row.TokenPermitR = hex.EncodeToString(p.TokenPermitSig.R[:])
		row.TokenPermitS = hex.EncodeToString(p.TokenPermitSig.S[:])
		row.TokenPermitV = p.TokenPermitSig.V
		row.TokenPermitExp = p.TokenPermitSig.Deadline
	}
	return row
}

func toDomainPermit(row *permitRow) *domain.Permit {
	p := &domain.Permit{
		ID: row.ID, UserAddress: row.UserAddress, AgentID: row.AgentID, Token: row.Token,
		ChainID: row.ChainID, SpenderAddress: row.SpenderAddress,
		Amount: mustBigInt(row.Amount), Nonce: mustBigInt(row.Nonce), Deadline: row.Deadline,
		Status: domain.PermitStatus(row.Status), CreatedAt: row.CreatedAt, ExpiresAt: row.ExpiresAt,
		MaxCalls: row.MaxCalls, CallsUsed: row.CallsUsed,
	}
	if rBytes, err := hex.DecodeString(row.SigR); err == nil {
		copy(p.Signature.R[:], rBytes)
	}
	if sBytes, err := hex.DecodeString(row.SigS); err == nil {
		copy(p.Signature.S[:], sBytes)
	}
	p.Signature.V = row.SigV
	if row.CostPerCallNum != "" {
		p.CostPerCall = new(big.Rat).SetFrac(mustBigInt(row.CostPerCallNum), mustBigInt(row.CostPerCallDen))
	}
	if row.HasTokenPermit {
		sig := domain.TokenPermitSig{Deadline: row.TokenPermitExp}
		if rBytes, err := hex.DecodeString(row.TokenPermitR); err == nil {
			copy(sig.R[:], rBytes)
		}
		if sBytes, err := hex.DecodeString(row.TokenPermitS); err == nil {
			copy(sig.S[:], sBytes)
		}
		sig.V = row.TokenPermitV
		p.TokenPermitSig = &sig
	}
	return p
}

func fromDomainCrossChainPayment(p *domain.CrossChainPayment) *crossChainPaymentRow {
	return &crossChainPaymentRow{
		ID: p.ID, UserID: p.UserID, AgentID: p.AgentID,
		SourceChainID: p.SourceChainID, TargetChainID: p.TargetChainID,
		Amount: p.Amount.String(), Token: p.Token, MessageHash: p.MessageHash,
		SourceTransactionHash: p.SourceTransactionHash, TargetTransactionHash: p.TargetTransactionHash,
		AttestationStatus: string(p.AttestationStatus), Phase: string(p.Phase), PermitID: p.PermitID,
		CreatedAt: p.CreatedAt, CompletedAt: p.CompletedAt, ErrorMessage: p.ErrorMessage,
	}
}

func toDomainCrossChainPayment(row *crossChainPaymentRow) *domain.CrossChainPayment {
	return &domain.CrossChainPayment{
		ID: row.ID, UserID: row.UserID, AgentID: row.AgentID,
		SourceChainID: row.SourceChainID, TargetChainID: row.TargetChainID,
		Amount: mustBigInt(row.Amount), Token: row.Token, MessageHash: row.MessageHash,
		SourceTransactionHash: row.SourceTransactionHash, TargetTransactionHash: row.TargetTransactionHash,
		AttestationStatus: domain.AttestationStatus(row.AttestationStatus), Phase: domain.TransferPhase(row.Phase),
		PermitID: row.PermitID, CreatedAt: row.CreatedAt, CompletedAt: row.CompletedAt, ErrorMessage: row.ErrorMessage,
	}
}

func fromDomainPayment(p *domain.Payment) *paymentRow {
	return &paymentRow{
		ID: p.ID, Amount: p.Amount.String(), Token: p.Token, Network: p.Network,
		TransactionHash: p.TransactionHash, Status: string(p.Status), APICallID: p.APICallID,
		MessageHash: p.MessageHash, CrossChainPaymentID: p.CrossChainPaymentID,
	}
}

func toDomainPayment(row *paymentRow) *domain.Payment {
	return &domain.Payment{
		ID: row.ID, Amount: mustBigInt(row.Amount), Token: row.Token, Network: row.Network,
		TransactionHash: row.TransactionHash, Status: domain.PaymentStatus(row.Status), APICallID: row.APICallID,
		MessageHash: row.MessageHash, CrossChainPaymentID: row.CrossChainPaymentID,
	}
}

func toDomainSubscription(row *subscriptionRow) *domain.Subscription {
	return &domain.Subscription{
		ID: row.ID, UserID: row.UserID, AgentID: row.AgentID, Status: domain.SubscriptionStatus(row.Status),
		FreeTrialsRemaining: row.FreeTrialsRemaining, FreeTrialsUsed: row.FreeTrialsUsed, TotalPaidCalls: row.TotalPaidCalls,
	}
}
