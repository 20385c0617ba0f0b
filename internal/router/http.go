package router

import (
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/permitadmin"
	"github.com/stablerouter/router/internal/routererr"
)

// Server is the gin HTTP transport in front of a Router and a permit-admin
// Service, built the way the teacher builds a gin middleware surface: small
// handlers, gin.H response bodies, and c.AbortWithStatusJSON on failure.
type Server struct {
	engine *gin.Engine
	router *Router
	admin  *permitadmin.Service
	log    *zap.Logger
}

func NewServer(router *Router, admin *permitadmin.Service, log *zap.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware(), metricsMiddleware())

	s := &Server{engine: engine, router: router, admin: admin, log: log}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.POST("/v1/router/:agentId", s.handleCall)

	permits := s.engine.Group("/permits")
	permits.POST("", s.handleCreatePermit)
	permits.GET("", s.handleListPermits)
	permits.PATCH("/:id", s.handlePatchPermit)
	permits.POST("/revoke", s.handleRevokePermit)
}

// corsMiddleware answers every request with a permissive
// Access-Control-Allow-Origin, matching §6's "OPTIONS returns permissive
// CORS" requirement. Unlike the teacher's CORS_ALLOWED_ORIGINS knob, this
// surface has no per-tenant origin allowlist to honor.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		agentID := c.Param("agentId")
		if agentID == "" {
			agentID = "-"
		}
		requestDuration.WithLabelValues(agentID, http.StatusText(c.Writer.Status())).Observe(time.Since(start).Seconds())
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	return strings.TrimPrefix(h, "Bearer ")
}

func writeError(c *gin.Context, err error) {
	var rerr *routererr.RouterError
	if errors.As(err, &rerr) {
		c.AbortWithStatusJSON(rerr.HTTPStatus(), gin.H{
			"success": false,
			"error":   gin.H{"code": rerr.Code, "message": rerr.Message, "details": rerr.Details},
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   gin.H{"code": routererr.InternalError, "message": err.Error()},
	})
}

type callRequestBody struct {
	Method     string                 `json:"method" binding:"required"`
	Parameters map[string]interface{} `json:"parameters"`
	Metadata   map[string]interface{} `json:"metadata"`
}

func (s *Server) handleCall(c *gin.Context) {
	agentID := c.Param("agentId")
	apiKey := bearerToken(c)
	if apiKey == "" {
		writeError(c, routererr.New(routererr.Unauthorized, "missing bearer token", nil))
		return
	}

	var body callRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, routererr.Wrap(routererr.InvalidJson, "malformed request body", err))
		return
	}

	result, err := s.router.HandleCall(c.Request.Context(), agentID, apiKey, CallRequest{
		Method: body.Method, Parameters: body.Parameters, Metadata: body.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Data,
		"billing": gin.H{
			"call_type":             result.Billing.CallType,
			"cost_usd":              ratString(result.Billing.CostUSD),
			"free_trials_remaining": result.Billing.FreeTrialsRemaining,
			"balance_after_call":    ratString(result.Billing.BalanceAfterCall),
		},
		"metadata": gin.H{
			"request_id": result.RequestID,
			"agent_id":   result.AgentID,
			"timestamp":  result.Timestamp,
		},
	})
}

func ratString(r *big.Rat) string {
	if r == nil {
		return ""
	}
	return r.FloatString(6)
}

type signatureBody struct {
	R string `json:"r" binding:"required"`
	S string `json:"s" binding:"required"`
	V uint8  `json:"v" binding:"required"`
}

type tokenPermitSigBody struct {
	signatureBody
	Deadline int64 `json:"deadline"`
}

type createPermitBody struct {
	UserAddress    string              `json:"userAddress" binding:"required"`
	AgentID        string              `json:"agentId"`
	Token          string              `json:"token" binding:"required"`
	ChainID        int64               `json:"chainId" binding:"required"`
	Amount         string              `json:"amount" binding:"required"`
	Nonce          string              `json:"nonce" binding:"required"`
	Deadline       int64               `json:"deadline" binding:"required"`
	Signature      signatureBody       `json:"signature" binding:"required"`
	TokenPermitSig *tokenPermitSigBody `json:"tokenPermitSig"`
	MaxCalls       int64               `json:"maxCalls" binding:"required"`
	CostPerCall    string              `json:"costPerCall" binding:"required"`
}

func (s *Server) handleCreatePermit(c *gin.Context) {
	var body createPermitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, routererr.Wrap(routererr.InvalidJson, "malformed permit body", err))
		return
	}

	amount, ok := new(big.Int).SetString(body.Amount, 10)
	if !ok {
		writeError(c, routererr.New(routererr.InvalidParameters, "amount is not a valid integer", nil))
		return
	}
	nonce, ok := new(big.Int).SetString(body.Nonce, 10)
	if !ok {
		writeError(c, routererr.New(routererr.InvalidParameters, "nonce is not a valid integer", nil))
		return
	}
	costPerCall, ok := new(big.Rat).SetString(body.CostPerCall)
	if !ok {
		writeError(c, routererr.New(routererr.InvalidParameters, "costPerCall is not a valid decimal", nil))
		return
	}

	sig, err := decodeSignature(body.Signature)
	if err != nil {
		writeError(c, routererr.Wrap(routererr.InvalidParameters, "invalid signature", err))
		return
	}

	var tokenPermitSig *domain.TokenPermitSig
	if body.TokenPermitSig != nil {
		tpSig, err := decodeSignature(body.TokenPermitSig.signatureBody)
		if err != nil {
			writeError(c, routererr.Wrap(routererr.InvalidParameters, "invalid tokenPermitSig", err))
			return
		}
		tokenPermitSig = &domain.TokenPermitSig{Signature: tpSig, Deadline: body.TokenPermitSig.Deadline}
	}

	permit, err := s.admin.Create(c.Request.Context(), permitadmin.CreateRequest{
		UserAddress: body.UserAddress, AgentID: body.AgentID, Token: body.Token, ChainID: body.ChainID,
		Amount: amount, Nonce: nonce, Deadline: body.Deadline, Signature: sig, TokenPermitSig: tokenPermitSig,
		MaxCalls: body.MaxCalls, CostPerCall: costPerCall,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "permit": permitJSON(permit)})
}

func decodeSignature(b signatureBody) (domain.Signature, error) {
	var sig domain.Signature
	rBytes, err := hexTo32(b.R)
	if err != nil {
		return sig, err
	}
	sBytes, err := hexTo32(b.S)
	if err != nil {
		return sig, err
	}
	sig.R = rBytes
	sig.S = sBytes
	sig.V = b.V
	return sig, nil
}

func (s *Server) handleListPermits(c *gin.Context) {
	userAddress := c.Query("userAddress")
	if userAddress == "" {
		writeError(c, routererr.New(routererr.InvalidParameters, "userAddress query parameter is required", nil))
		return
	}
	permits, err := s.admin.List(c.Request.Context(), userAddress)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(permits))
	for _, p := range permits {
		out = append(out, permitJSON(p))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "permits": out})
}

type patchPermitBody struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handlePatchPermit(c *gin.Context) {
	id := c.Param("id")
	var body patchPermitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, routererr.Wrap(routererr.InvalidJson, "malformed patch body", err))
		return
	}
	status := domain.PermitStatus(body.Status)
	switch status {
	case domain.PermitActive, domain.PermitExpired, domain.PermitRevoked:
	default:
		writeError(c, routererr.New(routererr.InvalidParameters, "unrecognized permit status", map[string]any{"status": body.Status}))
		return
	}
	if err := s.admin.UpdateStatus(c.Request.Context(), id, status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type revokePermitBody struct {
	PermitID string `json:"permitId" binding:"required"`
}

func (s *Server) handleRevokePermit(c *gin.Context) {
	var body revokePermitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, routererr.Wrap(routererr.InvalidJson, "malformed revoke body", err))
		return
	}
	if err := s.admin.Revoke(c.Request.Context(), body.PermitID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func permitJSON(p *domain.Permit) gin.H {
	return gin.H{
		"id":          p.ID,
		"userAddress": p.UserAddress,
		"agentId":     p.AgentID,
		"token":       p.Token,
		"chainId":     p.ChainID,
		"amount":      p.Amount.String(),
		"status":      p.Status,
		"maxCalls":    p.MaxCalls,
		"callsUsed":   p.CallsUsed,
		"createdAt":   p.CreatedAt,
		"expiresAt":   p.ExpiresAt,
	}
}
