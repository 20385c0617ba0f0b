// Package attestation polls the attestation provider for a cross-chain
// burn's mint proof (C7).
package attestation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stablerouter/router/internal/routererr"
)

// DefaultBudget is the total time a Wait call is allowed to spend polling
// before giving up with AttestationFailed.
const DefaultBudget = 20 * time.Minute

// Attestation is the raw provider payload, returned unparsed for the caller
// (the Transfer Engine) to extract message/attestation hex strings from.
type Attestation struct {
	Message     string `json:"message"`
	Attestation string `json:"attestation"`
	Status      string `json:"status"`
}

// Request identifies a pending burn. SourceTxHash+SourceDomain drive the v2
// surface; MessageHash drives the v1 surface.
type Request struct {
	MessageHash   string
	SourceTxHash  string
	SourceDomain  uint32
}

// Poller is one polling strategy against an attestation provider surface.
type Poller interface {
	// Poll makes one request and reports whether the attestation is ready.
	// A nil Attestation with ok=false and err=nil means "still pending".
	Poll(ctx context.Context, req Request) (att *Attestation, ok bool, err error)
}

// Client waits for an attestation using a Poller, honoring a total time
// budget and the provider's polling interval.
type Client struct {
	poller   Poller
	interval time.Duration
	budget   time.Duration
	limiter  *rate.Limiter
}

func NewV2Client(baseURL string, httpClient *http.Client, budget time.Duration) *Client {
	interval := 5 * time.Second
	return &Client{
		poller:   &v2Poller{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient},
		interval: interval,
		budget:   budget,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

func NewV1Client(baseURL string, httpClient *http.Client, budget time.Duration) *Client {
	interval := 2 * time.Second
	return &Client{
		poller:   &v1Poller{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient},
		interval: interval,
		budget:   budget,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Wait polls until the attestation completes, the budget is exhausted, or
// ctx is cancelled. 404 from the provider is treated as "still pending" and
// does not consume budget beyond the normal poll interval.
func (c *Client) Wait(ctx context.Context, req Request) (*Attestation, error) {
	deadline := time.Now().Add(c.budget)
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, routererr.Wrap(routererr.AttestationFailed, "attestation wait cancelled", err)
		}

		att, ok, err := c.poller.Poll(ctx, req)
		if err != nil {
			return nil, routererr.Wrap(routererr.AttestationFailed, "attestation provider error", err)
		}
		if ok {
			return att, nil
		}
		if time.Now().After(deadline) {
			return nil, routererr.New(routererr.AttestationFailed, "attestation polling budget exhausted",
				map[string]any{"budget": c.budget.String()})
		}
	}
}

type v2Message struct {
	Status      string `json:"status"`
	Attestation string `json:"attestation"`
	Message     string `json:"message"`
}

type v2Response struct {
	Messages []v2Message `json:"messages"`
}

// v2Poller implements the preferred, transaction-hash-keyed surface.
type v2Poller struct {
	baseURL    string
	httpClient *http.Client
}

func (p *v2Poller) Poll(ctx context.Context, req Request) (*Attestation, bool, error) {
	url := fmt.Sprintf("%s/v2/messages/%d?transactionHash=%s", p.baseURL, req.SourceDomain, req.SourceTxHash)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build v2 attestation request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("v2 attestation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("attestation v2 returned status %d", resp.StatusCode)
	}

	var body v2Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("decode v2 attestation response: %w", err)
	}
	if len(body.Messages) == 0 {
		return nil, false, nil
	}
	msg := body.Messages[0]
	if msg.Status != "complete" {
		return nil, false, nil
	}
	return &Attestation{Message: msg.Message, Attestation: msg.Attestation, Status: msg.Status}, true, nil
}

type v1Response struct {
	Status      string `json:"status"`
	Attestation string `json:"attestation"`
	Message     string `json:"message"`
}

// v1Poller implements the legacy, message-hash-keyed surface.
type v1Poller struct {
	baseURL    string
	httpClient *http.Client
}

func (p *v1Poller) Poll(ctx context.Context, req Request) (*Attestation, bool, error) {
	url := fmt.Sprintf("%s/attestations/%s", p.baseURL, req.MessageHash)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build v1 attestation request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("v1 attestation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("attestation v1 returned status %d", resp.StatusCode)
	}

	var body v1Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("decode v1 attestation response: %w", err)
	}
	if body.Status != "complete" {
		return nil, false, nil
	}
	return &Attestation{Message: body.Message, Attestation: body.Attestation, Status: body.Status}, true, nil
}
