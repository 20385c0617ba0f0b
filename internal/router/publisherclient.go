package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stablerouter/router/internal/routererr"
)

const defaultPublisherTimeout = 13 * time.Second

// PublisherClient forwards a metered call to an agent's publisher endpoint,
// built the way the teacher's pkg/facilitatorclient.FacilitatorClient talks
// to its own upstream: a *http.Client with a fixed timeout, a JSON POST
// body, and a bearer header attached by a small helper.
type PublisherClient struct {
	httpClient *http.Client
}

func NewPublisherClient(timeout time.Duration) *PublisherClient {
	if timeout == 0 {
		timeout = defaultPublisherTimeout
	}
	return &PublisherClient{httpClient: &http.Client{Timeout: timeout}}
}

type publisherRequestBody struct {
	Method     string                 `json:"method"`
	Parameters map[string]interface{} `json:"parameters"`
	Metadata   publisherMetadata      `json:"metadata"`
}

type publisherMetadata struct {
	RouterVersion string `json:"router_version"`
	AgentID       string `json:"agent_id"`
}

// Response is the publisher's raw answer: an HTTP status and a decoded
// JSON body, passed back to the caller verbatim on success.
type Response struct {
	StatusCode int
	Body       map[string]interface{}
}

// Call forwards method/parameters to endpoint with apiKey as the bearer
// token, returning ApiCallFailed for non-2xx and network errors alike.
func (c *PublisherClient) Call(ctx context.Context, endpoint, apiKey, method string, parameters map[string]interface{}, agentID string) (*Response, error) {
	body := publisherRequestBody{
		Method:     method,
		Parameters: parameters,
		Metadata:   publisherMetadata{RouterVersion: RouterVersion, AgentID: agentID},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "marshal publisher request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, routererr.Wrap(routererr.InternalError, "build publisher request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.addAuthHeader(req, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, routererr.Wrap(routererr.ApiCallFailed, "publisher request failed", err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode/100 == 2 {
		return nil, routererr.Wrap(routererr.ApiCallFailed, "decode publisher response", err)
	}

	if resp.StatusCode/100 != 2 {
		return &Response{StatusCode: resp.StatusCode, Body: decoded}, routererr.New(routererr.ApiCallFailed,
			fmt.Sprintf("publisher returned status %d", resp.StatusCode), map[string]any{"status": resp.StatusCode})
	}

	return &Response{StatusCode: resp.StatusCode, Body: decoded}, nil
}

func (c *PublisherClient) addAuthHeader(req *http.Request, apiKey string) {
	if apiKey == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
}
