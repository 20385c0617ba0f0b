// Package directory is a process-local, read-only-at-request-time
// implementation of router.AgentProvider and router.UserProvider. Agents
// and users are owned outside the permit/payment core; this is the
// in-memory seed used until that ownership boundary is backed by a real
// upstream service.
package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/stablerouter/router/internal/domain"
	"github.com/stablerouter/router/internal/router"
	"github.com/stablerouter/router/internal/routererr"
)

var (
	_ router.AgentProvider = (*Directory)(nil)
	_ router.UserProvider  = (*Directory)(nil)
)

// Directory holds the Agent and User records the router needs but does not
// own, keyed the way memstore keys its own records.
type Directory struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent
	users  map[string]*domain.User // by API key
}

func New() *Directory {
	return &Directory{agents: map[string]*domain.Agent{}, users: map[string]*domain.User{}}
}

func (d *Directory) PutAgent(a *domain.Agent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[a.ID] = a
}

func (d *Directory) PutUser(u *domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.APIKey] = u
}

func (d *Directory) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[agentID]
	if !ok {
		return nil, routererr.New(routererr.AgentNotFound, "agent not found", map[string]any{"agentId": agentID})
	}
	return a, nil
}

func (d *Directory) GetUserByAPIKey(ctx context.Context, apiKey string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[strings.TrimSpace(apiKey)]
	if !ok {
		return nil, routererr.New(routererr.Unauthorized, "unrecognized API key", nil)
	}
	return u, nil
}
