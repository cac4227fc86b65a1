// Package engine is the REST gateway to the agent execution engine: the
// service that owns agent lifecycle state, wallet funds, risk scoring and
// transaction submission. It implements all four collaborator contracts the
// cruise loop consumes.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rextempo/liqpro/internal/cruise/interfaces"
	"github.com/rextempo/liqpro/internal/types"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 4 << 20
)

// Options configure a Client beyond the base URL.
type Options struct {
	APIKey  string
	Timeout time.Duration
}

// Client talks to the execution engine's REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL string, opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("engine client requires base URL")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("engine base URL invalid: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

var (
	_ interfaces.AgentStateMachine   = (*Client)(nil)
	_ interfaces.FundsManager        = (*Client)(nil)
	_ interfaces.RiskController      = (*Client)(nil)
	_ interfaces.TransactionExecutor = (*Client)(nil)
)

// GetActiveAgents lists the agents the engine reports as active.
func (c *Client) GetActiveAgents(ctx context.Context) ([]interfaces.AgentHandle, error) {
	var payload struct {
		Agents []struct {
			ID     string            `json:"id"`
			Config types.AgentConfig `json:"config"`
		} `json:"agents"`
	}
	if err := c.get(ctx, "/api/v1/agents?state=active", &payload); err != nil {
		return nil, err
	}
	out := make([]interfaces.AgentHandle, 0, len(payload.Agents))
	for _, a := range payload.Agents {
		out = append(out, interfaces.AgentHandle{ID: a.ID, Config: a.Config})
	}
	return out, nil
}

// GetAgentState fetches one agent's lifecycle snapshot.
func (c *Client) GetAgentState(ctx context.Context, agentID string) (interfaces.AgentSnapshot, error) {
	var payload struct {
		State  types.AgentState  `json:"state"`
		Config types.AgentConfig `json:"config"`
	}
	if err := c.get(ctx, "/api/v1/agents/"+url.PathEscape(agentID)+"/state", &payload); err != nil {
		return interfaces.AgentSnapshot{}, err
	}
	return interfaces.AgentSnapshot{State: payload.State, Config: payload.Config}, nil
}

// GetAgentFunds fetches the agent's current funds snapshot.
func (c *Client) GetAgentFunds(ctx context.Context, agentID string) (types.FundsStatus, error) {
	var funds types.FundsStatus
	if err := c.get(ctx, "/api/v1/agents/"+url.PathEscape(agentID)+"/funds", &funds); err != nil {
		return types.FundsStatus{}, err
	}
	return funds, nil
}

// AssessRisk fetches the engine's risk assessment for the agent.
func (c *Client) AssessRisk(ctx context.Context, agentID string) (types.RiskAssessment, error) {
	var assessment types.RiskAssessment
	if err := c.get(ctx, "/api/v1/agents/"+url.PathEscape(agentID)+"/risk", &assessment); err != nil {
		return types.RiskAssessment{}, err
	}
	return assessment, nil
}

// ExecuteTransaction submits one action for on-chain execution. A rejected
// transaction comes back as Success=false with the engine's reason, not as
// an error; errors mean the request itself failed.
func (c *Client) ExecuteTransaction(ctx context.Context, req interfaces.TransactionRequest) (interfaces.TransactionResult, error) {
	var result interfaces.TransactionResult
	if err := c.post(ctx, "/api/v1/transactions", req, &result); err != nil {
		return interfaces.TransactionResult{}, err
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, raw, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("engine read body failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("engine %s %s: status %s: %s", method, path, resp.Status, truncate(raw, 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("engine decode %s failed: %w", path, err)
	}
	return nil
}

func truncate(raw []byte, limit int) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
