package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rextempo/liqpro/internal/cruise/interfaces"
	"github.com/rextempo/liqpro/internal/types"
)

type fakeController struct {
	running    bool
	agents     map[string]types.AgentConfig
	lastOp     string
	opResult   bool
	registerOK bool
}

func (f *fakeController) Running() bool { return f.running }

func (f *fakeController) RegisterAgent(agentID string, cfg types.AgentConfig) bool {
	if !f.registerOK {
		return false
	}
	f.agents[agentID] = cfg
	return true
}

func (f *fakeController) UnregisterAgent(agentID string) bool {
	if !f.registerOK {
		return false
	}
	delete(f.agents, agentID)
	return true
}

func (f *fakeController) GetRegisteredAgentCount() int { return len(f.agents) }

func (f *fakeController) RegisteredAgents() []interfaces.AgentHandle {
	out := make([]interfaces.AgentHandle, 0, len(f.agents))
	for id, cfg := range f.agents {
		out = append(out, interfaces.AgentHandle{ID: id, Config: cfg})
	}
	return out
}

func (f *fakeController) PerformHealthCheck(ctx context.Context, agentID string) bool {
	f.lastOp = "health:" + agentID
	return f.opResult
}

func (f *fakeController) OptimizePositions(ctx context.Context, agentID string) bool {
	f.lastOp = "optimize:" + agentID
	return f.opResult
}

func (f *fakeController) CheckForSignificantChanges(ctx context.Context, agentID string) bool {
	f.lastOp = "market:" + agentID
	return f.opResult
}

type fakeRoster map[string]types.AgentConfig

func (f fakeRoster) Agent(id string) (types.AgentConfig, bool) {
	cfg, ok := f[id]
	return cfg, ok
}

func newTestServer(t *testing.T, ctrl *fakeController, roster fakeRoster) *httptest.Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Addr:       ":0",
		Controller: ctrl,
		Roster:     roster,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestStatusEndpoint(t *testing.T) {
	ctrl := &fakeController{running: true, agents: map[string]types.AgentConfig{"a1": {}}, registerOK: true}
	ts := newTestServer(t, ctrl, nil)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/cruise/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["running"])
	assert.EqualValues(t, 1, body["agent_count"])
}

func TestRegisterAgentFromRoster(t *testing.T) {
	ctrl := &fakeController{running: true, agents: map[string]types.AgentConfig{}, registerOK: true}
	roster := fakeRoster{"alpha": {Name: "Alpha", MaxPositions: 5, MinSolBalance: 1}}
	ts := newTestServer(t, ctrl, roster)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/cruise/agents/alpha")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, ctrl.agents, "alpha")

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/cruise/agents/ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "roster")
}

func TestRegisterWhileStoppedConflicts(t *testing.T) {
	ctrl := &fakeController{agents: map[string]types.AgentConfig{}}
	roster := fakeRoster{"alpha": {MaxPositions: 5}}
	ts := newTestServer(t, ctrl, roster)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/cruise/agents/alpha")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestManualTriggers(t *testing.T) {
	ctrl := &fakeController{running: true, agents: map[string]types.AgentConfig{}, registerOK: true, opResult: true}
	ts := newTestServer(t, ctrl, nil)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/cruise/agents/a1/optimize")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "optimize:a1", ctrl.lastOp)

	ctrl.opResult = false
	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/cruise/agents/a1/health-check")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "skipped", body["status"])
	assert.Equal(t, "health:a1", ctrl.lastOp)
}

func TestUnregisterAgent(t *testing.T) {
	ctrl := &fakeController{running: true, agents: map[string]types.AgentConfig{"a1": {}}, registerOK: true}
	ts := newTestServer(t, ctrl, nil)

	resp, _ := doRequest(t, http.MethodDelete, ts.URL+"/api/cruise/agents/a1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, ctrl.agents)
}

func TestHealthz(t *testing.T) {
	ctrl := &fakeController{running: true, agents: map[string]types.AgentConfig{}, registerOK: true}
	ts := newTestServer(t, ctrl, nil)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
