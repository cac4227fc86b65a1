package engine

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, Options{})
	require.NoError(t, err)
	return c
}

func TestGetAgentState(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/agents/agent-1/state", r.URL.Path)
		w.Write([]byte(`{"state":"active","config":{"max_positions":5}}`))
	})

	snap, err := c.GetAgentState(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, types.AgentStateActive, snap.State)
	assert.Equal(t, 5, snap.Config.MaxPositions)
}

func TestGetAgentFunds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/agents/agent-1/funds", r.URL.Path)
		w.Write([]byte(`{"total_value_sol":12.5,"available_sol":2.5,"positions":[{"pool_address":"P1","value_sol":10}]}`))
	})

	funds, err := c.GetAgentFunds(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, funds.TotalValueSol, 1e-9)
	require.Len(t, funds.Positions, 1)
	assert.Equal(t, "P1", funds.Positions[0].PoolAddress)
}

func TestExecuteTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/transactions", r.URL.Path)
		var req interfaces.TransactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, types.ActionRemovePosition, req.Type)
		assert.Equal(t, "agent-1", req.AgentID)
		w.Write([]byte(`{"success":true,"signature":"5vX"}`))
	})

	res, err := c.ExecuteTransaction(context.Background(), interfaces.TransactionRequest{
		Type:    types.ActionRemovePosition,
		AgentID: "agent-1",
		Action:  types.OptimizationAction{Type: types.ActionRemovePosition, PoolAddress: "P1", AmountSol: 5},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "5vX", res.Signature)
}

func TestExecuteTransactionRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"insufficient balance"}`))
	})

	res, err := c.ExecuteTransaction(context.Background(), interfaces.TransactionRequest{})
	require.NoError(t, err, "a rejection is a result, not a transport error")
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient balance", res.Error)
}

func TestServerErrorSurfacesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "wallet locked", http.StatusConflict)
	})

	_, err := c.GetAgentFunds(context.Background(), "agent-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet locked")
}
