package signals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rextempo/liqpro/internal/types"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, Options{APIKey: "test-key"})
	require.NoError(t, err)
	return srv, c
}

func TestGetRecommendation(t *testing.T) {
	var gotPath, gotAuth string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"health_score": 3.5,
			"action": "rebalance",
			"adjustment_percentage": 0.8,
			"target_bins": [{"bin_id": 12, "percentage": 0.6}, {"bin_id": 13, "percentage": 0.4}],
			"price_change_24h": 0.02,
			"volume_change": -0.1,
			"liquidity_change": 0.05
		}`))
	})

	rec, ok, err := c.GetRecommendation(context.Background(), "PoolAddr111")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "/api/v1/pools/PoolAddr111/recommendation", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.InDelta(t, 3.5, rec.HealthScore, 1e-9)
	assert.Equal(t, types.RecommendationRebalance, rec.Action)
	assert.InDelta(t, 0.8, rec.AdjustmentPercentage, 1e-9)
	require.Len(t, rec.TargetBins, 2)
	assert.Equal(t, 12, rec.TargetBins[0].BinID)
}

func TestGetRecommendationNotFound(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	rec, ok, err := c.GetRecommendation(context.Background(), "UnknownPool")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, rec)
}

func TestGetRecommendationServerError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, _, err := c.GetRecommendation(context.Background(), "PoolAddr111")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestGetRecommendationRejectsBadPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"not json", "nope", "invalid json"},
		{"missing score", `{"action": "maintain"}`, "health_score"},
		{"score out of range", `{"health_score": 9, "action": "maintain"}`, "health_score"},
		{"unknown action", `{"health_score": 3, "action": "yolo"}`, "action"},
		{"bad bins", `{"health_score": 3, "action": "rebalance", "target_bins": [{"percentage": 0.5}]}`, "bin_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})
			_, _, err := c.GetRecommendation(context.Background(), "PoolAddr111")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestGetRecommendationEmptyPool(t *testing.T) {
	c, err := NewClient("http://localhost:1", Options{})
	require.NoError(t, err)
	_, _, err = c.GetRecommendation(context.Background(), "  ")
	require.Error(t, err)
}
