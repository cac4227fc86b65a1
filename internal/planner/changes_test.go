package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rextempo/liqpro/internal/types"
)

func newChangePlanner(recs *MockRecommendationSource) (*Planner, *time.Time, *sync.Mutex) {
	p := New(recs)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	p.nowFn = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return p, &now, &mu
}

func TestCheckForSignificantChanges_Thresholds(t *testing.T) {
	cases := []struct {
		name    string
		rec     types.PoolRecommendation
		reasons []string
	}{
		{"price above threshold", types.PoolRecommendation{PriceChange24h: 0.06}, []string{"price"}},
		{"negative price move", types.PoolRecommendation{PriceChange24h: -0.08}, []string{"price"}},
		{"volume above threshold", types.PoolRecommendation{VolumeChange: 0.25}, []string{"volume"}},
		{"liquidity above threshold", types.PoolRecommendation{LiquidityChange: -0.15}, []string{"liquidity"}},
		{"all thresholds", types.PoolRecommendation{PriceChange24h: 0.1, VolumeChange: 0.3, LiquidityChange: 0.2}, []string{"price", "volume", "liquidity"}},
		{"all below thresholds", types.PoolRecommendation{PriceChange24h: 0.05, VolumeChange: 0.2, LiquidityChange: 0.1}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recs := new(MockRecommendationSource)
			recs.On("GetRecommendation", mock.Anything, "P1").Return(tc.rec, true, nil)
			p, _, _ := newChangePlanner(recs)

			changes, err := p.CheckForSignificantChanges(context.Background(), "agent-1",
				[]types.Position{{PoolAddress: "P1", ValueSol: 1}})
			require.NoError(t, err)
			if tc.reasons == nil {
				assert.Empty(t, changes)
				return
			}
			require.Len(t, changes, 1)
			assert.Equal(t, "P1", changes[0].PoolAddress)
			assert.Equal(t, tc.reasons, changes[0].Reasons)
		})
	}
}

func TestCheckForSignificantChanges_CacheHitSkipsLookup(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").
		Return(types.PoolRecommendation{PriceChange24h: 0.06}, true, nil).Once()
	p, now, mu := newChangePlanner(recs)

	positions := []types.Position{{PoolAddress: "P1", ValueSol: 1}}

	changes, err := p.CheckForSignificantChanges(context.Background(), "agent-1", positions)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	// 20 minutes later the entry is still fresh; the source must not be
	// queried again and the pool is still flagged.
	mu.Lock()
	*now = now.Add(20 * time.Minute)
	mu.Unlock()

	changes, err = p.CheckForSignificantChanges(context.Background(), "agent-1", positions)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	recs.AssertNumberOfCalls(t, "GetRecommendation", 1)
}

func TestCheckForSignificantChanges_CacheExpiresAfterTTL(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").
		Return(types.PoolRecommendation{PriceChange24h: 0.06}, true, nil).Twice()
	p, now, mu := newChangePlanner(recs)

	positions := []types.Position{{PoolAddress: "P1", ValueSol: 1}}

	_, err := p.CheckForSignificantChanges(context.Background(), "agent-1", positions)
	require.NoError(t, err)

	mu.Lock()
	*now = now.Add(31 * time.Minute)
	mu.Unlock()

	_, err = p.CheckForSignificantChanges(context.Background(), "agent-1", positions)
	require.NoError(t, err)
	recs.AssertNumberOfCalls(t, "GetRecommendation", 2)
}

func TestCheckForSignificantChanges_LookupFailureSkipsPool(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").
		Return(types.PoolRecommendation{}, false, errors.New("timeout"))
	recs.On("GetRecommendation", mock.Anything, "P2").
		Return(types.PoolRecommendation{VolumeChange: 0.5}, true, nil)
	p, _, _ := newChangePlanner(recs)

	changes, err := p.CheckForSignificantChanges(context.Background(), "agent-1", []types.Position{
		{PoolAddress: "P1", ValueSol: 1},
		{PoolAddress: "P2", ValueSol: 2},
	})
	require.NoError(t, err)
	require.Len(t, changes, 1, "failing pool is skipped, healthy pool still evaluated")
	assert.Equal(t, "P2", changes[0].PoolAddress)
}
