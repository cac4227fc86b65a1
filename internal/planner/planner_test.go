package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rextempo/liqpro/internal/types"
)

type MockRecommendationSource struct {
	mock.Mock
}

func (m *MockRecommendationSource) GetRecommendation(ctx context.Context, poolAddress string) (types.PoolRecommendation, bool, error) {
	args := m.Called(ctx, poolAddress)
	return args.Get(0).(types.PoolRecommendation), args.Bool(1), args.Error(2)
}

func testConfig() types.AgentConfig {
	return types.AgentConfig{
		MaxPositions:                     5,
		MinSolBalance:                    1,
		TargetHealthScore:                4,
		HealthCheckIntervalMinutes:       5,
		MarketChangeCheckIntervalMinutes: 15,
		OptimizationIntervalHours:        4,
	}
}

func TestCalculateOptimalPositions_ReserveGuard(t *testing.T) {
	recs := new(MockRecommendationSource)
	p := New(recs)

	funds := types.FundsStatus{
		TotalValueSol: 11,
		AvailableSol:  1,
		Positions:     []types.Position{{PoolAddress: "P1", ValueSol: 10}},
	}

	plan, err := p.CalculateOptimalPositions(context.Background(), "agent-1", funds, testConfig())
	require.NoError(t, err)
	assert.True(t, plan.Empty(), "available <= reserve must yield an empty plan")
	assert.Equal(t, "agent-1", plan.AgentID)
	assert.Equal(t, float64(11), plan.TotalValueSol)
	assert.Zero(t, plan.ExpectedHealthImprovement)
	recs.AssertNotCalled(t, "GetRecommendation", mock.Anything, mock.Anything)
}

func TestCalculateOptimalPositions_ReduceRecommendation(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").Return(types.PoolRecommendation{
		HealthScore:          2.5,
		Action:               types.RecommendationReduce,
		AdjustmentPercentage: 0.5,
	}, true, nil)
	p := New(recs)

	funds := types.FundsStatus{
		TotalValueSol: 15,
		AvailableSol:  5,
		Positions:     []types.Position{{PoolAddress: "P1", ValueSol: 10}},
	}

	plan, err := p.CalculateOptimalPositions(context.Background(), "agent-1", funds, testConfig())
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	action := plan.Actions[0]
	assert.Equal(t, types.ActionRemovePosition, action.Type)
	assert.Equal(t, "P1", action.PoolAddress)
	assert.Equal(t, float64(5), action.AmountSol)
	assert.InDelta(t, 0.2, plan.ExpectedHealthImprovement, 1e-9)
}

func TestCalculateOptimalPositions_LowHealthDefaultTrim(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").Return(types.PoolRecommendation{
		HealthScore: 1.5,
		Action:      types.RecommendationMaintain,
	}, true, nil)
	p := New(recs)

	funds := types.FundsStatus{
		TotalValueSol: 30,
		AvailableSol:  10,
		Positions:     []types.Position{{PoolAddress: "P1", ValueSol: 20}},
	}

	plan, err := p.CalculateOptimalPositions(context.Background(), "agent-1", funds, testConfig())
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	action := plan.Actions[0]
	assert.Equal(t, types.ActionRemovePosition, action.Type)
	assert.InDelta(t, 6, action.AmountSol, 1e-9, "default trim is 30%")
	assert.GreaterOrEqual(t, action.AmountSol, float64(0))
	assert.LessOrEqual(t, action.AmountSol, float64(20))
}

func TestCalculateOptimalPositions_RebalanceWithBins(t *testing.T) {
	bins := []types.TargetBin{{BinID: 100, Percentage: 0.6}, {BinID: 101, Percentage: 0.4}}
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").Return(types.PoolRecommendation{
		HealthScore:          3.5,
		Action:               types.RecommendationRebalance,
		AdjustmentPercentage: 0.8,
		TargetBins:           bins,
	}, true, nil)
	recs.On("GetRecommendation", mock.Anything, "P2").Return(types.PoolRecommendation{
		HealthScore: 4,
		Action:      types.RecommendationRebalance,
		// No target bins: rebalance without a distribution is a no-op.
	}, true, nil)
	p := New(recs)

	funds := types.FundsStatus{
		TotalValueSol: 25,
		AvailableSol:  5,
		Positions: []types.Position{
			{PoolAddress: "P1", ValueSol: 10},
			{PoolAddress: "P2", ValueSol: 10},
		},
	}

	plan, err := p.CalculateOptimalPositions(context.Background(), "agent-1", funds, testConfig())
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	action := plan.Actions[0]
	assert.Equal(t, types.ActionAdjustPosition, action.Type)
	assert.Equal(t, "P1", action.PoolAddress)
	assert.Equal(t, float64(10), action.CurrentAmountSol)
	assert.InDelta(t, 8, action.TargetAmountSol, 1e-9)
	assert.Equal(t, bins, action.TargetBins)
}

func TestCalculateOptimalPositions_MissingRecommendationExcluded(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").Return(types.PoolRecommendation{}, false, nil)
	p := New(recs)

	funds := types.FundsStatus{
		TotalValueSol: 15,
		AvailableSol:  5,
		Positions:     []types.Position{{PoolAddress: "P1", ValueSol: 10}},
	}

	plan, err := p.CalculateOptimalPositions(context.Background(), "agent-1", funds, testConfig())
	require.NoError(t, err)
	assert.True(t, plan.Empty(), "pools without recommendations are skipped, not acted on")
}

func TestCalculateOptimalPositions_LookupErrorFails(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").
		Return(types.PoolRecommendation{}, false, errors.New("signal service down"))
	p := New(recs)

	funds := types.FundsStatus{
		TotalValueSol: 15,
		AvailableSol:  5,
		Positions:     []types.Position{{PoolAddress: "P1", ValueSol: 10}},
	}

	_, err := p.CalculateOptimalPositions(context.Background(), "agent-1", funds, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signal service down")
}

func TestCalculateOptimalPositions_AdditionPassIsStub(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").Return(types.PoolRecommendation{
		HealthScore:          1,
		Action:               types.RecommendationReduce,
		AdjustmentPercentage: 0.5,
	}, true, nil)
	p := New(recs)

	// Plenty of freed capital and open slots; the addition pass still
	// yields nothing because pool entry selection has no criteria.
	funds := types.FundsStatus{
		TotalValueSol: 110,
		AvailableSol:  10,
		Positions:     []types.Position{{PoolAddress: "P1", ValueSol: 100}},
	}

	plan, err := p.CalculateOptimalPositions(context.Background(), "agent-1", funds, testConfig())
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, types.ActionRemovePosition, plan.Actions[0].Type)
}

func TestIdentifyUnhealthyPositions_SortedWorstFirst(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").Return(types.PoolRecommendation{
		HealthScore: 2.8, Action: types.RecommendationMaintain,
	}, true, nil)
	recs.On("GetRecommendation", mock.Anything, "P2").Return(types.PoolRecommendation{
		HealthScore: 1.1, Action: types.RecommendationReduce,
	}, true, nil)
	recs.On("GetRecommendation", mock.Anything, "P3").Return(types.PoolRecommendation{
		HealthScore: 4.5, Action: types.RecommendationMaintain,
	}, true, nil)
	recs.On("GetRecommendation", mock.Anything, "P4").Return(types.PoolRecommendation{}, false, nil)
	p := New(recs)

	positions := []types.Position{
		{PoolAddress: "P1", ValueSol: 1},
		{PoolAddress: "P2", ValueSol: 2},
		{PoolAddress: "P3", ValueSol: 3},
		{PoolAddress: "P4", ValueSol: 4},
	}

	out, err := p.IdentifyUnhealthyPositions(context.Background(), positions, types.RiskAssessment{RiskLevel: "high"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "P2", out[0].Position.PoolAddress, "worst health first")
	assert.Equal(t, "P1", out[1].Position.PoolAddress)
}

func TestIdentifyUnhealthyPositions_ReduceActionAlwaysFlagged(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, "P1").Return(types.PoolRecommendation{
		HealthScore: 4.9, Action: types.RecommendationReduce,
	}, true, nil)
	p := New(recs)

	out, err := p.IdentifyUnhealthyPositions(context.Background(),
		[]types.Position{{PoolAddress: "P1", ValueSol: 1}}, types.RiskAssessment{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.RecommendationReduce, out[0].Action)
}

func TestCalculateOptimalPositions_PlanMetadata(t *testing.T) {
	recs := new(MockRecommendationSource)
	recs.On("GetRecommendation", mock.Anything, mock.Anything).
		Return(types.PoolRecommendation{HealthScore: 4, Action: types.RecommendationMaintain}, true, nil)
	p := New(recs)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.nowFn = func() time.Time { return fixed }

	funds := types.FundsStatus{
		TotalValueSol: 15,
		AvailableSol:  5,
		Positions:     []types.Position{{PoolAddress: "P1", ValueSol: 10}},
	}

	plan, err := p.CalculateOptimalPositions(context.Background(), "agent-1", funds, testConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, fixed, plan.CreatedAt)
}
