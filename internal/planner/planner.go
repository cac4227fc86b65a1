// Package planner is the pure decision engine of the cruise loop: funds +
// configuration + pool recommendations in, a bounded optimization plan out.
// It holds no agent state and submits nothing itself.
package planner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rextempo/liqpro/internal/cruise/interfaces"
	"github.com/rextempo/liqpro/internal/logger"
	"github.com/rextempo/liqpro/internal/pkg/solana"
	"github.com/rextempo/liqpro/internal/types"
)

const (
	// Positions below this score are unhealthy; below forcedReduceScore
	// they are trimmed even without an explicit reduce recommendation.
	unhealthyScore    = 3.0
	forcedReduceScore = 2.0

	// Default trim when a reduce recommendation carries no sizing hint.
	defaultTrimPct = 0.3

	// Placeholder improvement estimate per action. Any replacement must
	// stay non-negative and monotonic in the action count.
	improvementPerAction = 0.2

	defaultRecommendationTTL = 30 * time.Minute
)

type cachedRecommendation struct {
	rec       types.PoolRecommendation
	fetchedAt time.Time
}

// Planner computes rebalancing plans. The only state it keeps is a bounded
// per-pool recommendation cache used by change detection.
type Planner struct {
	recs interfaces.RecommendationSource

	mu       sync.Mutex
	cache    map[string]cachedRecommendation
	cacheTTL time.Duration
	nowFn    func() time.Time
}

func New(recs interfaces.RecommendationSource) *Planner {
	return NewWithTTL(recs, defaultRecommendationTTL)
}

// NewWithTTL builds a planner whose recommendation cache expires after ttl.
// A non-positive ttl falls back to the default.
func NewWithTTL(recs interfaces.RecommendationSource, ttl time.Duration) *Planner {
	if ttl <= 0 {
		ttl = defaultRecommendationTTL
	}
	return &Planner{
		recs:     recs,
		cache:    make(map[string]cachedRecommendation),
		cacheTTL: ttl,
		nowFn:    time.Now,
	}
}

// CalculateOptimalPositions computes an ordered action set for the agent's
// current holdings. An empty plan is a valid, successful result; an error is
// returned only when the recommendation source itself fails.
func (p *Planner) CalculateOptimalPositions(ctx context.Context, agentID string, funds types.FundsStatus, cfg types.AgentConfig) (types.OptimizationPlan, error) {
	plan := types.OptimizationPlan{
		ID:            uuid.NewString(),
		AgentID:       agentID,
		TotalValueSol: funds.TotalValueSol,
		CreatedAt:     p.now(),
	}

	// The reserve is sacrosanct: with nothing deployable there is nothing
	// to decide, regardless of what the recommendations say.
	if funds.AvailableSol <= cfg.MinSolBalance {
		logger.Debugf("Planner: agent=%s available=%.4f <= reserve=%.4f, empty plan",
			agentID, funds.AvailableSol, cfg.MinSolBalance)
		return plan, nil
	}

	recsByPool, err := p.fetchRecommendations(ctx, funds.Positions)
	if err != nil {
		return types.OptimizationPlan{}, fmt.Errorf("planner: recommendations for agent %s: %w", agentID, err)
	}

	var freedSol float64
	reductions := 0
	for _, pos := range funds.Positions {
		rec, ok := recsByPool[pos.PoolAddress]
		if !ok {
			continue
		}
		if rec.Action != types.RecommendationReduce && rec.HealthScore >= forcedReduceScore {
			continue
		}
		pct := rec.AdjustmentPercentage
		if pct <= 0 {
			pct = defaultTrimPct
		}
		amount := solana.TrimAmount(pos.ValueSol, pct)
		if amount <= 0 {
			continue
		}
		plan.Actions = append(plan.Actions, types.OptimizationAction{
			Type:        types.ActionRemovePosition,
			PoolAddress: pos.PoolAddress,
			AmountSol:   amount,
		})
		freedSol += amount
		reductions++
	}

	for _, pos := range funds.Positions {
		rec, ok := recsByPool[pos.PoolAddress]
		if !ok || rec.Action != types.RecommendationRebalance || len(rec.TargetBins) == 0 {
			continue
		}
		pct := rec.AdjustmentPercentage
		if pct <= 0 {
			pct = 1.0
		}
		plan.Actions = append(plan.Actions, types.OptimizationAction{
			Type:             types.ActionAdjustPosition,
			PoolAddress:      pos.PoolAddress,
			CurrentAmountSol: pos.ValueSol,
			TargetAmountSol:  solana.RoundAmount(pos.ValueSol * pct),
			TargetBins:       rec.TargetBins,
		})
	}

	deployable := solana.DeployableAmount(funds.AvailableSol+freedSol, cfg.MinSolBalance)
	openSlots := cfg.MaxPositions - (len(funds.Positions) - reductions)
	if deployable > 0 && openSlots > 0 {
		plan.Actions = append(plan.Actions, p.selectNewPools(agentID, deployable, openSlots)...)
	}

	plan.ExpectedHealthImprovement = float64(len(plan.Actions)) * improvementPerAction
	return plan, nil
}

// selectNewPools would pick new pools to enter with freed or idle capital.
// Pool entry selection is owned by the scoring subsystem and has no criteria
// here yet, so this deliberately produces no actions.
func (p *Planner) selectNewPools(agentID string, deployableSol float64, openSlots int) []types.OptimizationAction {
	logger.Debugf("Planner: agent=%s deployable=%.4f slots=%d, no pool entry criteria, skipping additions",
		agentID, deployableSol, openSlots)
	return nil
}

// IdentifyUnhealthyPositions filters positions to those the scoring service
// flags (health below 3.0 or an explicit reduce), worst first. Positions
// without a recommendation are excluded, not defaulted to unhealthy.
func (p *Planner) IdentifyUnhealthyPositions(ctx context.Context, positions []types.Position, risk types.RiskAssessment) ([]types.UnhealthyPosition, error) {
	var out []types.UnhealthyPosition
	for _, pos := range positions {
		rec, ok, err := p.recs.GetRecommendation(ctx, pos.PoolAddress)
		if err != nil {
			return nil, fmt.Errorf("planner: recommendation for pool %s: %w", pos.PoolAddress, err)
		}
		if !ok {
			continue
		}
		if rec.HealthScore >= unhealthyScore && rec.Action != types.RecommendationReduce {
			continue
		}
		out = append(out, types.UnhealthyPosition{
			Position:    pos,
			HealthScore: rec.HealthScore,
			Action:      rec.Action,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HealthScore < out[j].HealthScore
	})
	if len(out) > 0 {
		logger.Debugf("Planner: %d/%d positions unhealthy (agent risk level=%s)",
			len(out), len(positions), risk.RiskLevel)
	}
	return out, nil
}

func (p *Planner) fetchRecommendations(ctx context.Context, positions []types.Position) (map[string]types.PoolRecommendation, error) {
	out := make(map[string]types.PoolRecommendation, len(positions))
	for _, pos := range positions {
		rec, ok, err := p.recs.GetRecommendation(ctx, pos.PoolAddress)
		if err != nil {
			return nil, err
		}
		if !ok {
			logger.Debugf("Planner: no recommendation for pool %s, excluded this cycle", pos.PoolAddress)
			continue
		}
		out[pos.PoolAddress] = rec
	}
	return out, nil
}

func (p *Planner) now() time.Time {
	if p.nowFn != nil {
		return p.nowFn()
	}
	return time.Now()
}
