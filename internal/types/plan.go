package types

import "time"

// ActionType tags an optimization action variant.
type ActionType string

const (
	ActionRemovePosition ActionType = "remove_position"
	ActionAdjustPosition ActionType = "adjust_position"
	ActionAddPosition    ActionType = "add_position"
)

// OptimizationAction is one capital movement within a plan.
// Fields are populated per variant:
//   - remove_position: PoolAddress, AmountSol
//   - adjust_position: PoolAddress, CurrentAmountSol, TargetAmountSol, TargetBins
//   - add_position:    PoolAddress, AmountSol, TargetBins
type OptimizationAction struct {
	Type             ActionType  `json:"type"`
	PoolAddress      string      `json:"pool_address"`
	AmountSol        float64     `json:"amount_sol,omitempty"`
	CurrentAmountSol float64     `json:"current_amount_sol,omitempty"`
	TargetAmountSol  float64     `json:"target_amount_sol,omitempty"`
	TargetBins       []TargetBin `json:"target_bins,omitempty"`
}

// MovedSol returns the capital volume this action moves, for metrics.
func (a OptimizationAction) MovedSol() float64 {
	switch a.Type {
	case ActionAdjustPosition:
		diff := a.TargetAmountSol - a.CurrentAmountSol
		if diff < 0 {
			diff = -diff
		}
		return diff
	default:
		return a.AmountSol
	}
}

// OptimizationPlan is the ordered action set computed for one agent in one
// optimization cycle. Computed fresh every cycle, never reused.
type OptimizationPlan struct {
	ID                        string               `json:"id"`
	AgentID                   string               `json:"agent_id"`
	TotalValueSol             float64              `json:"total_value_sol"`
	Actions                   []OptimizationAction `json:"actions"`
	ExpectedHealthImprovement float64              `json:"expected_health_improvement"`
	CreatedAt                 time.Time            `json:"created_at"`
}

// Empty reports whether the plan carries no actions. An empty plan is a
// successful outcome, not an error.
func (p OptimizationPlan) Empty() bool {
	return len(p.Actions) == 0
}

// CapitalMovedSol sums the volume across all actions.
func (p OptimizationPlan) CapitalMovedSol() float64 {
	var total float64
	for _, a := range p.Actions {
		total += a.MovedSol()
	}
	return total
}

// SignificantChange flags a held pool whose market moved past thresholds.
type SignificantChange struct {
	PoolAddress     string   `json:"pool_address"`
	PriceChange24h  float64  `json:"price_change_24h"`
	VolumeChange    float64  `json:"volume_change"`
	LiquidityChange float64  `json:"liquidity_change"`
	Reasons         []string `json:"reasons"`
}

// UnhealthyPosition pairs a position with the recommendation data that
// flagged it.
type UnhealthyPosition struct {
	Position    Position             `json:"position"`
	HealthScore float64              `json:"health_score"`
	Action      RecommendationAction `json:"action"`
}
