package types

// Position is an agent's stake in one external liquidity pool.
type Position struct {
	PoolAddress string  `json:"pool_address"`
	ValueSol    float64 `json:"value_sol"`
	ValueUsd    float64 `json:"value_usd"`
}

// FundsStatus is a read-only funds snapshot supplied by the funds manager.
// The cruise core never caches it; every cycle re-fetches.
type FundsStatus struct {
	TotalValueSol float64    `json:"total_value_sol"`
	AvailableSol  float64    `json:"available_sol"`
	Positions     []Position `json:"positions"`
}

// PoolAddresses returns the pool addresses of all held positions, in order.
func (f FundsStatus) PoolAddresses() []string {
	out := make([]string, 0, len(f.Positions))
	for _, pos := range f.Positions {
		out = append(out, pos.PoolAddress)
	}
	return out
}

// RecommendationAction is the scoring service's guidance for one pool.
type RecommendationAction string

const (
	RecommendationMaintain  RecommendationAction = "maintain"
	RecommendationReduce    RecommendationAction = "reduce"
	RecommendationRebalance RecommendationAction = "rebalance"
)

// TargetBin describes a liquidity distribution target within a DLMM pool.
type TargetBin struct {
	BinID      int     `json:"bin_id"`
	Percentage float64 `json:"percentage"`
}

// PoolRecommendation is the per-pool signal consumed by the planner.
// HealthScore is 0-5 (lower = worse); change fields are fractional
// (0.05 = 5%) over the signal service's window.
type PoolRecommendation struct {
	HealthScore          float64              `json:"health_score"`
	Action               RecommendationAction `json:"action"`
	AdjustmentPercentage float64              `json:"adjustment_percentage"`
	TargetBins           []TargetBin          `json:"target_bins,omitempty"`
	PriceChange24h       float64              `json:"price_change_24h"`
	VolumeChange         float64              `json:"volume_change"`
	LiquidityChange      float64              `json:"liquidity_change"`
}
