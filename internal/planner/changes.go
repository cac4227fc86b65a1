package planner

import (
	"context"

	"github.com/rextempo/liqpro/internal/logger"
	"github.com/rextempo/liqpro/internal/types"
)

const (
	priceChangeThreshold     = 0.05
	volumeChangeThreshold    = 0.2
	liquidityChangeThreshold = 0.1
)

// CheckForSignificantChanges flags held pools whose market moved past any
// threshold since the scoring service's window. Recommendations are cached
// per pool for the cache TTL (30 minutes) to bound collaborator call volume;
// a pool whose lookup fails is skipped for this cycle, not treated as a
// change.
func (p *Planner) CheckForSignificantChanges(ctx context.Context, agentID string, positions []types.Position) ([]types.SignificantChange, error) {
	var changes []types.SignificantChange
	for _, pos := range positions {
		rec, ok, err := p.cachedRecommendation(ctx, pos.PoolAddress)
		if err != nil {
			logger.Warnf("Planner: change check agent=%s pool=%s lookup failed: %v",
				agentID, pos.PoolAddress, err)
			continue
		}
		if !ok {
			continue
		}
		change := evaluateChange(pos.PoolAddress, rec)
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

func evaluateChange(poolAddress string, rec types.PoolRecommendation) *types.SignificantChange {
	var reasons []string
	if abs(rec.PriceChange24h) > priceChangeThreshold {
		reasons = append(reasons, "price")
	}
	if abs(rec.VolumeChange) > volumeChangeThreshold {
		reasons = append(reasons, "volume")
	}
	if abs(rec.LiquidityChange) > liquidityChangeThreshold {
		reasons = append(reasons, "liquidity")
	}
	if len(reasons) == 0 {
		return nil
	}
	return &types.SignificantChange{
		PoolAddress:     poolAddress,
		PriceChange24h:  rec.PriceChange24h,
		VolumeChange:    rec.VolumeChange,
		LiquidityChange: rec.LiquidityChange,
		Reasons:         reasons,
	}
}

// cachedRecommendation serves change detection from the per-pool cache,
// refreshing entries older than the TTL.
func (p *Planner) cachedRecommendation(ctx context.Context, poolAddress string) (types.PoolRecommendation, bool, error) {
	now := p.now()

	p.mu.Lock()
	entry, ok := p.cache[poolAddress]
	p.mu.Unlock()
	if ok && now.Sub(entry.fetchedAt) < p.cacheTTL {
		return entry.rec, true, nil
	}

	rec, found, err := p.recs.GetRecommendation(ctx, poolAddress)
	if err != nil {
		return types.PoolRecommendation{}, false, err
	}
	if !found {
		return types.PoolRecommendation{}, false, nil
	}

	p.mu.Lock()
	p.cache[poolAddress] = cachedRecommendation{rec: rec, fetchedAt: now}
	p.mu.Unlock()
	return rec, true, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
