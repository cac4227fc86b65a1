// Package interfaces declares the collaborator contracts the cruise core
// consumes. The implementations live in the surrounding system (chain data
// collection, transaction building, risk scoring); the core only depends on
// these shapes.
package interfaces

import (
	"context"

	"github.com/rextempo/liqpro/internal/types"
)

// AgentHandle pairs an agent id with its configured policy.
type AgentHandle struct {
	ID     string
	Config types.AgentConfig
}

// AgentSnapshot is the state machine's view of one agent.
type AgentSnapshot struct {
	State  types.AgentState
	Config types.AgentConfig
}

// AgentStateMachine exposes agent lifecycle state owned elsewhere.
type AgentStateMachine interface {
	// GetActiveAgents returns every agent currently in an active state.
	GetActiveAgents(ctx context.Context) ([]AgentHandle, error)

	// GetAgentState returns the lifecycle snapshot for one agent.
	GetAgentState(ctx context.Context, agentID string) (AgentSnapshot, error)
}

// TransactionRequest wraps one optimization action for execution.
type TransactionRequest struct {
	Type    types.ActionType
	AgentID string
	Action  types.OptimizationAction
}

// TransactionResult reports a single execution outcome. The core observes
// it for metrics and logs but never retries on its own.
type TransactionResult struct {
	Success   bool
	Signature string
	Error     string
}

// TransactionExecutor submits capital-movement actions on-chain.
type TransactionExecutor interface {
	ExecuteTransaction(ctx context.Context, req TransactionRequest) (TransactionResult, error)
}

// FundsManager supplies per-agent funds snapshots. Snapshots are never
// cached by the core; every cycle re-fetches.
type FundsManager interface {
	GetAgentFunds(ctx context.Context, agentID string) (types.FundsStatus, error)
}

// RiskController computes risk assessments for an agent's holdings.
type RiskController interface {
	AssessRisk(ctx context.Context, agentID string) (types.RiskAssessment, error)
}

// RecommendationSource looks up per-pool guidance from the scoring service.
// A pool without a recommendation returns ok=false and no error; that pool
// is simply excluded from the current cycle.
type RecommendationSource interface {
	GetRecommendation(ctx context.Context, poolAddress string) (types.PoolRecommendation, bool, error)
}
