package types

import "strings"

// AgentState is the lifecycle state reported by the agent state machine.
type AgentState string

const (
	AgentStateActive  AgentState = "active"
	AgentStatePaused  AgentState = "paused"
	AgentStateStopped AgentState = "stopped"
)

// IsActive reports whether the agent may be acted on by the cruise loop.
func (s AgentState) IsActive() bool {
	return s == AgentStateActive
}

// EmergencyThresholds define when a health check escalates.
type EmergencyThresholds struct {
	MinHealthScore float64 `json:"min_health_score" yaml:"min_health_score" mapstructure:"min_health_score"`
	MaxDrawdown    float64 `json:"max_drawdown" yaml:"max_drawdown" mapstructure:"max_drawdown"`
}

// AgentConfig is the per-agent policy. It is treated as immutable once an
// agent has been registered; changing policy means unregister + re-register.
type AgentConfig struct {
	Name          string `json:"name,omitempty" yaml:"name" mapstructure:"name"`
	WalletAddress string `json:"wallet_address,omitempty" yaml:"wallet_address" mapstructure:"wallet_address"`

	MaxPositions      int     `json:"max_positions" yaml:"max_positions" mapstructure:"max_positions"`
	MinSolBalance     float64 `json:"min_sol_balance" yaml:"min_sol_balance" mapstructure:"min_sol_balance"`
	TargetHealthScore float64 `json:"target_health_score" yaml:"target_health_score" mapstructure:"target_health_score"`
	RiskTolerance     string  `json:"risk_tolerance" yaml:"risk_tolerance" mapstructure:"risk_tolerance"`

	HealthCheckIntervalMinutes       int `json:"health_check_interval_minutes" yaml:"health_check_interval_minutes" mapstructure:"health_check_interval_minutes"`
	MarketChangeCheckIntervalMinutes int `json:"market_change_check_interval_minutes" yaml:"market_change_check_interval_minutes" mapstructure:"market_change_check_interval_minutes"`
	OptimizationIntervalHours        int `json:"optimization_interval_hours" yaml:"optimization_interval_hours" mapstructure:"optimization_interval_hours"`

	EmergencyThresholds EmergencyThresholds `json:"emergency_thresholds" yaml:"emergency_thresholds" mapstructure:"emergency_thresholds"`
}

// DisplayName prefers the configured name, falling back to the agent id.
func (c AgentConfig) DisplayName(agentID string) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return agentID
}

// RiskAssessment is the risk controller's snapshot for one agent.
// Scores are on the collaborator's 0-5 scale, lower is worse.
type RiskAssessment struct {
	HealthScore     float64  `json:"health_score"`
	RiskLevel       string   `json:"risk_level"`
	Warnings        []string `json:"warnings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}
