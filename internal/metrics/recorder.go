// Package metrics counts cruise-loop activity for observability. Counters
// are purely additive and never feed back into control-flow decisions.
package metrics

import "sync"

type agentCounters struct {
	HealthCheckAttempts  int64
	HealthCheckSuccesses int64
	OptimizationAttempts int64
	OptimizationSuccess  int64
	ActionsSubmitted     int64
	ActionFailures       int64
	CapitalMovedSol      float64
	Emergencies          int64
}

// AgentSummary is a point-in-time copy of one agent's counters.
type AgentSummary struct {
	AgentID              string  `json:"agent_id"`
	HealthCheckAttempts  int64   `json:"health_check_attempts"`
	HealthCheckSuccesses int64   `json:"health_check_successes"`
	OptimizationAttempts int64   `json:"optimization_attempts"`
	OptimizationSuccess  int64   `json:"optimization_successes"`
	ActionsSubmitted     int64   `json:"actions_submitted"`
	ActionFailures       int64   `json:"action_failures"`
	CapitalMovedSol      float64 `json:"capital_moved_sol"`
	Emergencies          int64   `json:"emergencies"`
}

// Summary aggregates all agents plus global task totals.
type Summary struct {
	Agents           []AgentSummary `json:"agents"`
	TotalTasks       int            `json:"total_tasks"`
	EnabledTasks     int            `json:"enabled_tasks"`
	TotalActions     int64          `json:"total_actions"`
	TotalCapitalSol  float64        `json:"total_capital_moved_sol"`
	TotalEmergencies int64          `json:"total_emergencies"`
}

// Recorder is a mutex-guarded counter set, safe for use from task handler
// goroutines.
type Recorder struct {
	mu           sync.Mutex
	agents       map[string]*agentCounters
	order        []string
	totalTasks   int
	enabledTasks int
}

func NewRecorder() *Recorder {
	return &Recorder{agents: make(map[string]*agentCounters)}
}

func (r *Recorder) counters(agentID string) *agentCounters {
	c, ok := r.agents[agentID]
	if !ok {
		c = &agentCounters{}
		r.agents[agentID] = c
		r.order = append(r.order, agentID)
	}
	return c
}

// RecordHealthCheck counts one health-check attempt and its outcome.
func (r *Recorder) RecordHealthCheck(agentID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counters(agentID)
	c.HealthCheckAttempts++
	if ok {
		c.HealthCheckSuccesses++
	}
}

// RecordOptimization counts one optimization attempt; on success it also
// accumulates submitted actions, failures among them, and capital moved.
func (r *Recorder) RecordOptimization(agentID string, ok bool, actions, failures int, capitalSol float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counters(agentID)
	c.OptimizationAttempts++
	if !ok {
		return
	}
	c.OptimizationSuccess++
	c.ActionsSubmitted += int64(actions)
	c.ActionFailures += int64(failures)
	c.CapitalMovedSol += capitalSol
}

// RecordEmergency counts a below-threshold health score.
func (r *Recorder) RecordEmergency(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters(agentID).Emergencies++
}

// SetTaskTotals stores the scheduler's current task counts.
func (r *Recorder) SetTaskTotals(total, enabled int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalTasks = total
	r.enabledTasks = enabled
}

// Summary returns a point-in-time aggregate across all agents, in first-seen
// agent order.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := Summary{
		Agents:       make([]AgentSummary, 0, len(r.order)),
		TotalTasks:   r.totalTasks,
		EnabledTasks: r.enabledTasks,
	}
	for _, agentID := range r.order {
		c := r.agents[agentID]
		out.Agents = append(out.Agents, AgentSummary{
			AgentID:              agentID,
			HealthCheckAttempts:  c.HealthCheckAttempts,
			HealthCheckSuccesses: c.HealthCheckSuccesses,
			OptimizationAttempts: c.OptimizationAttempts,
			OptimizationSuccess:  c.OptimizationSuccess,
			ActionsSubmitted:     c.ActionsSubmitted,
			ActionFailures:       c.ActionFailures,
			CapitalMovedSol:      c.CapitalMovedSol,
			Emergencies:          c.Emergencies,
		})
		out.TotalActions += c.ActionsSubmitted
		out.TotalCapitalSol += c.CapitalMovedSol
		out.TotalEmergencies += c.Emergencies
	}
	return out
}
