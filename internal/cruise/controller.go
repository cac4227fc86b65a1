// Package cruise is the top-level control loop: it owns the task scheduler,
// drives per-agent recurring checks and turns planner output into submitted
// transactions. It degrades to "skip this cycle" on any collaborator
// failure; one agent's outage never affects the others.
package cruise

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rextempo/liqpro/internal/cruise/interfaces"
	"github.com/rextempo/liqpro/internal/logger"
	"github.com/rextempo/liqpro/internal/metrics"
	"github.com/rextempo/liqpro/internal/pkg/circuit"
	"github.com/rextempo/liqpro/internal/planner"
	"github.com/rextempo/liqpro/internal/scheduler"
	"github.com/rextempo/liqpro/internal/types"
)

// EmergencyHandler is invoked when a health check lands below the agent's
// emergency threshold. Emergency handling itself (deleveraging, alerting)
// belongs to the surrounding system.
type EmergencyHandler func(ctx context.Context, agentID string, assessment types.RiskAssessment) error

// HealthCheckRecord is what gets persisted per performed health check.
type HealthCheckRecord struct {
	AgentID       string
	HealthScore   float64
	RiskLevel     string
	TotalValueSol float64
	AvailableSol  float64
	Emergency     bool
	Warnings      []string
	CheckedAt     time.Time
}

// ActionOutcome pairs one submitted action with its execution result.
type ActionOutcome struct {
	Action    types.OptimizationAction
	Success   bool
	Signature string
	Error     string
}

// PlanLog persists executed plans. Optional; a nil log is a no-op and
// persistence failures never affect control flow.
type PlanLog interface {
	RecordPlan(ctx context.Context, plan types.OptimizationPlan, outcomes []ActionOutcome) error
}

// HealthLog persists health-check records. Optional, same contract as PlanLog.
type HealthLog interface {
	RecordHealthCheck(ctx context.Context, rec HealthCheckRecord) error
}

type registeredAgent struct {
	id      string
	config  types.AgentConfig
	taskIDs []string
	breaker *circuit.CircuitBreaker

	// Serializes optimization runs for this agent; concurrent runs would
	// race on stale funds snapshots. Different agents stay independent.
	optMu sync.Mutex
}

// Params wires a Controller. States, Funds, Risk, Executor and Planner are
// required; the rest default or stay off when nil.
type Params struct {
	States   interfaces.AgentStateMachine
	Funds    interfaces.FundsManager
	Risk     interfaces.RiskController
	Executor interfaces.TransactionExecutor
	Planner  *planner.Planner

	Scheduler *scheduler.Scheduler
	Metrics   *metrics.Recorder
	PlanLog   PlanLog
	HealthLog HealthLog
	Emergency EmergencyHandler
	Settings  Settings
}

// Controller runs the cruise loop. Lifecycle is stopped -> running ->
// stopped; Start and Stop are idempotent.
type Controller struct {
	states   interfaces.AgentStateMachine
	funds    interfaces.FundsManager
	risk     interfaces.RiskController
	executor interfaces.TransactionExecutor
	planner  *planner.Planner

	sched     *scheduler.Scheduler
	metrics   *metrics.Recorder
	planLog   PlanLog
	healthLog HealthLog
	emergency EmergencyHandler
	settings  Settings

	mu      sync.Mutex
	running bool
	agents  map[string]*registeredAgent
}

func NewController(p Params) *Controller {
	sched := p.Scheduler
	if sched == nil {
		sched = scheduler.New()
	}
	rec := p.Metrics
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	return &Controller{
		states:    p.States,
		funds:     p.Funds,
		risk:      p.Risk,
		executor:  p.Executor,
		planner:   p.Planner,
		sched:     sched,
		metrics:   rec,
		planLog:   p.PlanLog,
		healthLog: p.HealthLog,
		emergency: p.Emergency,
		settings:  p.Settings.withDefaults(),
	}
}

// Start begins the scheduler tick. No-op when already running.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	if c.agents == nil {
		c.agents = make(map[string]*registeredAgent)
	}
	c.sched.Start()
	c.running = true
	logger.Infof("Cruise: started")
}

// Stop halts the scheduler tick. Registered agents are kept; their tasks
// simply stop firing. In-flight handlers finish on their own. No-op when
// already stopped.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.sched.Stop()
	c.running = false
	logger.Infof("Cruise: stopped")
}

// Running reports the lifecycle state.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// RegisterAgent stores the agent and schedules its three recurring tasks.
// Returns false while stopped. Registering an already-registered id returns
// true without re-scheduling.
func (c *Controller) RegisterAgent(agentID string, cfg types.AgentConfig) bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		logger.Warnf("Cruise: register %s rejected, not running", agentID)
		return false
	}
	if _, exists := c.agents[agentID]; exists {
		c.mu.Unlock()
		logger.Debugf("Cruise: agent %s already registered", agentID)
		return true
	}
	reg := &registeredAgent{
		id:      agentID,
		config:  cfg,
		breaker: circuit.NewCircuitBreaker("cruise."+agentID,
			c.settings.BreakerFailureThreshold, c.settings.BreakerCooldown),
	}
	c.agents[agentID] = reg
	c.mu.Unlock()

	c.scheduleAgentTasks(reg)
	c.syncTaskTotals()
	logger.Infof("Cruise: registered agent %s (%s) health=%dm market=%dm optimize=%dh",
		agentID, cfg.DisplayName(agentID),
		cfg.HealthCheckIntervalMinutes, cfg.MarketChangeCheckIntervalMinutes, cfg.OptimizationIntervalHours)
	return true
}

// UnregisterAgent cancels all of the agent's tasks and drops the record.
// Returns false while stopped; unregistering an unknown agent is a
// successful no-op.
func (c *Controller) UnregisterAgent(agentID string) bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		logger.Warnf("Cruise: unregister %s rejected, not running", agentID)
		return false
	}
	_, exists := c.agents[agentID]
	if exists {
		delete(c.agents, agentID)
	}
	c.mu.Unlock()
	if !exists {
		return true
	}

	cancelled := c.sched.CancelTasksByTag(agentID)
	c.syncTaskTotals()
	logger.Infof("Cruise: unregistered agent %s, cancelled %d tasks", agentID, cancelled)
	return true
}

// GetRegisteredAgentCount returns the live registration count.
func (c *Controller) GetRegisteredAgentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.agents)
}

// RegisteredAgents returns the current registrations sorted by id.
func (c *Controller) RegisteredAgents() []interfaces.AgentHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interfaces.AgentHandle, 0, len(c.agents))
	for _, reg := range c.agents {
		out = append(out, interfaces.AgentHandle{ID: reg.id, Config: reg.config})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PerformHealthCheck runs one health check. Returns false while stopped,
// for unknown agents, or when the check could not be performed; an agent in
// a non-active state short-circuits before any funds or risk calls.
func (c *Controller) PerformHealthCheck(ctx context.Context, agentID string) bool {
	ok, err := c.healthCheck(ctx, agentID)
	if err != nil {
		logger.Errorf("Cruise: health check agent=%s failed: %v", agentID, err)
	}
	return ok
}

func (c *Controller) healthCheck(ctx context.Context, agentID string) (bool, error) {
	reg, ok := c.lookupRunning(agentID)
	if !ok {
		return false, nil
	}

	state, err := c.states.GetAgentState(ctx, agentID)
	if err != nil {
		c.metrics.RecordHealthCheck(agentID, false)
		return false, fmt.Errorf("get state: %w", err)
	}
	if !state.State.IsActive() {
		logger.Debugf("Cruise: agent %s state=%s, skipping health check", agentID, state.State)
		return false, nil
	}

	funds, err := c.funds.GetAgentFunds(ctx, agentID)
	if err != nil {
		c.metrics.RecordHealthCheck(agentID, false)
		return false, fmt.Errorf("get funds: %w", err)
	}
	assessment, err := c.risk.AssessRisk(ctx, agentID)
	if err != nil {
		c.metrics.RecordHealthCheck(agentID, false)
		return false, fmt.Errorf("assess risk: %w", err)
	}

	emergency := assessment.HealthScore < reg.config.EmergencyThresholds.MinHealthScore
	c.metrics.RecordHealthCheck(agentID, true)
	c.recordHealthCheck(ctx, HealthCheckRecord{
		AgentID:       agentID,
		HealthScore:   assessment.HealthScore,
		RiskLevel:     assessment.RiskLevel,
		TotalValueSol: funds.TotalValueSol,
		AvailableSol:  funds.AvailableSol,
		Emergency:     emergency,
		Warnings:      assessment.Warnings,
		CheckedAt:     time.Now(),
	})

	if emergency {
		c.metrics.RecordEmergency(agentID)
		logger.Warnf("Cruise: EMERGENCY agent=%s health=%.2f below threshold=%.2f risk=%s",
			agentID, assessment.HealthScore, reg.config.EmergencyThresholds.MinHealthScore, assessment.RiskLevel)
		if c.emergency != nil {
			if err := c.emergency(ctx, agentID, assessment); err != nil {
				logger.Errorf("Cruise: emergency handler agent=%s: %v", agentID, err)
			}
		}
	} else {
		logger.Debugf("Cruise: health check agent=%s health=%.2f risk=%s total=%.4f",
			agentID, assessment.HealthScore, assessment.RiskLevel, funds.TotalValueSol)
	}
	return true, nil
}

// OptimizePositions plans and submits one rebalancing cycle. An empty plan
// is success; false means the agent is unknown, the loop is stopped, or
// fetching/planning failed. Per-agent runs are serialized; a failed action
// does not stop the remaining actions in the same plan.
func (c *Controller) OptimizePositions(ctx context.Context, agentID string) bool {
	ok, err := c.optimize(ctx, agentID)
	if err != nil {
		logger.Errorf("Cruise: optimize agent=%s failed: %v", agentID, err)
	}
	return ok
}

func (c *Controller) optimize(ctx context.Context, agentID string) (bool, error) {
	reg, ok := c.lookupRunning(agentID)
	if !ok {
		return false, nil
	}

	reg.optMu.Lock()
	defer reg.optMu.Unlock()

	funds, err := c.funds.GetAgentFunds(ctx, agentID)
	if err != nil {
		c.metrics.RecordOptimization(agentID, false, 0, 0, 0)
		return false, fmt.Errorf("get funds: %w", err)
	}

	plan, err := c.planner.CalculateOptimalPositions(ctx, agentID, funds, reg.config)
	if err != nil {
		c.metrics.RecordOptimization(agentID, false, 0, 0, 0)
		return false, err
	}
	if plan.Empty() {
		c.metrics.RecordOptimization(agentID, true, 0, 0, 0)
		logger.Debugf("Cruise: agent %s plan %s is empty, nothing to do", agentID, plan.ID)
		return true, nil
	}

	outcomes := make([]ActionOutcome, 0, len(plan.Actions))
	failures := 0
	for _, action := range plan.Actions {
		outcome := c.submitAction(ctx, agentID, action)
		if !outcome.Success {
			failures++
		}
		outcomes = append(outcomes, outcome)
	}

	c.metrics.RecordOptimization(agentID, true, len(plan.Actions), failures, plan.CapitalMovedSol())
	c.recordPlan(ctx, plan, outcomes)
	logger.Infof("Cruise: agent %s plan %s submitted actions=%d failures=%d moved=%.4f SOL expected_improvement=%.2f",
		agentID, plan.ID, len(plan.Actions), failures, plan.CapitalMovedSol(), plan.ExpectedHealthImprovement)
	return true, nil
}

func (c *Controller) submitAction(ctx context.Context, agentID string, action types.OptimizationAction) ActionOutcome {
	outcome := ActionOutcome{Action: action}
	res, err := c.executor.ExecuteTransaction(ctx, interfaces.TransactionRequest{
		Type:    action.Type,
		AgentID: agentID,
		Action:  action,
	})
	switch {
	case err != nil:
		outcome.Error = err.Error()
		logger.Warnf("Cruise: agent %s action %s pool=%s execution error: %v",
			agentID, action.Type, action.PoolAddress, err)
	case !res.Success:
		outcome.Error = res.Error
		logger.Warnf("Cruise: agent %s action %s pool=%s rejected: %s",
			agentID, action.Type, action.PoolAddress, res.Error)
	default:
		outcome.Success = true
		outcome.Signature = res.Signature
	}
	return outcome
}

// CheckForSignificantChanges runs market-change detection over the agent's
// current positions. A detected change schedules an immediate one-shot
// optimization task so the rebalance reuses per-agent serialization. The
// return value reports whether the check itself was performed.
func (c *Controller) CheckForSignificantChanges(ctx context.Context, agentID string) bool {
	ok, err := c.checkChanges(ctx, agentID)
	if err != nil {
		logger.Errorf("Cruise: change check agent=%s failed: %v", agentID, err)
	}
	return ok
}

func (c *Controller) checkChanges(ctx context.Context, agentID string) (bool, error) {
	if _, ok := c.lookupRunning(agentID); !ok {
		return false, nil
	}

	funds, err := c.funds.GetAgentFunds(ctx, agentID)
	if err != nil {
		return false, fmt.Errorf("get funds: %w", err)
	}
	changes, err := c.planner.CheckForSignificantChanges(ctx, agentID, funds.Positions)
	if err != nil {
		return false, err
	}
	if len(changes) == 0 {
		return true, nil
	}

	for _, change := range changes {
		logger.Infof("Cruise: agent %s pool %s moved significantly (%v) price=%.3f volume=%.3f liquidity=%.3f",
			agentID, change.PoolAddress, change.Reasons,
			change.PriceChange24h, change.VolumeChange, change.LiquidityChange)
	}
	c.sched.ScheduleTask(taskID(agentID, "optimize-now"), func() error {
		if !c.OptimizePositions(context.Background(), agentID) {
			return fmt.Errorf("out-of-cycle optimization for %s did not run", agentID)
		}
		return nil
	}, 0, agentID)
	return true, nil
}

// lookupRunning fetches a registration, requiring the loop to be running.
func (c *Controller) lookupRunning(agentID string) (*registeredAgent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil, false
	}
	reg, ok := c.agents[agentID]
	return reg, ok
}

func (c *Controller) syncTaskTotals() {
	c.metrics.SetTaskTotals(c.sched.GetTaskCount(), c.sched.GetEnabledTaskCount())
}

func (c *Controller) recordPlan(ctx context.Context, plan types.OptimizationPlan, outcomes []ActionOutcome) {
	if c.planLog == nil {
		return
	}
	if err := c.planLog.RecordPlan(ctx, plan, outcomes); err != nil {
		logger.Warnf("Cruise: plan log write failed for %s: %v", plan.ID, err)
	}
}

func (c *Controller) recordHealthCheck(ctx context.Context, rec HealthCheckRecord) {
	if c.healthLog == nil {
		return
	}
	if err := c.healthLog.RecordHealthCheck(ctx, rec); err != nil {
		logger.Warnf("Cruise: health log write failed for %s: %v", rec.AgentID, err)
	}
}
