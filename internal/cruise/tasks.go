package cruise

import (
	"context"
	"fmt"
	"time"

	"github.com/rextempo/liqpro/internal/logger"
)

// Fallbacks for agents registered with unset intervals and for unset
// Settings fields.
const (
	defaultHealthCheckInterval  = 5 * time.Minute
	defaultMarketCheckInterval  = 15 * time.Minute
	defaultOptimizationInterval = 4 * time.Hour

	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 2 * time.Minute
)

// Settings are the loop-wide knobs. Per-agent config overrides the interval
// fields; zero values fall back to the package defaults.
type Settings struct {
	HealthCheckInterval  time.Duration
	MarketCheckInterval  time.Duration
	OptimizationInterval time.Duration

	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.HealthCheckInterval <= 0 {
		s.HealthCheckInterval = defaultHealthCheckInterval
	}
	if s.MarketCheckInterval <= 0 {
		s.MarketCheckInterval = defaultMarketCheckInterval
	}
	if s.OptimizationInterval <= 0 {
		s.OptimizationInterval = defaultOptimizationInterval
	}
	if s.BreakerFailureThreshold <= 0 {
		s.BreakerFailureThreshold = defaultBreakerThreshold
	}
	if s.BreakerCooldown <= 0 {
		s.BreakerCooldown = defaultBreakerCooldown
	}
	return s
}

func taskID(agentID, kind string) string {
	return "agent:" + agentID + ":" + kind
}

// scheduleAgentTasks registers the three recurring tasks for one agent, all
// tagged with the agent id so unregistration can cancel them in one sweep.
func (c *Controller) scheduleAgentTasks(reg *registeredAgent) {
	agentID := reg.id
	cfg := reg.config

	health := minutesOr(cfg.HealthCheckIntervalMinutes, c.settings.HealthCheckInterval)
	market := minutesOr(cfg.MarketChangeCheckIntervalMinutes, c.settings.MarketCheckInterval)
	optimize := hoursOr(cfg.OptimizationIntervalHours, c.settings.OptimizationInterval)

	reg.taskIDs = []string{
		c.sched.ScheduleRecurringTask(taskID(agentID, "health-check"),
			c.guarded(reg, "health check", func(ctx context.Context) (bool, error) {
				return c.healthCheck(ctx, agentID)
			}), health, 0, agentID),

		c.sched.ScheduleRecurringTask(taskID(agentID, "market-check"),
			c.guarded(reg, "change check", func(ctx context.Context) (bool, error) {
				return c.checkChanges(ctx, agentID)
			}), market, 0, agentID),

		c.sched.ScheduleRecurringTask(taskID(agentID, "optimize"),
			c.guarded(reg, "optimization", func(ctx context.Context) (bool, error) {
				return c.optimize(ctx, agentID)
			}), optimize, 0, agentID),
	}
}

// guarded wraps a per-agent operation with the agent's circuit breaker so a
// persistently failing collaborator backs off instead of hammering every
// interval. Usage skips (stopped loop, inactive agent) are not failures.
func (c *Controller) guarded(reg *registeredAgent, name string, op func(context.Context) (bool, error)) func() error {
	return func() error {
		if !reg.breaker.Allow() {
			logger.Debugf("Cruise: breaker open, skipping %s for agent %s", name, reg.id)
			return nil
		}
		_, err := op(context.Background())
		if err != nil {
			reg.breaker.RecordFailure()
			return fmt.Errorf("%s for agent %s: %w", name, reg.id, err)
		}
		reg.breaker.RecordSuccess()
		return nil
	}
}

func minutesOr(minutes int, fallback time.Duration) time.Duration {
	if minutes <= 0 {
		return fallback
	}
	return time.Duration(minutes) * time.Minute
}

func hoursOr(hours int, fallback time.Duration) time.Duration {
	if hours <= 0 {
		return fallback
	}
	return time.Duration(hours) * time.Hour
}
