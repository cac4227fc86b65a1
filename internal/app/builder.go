package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rextempo/liqpro/internal/config"
	"github.com/rextempo/liqpro/internal/cruise"
	"github.com/rextempo/liqpro/internal/cruise/interfaces"
	"github.com/rextempo/liqpro/internal/gateway/engine"
	"github.com/rextempo/liqpro/internal/gateway/signals"
	"github.com/rextempo/liqpro/internal/logger"
	"github.com/rextempo/liqpro/internal/metrics"
	"github.com/rextempo/liqpro/internal/planner"
	"github.com/rextempo/liqpro/internal/roster"
	"github.com/rextempo/liqpro/internal/scheduler"
	"github.com/rextempo/liqpro/internal/store/cruiselog"
	"github.com/rextempo/liqpro/internal/store/healthlog"
	"github.com/rextempo/liqpro/internal/transport/http/admin"
)

// AppBuilder assembles an App from config. The *Fn fields and overrides
// exist so tests and replay harnesses can swap pieces without touching the
// production wiring.
type AppBuilder struct {
	cfg *config.Config

	rosterFn      func(config.RosterConfig) (*roster.Registry, error)
	signalsFn     func(config.SignalsConfig) (interfaces.RecommendationSource, error)
	engineFn      func(config.EngineConfig) (*engine.Client, error)
	planStoreFn   func(config.StoreConfig) (*cruiselog.Store, error)
	healthStoreFn func(config.StoreConfig) (*healthlog.Store, error)

	statesOverride   interfaces.AgentStateMachine
	fundsOverride    interfaces.FundsManager
	riskOverride     interfaces.RiskController
	executorOverride interfaces.TransactionExecutor
	emergency        cruise.EmergencyHandler
}

type AppBuilderOption func(*AppBuilder)

// WithCollaborators replaces the engine gateway with explicit collaborator
// implementations.
func WithCollaborators(states interfaces.AgentStateMachine, funds interfaces.FundsManager,
	risk interfaces.RiskController, executor interfaces.TransactionExecutor) AppBuilderOption {
	return func(b *AppBuilder) {
		b.statesOverride = states
		b.fundsOverride = funds
		b.riskOverride = risk
		b.executorOverride = executor
	}
}

// WithEmergencyHandler installs the emergency escalation callback.
func WithEmergencyHandler(fn cruise.EmergencyHandler) AppBuilderOption {
	return func(b *AppBuilder) { b.emergency = fn }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		rosterFn:      buildRoster,
		signalsFn:     buildSignalsClient,
		engineFn:      buildEngineClient,
		planStoreFn:   buildPlanStore,
		healthStoreFn: buildHealthStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildRoster(cfg config.RosterConfig) (*roster.Registry, error) {
	if cfg.Watch {
		return roster.NewRegistry(cfg.Path)
	}
	return roster.NewStaticRegistry(cfg.Path)
}

func buildSignalsClient(cfg config.SignalsConfig) (interfaces.RecommendationSource, error) {
	return signals.NewClient(cfg.BaseURL, signals.Options{
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout(),
	})
}

func buildEngineClient(cfg config.EngineConfig) (*engine.Client, error) {
	return engine.NewClient(cfg.BaseURL, engine.Options{
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout(),
	})
}

func cruiseSettings(cfg config.CruiseConfig) cruise.Settings {
	return cruise.Settings{
		HealthCheckInterval:     time.Duration(cfg.HealthCheckIntervalMinutes) * time.Minute,
		MarketCheckInterval:     time.Duration(cfg.MarketChangeCheckIntervalMinutes) * time.Minute,
		OptimizationInterval:    time.Duration(cfg.OptimizationIntervalHours) * time.Hour,
		BreakerFailureThreshold: cfg.BreakerFailureThreshold,
		BreakerCooldown:         cfg.BreakerCooldown(),
	}
}

func buildPlanStore(cfg config.StoreConfig) (*cruiselog.Store, error) {
	return cruiselog.NewStore(cfg.CruiseLogPath)
}

func buildHealthStore(cfg config.StoreConfig) (*healthlog.Store, error) {
	return healthlog.NewStore(cfg.HealthLogPath)
}

// Build assembles the full application without starting anything.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	reg, err := b.rosterFn(cfg.Roster)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	logger.Infof("✓ roster loaded: %d agents from %s", len(reg.Snapshot().Agents), cfg.Roster.Path)

	recs, err := b.signalsFn(cfg.Signals)
	if err != nil {
		return nil, fmt.Errorf("signals client: %w", err)
	}

	states, funds, risk, executor, err := b.collaborators(cfg)
	if err != nil {
		return nil, err
	}

	planStore, err := b.planStoreFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("cruise log store: %w", err)
	}
	healthStore, err := b.healthStoreFn(cfg.Store)
	if err != nil {
		planStore.Close()
		return nil, fmt.Errorf("health log store: %w", err)
	}

	rec := metrics.NewRecorder()
	pln := planner.NewWithTTL(recs, cfg.Signals.CacheTTL())
	sched := scheduler.New()
	ctrl := cruise.NewController(cruise.Params{
		States:    states,
		Funds:     funds,
		Risk:      risk,
		Executor:  executor,
		Planner:   pln,
		Scheduler: sched,
		Metrics:   rec,
		PlanLog:   planStore,
		HealthLog: healthStore,
		Emergency: b.emergency,
		Settings:  cruiseSettings(cfg.Cruise),
	})

	adminSrv, err := admin.NewServer(admin.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Controller: ctrl,
		Roster:     reg,
		Metrics:    rec,
		Plans:      planStore,
		Health:     healthStore,
	})
	if err != nil {
		planStore.Close()
		healthStore.Close()
		return nil, fmt.Errorf("admin server: %w", err)
	}

	return &App{
		cfg:         cfg,
		ctrl:        ctrl,
		roster:      reg,
		admin:       adminSrv,
		planStore:   planStore,
		healthStore: healthStore,
	}, nil
}

func (b *AppBuilder) collaborators(cfg *config.Config) (interfaces.AgentStateMachine, interfaces.FundsManager, interfaces.RiskController, interfaces.TransactionExecutor, error) {
	if b.statesOverride != nil || b.fundsOverride != nil || b.riskOverride != nil || b.executorOverride != nil {
		if b.statesOverride == nil || b.fundsOverride == nil || b.riskOverride == nil || b.executorOverride == nil {
			return nil, nil, nil, nil, fmt.Errorf("collaborator overrides must be set together")
		}
		return b.statesOverride, b.fundsOverride, b.riskOverride, b.executorOverride, nil
	}
	eng, err := b.engineFn(cfg.Engine)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("engine client: %w", err)
	}
	return eng, eng, eng, eng, nil
}
