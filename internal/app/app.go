package app

import (
	"context"
	"fmt"

	"github.com/rextempo/liqpro/internal/config"
	"github.com/rextempo/liqpro/internal/cruise"
	"github.com/rextempo/liqpro/internal/logger"
	"github.com/rextempo/liqpro/internal/roster"
	"github.com/rextempo/liqpro/internal/store/cruiselog"
	"github.com/rextempo/liqpro/internal/store/healthlog"
	"github.com/rextempo/liqpro/internal/transport/http/admin"

	"golang.org/x/sync/errgroup"
)

// App wires the cruise controller, roster, stores and admin surface together
// and owns their lifecycle.
type App struct {
	cfg         *config.Config
	ctrl        *cruise.Controller
	roster      *roster.Registry
	admin       *admin.Server
	planStore   *cruiselog.Store
	healthStore *healthlog.Store
}

// NewApp builds the application object from config (does not start it).
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, opts...)
}

// Run starts the controller and admin server and blocks until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	a.ctrl.Start()
	defer a.ctrl.Stop()
	defer a.closeStores()

	a.registerRosterAgents(ctx, a.roster.Snapshot())
	a.roster.Subscribe(func(snap roster.Snapshot) {
		logger.Infof("roster reloaded (version %d), reconciling agents", snap.Version)
		a.reconcileRoster(snap)
	})

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.admin.Start(ctx); err != nil {
			return fmt.Errorf("admin http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		return nil
	})

	return group.Wait()
}

// Controller exposes the cruise controller (for testing/replay harnesses).
func (a *App) Controller() *cruise.Controller {
	if a == nil {
		return nil
	}
	return a.ctrl
}

// registerRosterAgents registers every agent the roster declares. A single
// bad agent must not keep the rest of the fleet from cruising.
func (a *App) registerRosterAgents(ctx context.Context, snap roster.Snapshot) {
	for _, id := range snap.AgentIDs() {
		if ctx.Err() != nil {
			return
		}
		if ok := a.ctrl.RegisterAgent(id, snap.Agents[id]); !ok {
			logger.Warnf("agent %s not registered, skipping", id)
			continue
		}
		logger.Infof("✓ agent %s under cruise control", id)
	}
}

// reconcileRoster brings the controller's registrations in line with a fresh
// roster snapshot: new agents join, removed agents leave, changed agents are
// re-registered so the new policy takes effect.
func (a *App) reconcileRoster(snap roster.Snapshot) {
	current := make(map[string]bool)
	for _, h := range a.ctrl.RegisteredAgents() {
		current[h.ID] = true
	}
	for id := range current {
		if _, ok := snap.Agents[id]; !ok {
			a.ctrl.UnregisterAgent(id)
			logger.Infof("agent %s removed from roster, unregistered", id)
		}
	}
	for _, id := range snap.AgentIDs() {
		if current[id] {
			a.ctrl.UnregisterAgent(id)
		}
		if ok := a.ctrl.RegisterAgent(id, snap.Agents[id]); !ok {
			logger.Warnf("agent %s not re-registered after roster reload", id)
		}
	}
}

func (a *App) closeStores() {
	if a.planStore != nil {
		if err := a.planStore.Close(); err != nil {
			logger.Warnf("close cruise log store: %v", err)
		}
	}
	if a.healthStore != nil {
		if err := a.healthStore.Close(); err != nil {
			logger.Warnf("close health log store: %v", err)
		}
	}
}
