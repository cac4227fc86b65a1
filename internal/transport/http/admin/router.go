package admin

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rextempo/liqpro/internal/cruise"
	"github.com/rextempo/liqpro/internal/cruise/interfaces"
	"github.com/rextempo/liqpro/internal/logger"
	"github.com/rextempo/liqpro/internal/metrics"
	"github.com/rextempo/liqpro/internal/store/cruiselog"
	"github.com/rextempo/liqpro/internal/types"
)

// Controller is the slice of the cruise loop the admin API drives.
type Controller interface {
	Running() bool
	RegisterAgent(agentID string, cfg types.AgentConfig) bool
	UnregisterAgent(agentID string) bool
	GetRegisteredAgentCount() int
	RegisteredAgents() []interfaces.AgentHandle
	PerformHealthCheck(ctx context.Context, agentID string) bool
	OptimizePositions(ctx context.Context, agentID string) bool
	CheckForSignificantChanges(ctx context.Context, agentID string) bool
}

// RosterSource resolves agent configs for manual registration.
type RosterSource interface {
	Agent(id string) (types.AgentConfig, bool)
}

// MetricsSource snapshots the loop counters.
type MetricsSource interface {
	Summary() metrics.Summary
}

// PlanHistory reads back executed plans.
type PlanHistory interface {
	RecentPlans(ctx context.Context, agentID string, limit int) ([]cruiselog.PlanRecord, error)
}

// HealthHistory reads back health checks.
type HealthHistory interface {
	Recent(ctx context.Context, agentID string, limit int) ([]cruise.HealthCheckRecord, error)
}

// Router mounts the cruise admin endpoints.
type Router struct {
	ctrl    Controller
	roster  RosterSource
	metrics MetricsSource
	plans   PlanHistory
	health  HealthHistory
}

func NewRouter(ctrl Controller, roster RosterSource, metrics MetricsSource, plans PlanHistory, health HealthHistory) *Router {
	return &Router{ctrl: ctrl, roster: roster, metrics: metrics, plans: plans, health: health}
}

// Register mounts the routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/agents", r.handleListAgents)
	group.POST("/agents/:id", r.handleRegisterAgent)
	group.DELETE("/agents/:id", r.handleUnregisterAgent)
	group.POST("/agents/:id/health-check", r.handleHealthCheck)
	group.POST("/agents/:id/optimize", r.handleOptimize)
	group.POST("/agents/:id/market-check", r.handleMarketCheck)
	if r.health != nil {
		group.GET("/agents/:id/health-history", r.handleHealthHistory)
	}
	if r.plans != nil {
		group.GET("/plans", r.handlePlans)
	}
	if r.metrics != nil {
		group.GET("/metrics", r.handleMetrics)
	}
}

func (r *Router) handleStatus(c *gin.Context) {
	payload := gin.H{
		"running":     r.ctrl.Running(),
		"agent_count": r.ctrl.GetRegisteredAgentCount(),
	}
	if r.metrics != nil {
		payload["metrics"] = r.metrics.Summary()
	}
	c.JSON(http.StatusOK, payload)
}

func (r *Router) handleListAgents(c *gin.Context) {
	agents := r.ctrl.RegisteredAgents()
	out := make([]gin.H, 0, len(agents))
	for _, a := range agents {
		out = append(out, gin.H{
			"id":     a.ID,
			"name":   a.Config.DisplayName(a.ID),
			"config": a.Config,
		})
	}
	c.JSON(http.StatusOK, gin.H{"agents": out})
}

// handleRegisterAgent registers a roster agent into the running loop. The
// config comes from the roster file, not the request body, so the API
// cannot introduce policies the file does not declare.
func (r *Router) handleRegisterAgent(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("id"))
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent id required"})
		return
	}
	if r.roster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "roster not available"})
		return
	}
	cfg, ok := r.roster.Agent(agentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not in roster"})
		return
	}
	if !r.ctrl.RegisterAgent(agentID, cfg) {
		c.JSON(http.StatusConflict, gin.H{"error": "cruise loop is not running"})
		return
	}
	logger.Infof("[api] registered agent %s ip=%s", agentID, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "agent_id": agentID})
}

func (r *Router) handleUnregisterAgent(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("id"))
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent id required"})
		return
	}
	if !r.ctrl.UnregisterAgent(agentID) {
		c.JSON(http.StatusConflict, gin.H{"error": "cruise loop is not running"})
		return
	}
	logger.Infof("[api] unregistered agent %s ip=%s", agentID, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "agent_id": agentID})
}

func (r *Router) handleHealthCheck(c *gin.Context) {
	r.runOperation(c, "health check", r.ctrl.PerformHealthCheck)
}

func (r *Router) handleOptimize(c *gin.Context) {
	r.runOperation(c, "optimize", r.ctrl.OptimizePositions)
}

func (r *Router) handleMarketCheck(c *gin.Context) {
	r.runOperation(c, "market check", r.ctrl.CheckForSignificantChanges)
}

func (r *Router) runOperation(c *gin.Context, name string, op func(context.Context, string) bool) {
	agentID := strings.TrimSpace(c.Param("id"))
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent id required"})
		return
	}
	ok := op(c.Request.Context(), agentID)
	logger.Infof("[api] manual %s agent=%s ok=%v ip=%s", name, agentID, ok, c.ClientIP())
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status":   "skipped",
			"agent_id": agentID,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "agent_id": agentID})
}

func (r *Router) handleHealthHistory(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("id"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := r.health.Recent(c.Request.Context(), agentID, limit)
	if err != nil {
		logger.Errorf("[api] health history failed agent=%s err=%v", agentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "checks": recs})
}

func (r *Router) handlePlans(c *gin.Context) {
	agentID := strings.TrimSpace(c.Query("agent_id"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := r.plans.RecentPlans(c.Request.Context(), agentID, limit)
	if err != nil {
		logger.Errorf("[api] plans query failed agent=%s err=%v", agentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": recs})
}

func (r *Router) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, r.metrics.Summary())
}
