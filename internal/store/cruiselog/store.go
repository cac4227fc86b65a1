// Package cruiselog persists executed optimization plans so operators can
// audit what the loop did and why.
package cruiselog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rextempo/liqpro/internal/cruise"
	"github.com/rextempo/liqpro/internal/types"
)

// Store implements cruise.PlanLog on SQLite via Gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("cruise log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&planModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep a little parallelism for concurrent HTTP reads
	// while the loop writes.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ cruise.PlanLog = (*Store)(nil)

// PlanRecord is the read-side view of one executed plan.
type PlanRecord struct {
	PlanID              string             `json:"plan_id"`
	AgentID             string             `json:"agent_id"`
	TotalValueSol       float64            `json:"total_value_sol"`
	CapitalMovedSol     float64            `json:"capital_moved_sol"`
	ExpectedImprovement float64            `json:"expected_improvement"`
	Actions             []PlanActionRecord `json:"actions"`
	Failures            int                `json:"failures"`
	CreatedAt           time.Time          `json:"created_at"`
}

// PlanActionRecord is one action of a plan together with its outcome.
type PlanActionRecord struct {
	Type             string            `json:"type"`
	PoolAddress      string            `json:"pool_address"`
	AmountSol        float64           `json:"amount_sol,omitempty"`
	CurrentAmountSol float64           `json:"current_amount_sol,omitempty"`
	TargetAmountSol  float64           `json:"target_amount_sol,omitempty"`
	TargetBins       []types.TargetBin `json:"target_bins,omitempty"`
	Success          bool              `json:"success"`
	Signature        string            `json:"signature,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// RecordPlan stores a plan and its per-action outcomes as one row.
func (s *Store) RecordPlan(ctx context.Context, plan types.OptimizationPlan, outcomes []cruise.ActionOutcome) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("cruise log store not initialized")
	}
	if strings.TrimSpace(plan.ID) == "" {
		return fmt.Errorf("plan id cannot be empty")
	}
	actions := make([]PlanActionRecord, 0, len(outcomes))
	failures := 0
	for _, o := range outcomes {
		if !o.Success {
			failures++
		}
		actions = append(actions, PlanActionRecord{
			Type:             string(o.Action.Type),
			PoolAddress:      o.Action.PoolAddress,
			AmountSol:        o.Action.AmountSol,
			CurrentAmountSol: o.Action.CurrentAmountSol,
			TargetAmountSol:  o.Action.TargetAmountSol,
			TargetBins:       o.Action.TargetBins,
			Success:          o.Success,
			Signature:        o.Signature,
			Error:            o.Error,
		})
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	model := planModel{
		PlanID:              plan.ID,
		AgentID:             plan.AgentID,
		TotalValueSol:       plan.TotalValueSol,
		CapitalMovedSol:     plan.CapitalMovedSol(),
		ExpectedImprovement: plan.ExpectedHealthImprovement,
		ActionCount:         len(actions),
		Failures:            failures,
		Actions:             datatypes.JSON(actionsJSON),
		CreatedAtUnix:       createdAt.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// RecentPlans lists the latest plans, newest first. An empty agentID lists
// across all agents.
func (s *Store) RecentPlans(ctx context.Context, agentID string, limit int) ([]PlanRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("cruise log store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&planModel{})
	if id := strings.TrimSpace(agentID); id != "" {
		query = query.Where("agent_id = ?", id)
	}
	var models []planModel
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]PlanRecord, 0, len(models))
	for _, m := range models {
		out = append(out, planModelToRecord(m))
	}
	return out, nil
}

type planModel struct {
	ID                  int64          `gorm:"column:id;primaryKey"`
	PlanID              string         `gorm:"column:plan_uuid;index"`
	AgentID             string         `gorm:"column:agent_id;index"`
	TotalValueSol       float64        `gorm:"column:total_value_sol"`
	CapitalMovedSol     float64        `gorm:"column:capital_moved_sol"`
	ExpectedImprovement float64        `gorm:"column:expected_improvement"`
	ActionCount         int            `gorm:"column:action_count"`
	Failures            int            `gorm:"column:failures"`
	Actions             datatypes.JSON `gorm:"column:actions_json"`
	CreatedAtUnix       int64          `gorm:"column:created_at;index"`
}

func (planModel) TableName() string { return "cruise_plans" }

func planModelToRecord(m planModel) PlanRecord {
	var actions []PlanActionRecord
	if len(m.Actions) > 0 {
		_ = json.Unmarshal(m.Actions, &actions)
	}
	return PlanRecord{
		PlanID:              m.PlanID,
		AgentID:             m.AgentID,
		TotalValueSol:       m.TotalValueSol,
		CapitalMovedSol:     m.CapitalMovedSol,
		ExpectedImprovement: m.ExpectedImprovement,
		Actions:             actions,
		Failures:            m.Failures,
		CreatedAt:           time.UnixMilli(m.CreatedAtUnix),
	}
}
