// Package healthlog keeps the raw health-check history per agent. It is
// append-heavy and queried rarely, so it stays on plain database/sql.
package healthlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rextempo/liqpro/internal/cruise"
)

// Store implements cruise.HealthLog on SQLite.
type Store struct {
	db   *sql.DB
	path string
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("health log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ cruise.HealthLog = (*Store)(nil)

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_checks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			health_score REAL NOT NULL,
			risk_level TEXT NOT NULL DEFAULT '',
			total_value_sol REAL NOT NULL DEFAULT 0,
			available_sol REAL NOT NULL DEFAULT 0,
			emergency INTEGER NOT NULL DEFAULT 0,
			warnings_json TEXT NOT NULL DEFAULT '[]',
			checked_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_checks_agent_ts ON health_checks(agent_id, checked_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure health log schema: %w", err)
		}
	}
	return nil
}

// RecordHealthCheck appends one health-check row.
func (s *Store) RecordHealthCheck(ctx context.Context, rec cruise.HealthCheckRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("health log store not initialized")
	}
	if strings.TrimSpace(rec.AgentID) == "" {
		return fmt.Errorf("health record requires agent id")
	}
	warnings, err := json.Marshal(rec.Warnings)
	if err != nil {
		return err
	}
	checkedAt := rec.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}
	emergency := 0
	if rec.Emergency {
		emergency = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO health_checks
			(agent_id, health_score, risk_level, total_value_sol, available_sol, emergency, warnings_json, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AgentID, rec.HealthScore, rec.RiskLevel, rec.TotalValueSol, rec.AvailableSol,
		emergency, string(warnings), checkedAt.UnixMilli())
	return err
}

// Recent returns the newest records for one agent, newest first.
func (s *Store) Recent(ctx context.Context, agentID string, limit int) ([]cruise.HealthCheckRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("health log store not initialized")
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, fmt.Errorf("agent id cannot be empty")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, health_score, risk_level, total_value_sol, available_sol, emergency, warnings_json, checked_at
		FROM health_checks
		WHERE agent_id = ?
		ORDER BY checked_at DESC, id DESC
		LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cruise.HealthCheckRecord
	for rows.Next() {
		var rec cruise.HealthCheckRecord
		var emergency int
		var warningsJSON string
		var checkedAt int64
		if err := rows.Scan(&rec.AgentID, &rec.HealthScore, &rec.RiskLevel,
			&rec.TotalValueSol, &rec.AvailableSol, &emergency, &warningsJSON, &checkedAt); err != nil {
			return nil, err
		}
		rec.Emergency = emergency != 0
		rec.CheckedAt = time.UnixMilli(checkedAt)
		if warningsJSON != "" && warningsJSON != "null" {
			_ = json.Unmarshal([]byte(warningsJSON), &rec.Warnings)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EmergencyCount reports how many emergencies an agent hit since a cutoff.
func (s *Store) EmergencyCount(ctx context.Context, agentID string, since time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("health log store not initialized")
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM health_checks WHERE agent_id = ? AND emergency = 1 AND checked_at >= ?`,
		strings.TrimSpace(agentID), since.UnixMilli()).Scan(&count)
	return count, err
}
