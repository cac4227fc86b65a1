// Package roster loads the agent roster file and keeps it hot: edits to the
// file register and unregister agents in the running loop without a restart.
package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rextempo/liqpro/internal/logger"
	"github.com/rextempo/liqpro/internal/types"
)

// agentSchema is the structural contract for one roster entry. Interval
// fields are optional; the cruise loop substitutes its own fallbacks.
const agentSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"wallet_address": {"type": "string", "minLength": 32},
		"max_positions": {"type": "integer", "minimum": 1},
		"min_sol_balance": {"type": "number", "minimum": 0},
		"target_health_score": {"type": "number", "minimum": 0, "maximum": 5},
		"risk_tolerance": {"type": "string", "enum": ["low", "medium", "high"]},
		"health_check_interval_minutes": {"type": "integer", "minimum": 1},
		"market_change_check_interval_minutes": {"type": "integer", "minimum": 1},
		"optimization_interval_hours": {"type": "integer", "minimum": 1},
		"emergency_thresholds": {
			"type": "object",
			"properties": {
				"min_health_score": {"type": "number", "minimum": 0},
				"max_drawdown": {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	},
	"required": ["wallet_address", "max_positions", "min_sol_balance"]
}`

// FileConfig maps the roster file layout.
type FileConfig struct {
	Agents map[string]types.AgentConfig `yaml:"agents"`
}

// Snapshot is one loaded generation of the roster.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Agents   map[string]types.AgentConfig
}

// AgentIDs returns the roster ids sorted.
func (s Snapshot) AgentIDs() []string {
	ids := make([]string, 0, len(s.Agents))
	for id := range s.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ChangeListener fires after every successful reload.
type ChangeListener func(Snapshot)

// Registry owns the roster file. A reload that fails validation keeps the
// previous snapshot; a half-edited file never tears down running agents.
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry loads the roster and starts watching the file for edits.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("roster registry requires path")
	}
	schema, err := compileAgentSchema()
	if err != nil {
		return nil, fmt.Errorf("compile roster schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read roster file failed: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("Roster: reload failed, keeping previous roster: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// NewStaticRegistry loads the roster once without watching the file.
func NewStaticRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("roster registry requires path")
	}
	schema, err := compileAgentSchema()
	if err != nil {
		return nil, fmt.Errorf("compile roster schema failed: %w", err)
	}
	r := &Registry{path: path, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Snapshot returns the current roster generation.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Agent returns the config for one roster id.
func (r *Registry) Agent(id string) (types.AgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.snapshot.Agents[strings.TrimSpace(id)]
	return cfg, ok
}

// Subscribe registers a listener for future reloads.
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, raw, err := readRosterFile(r.path)
	if err != nil {
		return err
	}
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("roster file %s declares no agents", filepath.Base(r.path))
	}
	for id, body := range raw {
		jsonBody, err := toJSONValue(body)
		if err != nil {
			return fmt.Errorf("roster agent %s invalid: %w", id, err)
		}
		if err := r.schema.Validate(jsonBody); err != nil {
			return fmt.Errorf("roster agent %s invalid: %w", id, err)
		}
	}
	agents := make(map[string]types.AgentConfig, len(cfg.Agents))
	for id, agent := range cfg.Agents {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("roster contains an agent with an empty id")
		}
		agents[id] = agent
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Agents:   agents,
	}
	r.mu.Unlock()
	logger.Infof("Roster: loaded %d agents from %s", len(agents), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("Roster: listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Agents:   make(map[string]types.AgentConfig, len(src.Agents)),
	}
	for id, cfg := range src.Agents {
		dst.Agents[id] = cfg
	}
	return dst
}

// readRosterFile decodes the roster twice: strictly into FileConfig so
// unknown fields fail loudly, and generically so each agent body can be
// checked against the schema.
func readRosterFile(path string) (FileConfig, map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, nil, fmt.Errorf("read roster file failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, nil, fmt.Errorf("parse roster file failed: %w", err)
	}
	var generic struct {
		Agents map[string]any `yaml:"agents"`
	}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return FileConfig{}, nil, fmt.Errorf("parse roster file failed: %w", err)
	}
	return cfg, generic.Agents, nil
}

// toJSONValue re-decodes a YAML value through JSON so the schema validator
// sees the number types it expects.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func compileAgentSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("agent.json", strings.NewReader(agentSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("agent.json")
}
