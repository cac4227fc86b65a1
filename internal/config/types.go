package config

import (
	"strings"
	"time"
)

// Config is the root configuration for liqpro.
type Config struct {
	App     AppConfig     `toml:"app"`
	Signals SignalsConfig `toml:"signals"`
	Engine  EngineConfig  `toml:"engine"`
	Store   StoreConfig   `toml:"store"`
	Cruise  CruiseConfig  `toml:"cruise"`
	Roster  RosterConfig  `toml:"roster"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// SignalsConfig describes the pool recommendation service.
type SignalsConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

func (s SignalsConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s SignalsConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

// EngineConfig describes the agent execution engine: the service that owns
// agent lifecycle, wallet funds and transaction submission.
type EngineConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (e EngineConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	CruiseLogPath string `toml:"cruise_log_path"`
	HealthLogPath string `toml:"health_log_path"`
}

// CruiseConfig carries loop-wide settings. Per-agent intervals live in the
// roster file; these are the fallbacks for agents that leave them unset.
type CruiseConfig struct {
	HealthCheckIntervalMinutes       int `toml:"health_check_interval_minutes"`
	MarketChangeCheckIntervalMinutes int `toml:"market_change_check_interval_minutes"`
	OptimizationIntervalHours        int `toml:"optimization_interval_hours"`

	BreakerFailureThreshold int `toml:"breaker_failure_threshold"`
	BreakerCooldownSeconds  int `toml:"breaker_cooldown_seconds"`
}

func (c CruiseConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

type RosterConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

// keySet tracks which config keys the files set explicitly, so defaults
// never clobber an intentional zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for one config field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
