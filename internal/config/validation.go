package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Signals.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Cruise.validate(); err != nil {
		return err
	}
	if err := c.Roster.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (s *SignalsConfig) validate() error {
	base := strings.TrimSpace(s.BaseURL)
	if base == "" {
		return fmt.Errorf("signals.base_url cannot be empty")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("signals.base_url must be an absolute URL, got %q", s.BaseURL)
	}
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("signals.timeout_seconds must be > 0")
	}
	if s.CacheTTLMinutes <= 0 {
		return fmt.Errorf("signals.cache_ttl_minutes must be > 0")
	}
	return nil
}

func (e *EngineConfig) validate() error {
	base := strings.TrimSpace(e.BaseURL)
	if base == "" {
		return fmt.Errorf("engine.base_url cannot be empty")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("engine.base_url must be an absolute URL, got %q", e.BaseURL)
	}
	if e.TimeoutSeconds <= 0 {
		return fmt.Errorf("engine.timeout_seconds must be > 0")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if strings.TrimSpace(s.CruiseLogPath) == "" {
		return fmt.Errorf("store.cruise_log_path cannot be empty")
	}
	if strings.TrimSpace(s.HealthLogPath) == "" {
		return fmt.Errorf("store.health_log_path cannot be empty")
	}
	return nil
}

func (c *CruiseConfig) validate() error {
	if c.HealthCheckIntervalMinutes <= 0 {
		return fmt.Errorf("cruise.health_check_interval_minutes must be > 0")
	}
	if c.MarketChangeCheckIntervalMinutes <= 0 {
		return fmt.Errorf("cruise.market_change_check_interval_minutes must be > 0")
	}
	if c.OptimizationIntervalHours <= 0 {
		return fmt.Errorf("cruise.optimization_interval_hours must be > 0")
	}
	if c.BreakerFailureThreshold <= 0 {
		return fmt.Errorf("cruise.breaker_failure_threshold must be > 0")
	}
	if c.BreakerCooldownSeconds <= 0 {
		return fmt.Errorf("cruise.breaker_cooldown_seconds must be > 0")
	}
	return nil
}

func (r *RosterConfig) validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return fmt.Errorf("roster.path cannot be empty")
	}
	return nil
}
