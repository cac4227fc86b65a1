package config

import "strings"

const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppHTTPAddr   = ":9985"
	defaultAppLogPath    = "/data/logs/liqpro.log"
	defaultSignalsURL    = "http://signals:8600"
	defaultSignalsTO     = 10
	defaultSignalsTTL    = 30
	defaultEngineURL     = "http://engine:8700"
	defaultEngineTO      = 30
	defaultCruiseLogPath = "/data/db/cruise_plans.db"
	defaultHealthLogPath = "/data/db/health_checks.db"
	defaultHealthMins    = 5
	defaultMarketMins    = 15
	defaultOptimizeHours = 4
	defaultBreakerFails  = 5
	defaultBreakerCool   = 120
	defaultRosterPath    = "configs/agents.yaml"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Signals.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Cruise.applyDefaults(keys)
	c.Roster.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *SignalsConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("signals.base_url", &s.BaseURL, defaultSignalsURL),
		fieldDefault{
			key:   "signals.timeout_seconds",
			need:  func() bool { return s.TimeoutSeconds <= 0 },
			apply: func() { s.TimeoutSeconds = defaultSignalsTO },
		},
		fieldDefault{
			key:   "signals.cache_ttl_minutes",
			need:  func() bool { return s.CacheTTLMinutes <= 0 },
			apply: func() { s.CacheTTLMinutes = defaultSignalsTTL },
		},
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("engine.base_url", &e.BaseURL, defaultEngineURL),
		fieldDefault{
			key:   "engine.timeout_seconds",
			need:  func() bool { return e.TimeoutSeconds <= 0 },
			apply: func() { e.TimeoutSeconds = defaultEngineTO },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.cruise_log_path", &s.CruiseLogPath, defaultCruiseLogPath),
		stringFieldDefault("store.health_log_path", &s.HealthLogPath, defaultHealthLogPath),
	)
}

func (c *CruiseConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "cruise.health_check_interval_minutes",
			need:  func() bool { return c.HealthCheckIntervalMinutes <= 0 },
			apply: func() { c.HealthCheckIntervalMinutes = defaultHealthMins },
		},
		fieldDefault{
			key:   "cruise.market_change_check_interval_minutes",
			need:  func() bool { return c.MarketChangeCheckIntervalMinutes <= 0 },
			apply: func() { c.MarketChangeCheckIntervalMinutes = defaultMarketMins },
		},
		fieldDefault{
			key:   "cruise.optimization_interval_hours",
			need:  func() bool { return c.OptimizationIntervalHours <= 0 },
			apply: func() { c.OptimizationIntervalHours = defaultOptimizeHours },
		},
		fieldDefault{
			key:   "cruise.breaker_failure_threshold",
			need:  func() bool { return c.BreakerFailureThreshold <= 0 },
			apply: func() { c.BreakerFailureThreshold = defaultBreakerFails },
		},
		fieldDefault{
			key:   "cruise.breaker_cooldown_seconds",
			need:  func() bool { return c.BreakerCooldownSeconds <= 0 },
			apply: func() { c.BreakerCooldownSeconds = defaultBreakerCool },
		},
	)
}

func (r *RosterConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("roster.path", &r.Path, defaultRosterPath),
		boolFieldDefault("roster.watch", &r.Watch, true),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
