package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
app:
  env: prod
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9985", cfg.App.HTTPAddr)
	assert.Equal(t, 5, cfg.Cruise.HealthCheckIntervalMinutes)
	assert.Equal(t, 15, cfg.Cruise.MarketChangeCheckIntervalMinutes)
	assert.Equal(t, 4, cfg.Cruise.OptimizationIntervalHours)
	assert.Equal(t, 30, cfg.Signals.CacheTTLMinutes)
	assert.True(t, cfg.Roster.Watch)
}

func TestLoadMergesIncludesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
app:
  log_level: debug
signals:
  base_url: http://base:8600
`)
	path := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
signals:
  base_url: http://override:8600
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Includes load first, the including file wins.
	assert.Equal(t, "http://override:8600", cfg.Signals.BaseURL)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoadRejectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoadValidatesLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
app:
  log_level: verbose
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.log_level")
}

func TestLoadValidatesSignalsURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
signals:
  base_url: "not a url"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signals.base_url")
}

func TestExplicitZeroSurvivesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
roster:
  watch: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Roster.Watch, "explicitly set false must not be re-defaulted")
}
