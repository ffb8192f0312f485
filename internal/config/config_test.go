// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Temporal.CallTimeout)
	assert.Equal(t, "Conversational", cfg.A2A.BuiltInWorkflow)
	assert.Equal(t, []string{"approve", "reject"}, cfg.Task.DefaultActions)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestNewConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
temporal:
  host_port: temporal:7233
  namespace: agents
  call_timeout: 45s
agent:
  manifest_path: /etc/xiansai/agents.yaml
  default_tenant: acme
a2a:
  builtin_workflow: Chat
task:
  default_timeout: 48h
  default_actions: [approve, reject, escalate]
server:
  port: 9090
  api_key: secret
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "temporal:7233", cfg.Temporal.HostPort)
	assert.Equal(t, "agents", cfg.Temporal.Namespace)
	assert.Equal(t, 45*time.Second, cfg.Temporal.CallTimeout)
	assert.Equal(t, "acme", cfg.Agent.DefaultTenant)
	assert.Equal(t, "/etc/xiansai/agents.yaml", cfg.Agent.ManifestPath)
	assert.Equal(t, "Chat", cfg.A2A.BuiltInWorkflow)
	assert.Equal(t, 48*time.Hour, cfg.Task.DefaultTimeout)
	assert.Equal(t, []string{"approve", "reject", "escalate"}, cfg.Task.DefaultActions)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.APIKey)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.A2A.DefaultTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestNewConfig_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
agent:
  default_tenant: acme
`)
	t.Setenv("XIANSAI_AGENT_DEFAULT_TENANT", "globex")

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "globex", cfg.Agent.DefaultTenant)
}

func TestNewConfig_ExpandsManifestPath(t *testing.T) {
	t.Setenv("AGENTS_DIR", "/srv/agents")
	path := writeConfig(t, `
agent:
  manifest_path: $AGENTS_DIR/agents.yaml
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/agents/agents.yaml", cfg.Agent.ManifestPath)
}

func TestNewConfig_Errors(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = NewConfig(writeConfig(t, "temporal: [unclosed"))
	assert.Error(t, err)

	_, err = NewConfig(writeConfig(t, `
a2a:
  builtin_workflow: "Agent:Chat"
`))
	assert.ErrorContains(t, err, "builtin_workflow")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"missing driver", func(c *AppConfig) { c.Database.Driver = "" }, "database driver"},
		{"bad log level", func(c *AppConfig) { c.Log.Level = "LOUD" }, "log level"},
		{"missing host port", func(c *AppConfig) { c.Temporal.HostPort = "" }, "host_port"},
		{"missing namespace", func(c *AppConfig) { c.Temporal.Namespace = "" }, "namespace"},
		{"zero call timeout", func(c *AppConfig) { c.Temporal.CallTimeout = 0 }, "call_timeout"},
		{"bad port", func(c *AppConfig) { c.Server.Port = 70000 }, "server port"},
		{"zero a2a timeout", func(c *AppConfig) { c.A2A.DefaultTimeout = 0 }, "a2a.default_timeout"},
		{"empty builtin workflow", func(c *AppConfig) { c.A2A.BuiltInWorkflow = "" }, "builtin_workflow"},
		{"zero task timeout", func(c *AppConfig) { c.Task.DefaultTimeout = -time.Second }, "task.default_timeout"},
		{"sample ratio above one", func(c *AppConfig) { c.Telemetry.SampleRatio = 1.5 }, "sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.validate(), tt.wantErr)
		})
	}
}

func TestGetDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Database: "agents.db"}
	assert.Equal(t, "agents.db", sqlite.GetDSN())

	memory := DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
	assert.Equal(t, "file::memory:?cache=shared", memory.GetDSN())

	pg := DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432, Username: "xians",
		Password: "pw", Database: "agents", SSLMode: "require",
	}
	assert.Equal(t, "host=db port=5432 user=xians password=pw dbname=agents sslmode=require", pg.GetDSN())
}
