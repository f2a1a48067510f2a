package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"app": {"name": "wb", "workspace": "/tmp/ws"},
		"memory": {"type": "sqlite", "path": "plans.db"},
		"auth": {"tokens": {"secret": {"username": "alice", "role": "analyst"}}},
		"review": {"mode": "manual", "timeout_policy": "fail", "reviewer_roles": ["reviewer"]}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "wb", cfg.App.Name)
	require.Equal(t, "sqlite", cfg.Memory.Type)
	require.Equal(t, "plans.db", cfg.Memory.Path)
	require.Equal(t, Identity{Username: "alice", Role: "analyst"}, cfg.Auth.Tokens["secret"])
	require.Equal(t, "manual", cfg.Review.Mode)
	require.Equal(t, "fail", cfg.Review.TimeoutPolicy)
	require.Equal(t, []string{"reviewer"}, cfg.Review.ReviewerRoles)
	require.Equal(t, map[string]string{"alice": "analyst"}, cfg.Roles())
	require.Equal(t, ":8080", cfg.App.Listen)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
app:
  name: yaml-wb
email:
  host: smtp.example.com
  port: 587
  security: starttls
gateways:
  telegram:
    token: abc
    enabled: true
    chat_id: "42"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "yaml-wb", cfg.App.Name)
	require.Equal(t, "smtp.example.com", cfg.Email.Host)
	require.Equal(t, 587, cfg.Email.Port)
	require.Equal(t, "starttls", cfg.Email.Security)

	tg, ok := cfg.GetGatewayConfig("telegram")
	require.True(t, ok)
	require.Equal(t, "42", tg.ChatID)

	_, ok = cfg.GetGatewayConfig("discord")
	require.False(t, ok)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[app]
name = "toml-wb"

[database]
sqlite_path = "data.db"

[rate_limit]
per_second = 2.5
burst = 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "toml-wb", cfg.App.Name)
	require.Equal(t, "data.db", cfg.Database.SQLitePath)
	require.Equal(t, 2.5, cfg.RateLimit.PerSecond)
	require.Equal(t, 3, cfg.RateLimit.Burst)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := writeFile(t, "broken.json", `{"app": `)
	_, err = Load(path)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"EMAIL_ENABLED":         "TRUE",
		"SMTP_PORT":             "465",
		"SMTP_SECURITY":         "SSL",
		"SQLITE_DB":             "env.db",
		"ZENDESK_SUBDOMAIN":     "acme",
		"WORKBENCH_REVIEW_MODE": "manual",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := &Config{}
	cfg.ApplyEnv(lookup)
	cfg.ApplyDefaults()

	require.True(t, cfg.Email.Enabled)
	require.Equal(t, 465, cfg.Email.Port)
	require.Equal(t, "ssl", cfg.Email.Security)
	require.Equal(t, "env.db", cfg.Database.SQLitePath)
	require.Equal(t, "https://acme.zendesk.com/api/v2", cfg.CRM.Zendesk.BaseURL)
	require.Equal(t, "manual", cfg.Review.Mode)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "memory", cfg.Memory.Type)
	require.Equal(t, "auto", cfg.Review.Mode)
	require.Equal(t, "auto_deny", cfg.Review.TimeoutPolicy)
	require.Equal(t, Identity{Username: "demo_user", Role: "admin"}, cfg.Auth.Tokens["demo"])
	require.Equal(t, "no-reply@example.com", cfg.Email.From)
}
