package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app" toml:"app"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways" toml:"gateways"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers" toml:"providers"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory" toml:"memory"`
	Auth      AuthConfig                `json:"auth" yaml:"auth" toml:"auth"`
	Email     EmailConfig               `json:"email" yaml:"email" toml:"email"`
	Database  DatabaseConfig            `json:"database" yaml:"database" toml:"database"`
	CRM       CRMConfig                 `json:"crm" yaml:"crm" toml:"crm"`
	Review    ReviewConfig              `json:"review" yaml:"review" toml:"review"`
	RateLimit RateLimitConfig           `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	Policy    PolicyConfig              `json:"policy" yaml:"policy" toml:"policy"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name" toml:"name"`
	Workspace string `json:"workspace" yaml:"workspace" toml:"workspace"`
	Listen    string `json:"listen" yaml:"listen" toml:"listen"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token" toml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	// ChatID is where review notices go (Telegram chat id or Discord channel id).
	ChatID string `json:"chat_id" yaml:"chat_id" toml:"chat_id"`
	// Users maps a gateway-side sender id to a workbench username.
	Users map[string]string `json:"users,omitempty" yaml:"users,omitempty" toml:"users,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key" toml:"api_key"`
	Model   string `json:"model" yaml:"model" toml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type" toml:"type"` // memory or sqlite
	Path string `json:"path" yaml:"path" toml:"path"`
}

type Identity struct {
	Username string `json:"username" yaml:"username" toml:"username"`
	Role     string `json:"role" yaml:"role" toml:"role"`
}

type AuthConfig struct {
	// Tokens maps a bearer token to the identity it authenticates.
	Tokens map[string]Identity `json:"tokens" yaml:"tokens" toml:"tokens"`
}

type EmailConfig struct {
	From     string `json:"from" yaml:"from" toml:"from"`
	Host     string `json:"host" yaml:"host" toml:"host"`
	Port     int    `json:"port" yaml:"port" toml:"port"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password" yaml:"password" toml:"password"`
	Security string `json:"security" yaml:"security" toml:"security"` // none, starttls, ssl
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
}

type DatabaseConfig struct {
	SQLitePath  string `json:"sqlite_path" yaml:"sqlite_path" toml:"sqlite_path"`
	PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn" toml:"postgres_dsn"`
	MySQLDSN    string `json:"mysql_dsn" yaml:"mysql_dsn" toml:"mysql_dsn"`
}

type SalesforceConfig struct {
	InstanceURL string `json:"instance_url" yaml:"instance_url" toml:"instance_url"`
	AccessToken string `json:"access_token" yaml:"access_token" toml:"access_token"`
}

type HubSpotConfig struct {
	BaseURL     string `json:"base_url" yaml:"base_url" toml:"base_url"`
	AccessToken string `json:"access_token" yaml:"access_token" toml:"access_token"`
	APIKey      string `json:"api_key" yaml:"api_key" toml:"api_key"`
}

type ZendeskConfig struct {
	Subdomain string `json:"subdomain" yaml:"subdomain" toml:"subdomain"`
	Email     string `json:"email" yaml:"email" toml:"email"`
	Token     string `json:"token" yaml:"token" toml:"token"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
}

type CRMConfig struct {
	Salesforce SalesforceConfig `json:"salesforce" yaml:"salesforce" toml:"salesforce"`
	HubSpot    HubSpotConfig    `json:"hubspot" yaml:"hubspot" toml:"hubspot"`
	Zendesk    ZendeskConfig    `json:"zendesk" yaml:"zendesk" toml:"zendesk"`
}

type ReviewConfig struct {
	// Mode is "auto" (decide synchronously) or "manual" (pause until a reviewer answers).
	Mode string `json:"mode" yaml:"mode" toml:"mode"`
	// AutoDecision is used by the auto-mode stub: "approve" or "deny".
	AutoDecision  string `json:"auto_decision" yaml:"auto_decision" toml:"auto_decision"`
	Reviewer      string `json:"reviewer" yaml:"reviewer" toml:"reviewer"`
	TimeoutSecs   int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	TimeoutPolicy string `json:"timeout_policy" yaml:"timeout_policy" toml:"timeout_policy"` // auto_deny, auto_approve, fail
	// ReviewerRoles restricts who may answer a review. Empty lets plan owners review their own plans.
	ReviewerRoles []string `json:"reviewer_roles,omitempty" yaml:"reviewer_roles,omitempty" toml:"reviewer_roles,omitempty"`
}

type RateLimitConfig struct {
	PerSecond float64 `json:"per_second" yaml:"per_second" toml:"per_second"`
	Burst     int     `json:"burst" yaml:"burst" toml:"burst"`
}

type PolicyConfig struct {
	DeniedTools     []string `json:"denied_tools" yaml:"denied_tools" toml:"denied_tools"`
	DeniedArguments []string `json:"denied_arguments" yaml:"denied_arguments" toml:"denied_arguments"`
	// RoleTools limits a tool to the listed roles. Tools not named here are open to every role.
	RoleTools map[string][]string `json:"role_tools" yaml:"role_tools" toml:"role_tools"`
}

// Load reads a config file, picking the decoder from its extension,
// then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		_, err = toml.Decode(string(data), &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadConfig is Load for process startup: any failure is fatal.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Default returns a config that runs the demo without any file.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "workbench"
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "workspace"
	}
	if c.App.Listen == "" {
		c.App.Listen = ":8080"
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "memory"
	}
	if c.Memory.Type == "sqlite" && c.Memory.Path == "" {
		c.Memory.Path = "workbench_plans.db"
	}
	if len(c.Auth.Tokens) == 0 {
		c.Auth.Tokens = map[string]Identity{
			"demo": {Username: "demo_user", Role: "admin"},
		}
	}
	if c.Email.From == "" {
		c.Email.From = "no-reply@example.com"
	}
	if c.Email.Host == "" {
		c.Email.Host = "localhost"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 25
	}
	if c.Email.Security == "" {
		c.Email.Security = "none"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "workbench.db"
	}
	if c.CRM.Salesforce.InstanceURL == "" {
		c.CRM.Salesforce.InstanceURL = "https://your-instance.salesforce.com"
	}
	if c.CRM.HubSpot.BaseURL == "" {
		c.CRM.HubSpot.BaseURL = "https://api.hubapi.com"
	}
	if c.CRM.Zendesk.BaseURL == "" {
		sub := c.CRM.Zendesk.Subdomain
		if sub == "" {
			sub = "your-subdomain"
		}
		c.CRM.Zendesk.BaseURL = fmt.Sprintf("https://%s.zendesk.com/api/v2", sub)
	}
	if c.Review.Mode == "" {
		c.Review.Mode = "auto"
	}
	if c.Review.AutoDecision == "" {
		c.Review.AutoDecision = "approve"
	}
	if c.Review.Reviewer == "" {
		c.Review.Reviewer = "auto_reviewer"
	}
	if c.Review.TimeoutSecs == 0 {
		c.Review.TimeoutSecs = 3600
	}
	if c.Review.TimeoutPolicy == "" {
		c.Review.TimeoutPolicy = "auto_deny"
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
}

// ApplyEnv overlays the environment variables the workbench has always honoured.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("EMAIL_FROM", &c.Email.From)
	str("SMTP_HOST", &c.Email.Host)
	str("SMTP_USERNAME", &c.Email.Username)
	str("SMTP_PASSWORD", &c.Email.Password)
	if v, ok := lookup("SMTP_SECURITY"); ok && v != "" {
		c.Email.Security = strings.ToLower(v)
	}
	if v, ok := lookup("SMTP_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Email.Port = port
		}
	}
	if v, ok := lookup("EMAIL_ENABLED"); ok {
		c.Email.Enabled = strings.EqualFold(v, "true")
	}

	str("SQLITE_DB", &c.Database.SQLitePath)
	str("POSTGRES_DSN", &c.Database.PostgresDSN)
	str("MYSQL_DSN", &c.Database.MySQLDSN)

	str("SALESFORCE_INSTANCE_URL", &c.CRM.Salesforce.InstanceURL)
	str("SALESFORCE_ACCESS_TOKEN", &c.CRM.Salesforce.AccessToken)
	str("HUBSPOT_ACCESS_TOKEN", &c.CRM.HubSpot.AccessToken)
	str("HUBSPOT_API_KEY", &c.CRM.HubSpot.APIKey)
	str("ZENDESK_SUBDOMAIN", &c.CRM.Zendesk.Subdomain)
	str("ZENDESK_EMAIL", &c.CRM.Zendesk.Email)
	str("ZENDESK_TOKEN", &c.CRM.Zendesk.Token)

	str("WORKBENCH_REVIEW_MODE", &c.Review.Mode)
	str("WORKBENCH_WORKSPACE", &c.App.Workspace)
}

// ReviewTimeout returns the configured wait for a manual review.
func (c *Config) ReviewTimeout() time.Duration {
	return time.Duration(c.Review.TimeoutSecs) * time.Second
}

// Roles maps each configured username to its role.
func (c *Config) Roles() map[string]string {
	roles := make(map[string]string, len(c.Auth.Tokens))
	for _, ident := range c.Auth.Tokens {
		roles[ident.Username] = ident.Role
	}
	return roles
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGatewayConfig returns the named gateway config if enabled
func (c *Config) GetGatewayConfig(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled && gw.Token != "" {
		return gw, true
	}
	return GatewayConfig{}, false
}
