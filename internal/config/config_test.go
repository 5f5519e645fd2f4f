package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  allowed_origins: ["https://app.example.com"]
log:
  level: debug
  format: console
auth:
  jwt_secret: secret
storage:
  provider: minio
  endpoint: localhost:9000
  access_key: minioadmin
  secret_key: minioadmin
  container: lab-reports
extraction:
  provider: local
agent:
  provider: openai
  api_key: sk-test
  model: gpt-4o-mini
  poll_interval: 500ms
threads:
  store: redis
  redis_url: redis://localhost:6379/0
  redis_ttl: 24h
analysis:
  mode: narrative
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Storage.Container != "lab-reports" {
		t.Errorf("expected container lab-reports, got %s", cfg.Storage.Container)
	}
	if cfg.Agent.PollInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms poll interval, got %v", cfg.Agent.PollInterval)
	}
	if cfg.Threads.RedisTTL != 24*time.Hour {
		t.Errorf("expected 24h ttl, got %v", cfg.Threads.RedisTTL)
	}
	if cfg.Analysis.OnRunFailure != string(domain.FailurePolicyError) {
		t.Errorf("expected narrative mode to default to error policy, got %s", cfg.Analysis.OnRunFailure)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Address() != "0.0.0.0:8000" {
		t.Errorf("unexpected address %s", cfg.Address())
	}
	want := []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	if strings.Join(cfg.Server.AllowedOrigins, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.ReadGrantMinutes != 10 {
		t.Errorf("expected 10 minute read grants, got %d", cfg.Server.ReadGrantMinutes)
	}
	if cfg.Storage.Provider != StorageAzure || cfg.Storage.Container != "reports" {
		t.Errorf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Threads.Store != ThreadsMemory {
		t.Errorf("expected memory thread store, got %s", cfg.Threads.Store)
	}
	if cfg.Analysis.Mode != string(domain.OutputModeStructured) || cfg.Analysis.OnRunFailure != string(domain.FailurePolicyFallback) {
		t.Errorf("unexpected analysis defaults %+v", cfg.Analysis)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
storage:
  account_name: fromfile
`)
	t.Setenv("PORT", "7070")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "fromenv")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Storage.AccountName != "fromenv" {
		t.Errorf("expected env account, got %s", cfg.Storage.AccountName)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if !cfg.Storage.UseSSL {
		t.Error("expected use_ssl from env")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for bad yaml, got %v", err)
	}
}

func validConfig() *Config {
	cfg := &Config{
		Auth:       AuthConfig{JWTSecret: "s"},
		Storage:    StorageConfig{AccountName: "acct", AccountKey: "key"},
		Extraction: ExtractionConfig{Endpoint: "https://di.example"},
		Agent:      AgentConfig{Endpoint: "https://agents.example", AgentID: "asst_1"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no secret", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret"},
		{"azure storage key", func(c *Config) { c.Storage.AccountKey = "" }, "storage.account_key"},
		{"minio endpoint", func(c *Config) { c.Storage.Provider = StorageMinIO }, "storage.endpoint"},
		{"unknown storage", func(c *Config) { c.Storage.Provider = "gcs" }, "unknown storage.provider"},
		{"docintel endpoint", func(c *Config) { c.Extraction.Endpoint = "" }, "extraction.endpoint"},
		{"local extraction", func(c *Config) { c.Extraction = ExtractionConfig{Provider: ExtractionLocal} }, ""},
		{"agent id", func(c *Config) { c.Agent.AgentID = "" }, "agent.agent_id"},
		{"openai model", func(c *Config) { c.Agent = AgentConfig{Provider: AgentOpenAI, APIKey: "k"} }, "agent.model"},
		{"redis url", func(c *Config) { c.Threads.Store = ThreadsRedis }, "threads.redis_url"},
		{"postgres url", func(c *Config) { c.Threads.Store = ThreadsPostgres }, "threads.database_url"},
		{"openai with redis", func(c *Config) {
			c.Agent = AgentConfig{Provider: AgentOpenAI, APIKey: "k", Model: "m"}
			c.Threads = ThreadsConfig{Store: ThreadsRedis, RedisURL: "redis://localhost:6379"}
		}, "openai agent only supports"},
		{"openai with postgres", func(c *Config) {
			c.Agent = AgentConfig{Provider: AgentOpenAI, APIKey: "k", Model: "m"}
			c.Threads = ThreadsConfig{Store: ThreadsPostgres, DatabaseURL: "postgres://localhost/db"}
		}, "openai agent only supports"},
		{"openai with memory", func(c *Config) {
			c.Agent = AgentConfig{Provider: AgentOpenAI, APIKey: "k", Model: "m"}
		}, ""},
		{"mode", func(c *Config) { c.Analysis.Mode = "html" }, "analysis.mode"},
		{"policy", func(c *Config) { c.Analysis.OnRunFailure = "retry" }, "analysis.on_run_failure"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	err := cfg.Validate()
	for _, want := range []string{"auth.jwt_secret", "storage.account_name", "extraction.endpoint", "agent.endpoint"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}
