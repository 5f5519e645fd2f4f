// Package config loads labinsights settings from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

// Provider names
const (
	StorageAzure = "azure"
	StorageMinIO = "minio"

	ExtractionDocIntel = "docintel"
	ExtractionLocal    = "local"

	AgentAzure  = "azure"
	AgentOpenAI = "openai"

	ThreadsMemory   = "memory"
	ThreadsRedis    = "redis"
	ThreadsPostgres = "postgres"
)

// Config is the complete service configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Agent      AgentConfig      `yaml:"agent"`
	Threads    ThreadsConfig    `yaml:"threads"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// ReadGrantMinutes is the lifetime of the read grant handed to extraction
	ReadGrantMinutes int `yaml:"read_grant_minutes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type StorageConfig struct {
	Provider    string `yaml:"provider"`
	AccountName string `yaml:"account_name"`
	AccountKey  string `yaml:"account_key"`
	Container   string `yaml:"container"`
	// Endpoint overrides the blob service URL, e.g. Azurite or a MinIO host:port
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UseSSL       bool   `yaml:"use_ssl"`
	Region       string `yaml:"region"`
	CreateBucket bool   `yaml:"create_bucket"`
}

type ExtractionConfig struct {
	Provider     string        `yaml:"provider"`
	Endpoint     string        `yaml:"endpoint"`
	Key          string        `yaml:"key"`
	APIVersion   string        `yaml:"api_version"`
	Model        string        `yaml:"model"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type AgentConfig struct {
	Provider     string        `yaml:"provider"`
	Endpoint     string        `yaml:"endpoint"`
	AgentID      string        `yaml:"agent_id"`
	APIVersion   string        `yaml:"api_version"`
	Token        string        `yaml:"token"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Instructions string        `yaml:"instructions"`
}

type ThreadsConfig struct {
	Store       string        `yaml:"store"`
	RedisURL    string        `yaml:"redis_url"`
	RedisTTL    time.Duration `yaml:"redis_ttl"`
	DatabaseURL string        `yaml:"database_url"`
}

type AnalysisConfig struct {
	Mode         string `yaml:"mode"`
	OnRunFailure string `yaml:"on_run_failure"`
}

// Load reads the YAML file at path, applies environment overrides and
// fills defaults. An empty path loads from the environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv overrides file values with any environment variables that are set
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	c.Server.ReadGrantMinutes = getEnvInt("READ_GRANT_MINUTES", c.Server.ReadGrantMinutes)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)

	c.Storage.Provider = getEnv("STORAGE_PROVIDER", c.Storage.Provider)
	c.Storage.AccountName = getEnv("AZURE_STORAGE_ACCOUNT", c.Storage.AccountName)
	c.Storage.AccountKey = getEnv("AZURE_STORAGE_KEY", c.Storage.AccountKey)
	c.Storage.Container = getEnv("AZURE_STORAGE_CONTAINER", c.Storage.Container)
	c.Storage.Endpoint = getEnv("STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("MINIO_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.UseSSL = getEnvBool("MINIO_USE_SSL", c.Storage.UseSSL)
	c.Storage.Region = getEnv("MINIO_REGION", c.Storage.Region)

	c.Extraction.Provider = getEnv("EXTRACTION_PROVIDER", c.Extraction.Provider)
	c.Extraction.Endpoint = getEnv("DOCINT_ENDPOINT", c.Extraction.Endpoint)
	c.Extraction.Key = getEnv("DOCINT_KEY", c.Extraction.Key)

	c.Agent.Provider = getEnv("AGENT_PROVIDER", c.Agent.Provider)
	c.Agent.Endpoint = getEnv("AZURE_AGENT_ENDPOINT", c.Agent.Endpoint)
	c.Agent.AgentID = getEnv("AZURE_AGENT_ID", c.Agent.AgentID)
	c.Agent.Token = getEnv("AZURE_AGENT_TOKEN", c.Agent.Token)
	c.Agent.BaseURL = getEnv("OPENAI_BASE_URL", c.Agent.BaseURL)
	c.Agent.APIKey = getEnv("OPENAI_API_KEY", c.Agent.APIKey)
	c.Agent.Model = getEnv("OPENAI_MODEL", c.Agent.Model)

	c.Threads.Store = getEnv("THREAD_STORE", c.Threads.Store)
	c.Threads.RedisURL = getEnv("REDIS_URL", c.Threads.RedisURL)
	c.Threads.DatabaseURL = getEnv("DATABASE_URL", c.Threads.DatabaseURL)

	c.Analysis.Mode = getEnv("ANALYSIS_MODE", c.Analysis.Mode)
	c.Analysis.OnRunFailure = getEnv("ANALYSIS_ON_RUN_FAILURE", c.Analysis.OnRunFailure)
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	if c.Server.ReadGrantMinutes == 0 {
		c.Server.ReadGrantMinutes = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Storage.Provider == "" {
		c.Storage.Provider = StorageAzure
	}
	if c.Storage.Container == "" {
		c.Storage.Container = "reports"
	}
	if c.Extraction.Provider == "" {
		c.Extraction.Provider = ExtractionDocIntel
	}
	if c.Agent.Provider == "" {
		c.Agent.Provider = AgentAzure
	}
	if c.Threads.Store == "" {
		c.Threads.Store = ThreadsMemory
	}
	if c.Analysis.Mode == "" {
		c.Analysis.Mode = string(domain.OutputModeStructured)
	}
	if c.Analysis.OnRunFailure == "" {
		c.Analysis.OnRunFailure = string(domain.DefaultFailurePolicy(domain.OutputMode(c.Analysis.Mode)))
	}
}

// Validate reports every missing or invalid setting of the selected providers
func (c *Config) Validate() error {
	var errs []error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	require(c.Server.ReadGrantMinutes > 0, "server.read_grant_minutes must be positive")
	require(c.Auth.JWTSecret != "", "auth.jwt_secret is required")

	switch c.Storage.Provider {
	case StorageAzure:
		require(c.Storage.AccountName != "", "storage.account_name is required")
		require(c.Storage.AccountKey != "", "storage.account_key is required")
	case StorageMinIO:
		require(c.Storage.Endpoint != "", "storage.endpoint is required for minio")
		require(c.Storage.AccessKey != "" && c.Storage.SecretKey != "", "storage.access_key and storage.secret_key are required for minio")
	default:
		require(false, "unknown storage.provider %q", c.Storage.Provider)
	}

	switch c.Extraction.Provider {
	case ExtractionDocIntel:
		require(c.Extraction.Endpoint != "", "extraction.endpoint is required for docintel")
	case ExtractionLocal:
	default:
		require(false, "unknown extraction.provider %q", c.Extraction.Provider)
	}

	switch c.Agent.Provider {
	case AgentAzure:
		require(c.Agent.Endpoint != "", "agent.endpoint is required for azure")
		require(c.Agent.AgentID != "", "agent.agent_id is required for azure")
	case AgentOpenAI:
		require(c.Agent.APIKey != "", "agent.api_key is required for openai")
		require(c.Agent.Model != "", "agent.model is required for openai")
	default:
		require(false, "unknown agent.provider %q", c.Agent.Provider)
	}

	switch c.Threads.Store {
	case ThreadsMemory:
	case ThreadsRedis:
		require(c.Threads.RedisURL != "", "threads.redis_url is required for redis")
	case ThreadsPostgres:
		require(c.Threads.DatabaseURL != "", "threads.database_url is required for postgres")
	default:
		require(false, "unknown threads.store %q", c.Threads.Store)
	}

	// The openai agent keeps threads in process, so a persisted mapping would
	// outlive the thread it points at.
	require(c.Agent.Provider != AgentOpenAI || c.Threads.Store == ThreadsMemory,
		"threads.store %q requires agent.provider %q; the openai agent only supports %q", c.Threads.Store, AgentAzure, ThreadsMemory)

	require(domain.OutputMode(c.Analysis.Mode).IsValid(), "unknown analysis.mode %q", c.Analysis.Mode)
	require(domain.FailurePolicy(c.Analysis.OnRunFailure).IsValid(), "unknown analysis.on_run_failure %q", c.Analysis.OnRunFailure)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Address is the listen address of the HTTP server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
