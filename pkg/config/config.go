package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is read when CONFIG_PATH is not set. A missing default
// file is not an error: configuration then comes from the environment alone.
const DefaultConfigPath = "config.yaml"

// HardMaxSampleRows bounds MaxSampleRows regardless of configuration.
const HardMaxSampleRows = 100

// Config holds all configuration for the schema assistant.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"8095"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ResolveDockerHosts rewrites localhost collaborator addresses to
	// host.docker.internal when running inside a container.
	ResolveDockerHosts bool `yaml:"resolve_docker_hosts" env:"RESOLVE_DOCKER_HOSTS" env-default:"true"`

	// Store is the tabular data store being described.
	Store StoreConfig `yaml:"store"`

	// AllowedTables is the static allow-list of tables that may ever be queried.
	AllowedTables []string `yaml:"allowed_tables" env:"ALLOWED_TABLES" env-separator:"," env-default:"users,orders,products,inventory,analytics_events"`

	// Completion is the language-model endpoint.
	Completion CompletionConfig `yaml:"completion"`

	Timeouts TimeoutConfig `yaml:"timeouts"`
	Catalog  CatalogConfig `yaml:"catalog"`
}

// StoreConfig holds connection parameters for the tabular data store.
type StoreConfig struct {
	Type     string `yaml:"type" env:"STORE_TYPE" env-default:"clickhouse"`
	Host     string `yaml:"host" env:"CLICKHOUSE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"CLICKHOUSE_PORT" env-default:"9000"`
	User     string `yaml:"user" env:"CLICKHOUSE_USER" env-default:"default"`
	Password string `yaml:"-" env:"CLICKHOUSE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"CLICKHOUSE_DATABASE" env-default:"default"`
	Secure   bool   `yaml:"secure" env:"STORE_SECURE" env-default:"false"`
	SSLMode  string `yaml:"ssl_mode" env:"STORE_SSL_MODE" env-default:"disable"` // postgres only
}

// CompletionConfig holds the completion service settings.
type CompletionConfig struct {
	// Provider is one of "openai" (any OpenAI-compatible endpoint, e.g. vLLM),
	// "anthropic", or "keyword" (offline rule-based responder).
	Provider    string  `yaml:"provider" env:"COMPLETION_PROVIDER" env-default:"openai"`
	BaseURL     string  `yaml:"base_url" env:"VLLM_URL" env-default:"http://localhost:8000/v1"`
	Model       string  `yaml:"model" env:"COMPLETION_MODEL" env-default:"Qwen/Qwen3-8B"`
	APIKey      string  `yaml:"-" env:"COMPLETION_API_KEY"` // Secret - not in YAML
	MaxTokens   int     `yaml:"max_tokens" env:"COMPLETION_MAX_TOKENS" env-default:"512"`
	Temperature float64 `yaml:"temperature" env:"COMPLETION_TEMPERATURE" env-default:"0.7"`
}

// TimeoutConfig bounds each external call so one slow dependency cannot
// stall a request.
type TimeoutConfig struct {
	Store      time.Duration `yaml:"store" env:"STORE_TIMEOUT" env-default:"10s"`
	Completion time.Duration `yaml:"completion" env:"COMPLETION_TIMEOUT" env-default:"30s"`
	Request    time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"60s"`
}

// CatalogConfig controls schema catalog behavior.
type CatalogConfig struct {
	// CacheTTL enables caching of catalog lookups. Zero disables the cache
	// so catalog data is fetched fresh on every request.
	CacheTTL          time.Duration `yaml:"cache_ttl" env:"CATALOG_CACHE_TTL" env-default:"0s"`
	MaxSampleRows     int           `yaml:"max_sample_rows" env:"CATALOG_MAX_SAMPLE_ROWS" env-default:"10"`
	DefaultSampleRows int           `yaml:"default_sample_rows" env:"CATALOG_DEFAULT_SAMPLE_ROWS" env-default:"5"`
}

var (
	validStoreTypes = map[string]bool{"clickhouse": true, "postgres": true, "mssql": true}
	validProviders  = map[string]bool{"openai": true, "anthropic": true, "keyword": true}
)

// Load reads configuration from config.yaml (or CONFIG_PATH) with environment
// variable overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	err := cleanenv.ReadConfig(path, cfg)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		// No config file: environment and defaults only
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// normalize trims list values and applies container host rewriting.
func (c *Config) normalize() {
	tables := make([]string, 0, len(c.AllowedTables))
	seen := make(map[string]bool, len(c.AllowedTables))
	for _, t := range c.AllowedTables {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tables = append(tables, t)
	}
	c.AllowedTables = tables

	c.Store.Type = strings.ToLower(strings.TrimSpace(c.Store.Type))
	c.Completion.Provider = strings.ToLower(strings.TrimSpace(c.Completion.Provider))

	if c.Catalog.MaxSampleRows > HardMaxSampleRows {
		c.Catalog.MaxSampleRows = HardMaxSampleRows
	}
	if c.Catalog.DefaultSampleRows > c.Catalog.MaxSampleRows {
		c.Catalog.DefaultSampleRows = c.Catalog.MaxSampleRows
	}

	if c.ResolveDockerHosts {
		c.Store.Host = ResolveHostForDocker(c.Store.Host)
		c.Completion.BaseURL = ResolveURLForDocker(c.Completion.BaseURL)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !validStoreTypes[c.Store.Type] {
		return fmt.Errorf("unsupported store type %q", c.Store.Type)
	}
	if c.Store.Host == "" {
		return fmt.Errorf("store host is required")
	}
	if len(c.AllowedTables) == 0 {
		return fmt.Errorf("at least one allowed table is required")
	}
	if !validProviders[c.Completion.Provider] {
		return fmt.Errorf("unsupported completion provider %q", c.Completion.Provider)
	}
	if c.Completion.Provider == "openai" && c.Completion.BaseURL == "" {
		return fmt.Errorf("completion base_url is required for provider %q", c.Completion.Provider)
	}
	if c.Timeouts.Store <= 0 || c.Timeouts.Completion <= 0 || c.Timeouts.Request <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Catalog.CacheTTL < 0 {
		return fmt.Errorf("catalog cache_ttl must not be negative")
	}
	if c.Catalog.MaxSampleRows < 1 {
		return fmt.Errorf("catalog max_sample_rows must be at least 1")
	}
	if c.Catalog.DefaultSampleRows < 1 {
		return fmt.Errorf("catalog default_sample_rows must be at least 1")
	}
	return nil
}

// IsLocal reports whether the server runs in a local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "dev"
}
