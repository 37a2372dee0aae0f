package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdirTemp switches into a fresh temp directory for the duration of the test
// so Load() does not pick up a config.yaml from the repository.
func chdirTemp(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	t.Setenv("RESOLVE_DOCKER_HOSTS", "false")
	os.Unsetenv("CONFIG_PATH")
	return tmpDir
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := chdirTemp(t)

	yamlContent := `
port: "9000"
env: "test"
store:
  type: clickhouse
  host: "ch.example.com"
  port: 9440
  database: "testdb"
allowed_tables:
  - users
  - orders
completion:
  provider: keyword
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	os.Unsetenv("CLICKHOUSE_HOST")
	os.Unsetenv("ALLOWED_TABLES")
	t.Setenv("PORT", "4443")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CLICKHOUSE_PASSWORD", "s3cret")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4443" {
		t.Errorf("expected Port=4443 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Store.Host != "ch.example.com" {
		t.Errorf("expected Store.Host=ch.example.com (from yaml), got %s", cfg.Store.Host)
	}
	if cfg.Store.Password != "s3cret" {
		t.Errorf("expected Store.Password from env")
	}
	if len(cfg.AllowedTables) != 2 || cfg.AllowedTables[0] != "users" || cfg.AllowedTables[1] != "orders" {
		t.Errorf("expected allowed tables [users orders], got %v", cfg.AllowedTables)
	}
	if cfg.Completion.Provider != "keyword" {
		t.Errorf("expected provider keyword, got %s", cfg.Completion.Provider)
	}
}

func TestLoad_MissingDefaultFileUsesEnv(t *testing.T) {
	chdirTemp(t)

	os.Unsetenv("CLICKHOUSE_HOST")
	os.Unsetenv("STORE_TYPE")
	os.Unsetenv("COMPLETION_PROVIDER")
	t.Setenv("ALLOWED_TABLES", "users, orders ,users,,products")

	cfg, err := Load("v")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []string{"users", "orders", "products"}
	if len(cfg.AllowedTables) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.AllowedTables)
	}
	for i := range want {
		if cfg.AllowedTables[i] != want[i] {
			t.Errorf("allowed[%d] = %q, want %q", i, cfg.AllowedTables[i], want[i])
		}
	}
	if cfg.Store.Type != "clickhouse" {
		t.Errorf("expected default store type clickhouse, got %s", cfg.Store.Type)
	}
	if cfg.Store.Host != "localhost" {
		t.Errorf("expected default host localhost, got %s", cfg.Store.Host)
	}
}

func TestLoad_ExplicitMissingConfigFile(t *testing.T) {
	tmpDir := chdirTemp(t)
	t.Setenv("CONFIG_PATH", filepath.Join(tmpDir, "nope.yaml"))

	if _, err := Load("v"); err == nil {
		t.Error("expected error when CONFIG_PATH points to a missing file")
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	for _, k := range []string{"STORE_TIMEOUT", "COMPLETION_TIMEOUT", "REQUEST_TIMEOUT",
		"CATALOG_CACHE_TTL", "CATALOG_MAX_SAMPLE_ROWS", "CATALOG_DEFAULT_SAMPLE_ROWS", "ALLOWED_TABLES"} {
		os.Unsetenv(k)
	}

	cfg, err := Load("v")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Timeouts.Store != 10*time.Second {
		t.Errorf("expected store timeout 10s, got %v", cfg.Timeouts.Store)
	}
	if cfg.Timeouts.Completion != 30*time.Second {
		t.Errorf("expected completion timeout 30s, got %v", cfg.Timeouts.Completion)
	}
	if cfg.Catalog.CacheTTL != 0 {
		t.Errorf("expected cache disabled by default, got %v", cfg.Catalog.CacheTTL)
	}
	if cfg.Catalog.MaxSampleRows != 10 || cfg.Catalog.DefaultSampleRows != 5 {
		t.Errorf("unexpected sample defaults: max=%d default=%d", cfg.Catalog.MaxSampleRows, cfg.Catalog.DefaultSampleRows)
	}
	if len(cfg.AllowedTables) != 5 {
		t.Errorf("expected 5 default allowed tables, got %v", cfg.AllowedTables)
	}
}

func TestLoad_SampleRowsCapped(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CATALOG_MAX_SAMPLE_ROWS", "5000")
	t.Setenv("CATALOG_DEFAULT_SAMPLE_ROWS", "4000")

	cfg, err := Load("v")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Catalog.MaxSampleRows != HardMaxSampleRows {
		t.Errorf("expected max sample rows capped at %d, got %d", HardMaxSampleRows, cfg.Catalog.MaxSampleRows)
	}
	if cfg.Catalog.DefaultSampleRows != HardMaxSampleRows {
		t.Errorf("expected default sample rows capped at %d, got %d", HardMaxSampleRows, cfg.Catalog.DefaultSampleRows)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:         StoreConfig{Type: "clickhouse", Host: "localhost"},
			AllowedTables: []string{"users"},
			Completion:    CompletionConfig{Provider: "openai", BaseURL: "http://localhost:8000/v1"},
			Timeouts:      TimeoutConfig{Store: time.Second, Completion: time.Second, Request: time.Second},
			Catalog:       CatalogConfig{MaxSampleRows: 10, DefaultSampleRows: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown store", func(c *Config) { c.Store.Type = "oracle" }, true},
		{"no host", func(c *Config) { c.Store.Host = "" }, true},
		{"empty allow-list", func(c *Config) { c.AllowedTables = nil }, true},
		{"unknown provider", func(c *Config) { c.Completion.Provider = "gemini" }, true},
		{"openai without url", func(c *Config) { c.Completion.BaseURL = "" }, true},
		{"keyword without url", func(c *Config) { c.Completion.Provider = "keyword"; c.Completion.BaseURL = "" }, false},
		{"zero timeout", func(c *Config) { c.Timeouts.Store = 0 }, true},
		{"negative ttl", func(c *Config) { c.Catalog.CacheTTL = -time.Second }, true},
		{"zero max rows", func(c *Config) { c.Catalog.MaxSampleRows = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
