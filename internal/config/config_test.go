package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 90*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 90s", cfg.Server.RequestTimeout)
	}
	if cfg.Providers.CallTimeout != 60*time.Second {
		t.Errorf("Providers.CallTimeout = %v, want 60s", cfg.Providers.CallTimeout)
	}
	if cfg.Providers.Preferred != "openai" {
		t.Errorf("Providers.Preferred = %q, want openai", cfg.Providers.Preferred)
	}
	if cfg.Cache.Type != CacheMemory || cfg.Cache.TTL != time.Hour || cfg.Cache.SweepInterval != time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Stats.Interval != 5*time.Minute || cfg.Stats.CostPerRequest != 0.005 {
		t.Errorf("Stats = %+v", cfg.Stats)
	}
	if cfg.Server.Addr() != ":3001" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("FILE_GEMINI_KEY", "gm-from-file-env")
	path := writeConfig(t, `
server:
  port: 8088
providers:
  preferred: Gemini
  openai:
    api_key: sk-file
    text_model: gpt-4o-mini
  gemini:
    api_key: ${FILE_GEMINI_KEY}
cache:
  type: sqlite
  ttl: 10m
  sqlite:
    path: /tmp/cache.db
`)
	t.Setenv("MOD_SERVER__PORT", "9000")
	t.Setenv("MOD_PROVIDERS__OPENAI__API_KEY", "sk-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want env override 9000", cfg.Server.Port)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-env" {
		t.Errorf("OpenAI.APIKey = %q, want sk-env", cfg.Providers.OpenAI.APIKey)
	}
	if cfg.Providers.OpenAI.TextModel != "gpt-4o-mini" {
		t.Errorf("OpenAI.TextModel = %q", cfg.Providers.OpenAI.TextModel)
	}
	if cfg.Providers.Gemini.APIKey != "gm-from-file-env" {
		t.Errorf("Gemini.APIKey = %q, want substituted value", cfg.Providers.Gemini.APIKey)
	}
	if cfg.PreferredProvider() != domain.ProviderGemini {
		t.Errorf("PreferredProvider() = %q, want gemini", cfg.PreferredProvider())
	}
	if cfg.Cache.Type != CacheSQLite || cfg.Cache.TTL != 10*time.Minute || cfg.Cache.SQLite.Path != "/tmp/cache.db" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("GEMINI_API_KEY", "gm-legacy")
	t.Setenv("PORT", "4000")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-legacy" || cfg.Providers.Gemini.APIKey != "gm-legacy" {
		t.Errorf("keys = %q, %q", cfg.Providers.OpenAI.APIKey, cfg.Providers.Gemini.APIKey)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}

	t.Setenv("MOD_PROVIDERS__OPENAI__API_KEY", "sk-namespaced")
	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-namespaced" {
		t.Errorf("OpenAI.APIKey = %q, namespaced key must win", cfg.Providers.OpenAI.APIKey)
	}
}

func TestLoad_BadFile(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want parse failure")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 3001},
			Providers: ProvidersConfig{Preferred: "openai", OpenAI: OpenAIConfig{APIKey: "sk"}},
			Cache:     CacheConfig{Type: CacheMemory},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing openai key", func(c *Config) { c.Providers.OpenAI.APIKey = "" }, "api_key is required"},
		{"unknown preferred", func(c *Config) { c.Providers.Preferred = "anthropic" }, "providers.preferred"},
		{"gemini preferred without key", func(c *Config) { c.Providers.Preferred = "gemini" }, "gemini.api_key"},
		{"gemini preferred with key", func(c *Config) {
			c.Providers.Preferred = "gemini"
			c.Providers.Gemini.APIKey = "gm"
		}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "out of range"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, "unknown cache.type"},
		{"redis without url", func(c *Config) { c.Cache.Type = CacheRedis }, "cache.redis.url"},
		{"redis with url", func(c *Config) {
			c.Cache.Type = CacheRedis
			c.Cache.Redis.URL = "redis://localhost:6379"
		}, ""},
		{"sqlite without path", func(c *Config) { c.Cache.Type = CacheSQLite }, "cache.sqlite.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple substitution", "${TEST_VAR}", "test-value"},
		{"with prefix", "key-${TEST_VAR}", "key-test-value"},
		{"missing var", "${UNSET_TEST_VAR_XYZ}", ""},
		{"no substitution", "plain-key", "plain-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
