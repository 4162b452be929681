// Package config loads service configuration from an optional YAML file and
// MOD_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

// DefaultPath is the config file read when Load is given no path.
const DefaultPath = "config.yaml"

const envPrefix = "MOD_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Providers ProvidersConfig `koanf:"providers"`
	Cache     CacheConfig     `koanf:"cache"`
	Stats     StatsConfig     `koanf:"stats"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type ProvidersConfig struct {
	Preferred   string        `koanf:"preferred"`
	CallTimeout time.Duration `koanf:"call_timeout"`
	OpenAI      OpenAIConfig  `koanf:"openai"`
	Gemini      GeminiConfig  `koanf:"gemini"`
}

type OpenAIConfig struct {
	APIKey      string `koanf:"api_key"`
	BaseURL     string `koanf:"base_url"`
	TextModel   string `koanf:"text_model"`
	VisionModel string `koanf:"vision_model"`
	ImageModel  string `koanf:"image_model"`
}

type GeminiConfig struct {
	APIKey      string `koanf:"api_key"`
	BaseURL     string `koanf:"base_url"`
	TextModel   string `koanf:"text_model"`
	VisionModel string `koanf:"vision_model"`
}

// Cache types.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

type CacheConfig struct {
	Type string        `koanf:"type"`
	TTL  time.Duration `koanf:"ttl"`

	// SweepInterval is how often memory and sqlite stores drop expired
	// entries. Redis expires keys itself.
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Redis         RedisConfig   `koanf:"redis"`
	SQLite        SQLiteConfig  `koanf:"sqlite"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type StatsConfig struct {
	Interval       time.Duration `koanf:"interval"`
	CostPerRequest float64       `koanf:"cost_per_request"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":            3001,
	"server.request_timeout": "90s",
	"providers.preferred":    string(domain.DefaultProvider),
	"providers.call_timeout": "60s",
	"cache.type":             CacheMemory,
	"cache.ttl":              "1h",
	"cache.sweep_interval":   "1m",
	"cache.sqlite.path":      "moderation-cache.db",
	"stats.interval":         "5m",
	"stats.cost_per_request": 0.005,
	"telemetry.service_name": "moderation-gateway",
}

// legacyEnv maps unprefixed variable names onto config keys. They apply only
// when the key is otherwise unset.
var legacyEnv = map[string]string{
	"OPENAI_API_KEY": "providers.openai.api_key",
	"GEMINI_API_KEY": "providers.gemini.api_key",
	"REDIS_URL":      "cache.redis.url",
	"PORT":           "server.port",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), then MOD_ environment variables,
// then legacy variables and defaults for anything still unset. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// MOD_PROVIDERS__OPENAI__API_KEY -> providers.openai.api_key
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for name, key := range legacyEnv {
		if v, ok := os.LookupEnv(name); ok && v != "" && !k.Exists(key) {
			k.Set(key, v)
		}
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Providers.OpenAI.APIKey = substituteEnvVars(cfg.Providers.OpenAI.APIKey)
	cfg.Providers.Gemini.APIKey = substituteEnvVars(cfg.Providers.Gemini.APIKey)
	cfg.Providers.Preferred = strings.ToLower(strings.TrimSpace(cfg.Providers.Preferred))
	cfg.Cache.Type = strings.ToLower(strings.TrimSpace(cfg.Cache.Type))

	return &cfg, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Providers.OpenAI.APIKey == "" {
		return errors.New("providers.openai.api_key is required (or set OPENAI_API_KEY)")
	}

	preferred, err := domain.ParseProvider(c.Providers.Preferred)
	if err != nil {
		return fmt.Errorf("providers.preferred: %w", err)
	}
	if preferred == domain.ProviderGemini && c.Providers.Gemini.APIKey == "" {
		return errors.New("providers.preferred is gemini but providers.gemini.api_key is not set")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Cache.Type {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.URL == "" {
			return errors.New("cache.redis.url is required for the redis cache")
		}
	case CacheSQLite:
		if c.Cache.SQLite.Path == "" {
			return errors.New("cache.sqlite.path is required for the sqlite cache")
		}
	default:
		return fmt.Errorf("unknown cache.type %q", c.Cache.Type)
	}
	return nil
}

// PreferredProvider returns the validated preferred provider.
func (c *Config) PreferredProvider() domain.Provider {
	p, err := domain.ParseProvider(c.Providers.Preferred)
	if err != nil {
		return domain.DefaultProvider
	}
	return p
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
