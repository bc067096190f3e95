package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all recallwatch configuration.
type Config struct {
	Listen     string          `yaml:"listen" validate:"required"`
	CORSOrigin string          `yaml:"cors_origin"`
	Log        LogConfig       `yaml:"log"`
	Upstream   UpstreamConfig  `yaml:"upstream"`
	Generator  GeneratorConfig `yaml:"generator"`
	Cache      CacheConfig     `yaml:"cache"`
	Reconcile  ReconcileConfig `yaml:"reconcile"`
	History    HistoryConfig   `yaml:"history"`
	Warm       WarmConfig      `yaml:"warm"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// UpstreamConfig points at the openFDA enforcement endpoint.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries" validate:"gte=0,lte=10"`
}

// GeneratorConfig controls summary generation.
type GeneratorConfig struct {
	Model        string           `yaml:"model"`
	Timeout      time.Duration    `yaml:"timeout"`
	MaxTokens    int              `yaml:"max_tokens" validate:"gte=0"`
	Temperature  float64          `yaml:"temperature" validate:"gte=0,lte=2"`
	SystemPrompt string           `yaml:"system_prompt"`
	Providers    []ProviderConfig `yaml:"providers" validate:"dive"`
	Routes       []RouteConfig    `yaml:"routes" validate:"dive"`
}

// RouteConfig maps a model alias to an ordered list of targets.
type RouteConfig struct {
	Model   string        `yaml:"model" validate:"required"`
	Targets []RouteTarget `yaml:"targets" validate:"min=1,dive"`
}

// RouteTarget identifies a specific provider and model in a fallback chain.
type RouteTarget struct {
	Provider string `yaml:"provider" validate:"required"`
	Model    string `yaml:"model"`
}

// ProviderConfig defines an upstream LLM provider.
// Type is "openai" (default) or "anthropic".
type ProviderConfig struct {
	Name   string `yaml:"name" validate:"required"`
	URL    string `yaml:"url" validate:"required,url"`
	APIKey string `yaml:"api_key"`
	Type   string `yaml:"type" validate:"omitempty,oneof=openai anthropic"`
}

// CacheConfig selects the summary cache backend.
type CacheConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=sqlite redis"`
	DBPath  string      `yaml:"db_path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig is used when the cache backend is redis.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// ReconcileConfig bounds the reconciliation procedure.
type ReconcileConfig struct {
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	// MaxStale bounds how long a cached summary may be served without
	// confirmation from upstream. Zero means no bound.
	MaxStale      time.Duration `yaml:"max_stale"`
	WaitForFlight bool          `yaml:"wait_for_flight"`
}

// HistoryConfig controls the regeneration history log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	// RetentionDays prunes older events hourly. Zero keeps everything.
	RetentionDays int `yaml:"retention_days" validate:"gte=0"`
}

// WarmConfig controls batch warm-up.
type WarmConfig struct {
	Concurrency int `yaml:"concurrency" validate:"gte=1"`
	WindowDays  int `yaml:"window_days" validate:"gte=1"`
	Limit       int `yaml:"limit" validate:"gte=1,lte=1000"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log: LogConfig{
			Level: "info",
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.fda.gov/food/enforcement.json",
			Timeout: 10 * time.Second,
			Retries: 2,
		},
		Generator: GeneratorConfig{
			Timeout:     60 * time.Second,
			MaxTokens:   3000,
			Temperature: 0.7,
		},
		Cache: CacheConfig{
			Backend: "sqlite",
			DBPath:  "recallwatch.db",
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				LockTTL: 90 * time.Second,
			},
		},
		Reconcile: ReconcileConfig{
			FetchTimeout:      10 * time.Second,
			GenerationTimeout: 60 * time.Second,
		},
		History: HistoryConfig{
			DBPath: "recallwatch-history.db",
		},
		Warm: WarmConfig{
			Concurrency: 4,
			WindowDays:  100,
			Limit:       300,
		},
	}
}

// Load reads a YAML config file and expands environment variables. A .env
// file in the working directory, if present, is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-references between routes
// and providers.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	names := make(map[string]bool, len(c.Generator.Providers))
	for _, p := range c.Generator.Providers {
		if names[p.Name] {
			return fmt.Errorf("invalid config: duplicate provider %q", p.Name)
		}
		names[p.Name] = true
	}
	for _, r := range c.Generator.Routes {
		for _, t := range r.Targets {
			if !names[t.Provider] {
				return fmt.Errorf("invalid config: route %q references unknown provider %q", r.Model, t.Provider)
			}
		}
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("invalid config: cache.redis.addr is required for the redis backend")
	}
	if c.Cache.Backend == "sqlite" && c.Cache.DBPath == "" {
		return fmt.Errorf("invalid config: cache.db_path is required for the sqlite backend")
	}
	return nil
}
