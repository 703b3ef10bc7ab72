// Package config provides unified configuration loading for the appraisal engine.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the appraisal engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Reduce        ReduceConfig        `yaml:"reduce"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Model         ModelConfig         `yaml:"model"`
	Snapshot      SnapshotConfig      `yaml:"snapshot"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
}

// LLMConfig holds settings for the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	HistoryTurns int           `yaml:"history_turns"`
	Temperature  float32       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
}

// ReduceConfig holds recursive reduction settings.
type ReduceConfig struct {
	TokenCeiling int     `yaml:"token_ceiling"`
	MinRatio     float64 `yaml:"min_ratio"`
	MaxRatio     float64 `yaml:"max_ratio"`
	KeepUnpaired bool    `yaml:"keep_unpaired"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	MinTrainRows int  `yaml:"min_train_rows"`
	Persist      bool `yaml:"persist"`
	QueueSize    int  `yaml:"queue_size"`
}

// ModelConfig holds regressor settings.
type ModelConfig struct {
	RoundsPerCall  int     `yaml:"rounds_per_call"`
	LearningRate   float64 `yaml:"learning_rate"`
	MaxDepth       int     `yaml:"max_depth"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf"`
	SnapshotName   string  `yaml:"snapshot_name"`
}

// SnapshotConfig selects where model snapshots are stored.
type SnapshotConfig struct {
	Driver          string        `yaml:"driver"` // file, sqlite or postgres
	Path            string        `yaml:"path"`   // directory for file, database path for sqlite
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds summary cache settings.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Driver        string        `yaml:"driver"` // memory or redis
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	Redis         RedisConfig   `yaml:"redis"`
	UpdateChannel string        `yaml:"update_channel"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL      string `yaml:"url"` // redis://[:password@]host:port/db; overrides the fields below
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads .env files, then the YAML config at path, then applies environment overrides.
// An empty path falls back to CONFIG_PATH, and then to defaults.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Snapshot.Driver != "postgres" && cfg.Snapshot.Path != "" {
			cfg.Snapshot.Path = ResolveRelativePath(path, cfg.Snapshot.Path)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5001,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     10 * time.Minute,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   10 * time.Minute,
			GracefulShutdown: 30 * time.Second,
			MaxBodyBytes:     10 << 20,
		},
		LLM: LLMConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			Model:        "meta-llama/llama-3.1-8b-instruct",
			Timeout:      120 * time.Second,
			HistoryTurns: 10,
			Temperature:  0,
			MaxTokens:    2048,
		},
		Reduce: ReduceConfig{
			TokenCeiling: 900,
			MinRatio:     0.4,
			MaxRatio:     0.6,
			KeepUnpaired: false,
		},
		Pipeline: PipelineConfig{
			MinTrainRows: 2,
			Persist:      true,
			QueueSize:    16,
		},
		Model: ModelConfig{
			RoundsPerCall:  50,
			LearningRate:   0.1,
			MaxDepth:       4,
			MinSamplesLeaf: 1,
			SnapshotName:   "price-regressor",
		},
		Snapshot: SnapshotConfig{
			Driver:          "file",
			Path:            "data/models",
			MaxOpenConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Driver:     "memory",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
			UpdateChannel: "model.updated",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "appraisal-engine",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm base_url is required")
	}

	if c.LLM.HistoryTurns < 0 {
		return fmt.Errorf("llm history_turns must not be negative")
	}

	if c.Reduce.TokenCeiling < 1 {
		return fmt.Errorf("reduce token_ceiling must be positive")
	}

	if c.Reduce.MinRatio <= 0 || c.Reduce.MaxRatio > 1 || c.Reduce.MinRatio > c.Reduce.MaxRatio {
		return fmt.Errorf("reduce ratios must satisfy 0 < min_ratio <= max_ratio <= 1")
	}

	if c.Pipeline.MinTrainRows < 1 {
		return fmt.Errorf("pipeline min_train_rows must be at least 1")
	}

	if c.Model.RoundsPerCall < 1 {
		return fmt.Errorf("model rounds_per_call must be positive")
	}

	if c.Model.LearningRate <= 0 || c.Model.LearningRate > 1 {
		return fmt.Errorf("model learning_rate must be in (0, 1]")
	}

	if c.Model.MaxDepth < 1 {
		return fmt.Errorf("model max_depth must be positive")
	}

	if c.Model.SnapshotName == "" {
		return fmt.Errorf("model snapshot_name is required")
	}

	switch c.Snapshot.Driver {
	case "file", "sqlite":
		if c.Snapshot.Path == "" {
			return fmt.Errorf("snapshot path is required for driver %s", c.Snapshot.Driver)
		}
	case "postgres":
		if c.Snapshot.DSN == "" {
			return fmt.Errorf("snapshot dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("invalid snapshot driver: %s", c.Snapshot.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	return nil
}

// SnapshotDSN returns the connection string for SQL snapshot drivers.
func (c *Config) SnapshotDSN() string {
	if c.Snapshot.Driver == "sqlite" {
		return c.Snapshot.Path
	}
	return c.Snapshot.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("SNAPSHOT_DRIVER"); v != "" {
		cfg.Snapshot.Driver = v
	}

	if v := os.Getenv("SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Snapshot.Driver = "sqlite"
			cfg.Snapshot.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Snapshot.Driver = "postgres"
			cfg.Snapshot.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.URL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
