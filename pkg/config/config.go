// Package config loads sagalens settings from a YAML file, an optional .env
// file and SAGALENS_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/sagalens/internal/logging"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: SAGALENS_REDIS__ADDR sets redis.addr.
const EnvPrefix = "SAGALENS_"

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "sagalens.yaml"

// Transport kinds.
const (
	TransportSSE   = "sse"
	TransportRedis = "redis"
)

// History kinds.
const (
	HistoryMemory = "memory"
	HistoryRedis  = "redis"
)

// Config is the full sagalens configuration.
type Config struct {
	// Name labels the monitored application in logs and on the redis channel.
	Name string `yaml:"name" koanf:"name"`
	// Except lists task descriptions that are never shipped.
	Except       []string `yaml:"except" koanf:"except"`
	BufferLimit  int      `yaml:"buffer_limit" koanf:"buffer_limit"`
	LogLevel     string   `yaml:"log_level" koanf:"log_level"`
	LogFormat    string   `yaml:"log_format" koanf:"log_format"`
	Transport    string   `yaml:"transport" koanf:"transport"`
	History      string   `yaml:"history" koanf:"history"`
	HistoryLimit int      `yaml:"history_limit" koanf:"history_limit"`

	HTTP  HTTPConfig  `yaml:"http" koanf:"http"`
	MCP   MCPConfig   `yaml:"mcp" koanf:"mcp"`
	Redis RedisConfig `yaml:"redis" koanf:"redis"`
}

// HTTPConfig configures the dashboard and ingest server.
type HTTPConfig struct {
	Addr string `yaml:"addr" koanf:"addr"`
}

// MCPConfig configures the MCP inspection server (SSE transport).
type MCPConfig struct {
	Enabled bool `yaml:"enabled" koanf:"enabled"`
	Port    int  `yaml:"port" koanf:"port"`
}

// RedisConfig configures the redis transport and history store.
type RedisConfig struct {
	Addr     string        `yaml:"addr" koanf:"addr"`
	Password string        `yaml:"password" koanf:"password"`
	DB       int           `yaml:"db" koanf:"db"`
	Channel  string        `yaml:"channel" koanf:"channel"`
	Prefix   string        `yaml:"prefix" koanf:"prefix"`
	Codec    string        `yaml:"codec" koanf:"codec"`
	TTL      time.Duration `yaml:"ttl" koanf:"ttl"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		BufferLimit:  1000,
		LogLevel:     "info",
		LogFormat:    "text",
		Transport:    TransportSSE,
		History:      HistoryMemory,
		HistoryLimit: 500,
		HTTP:         HTTPConfig{Addr: ":8080"},
		MCP:          MCPConfig{Port: 8081},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "sagalens:messages",
			Prefix:  "sagalens:",
			Codec:   "json",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadDotEnv loads variables from .env files into the process environment
// without overriding variables already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	k := koanf.New(".")
	provider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__", ".")
		if key == "except" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
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

// Validate rejects values the runtime cannot act on.
func (c *Config) Validate() error {
	var errs []error
	if c.Transport != TransportSSE && c.Transport != TransportRedis {
		errs = append(errs, fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportSSE, TransportRedis))
	}
	if c.History != HistoryMemory && c.History != HistoryRedis {
		errs = append(errs, fmt.Errorf("unknown history %q (want %s or %s)", c.History, HistoryMemory, HistoryRedis))
	}
	if c.Redis.Codec != "json" && c.Redis.Codec != "msgpack" {
		errs = append(errs, fmt.Errorf("unknown redis codec %q", c.Redis.Codec))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.MCP.Enabled && (c.MCP.Port <= 0 || c.MCP.Port > 65535) {
		errs = append(errs, fmt.Errorf("invalid mcp port %d", c.MCP.Port))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Logger builds the application logger described by the configuration.
func (c *Config) Logger() *slog.Logger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.New(level, c.LogFormat)
}

// UsesRedis reports whether any component needs a redis connection.
func (c *Config) UsesRedis() bool {
	return c.Transport == TransportRedis || c.History == HistoryRedis
}
