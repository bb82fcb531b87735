// Package config loads and validates service configuration from YAML, with
// environment variable expansion for secrets.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/duskpoint/reverie/internal/observability"
	"github.com/duskpoint/reverie/internal/scheduler"
)

// Config is the root service configuration.
type Config struct {
	Logging  observability.LogConfig   `yaml:"logging"`
	Tracing  observability.TraceConfig `yaml:"tracing"`
	Metrics  MetricsConfig             `yaml:"metrics"`
	Database DatabaseConfig            `yaml:"database"`
	LLM      LLMConfig                 `yaml:"llm"`
	Loop     LoopConfig                `yaml:"loop"`

	// Schedules are the tick schedules served by the scheduler.
	Schedules []scheduler.TickSchedule `yaml:"schedules"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics listener on.
	Enabled bool `yaml:"enabled"`

	// Listen is the address for the metrics listener. Default ":9090".
	Listen string `yaml:"listen"`
}

// DatabaseConfig selects and configures the actor store.
type DatabaseConfig struct {
	// Driver is "postgres", "sqlite", or "memory".
	Driver string `yaml:"driver"`

	// DSN is the connection string. For sqlite this is the file path.
	// Supports ${ENV_VAR} expansion.
	DSN string `yaml:"dsn"`
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	// Provider is "anthropic" or "openai".
	Provider string `yaml:"provider"`

	// Model is the provider model name.
	Model string `yaml:"model"`

	// APIKey supports ${ENV_VAR} expansion; prefer setting it via
	// environment rather than inline.
	APIKey string `yaml:"api_key"`

	// MaxRetries bounds retry attempts on transient provider failures.
	MaxRetries int `yaml:"max_retries"`

	// Timeout bounds one completion call.
	Timeout time.Duration `yaml:"timeout"`
}

// LoopConfig tunes the workflow engine.
type LoopConfig struct {
	// MaxIterations caps iterations per run. Default 5.
	MaxIterations int `yaml:"max_iterations"`

	// SerializeActors queues concurrent runs for the same actor instead of
	// letting them race on heat updates.
	SerializeActors bool `yaml:"serialize_actors"`

	// ToolConcurrency bounds parallel data-tool dispatch. Default 5.
	ToolConcurrency int `yaml:"tool_concurrency"`

	// ToolTimeout bounds one tool execution. Default 30s.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
}

// Load reads, expands, and validates a config file.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes config bytes strictly: unknown fields are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(cfg)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// An empty file is all defaults.
	if err == nil {
		if err := decoder.Decode(&struct{}{}); err != io.EOF {
			return nil, fmt.Errorf("failed to parse config: expected single document")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when a field is omitted.
func Default() *Config {
	return &Config{
		Logging: observability.LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Listen: ":9090"},
		Database: DatabaseConfig{
			Driver: "memory",
		},
		LLM: LLMConfig{
			Provider:   "anthropic",
			MaxRetries: 3,
			Timeout:    60 * time.Second,
		},
		Loop: LoopConfig{
			MaxIterations:   5,
			ToolConcurrency: 5,
			ToolTimeout:     30 * time.Second,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if c.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be at least 1")
	}
	for i, s := range c.Schedules {
		if s.Cron == "" {
			return fmt.Errorf("schedules[%d]: cron expression is required", i)
		}
		if len(s.ActorIDs) == 0 {
			return fmt.Errorf("schedules[%d]: actor_ids is required", i)
		}
	}
	return nil
}
