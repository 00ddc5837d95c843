// Package config holds all selene configuration.
// Config is loaded from .selene/config.yaml with SELENE_* env overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all selene configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// StateDir is where selene keeps its database, logs and identity documents.
	StateDir string `yaml:"state_dir"`

	// LLM configuration (providers, per-tier models)
	LLM LLMConfig `yaml:"llm"`

	// Router configuration
	Router RouterConfig `yaml:"router"`

	// Synchronous pipeline configuration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Asynchronous critique queue configuration
	Critique CritiqueConfig `yaml:"critique"`

	// Memory retrieval configuration
	Memory MemoryConfig `yaml:"memory"`

	// Store configuration
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MemoryConfig configures memory context retrieval.
type MemoryConfig struct {
	// MaxFacts limits fact blocks per turn
	MaxFacts int `yaml:"max_facts"`

	// MaxActions limits recent-action blocks per turn
	MaxActions int `yaml:"max_actions"`

	// MaxConversations limits conversation excerpt blocks per turn
	MaxConversations int `yaml:"max_conversations"`

	// Embeddings enables the genai embedding ranker. Keyword overlap
	// scoring is used when disabled or when embedding calls fail.
	Embeddings bool   `yaml:"embeddings"`
	GenAIKey   string `yaml:"genai_api_key"`
	GenAIModel string `yaml:"genai_model"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Name:     "selene",
		Version:  "0.1.0",
		StateDir: ".selene",
		LLM:      DefaultLLMConfig(),
		Router:   DefaultRouterConfig(),
		Pipeline: DefaultPipelineConfig(),
		Critique: DefaultCritiqueConfig(),
		Memory: MemoryConfig{
			MaxFacts:         8,
			MaxActions:       5,
			MaxConversations: 3,
			GenAIModel:       "gemini-embedding-001",
		},
		Store: StoreConfig{
			DatabasePath: filepath.Join(".selene", "selene.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config from path, applying defaults for missing fields and
// SELENE_* env overrides on top. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants downstream components assume.
func (c *Config) Validate() error {
	if c.Pipeline.MaxRepairAttempts < 1 {
		return fmt.Errorf("pipeline.max_repair_attempts must be >= 1")
	}
	if c.Critique.WorkerCount < 1 {
		return fmt.Errorf("critique.worker_count must be >= 1")
	}
	if c.Critique.JobsPerMinute < 1 {
		return fmt.Errorf("critique.jobs_per_minute must be >= 1")
	}
	if c.Router.ConfidenceThreshold <= 0 || c.Router.ConfidenceThreshold > 1 {
		return fmt.Errorf("router.confidence_threshold must be in (0,1]")
	}
	return nil
}

// applyEnvOverrides applies SELENE_* environment variables.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("SELENE_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("SELENE_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("SELENE_ANTHROPIC_API_KEY"); v != "" {
		c.LLM.AnthropicAPIKey = v
	}
	if v := os.Getenv("SELENE_OPENAI_API_KEY"); v != "" {
		c.LLM.OpenAIAPIKey = v
	}
	if v := os.Getenv("SELENE_GENAI_API_KEY"); v != "" {
		c.Memory.GenAIKey = v
	}
	if v := os.Getenv("SELENE_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// parseDuration parses a duration string, returning fallback on empty or
// malformed input. Duration fields are kept as strings in YAML.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
