package config

import "time"

// LLMConfig configures completion providers and per-tier model selection.
type LLMConfig struct {
	// Provider is the default provider: anthropic, openai
	Provider string `yaml:"provider"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicURL    string `yaml:"anthropic_base_url"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIURL       string `yaml:"openai_base_url"`

	// Tier model map. The router picks a tier; this maps it to a model.
	NanoModel string `yaml:"nano_model"`
	ProModel  string `yaml:"pro_model"`

	// JudgeModel is the low-cost model used by the Supervisor and the
	// critique worker. ClassifierModel is the low-cost model used by the
	// router's remote intent classifier.
	JudgeModel      string `yaml:"judge_model"`
	ClassifierModel string `yaml:"classifier_model"`

	// Timeout for completion calls
	Timeout string `yaml:"timeout"`

	// ResolverTTL bounds how long a (user, task) -> model resolution is cached
	ResolverTTL string `yaml:"resolver_ttl"`
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:        "anthropic",
		AnthropicURL:    "https://api.anthropic.com/v1",
		OpenAIURL:       "https://api.openai.com/v1",
		NanoModel:       "claude-3-5-haiku-20241022",
		ProModel:        "claude-sonnet-4-20250514",
		JudgeModel:      "claude-3-5-haiku-20241022",
		ClassifierModel: "claude-3-5-haiku-20241022",
		Timeout:         "120s",
		ResolverTTL:     "5m",
	}
}

// GetTimeout returns the completion call timeout.
func (c LLMConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 120*time.Second)
}

// GetResolverTTL returns the model resolver cache TTL.
func (c LLMConfig) GetResolverTTL() time.Duration {
	return parseDuration(c.ResolverTTL, 5*time.Minute)
}
