package config

// PipelineConfig configures the synchronous turn pipeline.
type PipelineConfig struct {
	// MaxRepairAttempts bounds the Generator<->Supervisor repair loop.
	// Past the bound the last draft is force-accepted.
	MaxRepairAttempts int `yaml:"max_repair_attempts"`

	// Token budgets by form factor
	MaxTokens      int `yaml:"max_tokens"`
	MaxTokensShort int `yaml:"max_tokens_short"` // voice and other short-form modes

	// Generation temperatures
	DraftTemperature  float64 `yaml:"draft_temperature"`
	RepairTemperature float64 `yaml:"repair_temperature"`
	JudgeTemperature  float64 `yaml:"judge_temperature"`

	// Supervisor quick-check limits
	ShortFormMaxChars int `yaml:"short_form_max_chars"`

	// Plan length bounds
	MaxPlanSteps int `yaml:"max_plan_steps"`
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxRepairAttempts: 2,
		MaxTokens:         1024,
		MaxTokensShort:    256,
		DraftTemperature:  0.8,
		RepairTemperature: 0.4,
		JudgeTemperature:  0.1,
		ShortFormMaxChars: 400,
		MaxPlanSteps:      6,
	}
}
