package config

import "time"

// CritiqueConfig configures the asynchronous critique queue.
type CritiqueConfig struct {
	// WorkerCount bounds concurrent critique jobs
	WorkerCount int `yaml:"worker_count"`

	// JobsPerMinute is the global admission rate limit, independent of the
	// synchronous path
	JobsPerMinute int `yaml:"jobs_per_minute"`

	// MaxRetries bounds per-job retry attempts
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the base backoff between retries (doubles per attempt)
	RetryBackoff string `yaml:"retry_backoff"`

	// Retention is how long completed/failed job rows are kept
	Retention string `yaml:"retention"`

	// SweepInterval is how often the retention sweep runs
	SweepInterval string `yaml:"sweep_interval"`

	// Hint weight dynamics
	HintWeightStep float64 `yaml:"hint_weight_step"`
	HintMaxWeight  float64 `yaml:"hint_max_weight"`
}

// DefaultCritiqueConfig returns sensible defaults.
func DefaultCritiqueConfig() CritiqueConfig {
	return CritiqueConfig{
		WorkerCount:    2,
		JobsPerMinute:  30,
		MaxRetries:     3,
		RetryBackoff:   "2s",
		Retention:      "168h", // 7 days
		SweepInterval:  "1h",
		HintWeightStep: 0.25,
		HintMaxWeight:  2.0,
	}
}

// GetRetryBackoff returns the base retry backoff.
func (c CritiqueConfig) GetRetryBackoff() time.Duration {
	return parseDuration(c.RetryBackoff, 2*time.Second)
}

// GetRetention returns the finished-job retention window.
func (c CritiqueConfig) GetRetention() time.Duration {
	return parseDuration(c.Retention, 168*time.Hour)
}

// GetSweepInterval returns the retention sweep interval.
func (c CritiqueConfig) GetSweepInterval() time.Duration {
	return parseDuration(c.SweepInterval, time.Hour)
}
