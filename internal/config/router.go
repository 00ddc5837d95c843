package config

import "time"

// RouterConfig configures message routing.
type RouterConfig struct {
	// ConfidenceThreshold below which the keyword classifier defers to the
	// remote classifier model (default: 0.6)
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// ClassifierTimeout is the hard timeout for the remote classifier call.
	// On timeout the router degrades to class=factual, never cheaper.
	ClassifierTimeout string `yaml:"classifier_timeout"`

	// CacheTTL bounds classifier result cache entries
	CacheTTL string `yaml:"cache_ttl"`

	// CacheKeyLength is how many characters of the normalized message form
	// the cache key
	CacheKeyLength int `yaml:"cache_key_length"`

	// SweepDenominator: each cache lookup sweeps expired entries with
	// probability 1/N (default: 50)
	SweepDenominator int `yaml:"sweep_denominator"`
}

// DefaultRouterConfig returns sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ConfidenceThreshold: 0.6,
		ClassifierTimeout:   "3s",
		CacheTTL:            "10m",
		CacheKeyLength:      200,
		SweepDenominator:    50,
	}
}

// GetClassifierTimeout returns the remote classifier timeout.
func (c RouterConfig) GetClassifierTimeout() time.Duration {
	return parseDuration(c.ClassifierTimeout, 3*time.Second)
}

// GetCacheTTL returns the classifier cache TTL.
func (c RouterConfig) GetCacheTTL() time.Duration {
	return parseDuration(c.CacheTTL, 10*time.Minute)
}
