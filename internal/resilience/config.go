package resilience

import "time"

const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           `mapstructure:"threshold"`
	ResetTimeout      time.Duration `mapstructure:"reset_timeout"`
	HalfOpenSuccesses int           `mapstructure:"half_open_successes"`
}

// DefaultConfig suits recognition and translation calls.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// DetectionConfig trips sooner: the has-text check runs on every changed frame.
func DetectionConfig() Config {
	return Config{Threshold: 3, ResetTimeout: 10 * time.Second, HalfOpenSuccesses: 2}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
