package resilience

import "time"

// RetryFromConfig builds a RetryConfig from flat config values. Zero or
// negative values keep the defaults.
func RetryFromConfig(maxAttempts, initialBackoffMs, maxBackoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return cfg
}

// BreakerFromConfig builds a BreakerConfig from flat config values. Zero or
// negative values keep the defaults.
func BreakerFromConfig(failureThreshold, resetSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetSecs) * time.Second
	}
	return cfg
}
