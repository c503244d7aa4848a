package ratelimit

import "time"

// Config holds rate limiting configuration for one limited route group.
type Config struct {
	Limit           int           // requests per window; 0 disables limiting
	Window          time.Duration // window length
	Burst           int           // bucket capacity for the memory limiter, defaults to Limit
	CleanupInterval time.Duration // how often idle memory buckets are dropped
	Prefix          string        // Redis key prefix
}

// DefaultConfig allows 30 requests per minute.
func DefaultConfig() Config {
	return Config{
		Limit:           30,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
		Prefix:          "gigmatch:ratelimit",
	}
}

// Enabled reports whether the config limits anything.
func (c Config) Enabled() bool {
	return c.Limit > 0 && c.Window > 0
}

// IdleTTL is how long an unused memory bucket is kept.
func (c Config) IdleTTL() time.Duration {
	if c.Window > time.Hour {
		return c.Window
	}
	return time.Hour
}
