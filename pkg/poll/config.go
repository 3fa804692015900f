package poll

import "time"

// Config holds configuration for a ticker source
type Config struct {
	// Interval between ticks
	Interval time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
	}
}
