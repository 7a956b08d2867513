package courier

import "time"

// Config holds the configuration for a Courier instance.
type Config struct {
	// Concurrency is the number of retry worker goroutines.
	Concurrency int

	// PollInterval is how often the retry worker checks for due entries.
	PollInterval time.Duration

	// BatchSize is the maximum number of retry entries claimed per poll cycle.
	BatchSize int

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		PollInterval:    1 * time.Second,
		BatchSize:       50,
		ShutdownTimeout: 30 * time.Second,
	}
}
