package config

import "time"

// TimeoutConfig holds timeout settings for the HTTP surface.
type TimeoutConfig struct {
	// Read is the maximum duration for reading an entire request.
	// Default: 15s
	Read time.Duration `env:"QUIZVAULT_HTTP_READ_TIMEOUT" envDefault:"15s"`

	// Idle is how long keep-alive connections stay open between requests.
	// Default: 120s
	Idle time.Duration `env:"QUIZVAULT_HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// Request bounds a single handler, including its store queries.
	// Default: 60s
	Request time.Duration `env:"QUIZVAULT_HTTP_REQUEST_TIMEOUT" envDefault:"60s"`

	// Shutdown is the grace period for in-flight requests on exit.
	// Default: 30s
	Shutdown time.Duration `env:"QUIZVAULT_HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultTimeoutConfig returns the default timeout configuration
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Read:     15 * time.Second,
		Idle:     120 * time.Second,
		Request:  60 * time.Second,
		Shutdown: 30 * time.Second,
	}
}
