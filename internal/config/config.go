package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/quizvault/quizvault/internal/database"
)

// Config is the process configuration, read from QUIZVAULT_* environment
// variables. CLI flags override individual fields after Load.
type Config struct {
	DBPath         string        `env:"QUIZVAULT_DB_PATH" envDefault:"quizvault.db"`
	DBMaxOpenConns int           `env:"QUIZVAULT_DB_MAX_OPEN_CONNS" envDefault:"4"`
	DBBusyTimeout  time.Duration `env:"QUIZVAULT_DB_BUSY_TIMEOUT" envDefault:"5s"`
	RetryAttempts  int           `env:"QUIZVAULT_RETRY_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"QUIZVAULT_RETRY_BASE_DELAY" envDefault:"50ms"`
	RetryMaxDelay  time.Duration `env:"QUIZVAULT_RETRY_MAX_DELAY" envDefault:"1s"`
	SeedFile       string        `env:"QUIZVAULT_SEED_FILE"`
	Log            LogConfig
	Server         ServerConfig
	Timeouts       TimeoutConfig

	// MaintenanceSchedule is a cron spec; "off" disables scheduled upkeep.
	MaintenanceSchedule string `env:"QUIZVAULT_MAINTENANCE_SCHEDULE" envDefault:"@daily"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string `env:"QUIZVAULT_LOG_FILE"`
	MaxSizeMB  int    `env:"QUIZVAULT_LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"QUIZVAULT_LOG_MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"QUIZVAULT_LOG_MAX_AGE_DAYS" envDefault:"30"`
	Compress   bool   `env:"QUIZVAULT_LOG_COMPRESS" envDefault:"true"`
}

// ServerConfig is the listen address of the HTTP surface.
type ServerConfig struct {
	Bind string `env:"QUIZVAULT_BIND" envDefault:"0.0.0.0"`
	Port int    `env:"QUIZVAULT_PORT" envDefault:"8080"`

	// AllowedNetwork is an optional CIDR; connections from outside it are refused.
	AllowedNetwork string `env:"QUIZVAULT_ALLOWED_NETWORK"`
}

// AllowedNet parses AllowedNetwork. It returns nil when unset.
func (s ServerConfig) AllowedNet() (*net.IPNet, error) {
	if strings.TrimSpace(s.AllowedNetwork) == "" {
		return nil, nil
	}
	_, ipNet, err := net.ParseCIDR(strings.TrimSpace(s.AllowedNetwork))
	if err != nil {
		return nil, fmt.Errorf("invalid allowed network %q: %w", s.AllowedNetwork, err)
	}
	return ipNet, nil
}

// Address returns host:port for net.Listen.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Bind, strconv.Itoa(s.Port))
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the store or server cannot work with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "database path is required")
	}
	if c.DBMaxOpenConns < 1 {
		problems = append(problems, "db max open conns must be at least 1")
	}
	if c.RetryAttempts < 1 {
		problems = append(problems, "retry attempts must be at least 1")
	}
	if c.RetryBaseDelay < 0 || c.RetryMaxDelay < 0 {
		problems = append(problems, "retry delays must not be negative")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Server.Port))
	}
	if _, err := c.Server.AllowedNet(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Database returns the store connection settings.
func (c *Config) Database() database.Config {
	return database.Config{
		Path:         c.DBPath,
		MaxOpenConns: c.DBMaxOpenConns,
		BusyTimeout:  c.DBBusyTimeout,
	}
}

// RetryPolicy returns the retry policy repositories use for reads.
func (c *Config) RetryPolicy() database.RetryPolicy {
	return database.RetryPolicy{
		MaxAttempts: c.RetryAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
	}
}
