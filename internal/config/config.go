package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"stringstack/internal/session"
)

// Config holds settings loaded from STRINGSTACK_* environment variables.
type Config struct {
	Port        int                 `env:"STRINGSTACK_PORT" envDefault:"8420"`
	MaxSessions int                 `env:"STRINGSTACK_MAX_SESSIONS" envDefault:"10"`
	HistorySize int                 `env:"STRINGSTACK_HISTORY_SIZE" envDefault:"256"`
	Sentinel    string              `env:"STRINGSTACK_SENTINEL" envDefault:"그만"`
	Drain       session.DrainPolicy `env:"STRINGSTACK_DRAIN" envDefault:"capacity"`
	ScriptsDir  string              `env:"STRINGSTACK_SCRIPTS_DIR"`
	HistoryFile string              `env:"STRINGSTACK_HISTORY_FILE"`
	LogLevel    string              `env:"STRINGSTACK_LOG_LEVEL" envDefault:"warn"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max sessions must not be negative: %d", c.MaxSessions)
	}
	if c.Sentinel == "" {
		return fmt.Errorf("sentinel must not be empty")
	}
	return nil
}

// SessionOptions returns the options every session is created with.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Sentinel: c.Sentinel,
		Drain:    c.Drain,
	}
}
