// Package config loads lamportpair settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable. Command-line flags override these values.
type Config struct {
	DB         string        `env:"LAMPORT_DB" envDefault:"lamport.db"`
	Actors     int           `env:"LAMPORT_ACTORS" envDefault:"2"`
	Iterations int           `env:"LAMPORT_ITERATIONS" envDefault:"10"`
	MaxDelay   time.Duration `env:"LAMPORT_MAX_DELAY" envDefault:"5s"`
	LogLevel   string        `env:"LAMPORT_LOG_LEVEL" envDefault:"info"`
	LogFormat  string        `env:"LAMPORT_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the driver cannot run with.
func (c Config) Validate() error {
	if c.Actors < 1 {
		return fmt.Errorf("actors must be at least 1, got %d", c.Actors)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("iterations must not be negative, got %d", c.Iterations)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("max delay must not be negative, got %s", c.MaxDelay)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// NewLogger builds the slog.Logger described by c, writing to w.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
