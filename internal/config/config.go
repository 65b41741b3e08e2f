// Package config loads Bouncer's process configuration from environment
// variables. There is deliberately no file-based or remote config source —
// two env vars is the entire surface (see DESIGN.md for why this layer
// stays on the standard library instead of a config-file library).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config is the immutable result of a single Load at process startup.
type Config struct {
	Port     int
	LogLevel zerolog.Level
}

const (
	defaultPort     = 8080
	defaultLogLevel = "info"
)

// Load reads BOUNCER_PORT and BOUNCER_LOGLEVEL, applying defaults for
// either that's unset. An invalid value is a descriptive error; the caller
// is expected to report it and exit before opening any listener.
func Load() (*Config, error) {
	cfg := &Config{Port: defaultPort}

	if v := os.Getenv("BOUNCER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("config: invalid BOUNCER_PORT %q: must be 1-65535", v)
		}
		cfg.Port = port
	}

	levelStr := defaultLogLevel
	if v := os.Getenv("BOUNCER_LOGLEVEL"); v != "" {
		levelStr = v
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("config: invalid BOUNCER_LOGLEVEL %q: %w", levelStr, err)
	}
	cfg.LogLevel = level

	return cfg, nil
}
