// Package config loads fuc's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultDBPath       = ".fuc/fuc.db"
	DefaultLabel        = "AO3"
	DefaultCredentials  = "credentials.json"
	DefaultPollInterval = 15 * time.Minute
)

// Config carries process-level settings. Everything here feeds the
// collaborators around the core; the pipeline itself only ever sees the
// immutable APIContext built from it.
type Config struct {
	DBPath       string
	Label        string
	Credentials  string
	PollInterval time.Duration
}

// Load reads .env (when present) and the FUC_* environment variables,
// filling defaults for anything unset.
func Load() (*Config, error) {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:       envOr("FUC_DB", DefaultDBPath),
		Label:        envOr("FUC_LABEL", DefaultLabel),
		Credentials:  envOr("FUC_CREDENTIALS", DefaultCredentials),
		PollInterval: DefaultPollInterval,
	}

	if raw := os.Getenv("FUC_POLL_INTERVAL"); raw != "" {
		d, err := parseInterval(raw)
		if err != nil {
			return nil, fmt.Errorf("FUC_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}

	return cfg, nil
}

// parseInterval accepts either a Go duration ("10m") or plain seconds.
func parseInterval(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
