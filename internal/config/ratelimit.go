package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig controls the in-memory sliding-window limiter that guards
// credential-submission routes.  Limiting is deliberately single-process
// state: running multiple instances weakens the guarantee to per-instance
// limiting, which is the documented design point for this service.
type RateLimitConfig struct {
	Enabled         bool
	Attempts        int           // attempts allowed per key within Window
	Window          time.Duration // trailing window the attempts are counted over
	CleanupInterval time.Duration // how often stale keys are swept from memory
	Debug           bool
}

// LoadRateLimitConfig reads environment overrides and applies defaults of
// 10 attempts per 3 minutes, matching the sign-in brute-force budget shared
// by every service on the cookie domain.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:         envBool("RATE_LIMIT_ENABLED", true),
		Attempts:        envInt("RATE_LIMIT_ATTEMPTS", 10),
		Window:          envDur("RATE_LIMIT_WINDOW", 3*time.Minute),
		CleanupInterval: envDur("RATE_LIMIT_CLEANUP_INTERVAL", 10*time.Minute),
		Debug:           envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = 3 * time.Minute
	}
	// Sweeping more often than the window buys nothing.
	if min := 2 * cfg.Window; cfg.CleanupInterval < min {
		cfg.CleanupInterval = min
	}
	return cfg
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
