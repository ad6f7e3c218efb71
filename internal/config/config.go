// Package config loads the server configuration from the environment,
// with an optional .env file for development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads at startup. All state is
// in-memory, so there is nothing here about storage backends.
type Config struct {
	Addr            string        // Listen address
	APIBase         string        // Route prefix for the REST surface
	RateLimitMax    int           // Max mutations per identity per window
	RateLimitWindow time.Duration // Fixed rate-limit window length
}

// Load reads .env (if present) and the environment, applying defaults
// for anything unset. The 50-per-minute mutation quota is the documented
// default policy.
func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{
		Addr:            getenv("ADDR", ":8080"),
		APIBase:         getenv("API_BASE", "/api/v1"),
		RateLimitMax:    50,
		RateLimitWindow: time.Minute,
	}
	if s := os.Getenv("RATE_LIMIT_MAX"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.RateLimitMax = n
		}
	}
	if s := os.Getenv("RATE_LIMIT_WINDOW"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			cfg.RateLimitWindow = d
		}
	}
	return cfg
}

// getenv returns the environment value for key, or def when unset
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
