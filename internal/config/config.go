// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the dispatch server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// RedisAddr is the Redis host:port used for route caching.
	// Empty disables the cache.
	RedisAddr string

	// ORSAPIKey authenticates against openrouteservice. Empty selects the
	// offline great-circle provider instead.
	ORSAPIKey string

	// ORSBaseURL overrides the openrouteservice endpoint (self-hosted
	// instances). Empty uses the public API.
	ORSBaseURL string

	// SolverBaseURL is the VROOM solver endpoint. Empty disables the
	// solver and optimization runs distance-only.
	SolverBaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// SeedPath points at a JSON seed file loaded by dbtool. Defaults to
	// "data/seeds/rounds.json".
	SeedPath string

	// RouteCacheTTL bounds how long cached route results stay fresh.
	RouteCacheTTL time.Duration

	// ProviderTimeout bounds each outbound provider call.
	ProviderTimeout time.Duration

	// FallbackSpeedKmh is the average speed assumed when leg estimates
	// degrade to great-circle distance.
	FallbackSpeedKmh float64

	// WindowTolerance pads time windows during dispatch feasibility checks.
	WindowTolerance time.Duration

	// MaxRoundDuration caps a round's projected total duration after an
	// insertion.
	MaxRoundDuration time.Duration

	// MaxInsertionDetourMeters caps the extra distance an insertion may add.
	MaxInsertionDetourMeters int
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		ORSAPIKey:     strings.TrimSpace(os.Getenv("ORS_API_KEY")),
		ORSBaseURL:    os.Getenv("ORS_BASE_URL"),
		SolverBaseURL: os.Getenv("SOLVER_URL"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SeedPath:      getEnv("SEED_PATH", "data/seeds/rounds.json"),
	}

	var err error
	if cfg.RouteCacheTTL, err = durationEnv("ROUTE_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ProviderTimeout, err = durationEnv("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.FallbackSpeedKmh, err = floatEnv("FALLBACK_SPEED_KMH", 50); err != nil {
		return Config{}, err
	}
	if cfg.WindowTolerance, err = durationEnv("DISPATCH_WINDOW_TOLERANCE", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MaxRoundDuration, err = durationEnv("DISPATCH_MAX_ROUND_DURATION", 10*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.MaxInsertionDetourMeters, err = intEnv("DISPATCH_MAX_DETOUR_METERS", 25_000); err != nil {
		return Config{}, err
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
