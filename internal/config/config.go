// Package config loads runtime settings for the CLI and the API server
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultPPQ is the conversion resolution used when nothing else is configured
const DefaultPPQ = 720

// Config holds the application configuration
type Config struct {
	Environment string
	Port        int

	// Conversion defaults
	PPQ       int
	CacheSize int

	// Diagnostics
	LogLevel  string
	LogFormat string

	// Observability
	SentryDSN string
}

// Load reads a .env file if present and builds the configuration from the environment
func Load() *Config {
	// A missing .env file is the normal case outside development
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnvInt("PORT", 8080),
		PPQ:         getEnvInt("MEI2PERF_PPQ", DefaultPPQ),
		CacheSize:   getEnvInt("MEI2PERF_CACHE_SIZE", 64),
		LogLevel:    getEnv("MEI2PERF_LOG_LEVEL", "warn"),
		LogFormat:   getEnv("MEI2PERF_LOG_FORMAT", "text"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
	}
}

// IsProduction returns true when running with ENVIRONMENT=production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
