package config

import (
	"fmt"
	"os"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	Environment string
	DatabaseURL string
	TablePrefix string
	// Redis backs the task queue that triggers periodic reconciliation
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// MetricsAddr is where the worker serves /metrics; empty disables it
	MetricsAddr string
	// JobsFile points at the YAML schedule definitions for the worker
	JobsFile string
	// LogDir enables file logging for the worker when set
	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Environment:   env,
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		TablePrefix:   getTablePrefix(env),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		JobsFile:      getEnv("JOBS_FILE", "jobs.yaml"),
		LogDir:        getEnv("LOG_DIR", ""),
		LogMaxFiles:   getEnvInt("LOG_MAX_FILES", 10),
	}
}

// Validate checks the fields every binary needs before touching the database.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.Environment, validation.In("dev", "test", "prod")),
		validation.Field(&c.LogMaxFiles, validation.Min(1)),
	)
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
		fmt.Fprintf(os.Stderr, "warning: ignoring non-integer %s=%q\n", key, value)
	}
	return defaultValue
}
