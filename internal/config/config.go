// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/splitledger/internal/money"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Port int

	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret         string
	TokenDuration     time.Duration
	RateMaxAge        time.Duration
	RateLookupTimeout time.Duration

	// ReportingCurrency is the default for balance queries that name none.
	// Empty keeps balances in their native currencies.
	ReportingCurrency money.Code

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file, then environment variables with
// defaults. Values already set in the environment win over .env.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	cfg := &Config{
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:            getEnv("DB_PATH", "./data/ledger.db"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		ReportingCurrency: money.Code(strings.ToUpper(getEnv("REPORTING_CURRENCY", ""))),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(getEnv("PORT", "8080")); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if cfg.TokenDuration, err = time.ParseDuration(getEnv("TOKEN_DURATION", "24h")); err != nil {
		return nil, fmt.Errorf("invalid TOKEN_DURATION: %w", err)
	}
	if cfg.RateMaxAge, err = time.ParseDuration(getEnv("RATE_MAX_AGE", "24h")); err != nil {
		return nil, fmt.Errorf("invalid RATE_MAX_AGE: %w", err)
	}
	if cfg.RateLookupTimeout, err = time.ParseDuration(getEnv("RATE_LOOKUP_TIMEOUT", "2s")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LOOKUP_TIMEOUT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ReportingCurrency != "" && !money.Supported(c.ReportingCurrency) {
		return fmt.Errorf("REPORTING_CURRENCY: %w: %s", money.ErrUnsupportedCurrency, c.ReportingCurrency)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
