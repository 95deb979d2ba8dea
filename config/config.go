/*
Package config loads server settings from the environment.

PURPOSE:
  One Config struct for cmd/server. Values come from environment variables, optionally
  seeded from a .env file in the working directory. Unset or unparsable variables fall
  back to the defaults below.

VARIABLES:
  SERVER_PORT             HTTP port                              (8080)
  APP_ENV                 development | production               (development)
  LOG_LEVEL               debug | info | warn | error            (info)
  STORE_BACKEND           sqlite | postgres | postgrest | memory (sqlite)
  SQLITE_PATH             SQLite file, ":memory:" allowed        (parcelas.db)
  DATABASE_URL            Postgres URL for STORE_BACKEND=postgres
  DATABASE_MAX_CONNS      Postgres pool size                     (10)
  SUPABASE_URL            project URL for STORE_BACKEND=postgrest
  SUPABASE_KEY            API key for STORE_BACKEND=postgrest
  STORE_TIMEOUT           per-request store timeout               (15s)
  CACHE_TTL               read cache lifetime                     (5m)
  RENEWAL_CHECK_INTERVAL  expired-contract scan period, 0 = off   (1h)
  CORS_ORIGINS            comma-separated allowed origins         (*)
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Store backends.
const (
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendPostgREST = "postgrest"
	BackendMemory    = "memory"
)

// ServiceName labels logs.
const ServiceName = "parcelas"

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port        string
	Env         string
	CORSOrigins []string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend     string
	SQLitePath  string
	DatabaseURL string
	MaxConns    int
	SupabaseURL string
	SupabaseKey string
	Timeout     time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// Config holds all configuration.
type Config struct {
	Server               ServerConfig
	Store                StoreConfig
	Log                  LogConfig
	CacheTTL             time.Duration
	RenewalCheckInterval time.Duration
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Env:         getEnv("APP_ENV", "development"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
			SQLitePath:  getEnv("SQLITE_PATH", "parcelas.db"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			MaxConns:    getEnvAsInt("DATABASE_MAX_CONNS", 10),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_KEY", ""),
			Timeout:     getEnvAsDuration("STORE_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		CacheTTL:             getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		RenewalCheckInterval: getEnvAsDuration("RENEWAL_CHECK_INTERVAL", time.Hour),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendPostgREST:
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_KEY are required for the postgrest backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// LogFields returns the configuration as zap fields. Secrets are omitted.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Server.Env),
		zap.String("server_port", c.Server.Port),
		zap.String("store_backend", c.Store.Backend),
		zap.Duration("store_timeout", c.Store.Timeout),
		zap.Duration("cache_ttl", c.CacheTTL),
		zap.Duration("renewal_check_interval", c.RenewalCheckInterval),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
