package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lorrc/rx-dashboard-backend/internal/infrastructure/logging"
)

// Supported warehouse drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Warehouse configuration
	Warehouse WarehouseConfig

	// Dashboard computation settings
	Dashboard DashboardConfig

	// CORS configuration
	CORS CORSConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Live chart refresh configuration
	Refresh RefreshConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// WarehouseConfig holds data warehouse connection configuration
type WarehouseConfig struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// DashboardConfig holds windows and limits applied to dashboard reads
type DashboardConfig struct {
	AnomalyLookbackMonths int
	DriverLimit           int
}

// CORSConfig holds cross-origin configuration shared by HTTP and websocket
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	TrustProxy        bool
}

// RefreshConfig holds websocket push configuration
type RefreshConfig struct {
	Interval        time.Duration
	ReadBufferSize  int
	WriteBufferSize int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv reads configuration from the current environment without
// loading a .env file or validating.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            env("SERVER_PORT", ":5000", asString),
			ReadTimeout:     env("SERVER_READ_TIMEOUT", 15*time.Second, time.ParseDuration),
			WriteTimeout:    env("SERVER_WRITE_TIMEOUT", 15*time.Second, time.ParseDuration),
			IdleTimeout:     env("SERVER_IDLE_TIMEOUT", 60*time.Second, time.ParseDuration),
			ShutdownTimeout: env("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second, time.ParseDuration),
		},
		Warehouse: WarehouseConfig{
			Driver:          strings.ToLower(env("WAREHOUSE_DRIVER", DriverPostgres, asString)),
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    env("DB_MAX_OPEN_CONNS", 10, strconv.Atoi),
			MaxIdleConns:    env("DB_MAX_IDLE_CONNS", 2, strconv.Atoi),
			ConnMaxLifetime: env("DB_CONN_MAX_LIFETIME", 5*time.Minute, time.ParseDuration),
			ConnMaxIdleTime: env("DB_CONN_MAX_IDLE_TIME", 5*time.Minute, time.ParseDuration),
			QueryTimeout:    env("WAREHOUSE_QUERY_TIMEOUT", 30*time.Second, time.ParseDuration),
		},
		Dashboard: DashboardConfig{
			AnomalyLookbackMonths: env("ANOMALY_LOOKBACK_MONTHS", 1, strconv.Atoi),
			DriverLimit:           env("DRIVER_LIMIT", 5, strconv.Atoi),
		},
		CORS: CORSConfig{
			AllowedOrigins: env("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}, asList),
		},
		RateLimit: RateLimitConfig{
			Enabled:           env("RATE_LIMIT_ENABLED", true, strconv.ParseBool),
			RequestsPerSecond: env("RATE_LIMIT_RPS", 10.0, asFloat),
			BurstSize:         env("RATE_LIMIT_BURST", 20, strconv.Atoi),
			TrustProxy:        env("RATE_LIMIT_TRUST_PROXY", false, strconv.ParseBool),
		},
		Refresh: RefreshConfig{
			Interval:        env("REFRESH_INTERVAL", 30*time.Second, time.ParseDuration),
			ReadBufferSize:  env("WS_READ_BUFFER_SIZE", 1024, strconv.Atoi),
			WriteBufferSize: env("WS_WRITE_BUFFER_SIZE", 1024, strconv.Atoi),
		},
		Logging: LoggingConfig{
			Level:  env("LOG_LEVEL", "info", asString),
			Format: env("LOG_FORMAT", "json", asString),
		},
		App: AppConfig{
			Name:        env("APP_NAME", "rx-dashboard", asString),
			Version:     env("APP_VERSION", "dev", asString),
			Environment: env("APP_ENV", "development", asString),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	if c.Warehouse.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.Warehouse.Driver != DriverPostgres && c.Warehouse.Driver != DriverSQLite {
		errs = append(errs, fmt.Sprintf("WAREHOUSE_DRIVER must be %q or %q", DriverPostgres, DriverSQLite))
	}

	// Security validations
	if c.IsProduction() {
		if slices.Contains(c.CORS.AllowedOrigins, "*") {
			errs = append(errs, "CORS_ALLOWED_ORIGINS must not contain * in production")
		}
	}

	// Logical validations
	if c.Warehouse.MaxIdleConns > c.Warehouse.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	if c.Warehouse.QueryTimeout <= 0 {
		errs = append(errs, "WAREHOUSE_QUERY_TIMEOUT must be positive")
	}

	if c.Dashboard.AnomalyLookbackMonths < 1 {
		errs = append(errs, "ANOMALY_LOOKBACK_MONTHS must be at least 1")
	}

	if c.Dashboard.DriverLimit < 0 {
		errs = append(errs, "DRIVER_LIMIT cannot be negative")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.BurstSize < 1) {
		errs = append(errs, "RATE_LIMIT_RPS must be positive and RATE_LIMIT_BURST at least 1")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, "LOG_LEVEL must be one of debug, info, warn, error")
	}

	if c.Refresh.Interval <= 0 {
		errs = append(errs, "REFRESH_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// env reads key with parse, keeping def when the variable is unset or malformed.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func asString(s string) (string, error) { return s, nil }

func asFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// asList splits a comma-separated value, dropping blank entries.
func asList(s string) ([]string, error) {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("empty list")
	}
	return out, nil
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Warehouse: %s %s, RateLimit: %v, Refresh: %s, Environment: %s}",
		c.Server.Port,
		c.Warehouse.Driver,
		redactURL(c.Warehouse.URL),
		c.RateLimit.Enabled,
		c.Refresh.Interval,
		c.App.Environment,
	)
}

// redactURL hides credentials in a connection string
func redactURL(url string) string {
	if url == "" {
		return ""
	}
	if idx := strings.LastIndex(url, "@"); idx > 0 {
		return "[REDACTED]" + url[idx:]
	}
	if strings.HasPrefix(url, "file:") || strings.HasSuffix(url, ".db") || url == ":memory:" {
		return url
	}
	return "[REDACTED]"
}
