// Package config loads service settings from command-line flags, environment
// variables and defaults, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Reconcile ReconcileConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or text; empty picks by environment
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig selects and configures the store backend.
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	MaxConns   int32
	SQLitePath string
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RateLimitConfig configures the per-client limiter on mutating routes.
// A zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// ReconcileConfig controls the periodic inventory reconciler.
// A zero Interval runs it only at startup and on demand.
type ReconcileConfig struct {
	Interval time.Duration
}

// Load reads configuration from args (without the program name) and the
// environment lookup getenv. Pass os.Args[1:] and os.Getenv in main.
func Load(args []string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	fs := flag.NewFlagSet("library", flag.ContinueOnError)
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, text)")
	port := fs.String("port", "", "HTTP port (default: 8080)")
	driver := fs.String("db-driver", "", "Store backend (postgres, sqlite)")
	sqlitePath := fs.String("sqlite-path", "", "SQLite database file")
	reconcileInterval := fs.String("reconcile-interval", "", "Inventory reconcile interval, 0 to disable")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := values{getenv: getenv}
	cfg := &Config{
		App: AppConfig{
			Environment: v.str(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  v.str(*logLevel, "LOG_LEVEL", "info"),
			Format: v.str(*logFormat, "LOG_FORMAT", ""),
		},
		Server: ServerConfig{
			Port:            v.str(*port, "PORT", "8080"),
			ReadTimeout:     v.duration("", "READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    v.duration("", "WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     v.duration("", "IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: v.duration("", "SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  splitList(v.str("", "CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Driver:     v.str(*driver, "DB_DRIVER", DriverPostgres),
			Host:       v.str("", "DB_HOST", "localhost"),
			Port:       v.str("", "DB_PORT", "5432"),
			User:       v.str("", "DB_USER", "postgres"),
			Password:   v.str("", "DB_PASSWORD", "postgres"),
			Name:       v.str("", "DB_NAME", "library"),
			SSLMode:    v.str("", "DB_SSLMODE", "disable"),
			MaxConns:   int32(v.integer("", "DB_MAX_CONNS", 20)),
			SQLitePath: v.str(*sqlitePath, "SQLITE_PATH", "library.db"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.float("", "RATE_LIMIT_RPS", 10),
			Burst: v.integer("", "RATE_LIMIT_BURST", 20),
		},
		Reconcile: ReconcileConfig{
			Interval: v.duration(*reconcileInterval, "RECONCILE_INTERVAL", 0),
		},
	}
	if v.err != nil {
		return nil, v.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all config values are present and within range.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or text)", c.Logger.Format)
	}

	if c.Server.Port == "" {
		return errors.New("PORT is required")
	}
	for name, d := range map[string]time.Duration{
		"READ_TIMEOUT":     c.Server.ReadTimeout,
		"WRITE_TIMEOUT":    c.Server.WriteTimeout,
		"IDLE_TIMEOUT":     c.Server.IdleTimeout,
		"SHUTDOWN_TIMEOUT": c.Server.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres driver")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.Database.MaxConns)
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid db driver: %q (must be postgres or sqlite)", c.Database.Driver)
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values cannot be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		return errors.New("RATE_LIMIT_BURST must be positive when RATE_LIMIT_RPS is set")
	}
	if c.Reconcile.Interval < 0 {
		return fmt.Errorf("RECONCILE_INTERVAL cannot be negative, got %s", c.Reconcile.Interval)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// values resolves a setting from a flag, then the environment, then a
// default. The first parse failure is kept in err.
type values struct {
	getenv func(string) string
	err    error
}

func (v *values) str(flagValue, envKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(v.getenv(envKey)); env != "" {
		return env
	}
	return fallback
}

func (v *values) duration(flagValue, envKey string, fallback time.Duration) time.Duration {
	s := v.str(flagValue, envKey, "")
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		v.fail(fmt.Errorf("invalid %s %q: %w", envKey, s, err))
		return fallback
	}
	return d
}

func (v *values) integer(flagValue, envKey string, fallback int) int {
	s := v.str(flagValue, envKey, "")
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		v.fail(fmt.Errorf("invalid %s %q: %w", envKey, s, err))
		return fallback
	}
	return n
}

func (v *values) float(flagValue, envKey string, fallback float64) float64 {
	s := v.str(flagValue, envKey, "")
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v.fail(fmt.Errorf("invalid %s %q: %w", envKey, s, err))
		return fallback
	}
	return f
}

func (v *values) fail(err error) {
	if v.err == nil {
		v.err = err
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
