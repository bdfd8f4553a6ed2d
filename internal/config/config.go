package config

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/portalsync/internal/errs"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection (document store)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string
	PageSize           int

	// Source tables per kind
	LocationsTable string
	JobsTable      string
	MediaTable     string

	// Relational store
	DBDriver           string
	DBDSN              string
	DBMaxConns         int
	DBMinConns         int
	DBMaxConnLifetime  time.Duration
	DBStatementTimeout time.Duration

	// Sync
	Concurrency     int
	GBPerHour       float64
	BreakerFailures int
	BreakerTimeout  time.Duration
	SyncTimeout     time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level

	// HTTP trigger server
	ServerPort int
	JWTSecret  string

	invalid []error
}

// Load reads configuration from environment variables. Malformed values fall
// back to their defaults and are reported by Validate.
func Load() Config {
	c := Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "portal"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "portal"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LocationsTable: getEnv("PORTALSYNC_LOCATIONS_TABLE", "locations"),
		JobsTable:      getEnv("PORTALSYNC_JOBS_TABLE", "jobs"),
		MediaTable:     getEnv("PORTALSYNC_MEDIA_TABLE", "media"),

		DBDriver: strings.ToLower(getEnv("PORTALSYNC_DB_DRIVER", "sqlite")),
		DBDSN:    getEnv("PORTALSYNC_DB_DSN", "portalsync.db"),

		LogFile:  getEnv("PORTALSYNC_LOG_FILE", "/tmp/portalsync.log"),
		LogLevel: parseLogLevel(getEnv("PORTALSYNC_LOG_LEVEL", "INFO")),

		JWTSecret: os.Getenv("PORTALSYNC_JWT_SECRET"),
	}

	c.PageSize = c.getInt("PORTALSYNC_PAGE_SIZE", 500)
	c.DBMaxConns = c.getInt("PORTALSYNC_DB_MAX_CONNS", 10)
	c.DBMinConns = c.getInt("PORTALSYNC_DB_MIN_CONNS", 1)
	c.DBMaxConnLifetime = c.getDuration("PORTALSYNC_DB_MAX_CONN_LIFETIME", time.Hour)
	c.DBStatementTimeout = c.getDuration("PORTALSYNC_DB_STATEMENT_TIMEOUT", 30*time.Second)
	c.Concurrency = c.getInt("PORTALSYNC_CONCURRENCY", 4)
	c.GBPerHour = c.getFloat("PORTALSYNC_GB_PER_HOUR", 15)
	c.BreakerFailures = c.getInt("PORTALSYNC_BREAKER_FAILURES", 5)
	c.BreakerTimeout = c.getDuration("PORTALSYNC_BREAKER_TIMEOUT", 30*time.Second)
	c.SyncTimeout = c.getDuration("PORTALSYNC_SYNC_TIMEOUT", 10*time.Minute)
	c.ServerPort = c.getInt("PORTALSYNC_SERVER_PORT", 8484)

	return c
}

// Validate reports the first unusable setting as *errs.ConfigurationError.
// serving additionally requires the JWT secret.
func (c Config) Validate(serving bool) error {
	if len(c.invalid) > 0 {
		return c.invalid[0]
	}

	required := []struct{ key, val string }{
		{"SURREALDB_URL", c.SurrealDBURL},
		{"SURREALDB_NAMESPACE", c.SurrealDBNamespace},
		{"SURREALDB_DATABASE", c.SurrealDBDatabase},
		{"SURREALDB_USER", c.SurrealDBUser},
		{"PORTALSYNC_DB_DSN", c.DBDSN},
		{"PORTALSYNC_LOCATIONS_TABLE", c.LocationsTable},
		{"PORTALSYNC_JOBS_TABLE", c.JobsTable},
		{"PORTALSYNC_MEDIA_TABLE", c.MediaTable},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return &errs.ConfigurationError{Key: r.key, Reason: "must be set"}
		}
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return &errs.ConfigurationError{Key: "PORTALSYNC_DB_DRIVER", Reason: "must be postgres or sqlite, got " + strconv.Quote(c.DBDriver)}
	}

	positive := []struct {
		key string
		val float64
	}{
		{"PORTALSYNC_PAGE_SIZE", float64(c.PageSize)},
		{"PORTALSYNC_CONCURRENCY", float64(c.Concurrency)},
		{"PORTALSYNC_GB_PER_HOUR", c.GBPerHour},
		{"PORTALSYNC_BREAKER_FAILURES", float64(c.BreakerFailures)},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return &errs.ConfigurationError{Key: p.key, Reason: "must be positive"}
		}
	}
	if c.DBMinConns > c.DBMaxConns {
		return &errs.ConfigurationError{Key: "PORTALSYNC_DB_MIN_CONNS", Reason: "must not exceed PORTALSYNC_DB_MAX_CONNS"}
	}

	if serving {
		if c.JWTSecret == "" {
			return &errs.ConfigurationError{Key: "PORTALSYNC_JWT_SECRET", Reason: "must be set to serve the HTTP trigger"}
		}
		if c.ServerPort <= 0 || c.ServerPort > 65535 {
			return &errs.ConfigurationError{Key: "PORTALSYNC_SERVER_PORT", Reason: "must be a valid port"}
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func (c *Config) getInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		c.invalid = append(c.invalid, &errs.ConfigurationError{Key: key, Reason: "not an integer", Err: errors.Unwrap(err)})
		return defaultVal
	}
	return v
}

func (c *Config) getFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.invalid = append(c.invalid, &errs.ConfigurationError{Key: key, Reason: "not a number", Err: errors.Unwrap(err)})
		return defaultVal
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.invalid = append(c.invalid, &errs.ConfigurationError{Key: key, Reason: "must be a finite number"})
		return defaultVal
	}
	return v
}

func (c *Config) getDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		c.invalid = append(c.invalid, &errs.ConfigurationError{Key: key, Reason: "not a duration", Err: err})
		return defaultVal
	}
	return v
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
