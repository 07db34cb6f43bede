// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Export   ExportConfig
	Sources  SourcesConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE and downloads)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for API requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds settings for the optional Postgres source.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables Postgres tables.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ExportConfig holds export pipeline settings.
type ExportConfig struct {
	// OutputDir is where export files are written, one directory per export (default: exports)
	OutputDir string `env:"EXPORT_OUTPUT_DIR" default:"exports"`

	// ChunkSize is the number of rows per work unit (default: 100)
	ChunkSize int `env:"EXPORT_CHUNK_SIZE" default:"100"`

	// ReservedThreads is subtracted from GOMAXPROCS to size the worker pool (default: 3)
	ReservedThreads int `env:"EXPORT_RESERVED_THREADS" default:"3"`

	// Workers overrides the derived worker count. 0 derives, negative runs on the driver only.
	Workers int `env:"EXPORT_WORKERS" default:"0"`

	// MaxWorkers caps EXPORT_WORKERS and per-request worker overrides. 0 uses GOMAXPROCS.
	MaxWorkers int `env:"EXPORT_MAX_WORKERS" default:"0"`

	// MaxConcurrent is the maximum number of parallel exports (default: 2)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for an export slot (default: 30s)
	MaxWaitTime time.Duration `env:"EXPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single export (default: 30m)
	Timeout time.Duration `env:"EXPORT_TIMEOUT" default:"30m"`

	// PartialFile is what to do with incomplete files: delete or keep (default: delete)
	PartialFile string `env:"EXPORT_PARTIAL_FILE" default:"delete"`

	// ResultRetention is how long finished exports stay queryable in memory (default: 30m)
	ResultRetention time.Duration `env:"EXPORT_RESULT_RETENTION" default:"30m"`
}

// SourcesConfig lists the tables offered for export.
type SourcesConfig struct {
	// CSVDir is a directory whose *.csv files are registered as tables
	CSVDir string `env:"SOURCE_CSV_DIR"`

	// PostgresTables is a comma-separated list of tables to register (requires DATABASE_URL)
	PostgresTables []string `env:"SOURCE_PG_TABLES"`
}

// HistoryConfig holds export history settings.
type HistoryConfig struct {
	// Enabled controls whether finished exports are recorded (default: true)
	Enabled bool `env:"HISTORY_ENABLED" default:"true"`

	// DBPath is the SQLite database file (default: exports/history.db)
	DBPath string `env:"HISTORY_DB_PATH" default:"exports/history.db"`

	// RetentionDays is days to keep history entries and files (default: 30)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"30"`

	// CheckInterval is how often to prune old entries (default: 24h)
	CheckInterval time.Duration `env:"HISTORY_CHECK_INTERVAL" default:"24h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ExportLimit is requests per minute for starting exports (default: 10)
	ExportLimit int `env:"RATE_LIMIT_EXPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// PublicReads lets GET and HEAD requests through without a key, so keys
	// only guard starting and cancelling exports (default: false)
	PublicReads bool `env:"API_KEY_PUBLIC_READS" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
