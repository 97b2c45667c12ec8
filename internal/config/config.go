// Package config provides configuration management for complaintsync.
//
// This package handles loading configuration from environment variables,
// validating required settings, and providing sensible defaults for optional
// parameters. Configuration is loaded once at startup and remains immutable
// during runtime for thread-safety.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. External .env file in the working directory
//  3. Embedded .env file (fallback, included in binary)
//  4. Hard-coded defaults (lowest priority)
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "complaintsync/internal/errors"
)

// embeddedEnv contains the .env file embedded at build time.
//
// It only carries non-secret defaults (ports, timeouts, table name) so the
// binary works standalone; credentials always come from the environment.
//
//go:embed .env
var embeddedEnv string

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Upsert strategies.
const (
	UpsertNative = "native" // use the dialect's insert-or-overwrite when available
	UpsertCheck  = "check"  // SELECT, then UPDATE or INSERT
)

// Config holds all application configuration.
//
// This struct is immutable after creation to ensure thread-safety.
type Config struct {
	// Page store (Notion) access
	NotionAPIKey     string        // Integration token, required for sync
	NotionDatabaseID string        // Database holding the complaint pages, required for sync
	NotionBaseURL    string        // API root, overridable for tests and proxies
	NotionVersion    string        // Notion-Version header
	NotionPageSize   int           // Page size for database queries (max 100)
	MaxPages         int           // Maximum result pages followed per query
	MaxFetchRetries  int           // Retries for 429/5xx answers
	FetchRetryDelay  time.Duration // Delay between fetch retries
	HTTPTimeout      time.Duration // Per-request HTTP timeout

	// Relational store
	DBDriver         string
	DBHost           string
	DBPort           string
	DBUser           string
	DBPassword       string
	DBName           string
	DBPath           string // SQLite file path
	DBTable          string
	DBMaxConns       int
	DBConnectTimeout time.Duration // Acquire/connect timeout
	DBQueryTimeout   time.Duration // Per-record statement timeout
	DBIdleTimeout    time.Duration

	// Reconciliation
	UpsertMode      string
	TargetUTCOffset time.Duration // Offset of the zone timestamps are stored in
	SchemaFile      string        // Optional YAML override of the property schema

	// Drivers
	ImportFile   string        // Default bulk import file
	SyncWindow   time.Duration // Trailing window queried by incremental sync
	SyncInterval time.Duration // Period between sync runs in watch mode

	// Cross-process run guard (optional)
	RedisURL string
	LockKey  string
	LockTTL  time.Duration

	// Telegram configuration (optional)
	TelegramBotToken string
	TelegramChatID   string
	DebugMode        bool

	// Health check server configuration; empty port disables the server
	HealthCheckPort string

	// Logging
	LogMode string
}

// LoadConfig loads configuration from environment variables with defaults.
//
// Loading process:
//  1. Parse embedded .env file and set as fallback environment variables
//  2. Try to load external .env file (overrides embedded values)
//  3. Read environment variables (highest priority, overrides all)
//  4. Apply hard-coded defaults for any missing optional values
//  5. Validate common invariants
//
// Returns:
//   - *Config: Fully populated configuration struct
//   - error: Validation error if values are inconsistent
func LoadConfig() (*Config, error) {
	// External .env goes first so real environment variables keep precedence;
	// godotenv.Load never overrides variables that are already set.
	_ = godotenv.Load()

	envMap, err := godotenv.Unmarshal(embeddedEnv)
	if err == nil {
		for k, v := range envMap {
			if _, ok := os.LookupEnv(k); !ok {
				os.Setenv(k, v)
			}
		}
	}

	cfg := &Config{
		NotionAPIKey:     os.Getenv("NOTION_API_KEY"),
		NotionDatabaseID: os.Getenv("NOTION_DATABASE_ID"),
		NotionBaseURL:    getEnvOrDefault("NOTION_API_URL", "https://api.notion.com/v1"),
		NotionVersion:    getEnvOrDefault("NOTION_VERSION", "2022-06-28"),
		NotionPageSize:   getEnvInt("NOTION_PAGE_SIZE", 100),
		MaxPages:         getEnvInt("MAX_PAGES", 1),
		MaxFetchRetries:  getEnvInt("MAX_FETCH_RETRIES", 2),
		FetchRetryDelay:  getEnvDuration("FETCH_RETRY_DELAY", 2*time.Second),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		DBDriver:         strings.ToLower(getEnvOrDefault("DB_DRIVER", DriverMySQL)),
		DBHost:           getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:           os.Getenv("DB_PORT"),
		DBUser:           os.Getenv("DB_USER"),
		DBPassword:       os.Getenv("DB_PASSWORD"),
		DBName:           os.Getenv("DB_NAME"),
		DBPath:           getEnvOrDefault("DB_PATH", "complaints.db"),
		DBTable:          getEnvOrDefault("DB_TABLE", "t_complaint"),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 5),
		DBConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 20*time.Second),
		DBQueryTimeout:   getEnvDuration("DB_QUERY_TIMEOUT", 10*time.Second),
		DBIdleTimeout:    getEnvDuration("DB_IDLE_TIMEOUT", 60*time.Second),

		UpsertMode:      strings.ToLower(getEnvOrDefault("UPSERT_MODE", UpsertNative)),
		TargetUTCOffset: getEnvDuration("TARGET_UTC_OFFSET", 9*time.Hour),
		SchemaFile:      os.Getenv("SCHEMA_FILE"),

		ImportFile:   getEnvOrDefault("IMPORT_FILE", "init-data/notion-export.csv"),
		SyncWindow:   getEnvDuration("SYNC_WINDOW", 10*time.Minute),
		SyncInterval: getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		RedisURL: os.Getenv("REDIS_URL"),
		LockKey:  getEnvOrDefault("LOCK_KEY", "complaintsync:sync"),
		LockTTL:  getEnvDuration("LOCK_TTL", 30*time.Minute),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		DebugMode:        getEnvOrDefault("DEBUG_MODE", "false") == "true",

		HealthCheckPort: os.Getenv("HEALTH_CHECK_PORT"),
		LogMode:         getEnvOrDefault("LOG_MODE", "dev"),
	}

	if cfg.DBPort == "" {
		cfg.DBPort = defaultPort(cfg.DBDriver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants shared by every command.
//
// Validation rules:
//   - Driver and upsert mode must be known values
//   - Pool and paging sizes must be positive
//   - Timeouts must be positive
//
// Returns:
//   - error: *errors.ConfigError describing the first violated rule
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return apperrors.NewConfigError("DB_DRIVER", fmt.Sprintf("unsupported driver %q", c.DBDriver))
	}
	switch c.UpsertMode {
	case UpsertNative, UpsertCheck:
	default:
		return apperrors.NewConfigError("UPSERT_MODE", fmt.Sprintf("must be %q or %q, got %q", UpsertNative, UpsertCheck, c.UpsertMode))
	}
	if c.DBTable == "" {
		return apperrors.NewConfigError("DB_TABLE", "cannot be empty")
	}
	if c.DBMaxConns < 1 {
		return apperrors.NewConfigError("DB_MAX_CONNS", fmt.Sprintf("must be at least 1, got %d", c.DBMaxConns))
	}
	if c.NotionPageSize < 1 || c.NotionPageSize > 100 {
		return apperrors.NewConfigError("NOTION_PAGE_SIZE", fmt.Sprintf("must be between 1 and 100, got %d", c.NotionPageSize))
	}
	if c.MaxPages < 1 {
		return apperrors.NewConfigError("MAX_PAGES", fmt.Sprintf("must be at least 1, got %d", c.MaxPages))
	}
	if c.DBQueryTimeout <= 0 {
		return apperrors.NewConfigError("DB_QUERY_TIMEOUT", "must be positive")
	}
	if c.DBConnectTimeout <= 0 {
		return apperrors.NewConfigError("DB_CONNECT_TIMEOUT", "must be positive")
	}
	return nil
}

// ValidateSync checks the settings only the incremental sync needs.
//
// The interval must not exceed the window: otherwise a page edited right
// after one run's cutoff could fall outside the next run's window and never
// be picked up.
func (c *Config) ValidateSync() error {
	if c.NotionAPIKey == "" {
		return apperrors.NewConfigError("NOTION_API_KEY", "environment variable is required")
	}
	if c.NotionDatabaseID == "" {
		return apperrors.NewConfigError("NOTION_DATABASE_ID", "environment variable is required")
	}
	if c.SyncWindow <= 0 {
		return apperrors.NewConfigError("SYNC_WINDOW", "must be positive")
	}
	if c.SyncInterval <= 0 {
		return apperrors.NewConfigError("SYNC_INTERVAL", "must be positive")
	}
	if c.SyncInterval > c.SyncWindow {
		return apperrors.NewConfigError("SYNC_INTERVAL", fmt.Sprintf("%v exceeds SYNC_WINDOW %v; records edited between runs would be missed", c.SyncInterval, c.SyncWindow))
	}
	// The Redis lock is never extended, so it must outlive the slowest run.
	if c.RedisURL != "" && c.LockTTL < c.MaxRunDuration() {
		return apperrors.NewConfigError("LOCK_TTL", fmt.Sprintf("%v is shorter than the longest possible run %v (NOTION_PAGE_SIZE x MAX_PAGES x DB_QUERY_TIMEOUT)", c.LockTTL, c.MaxRunDuration()))
	}
	return nil
}

// MaxRunDuration bounds one sync run: every fetched record may use its full
// statement timeout.
func (c *Config) MaxRunDuration() time.Duration {
	return time.Duration(c.NotionPageSize*c.MaxPages) * c.DBQueryTimeout
}

// Location returns the fixed zone timestamps are normalized into.
func (c *Config) Location() *time.Location {
	return time.FixedZone(zoneName(c.TargetUTCOffset), int(c.TargetUTCOffset/time.Second))
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func zoneName(offset time.Duration) string {
	if offset == 9*time.Hour {
		return "KST"
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%s%02d:%02d", sign, h, m)
}

func defaultPort(driver string) string {
	switch driver {
	case DriverPostgres:
		return "5432"
	case DriverMySQL:
		return "3306"
	}
	return ""
}

// Helper functions for environment variable parsing

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default if not set/invalid
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default if not set/invalid.
//
// Accepts standard Go duration strings like "5s", "10m", "1h30m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
