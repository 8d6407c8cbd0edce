package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends lists the accepted DATA_BACKEND values.
var Backends = []string{"memory", "sqlite", "postgres"}

type Config struct {
	// HTTP Server
	Port string

	// Remote store
	DataBackend   string
	SQLiteDBPath  string
	PostgresURL   string
	RemoteTimeout time.Duration

	// Offline cache; empty keeps it in memory
	OfflineCacheDir string

	// AMQP; empty URL disables month-synced events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Shares
	ShareTTL           time.Duration
	ShareCacheSize     int
	ShareCacheTTL      time.Duration
	ShareSweepInterval time.Duration

	// HTTP identity and public endpoint protection
	UserHeader           string
	PublicRateLimitRPS   float64
	PublicRateLimitBurst int

	// Comma separated category ids; empty uses the built-in catalog
	Categories string
	// Label of the permanent main tab
	MainTabLabel string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/saldo.db"),
		PostgresURL:   getEnv("POSTGRES_URL", ""),
		RemoteTimeout: getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),

		OfflineCacheDir: getEnv("OFFLINE_CACHE_DIR", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "saldo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "month_synced"),

		ShareTTL:           getEnvDuration("SHARE_TTL", 30*24*time.Hour),
		ShareCacheSize:     getEnvInt("SHARE_CACHE_SIZE", 200),
		ShareCacheTTL:      getEnvDuration("SHARE_CACHE_TTL", 5*time.Minute),
		ShareSweepInterval: getEnvDuration("SHARE_SWEEP_INTERVAL", time.Hour),

		UserHeader:           getEnv("USER_HEADER", "X-User-ID"),
		PublicRateLimitRPS:   getEnvFloat("PUBLIC_RATE_LIMIT_RPS", 1),
		PublicRateLimitBurst: getEnvInt("PUBLIC_RATE_LIMIT_BURST", 60),

		Categories:   getEnv("CATEGORIES", ""),
		MainTabLabel: getEnv("MAIN_TAB_LABEL", "Main"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(filepath.Dir(c.SQLiteDBPath)); msg != "" {
			errors = append(errors, msg)
		}
	case "postgres":
		if c.PostgresURL == "" {
			errors = append(errors, "POSTGRES_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.PostgresURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Postgres URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid Postgres URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.RemoteTimeout < 100*time.Millisecond || c.RemoteTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be between 100ms and 5m", c.RemoteTimeout))
	}

	if c.OfflineCacheDir != "" {
		if msg := ensureDir(c.OfflineCacheDir); msg != "" {
			errors = append(errors, msg)
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ShareTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid share TTL %v: must be at least 1 minute", c.ShareTTL))
	}
	if c.ShareCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid share cache size %d: must not be negative", c.ShareCacheSize))
	}
	if c.ShareCacheSize > 0 && c.ShareCacheTTL <= 0 {
		errors = append(errors, "share cache TTL must be positive when the share cache is enabled")
	}
	if c.ShareSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid share sweep interval %v: must be at least 1 second", c.ShareSweepInterval))
	} else if c.ShareSweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid share sweep interval %v: must be at most 24 hours", c.ShareSweepInterval))
	}

	if label := strings.TrimSpace(c.MainTabLabel); label == "" {
		errors = append(errors, "MAIN_TAB_LABEL cannot be empty")
	} else if len(label) > 64 {
		errors = append(errors, fmt.Sprintf("invalid main tab label '%s': must be at most 64 characters", label))
	}
	if strings.TrimSpace(c.UserHeader) == "" {
		errors = append(errors, "USER_HEADER cannot be empty")
	}
	if c.PublicRateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid public rate limit %v: must be positive", c.PublicRateLimitRPS))
	}
	if c.PublicRateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid public rate limit burst %d: must be at least 1", c.PublicRateLimitBurst))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ensureDir creates dir when missing and describes the failure, if any.
func ensureDir(dir string) string {
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
