package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/SteelMorgan/condorlog/internal/logcache"
	"github.com/SteelMorgan/condorlog/internal/retry"
)

// Config holds all configuration for the application
type Config struct {
	// Observability
	LogLevel         string
	LogFile          string
	TracingEnabled   bool
	OTLPEndpoint     string
	OTLPProtocol     string // grpc or http
	TraceSampleRatio float64
	MetricsPort      int // 0 disables the /metrics endpoint

	// Polling
	WatchMapPath string
	PollInterval time.Duration
	MaxReloads   int    // parse passes per log while it keeps changing, 0 = unbounded
	StateDBPath  string // previous snapshots, empty disables diffs across restarts

	// ClickHouse sink
	ClickHouseEnabled bool
	ClickHouseHost    string
	ClickHousePort    int
	ClickHouseDB      string

	// Retry settings for ClickHouse
	RetryMaxAttempts    int
	RetryInitialDelayMs int
	RetryMaxDelayMs     int
	RetryMultiplier     float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
		TracingEnabled:   getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		OTLPProtocol:     strings.ToLower(getEnv("OTLP_PROTOCOL", "grpc")),
		TraceSampleRatio: getEnvFloat("TRACE_SAMPLE_RATIO", 1.0),
		MetricsPort:      getEnvInt("METRICS_PORT", 9108),

		WatchMapPath: getEnv("WATCH_MAP_PATH", "configs/watch.yaml"),
		PollInterval: getEnvDuration("POLL_INTERVAL", time.Minute),
		MaxReloads:   getEnvInt("MAX_RELOADS", logcache.DefaultMaxReloads),
		StateDBPath:  getEnv("STATE_DB_PATH", "condorlog_state.db"),

		ClickHouseEnabled: getEnvBool("CLICKHOUSE_ENABLED", false),
		ClickHouseHost:    getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:    getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDB:      getEnv("CLICKHOUSE_DB", "logs"),

		RetryMaxAttempts:    getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelayMs: getEnvInt("RETRY_INITIAL_DELAY_MS", 100),
		RetryMaxDelayMs:     getEnvInt("RETRY_MAX_DELAY_MS", 5000),
		RetryMultiplier:     getEnvFloat("RETRY_MULTIPLIER", 2.0),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.WatchMapPath == "" {
		return fmt.Errorf("WATCH_MAP_PATH is required")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s")
	}
	if c.MaxReloads < 0 {
		return fmt.Errorf("MAX_RELOADS must not be negative")
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 0 and 65535")
	}
	if c.OTLPProtocol != "grpc" && c.OTLPProtocol != "http" {
		return fmt.Errorf("OTLP_PROTOCOL must be grpc or http")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1")
	}

	if c.ClickHouseEnabled {
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required")
		}
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

// RetryConfig builds the ClickHouse retry settings
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:     c.RetryMaxAttempts,
		InitialDelay:    time.Duration(c.RetryInitialDelayMs) * time.Millisecond,
		MaxDelay:        time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		Multiplier:      c.RetryMultiplier,
		RetryableErrors: retry.DefaultConfig().RetryableErrors,
	}
}

// CacheOptions builds the log cache options
func (c *Config) CacheOptions() logcache.Options {
	return logcache.Options{MaxReloads: c.MaxReloads}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
