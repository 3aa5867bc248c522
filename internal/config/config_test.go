package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"LOG_LEVEL", "POLL_INTERVAL", "MAX_RELOADS", "OTLP_PROTOCOL", "CLICKHOUSE_ENABLED", "RETRY_INITIAL_DELAY_MS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 8, cfg.MaxReloads)
	assert.Equal(t, "grpc", cfg.OTLPProtocol)
	assert.False(t, cfg.ClickHouseEnabled)
	assert.Equal(t, 8, cfg.CacheOptions().MaxReloads)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryConfig().InitialDelay)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("POLL_INTERVAL", "90")
	t.Setenv("MAX_RELOADS", "0")
	t.Setenv("OTLP_PROTOCOL", "HTTP")
	t.Setenv("CLICKHOUSE_ENABLED", "true")
	t.Setenv("CLICKHOUSE_PORT", "19000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.MaxReloads)
	assert.Equal(t, "http", cfg.OTLPProtocol)
	assert.True(t, cfg.ClickHouseEnabled)
	assert.Equal(t, 19000, cfg.ClickHousePort)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			WatchMapPath:     "watch.yaml",
			PollInterval:     time.Minute,
			OTLPProtocol:     "grpc",
			TraceSampleRatio: 1,
			RetryMaxAttempts: 3,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no watch map", func(c *Config) { c.WatchMapPath = "" }, "WATCH_MAP_PATH"},
		{"fast poll", func(c *Config) { c.PollInterval = time.Millisecond }, "POLL_INTERVAL"},
		{"negative reloads", func(c *Config) { c.MaxReloads = -1 }, "MAX_RELOADS"},
		{"bad protocol", func(c *Config) { c.OTLPProtocol = "udp" }, "OTLP_PROTOCOL"},
		{"clickhouse without host", func(c *Config) {
			c.ClickHouseEnabled = true
			c.ClickHousePort = 9000
			c.ClickHouseDB = "logs"
		}, "CLICKHOUSE_HOST"},
		{"no attempts", func(c *Config) { c.RetryMaxAttempts = 0 }, "RETRY_MAX_ATTEMPTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
