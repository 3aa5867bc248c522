package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/SteelMorgan/condorlog/internal/retry"
	"github.com/rs/zerolog/log"
)

// Client wraps ClickHouse connection
type Client struct {
	conn     clickhouse.Conn
	retryCfg retry.Config
}

// NewClient creates a new ClickHouse client with default retry config
func NewClient(ctx context.Context, host string, port int, database string) (*Client, error) {
	return NewClientWithRetry(ctx, host, port, database, retry.DefaultConfig())
}

// NewClientWithRetry creates a new ClickHouse client with custom retry configuration
func NewClientWithRetry(ctx context.Context, host string, port int, database string, retryCfg retry.Config) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: "default",
			Password: "",
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := retry.Do(ctx, retryCfg, func() error {
		return conn.Ping(ctx)
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	log.Info().
		Str("host", host).
		Int("port", port).
		Str("database", database).
		Msg("Connected to ClickHouse")

	return &Client{
		conn:     conn,
		retryCfg: retryCfg,
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	log.Info().Msg("Closing ClickHouse connection")
	return c.conn.Close()
}

// Exec executes a non-SELECT query with retry logic
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		return c.conn.Exec(ctx, query, args...)
	})
}

// InsertBatch sends rows in one batch. A failed batch cannot be resent, so
// every attempt prepares a new one.
func (c *Client) InsertBatch(ctx context.Context, query string, rows [][]any) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		batch, err := c.conn.PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, row := range rows {
			if err := batch.Append(row...); err != nil {
				_ = batch.Abort()
				return fmt.Errorf("failed to append to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		return nil
	})
}
