package writer

import (
	"context"

	"github.com/SteelMorgan/condorlog/internal/domain"
)

// PollWriter publishes the outcome of a poll
type PollWriter interface {
	// WritePoll stores one row per category of the poll's aggregate
	WritePoll(ctx context.Context, m *domain.PollMetrics) error

	// Close releases the underlying connection
	Close() error
}

// inserter is the part of clickhouse.Client the writer needs
type inserter interface {
	Exec(ctx context.Context, query string, args ...any) error
	InsertBatch(ctx context.Context, query string, rows [][]any) error
	Close() error
}
