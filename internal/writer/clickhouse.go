package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/SteelMorgan/condorlog/internal/domain"
	"github.com/rs/zerolog/log"
)

const statusTable = "job_status_counts"

// ClickHouse DateTime64 valid range: 1925-01-01 to 2283-11-11
var (
	minClickHouseDateTime = time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2283, 11, 11, 23, 59, 59, 999999999, time.UTC)
)

// ensureValidDateTime ensures the time value is within ClickHouse DateTime64 range
func ensureValidDateTime(t time.Time) time.Time {
	if t.IsZero() || t.Before(minClickHouseDateTime) || t.After(maxClickHouseDateTime) {
		return minClickHouseDateTime
	}
	return t
}

// ClickHouseWriter stores per-poll category counts in ClickHouse
type ClickHouseWriter struct {
	client   inserter
	database string
}

// NewClickHouseWriter creates the writer; client is usually a *clickhouse.Client
func NewClickHouseWriter(client inserter, database string) *ClickHouseWriter {
	return &ClickHouseWriter{client: client, database: database}
}

func (w *ClickHouseWriter) table() string {
	return fmt.Sprintf("%s.%s", w.database, statusTable)
}

// EnsureSchema creates the status table if it does not exist
func (w *ClickHouseWriter) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    poll_id String,
    timestamp DateTime64(3),
    target LowCardinality(String),
    dir String,
    kind LowCardinality(String),
    category LowCardinality(String),
    jobs Int64,
    delta Int64,
    files_scanned UInt32,
    files_reparsed UInt32,
    files_retired UInt32,
    files_inactive UInt32,
    duration_ms UInt64
) ENGINE = MergeTree
ORDER BY (target, category, timestamp)`, w.table())

	if err := w.client.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.table(), err)
	}
	return nil
}

// WritePoll inserts one row per category
func (w *ClickHouseWriter) WritePoll(ctx context.Context, m *domain.PollMetrics) error {
	rows := pollRows(m)
	if err := w.client.InsertBatch(ctx, "INSERT INTO "+w.table(), rows); err != nil {
		return fmt.Errorf("failed to write poll %s: %w", m.PollID, err)
	}

	log.Debug().
		Str("poll_id", m.PollID).
		Str("target", m.Target).
		Int("rows", len(rows)).
		Msg("Poll written to ClickHouse")
	return nil
}

// Close closes the ClickHouse client
func (w *ClickHouseWriter) Close() error {
	return w.client.Close()
}

// pollRows lays out the table columns, one row per category in fixed order
func pollRows(m *domain.PollMetrics) [][]any {
	ts := ensureValidDateTime(m.Timestamp)
	rows := make([][]any, 0, len(domain.Categories))
	for _, cat := range domain.Categories {
		rows = append(rows, []any{
			m.PollID,
			ts,
			m.Target,
			m.Dir,
			m.Kind,
			string(cat),
			int64(m.Counts[cat]),
			int64(m.Deltas[cat]),
			m.FilesScanned,
			m.FilesReparsed,
			m.FilesNewlyRetired,
			m.FilesInactive,
			m.DurationMs,
		})
	}
	return rows
}
