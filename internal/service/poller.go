package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SteelMorgan/condorlog/internal/domain"
	"github.com/SteelMorgan/condorlog/internal/logcache"
	"github.com/SteelMorgan/condorlog/internal/metrics"
	"github.com/SteelMorgan/condorlog/internal/observability"
	"github.com/SteelMorgan/condorlog/internal/pollstate"
	"github.com/SteelMorgan/condorlog/internal/snapshot"
	"github.com/SteelMorgan/condorlog/internal/watchlist"
	"github.com/SteelMorgan/condorlog/internal/writer"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Deps are the optional sinks of the poller; nil fields are skipped
type Deps struct {
	Store   pollstate.Store
	Metrics *metrics.Collector
	Writer  writer.PollWriter
}

// Result is the outcome of polling one target
type Result struct {
	Target   watchlist.Target
	Snapshot snapshot.Snapshot
	Diff     *snapshot.Diff
	Metrics  domain.PollMetrics
}

// Poller periodically aggregates every watch target, diffs the aggregate
// against the previous poll and publishes the result
type Poller struct {
	targets  []watchlist.Target
	interval time.Duration
	opts     logcache.Options
	deps     Deps

	// one aggregator per target so the inactive list stays in memory
	dirs map[string]*logcache.Dir
}

// NewPoller creates a poller for the given targets
func NewPoller(targets []watchlist.Target, interval time.Duration, opts logcache.Options, deps Deps) (*Poller, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one watch target is required")
	}
	return &Poller{
		targets:  targets,
		interval: interval,
		opts:     opts,
		deps:     deps,
		dirs:     make(map[string]*logcache.Dir, len(targets)),
	}, nil
}

// Run polls all targets immediately and then on every tick until ctx is done
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	log.Info().
		Int("targets", len(p.targets)).
		Dur("interval", p.interval).
		Msg("Starting poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Poll finished with errors")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce polls every target once. A failing target does not stop the
// others; the results of the successful ones are returned with the joined
// errors of the failed ones.
func (p *Poller) PollOnce(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(p.targets))
	var errs []error
	for _, t := range p.targets {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := p.Poll(ctx, t)
		if err != nil {
			if p.deps.Metrics != nil {
				p.deps.Metrics.RecordError(t.Name)
			}
			errs = append(errs, fmt.Errorf("target %s: %w", t.Name, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Poll aggregates one target and publishes the result
func (p *Poller) Poll(ctx context.Context, t watchlist.Target) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "service.Poll",
		attribute.String("target", t.Name),
		attribute.String("dir", t.Dir),
	)
	defer func() { observability.EndSpan(span, err, "poll") }()

	start := time.Now()

	dir, err := p.dir(t)
	if err != nil {
		return res, err
	}
	stats, err := dir.Load(ctx, t.IsActiveOnly())
	if err != nil {
		return res, err
	}

	key := t.StateKey()
	prev := p.previous(ctx, key)
	diff, err := dir.Diff(prev)
	if err != nil {
		return res, err
	}

	snap := dir.Snapshot()
	if p.deps.Store != nil {
		if err := p.deps.Store.Put(ctx, key, snap); err != nil {
			log.Warn().Err(err).Str("target", t.Name).Msg("Failed to remember snapshot")
		}
	}

	end := time.Now()
	m := domain.PollMetrics{
		PollID:            uuid.NewString(),
		Timestamp:         end,
		Target:            t.Name,
		Dir:               t.Dir,
		Kind:              t.Kind.String(),
		ActiveOnly:        t.IsActiveOnly(),
		FilesScanned:      uint32(stats.Files),
		FilesReparsed:     uint32(stats.Reparsed),
		FilesNewlyRetired: uint32(stats.NewlyInactive),
		FilesInactive:     uint32(stats.Inactive),
		Counts:            snap.Counts(),
		Deltas:            diff.CountDeltas(),
		StartTime:         start,
		EndTime:           end,
		DurationMs:        uint64(end.Sub(start).Milliseconds()),
	}

	if p.deps.Writer != nil {
		if err := p.deps.Writer.WritePoll(ctx, &m); err != nil {
			m.ErrorCount++
			log.Error().Err(err).Str("target", t.Name).Msg("Failed to publish poll")
		}
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.Observe(m)
	}

	logPoll(m, diff)

	return Result{Target: t, Snapshot: snap, Diff: diff, Metrics: m}, nil
}

// Close releases the sinks
func (p *Poller) Close() error {
	var errs []error
	if p.deps.Writer != nil {
		errs = append(errs, p.deps.Writer.Close())
	}
	if p.deps.Store != nil {
		errs = append(errs, p.deps.Store.Close())
	}
	return errors.Join(errs...)
}

func (p *Poller) dir(t watchlist.Target) (*logcache.Dir, error) {
	if d, ok := p.dirs[t.Name]; ok {
		return d, nil
	}
	d, err := logcache.NewDir(t.DirConfig(p.opts))
	if err != nil {
		return nil, err
	}
	p.dirs[t.Name] = d
	return d, nil
}

// previous returns the snapshot of the last poll; an unreadable one counts as none
func (p *Poller) previous(ctx context.Context, key string) snapshot.Snapshot {
	if p.deps.Store == nil {
		return nil
	}
	prev, err := p.deps.Store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Ignoring previous snapshot")
		return nil
	}
	return prev
}

func logPoll(m domain.PollMetrics, diff *snapshot.Diff) {
	event := log.Info()
	if diff.Empty() {
		event = log.Debug()
	}
	for _, cat := range domain.Categories {
		if d := m.Deltas[cat]; d != 0 {
			event = event.Int("delta_"+string(cat), d)
		}
	}
	event.
		Str("target", m.Target).
		Str("poll_id", m.PollID).
		Int("jobs", m.Total()).
		Uint32("files", m.FilesScanned).
		Uint32("reparsed", m.FilesReparsed).
		Uint64("duration_ms", m.DurationMs).
		Msg("Poll complete")
}
