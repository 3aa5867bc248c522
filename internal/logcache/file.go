package logcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/SteelMorgan/condorlog/internal/logreader"
	"github.com/SteelMorgan/condorlog/internal/observability"
	"github.com/SteelMorgan/condorlog/internal/snapshot"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxReloads bounds how often Load re-parses a log that keeps changing underneath it
const DefaultMaxReloads = 8

// Options tune how log files are loaded
type Options struct {
	// MaxReloads is the number of parse passes Load makes while the log keeps
	// changing during the parse. Zero means no limit.
	MaxReloads int

	// Scanner parses a submit log; nil uses logreader.DefaultScanner
	Scanner logreader.StatusScanner
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{MaxReloads: DefaultMaxReloads}
}

func (o Options) scanner() logreader.StatusScanner {
	if o.Scanner == nil {
		return logreader.DefaultScanner
	}
	return o.Scanner
}

// File is the cached snapshot of one submit log.
// The cache lives next to the log, named after it plus the kind's extension,
// and is refreshed whenever the log is newer than the cache.
type File struct {
	logPath   string
	cachePath string
	kind      snapshot.Kind
	opts      Options

	data     snapshot.Snapshot
	reparsed bool

	// write persists cache data; replaced in tests
	write func(path string, data []byte) error
}

// NewFile creates the cache handle for a submit log; nothing is read until Load
func NewFile(logPath string, kind snapshot.Kind, opts Options) *File {
	return &File{
		logPath:   logPath,
		cachePath: logPath + kind.CacheExt(),
		kind:      kind,
		opts:      opts,
		write:     writeAtomic,
	}
}

// LogPath returns the path of the submit log
func (f *File) LogPath() string { return f.logPath }

// CachePath returns the path of the cache file
func (f *File) CachePath() string { return f.cachePath }

// Snapshot returns the result of the last Load, or nil
func (f *File) Snapshot() snapshot.Snapshot { return f.data }

// Reparsed reports whether the last Load parsed the log instead of using the cache
func (f *File) Reparsed() bool { return f.reparsed }

// HasChanged reports whether the log was modified after its cache was written.
// A missing log cannot have changed; a missing cache always counts as changed.
func (f *File) HasChanged() bool {
	logInfo, err := os.Stat(f.logPath)
	if err != nil || !logInfo.Mode().IsRegular() {
		return false
	}
	cacheInfo, err := os.Stat(f.cachePath)
	if err != nil || !cacheInfo.Mode().IsRegular() {
		return true
	}
	return logInfo.ModTime().After(cacheInfo.ModTime())
}

// LoadCache reads the persisted snapshot without looking at the log
func (f *File) LoadCache() (snapshot.Snapshot, error) {
	data, err := os.ReadFile(f.cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	s, err := snapshot.DecodeKind(data, f.kind)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cache %s: %w", f.cachePath, err)
	}
	f.data = s
	return s, nil
}

// Load returns the snapshot of the log, from the cache when it is current.
// Otherwise the log is parsed and the cache rewritten; if the log changes
// while it is being parsed the parse is repeated, up to Options.MaxReloads
// passes, so the result is at least as new as the log was when Load started.
func (f *File) Load(ctx context.Context) (s snapshot.Snapshot, err error) {
	ctx, span := observability.StartSpan(ctx, "logcache.File.Load",
		attribute.String("log", f.logPath),
		attribute.String("kind", f.kind.String()),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("reparsed", f.reparsed))
		observability.EndSpan(span, err, "load")
	}()

	f.reparsed = false
	if !f.HasChanged() {
		s, err = f.LoadCache()
		if err == nil {
			return s, nil
		}
		// unreadable or corrupt cache: parse the log instead
		log.Warn().
			Err(err).
			Str("cache", f.cachePath).
			Msg("Ignoring unusable cache file")
	}

	return f.reload(ctx)
}

func (f *File) reload(ctx context.Context) (snapshot.Snapshot, error) {
	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start, err := modTime(f.logPath)
		if err != nil {
			return nil, err
		}

		jobs, err := f.opts.scanner().Scan(f.logPath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.logPath, err)
		}
		s := f.kind.Build(jobs)
		f.data = s
		f.reparsed = true

		if err := f.saveCache(s); err != nil {
			if errors.Is(err, ErrCacheWrite) {
				log.Debug().
					Err(err).
					Str("cache", f.cachePath).
					Msg("Cache not saved, returning parsed data")
				return s, nil
			}
			return nil, err
		}

		end, err := modTime(f.logPath)
		if err != nil || !end.After(start) {
			return s, nil
		}

		if f.opts.MaxReloads > 0 && pass >= f.opts.MaxReloads {
			// the cache is now newer than the log although it misses the
			// latest records; backdate it so the next Load parses again
			if err := os.Chtimes(f.cachePath, start, start); err != nil {
				log.Debug().Err(err).Str("cache", f.cachePath).Msg("Failed to backdate cache")
			}
			log.Warn().
				Str("log", f.logPath).
				Int("passes", pass).
				Msg("Log kept changing while parsing, returning possibly stale data")
			return s, nil
		}

		log.Debug().
			Str("log", f.logPath).
			Int("pass", pass).
			Msg("Log changed while parsing, reloading")
	}
}

func (f *File) saveCache(s snapshot.Snapshot) error {
	data, err := snapshot.Encode(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	return f.write(f.cachePath, data)
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}
