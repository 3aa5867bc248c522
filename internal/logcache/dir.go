package logcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/SteelMorgan/condorlog/internal/logreader"
	"github.com/SteelMorgan/condorlog/internal/observability"
	"github.com/SteelMorgan/condorlog/internal/snapshot"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultSuffix      = ".log"
	DefaultInactiveExt = ".cifpk"
)

// DirConfig describes a directory of submit logs
type DirConfig struct {
	Dir    string
	Prefix string
	Suffix string // default ".log"
	Kind   snapshot.Kind

	// CacheExt names the inactive-file list, stored as <dir>/<prefix><suffix><ext>
	CacheExt string // default ".cifpk"

	// Inactive seeds the inactive-file list; nil loads it from disk
	Inactive []string

	Options Options
}

// LoadStats describes one Dir.Load
type LoadStats struct {
	Files         int
	CacheHits     int
	Reparsed      int
	NewlyInactive int
	Inactive      int
	Duration      time.Duration
}

// Dir aggregates the snapshots of every matching log in a directory.
// Files whose jobs have all finished are recorded in a persisted inactive list
// and are no longer scanned by active-only loads. Dir is not safe for
// concurrent use.
type Dir struct {
	cfg          DirConfig
	inactivePath string

	inactive    []string
	inactiveSet map[string]struct{}

	files map[string]*File
	data  snapshot.Snapshot

	// write persists the inactive list; replaced in tests
	write func(path string, data []byte) error
}

// NewDir prepares an aggregator and loads the inactive-file list
func NewDir(cfg DirConfig) (*Dir, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("directory is required")
	}
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("invalid snapshot kind: %s", cfg.Kind)
	}
	if cfg.Suffix == "" {
		cfg.Suffix = DefaultSuffix
	}
	if cfg.CacheExt == "" {
		cfg.CacheExt = DefaultInactiveExt
	}

	d := &Dir{
		cfg:          cfg,
		inactivePath: filepath.Join(cfg.Dir, cfg.Prefix+cfg.Suffix+cfg.CacheExt),
		inactiveSet:  make(map[string]struct{}),
		files:        make(map[string]*File),
		write:        writeAtomic,
	}

	inactive := cfg.Inactive
	if inactive == nil {
		inactive = d.readInactive()
	}
	d.addInactive(inactive)

	return d, nil
}

// InactivePath returns the path of the persisted inactive-file list
func (d *Dir) InactivePath() string { return d.inactivePath }

// Kind returns the snapshot kind this directory aggregates
func (d *Dir) Kind() snapshot.Kind { return d.cfg.Kind }

// Inactive returns a copy of the inactive-file list
func (d *Dir) Inactive() []string {
	out := make([]string, len(d.inactive))
	copy(out, d.inactive)
	return out
}

// Snapshot returns the aggregate from the last Load, or nil
func (d *Dir) Snapshot() snapshot.Snapshot { return d.data }

// FileList returns the matching log names, without inactive ones when activeOnly
func (d *Dir) FileList(activeOnly bool) ([]string, error) {
	names, err := logreader.ListLogFiles(d.cfg.Dir, d.cfg.Prefix, d.cfg.Suffix)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return names, nil
	}

	active := names[:0]
	for _, name := range names {
		if !d.isInactive(name) {
			active = append(active, name)
		}
	}
	return active, nil
}

// HasChanged reports whether any active log is newer than its cache
func (d *Dir) HasChanged() (bool, error) {
	names, err := d.FileList(true)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if d.file(name).HasChanged() {
			return true, nil
		}
	}
	return false, nil
}

// Load loads every candidate log and merges them into one snapshot.
// With activeOnly, files found to hold only finished jobs are appended to the
// inactive list and skipped from then on. Persisting the list is best effort.
func (d *Dir) Load(ctx context.Context, activeOnly bool) (stats LoadStats, err error) {
	ctx, span := observability.StartSpan(ctx, "logcache.Dir.Load",
		attribute.String("dir", d.cfg.Dir),
		attribute.String("prefix", d.cfg.Prefix),
		attribute.String("kind", d.cfg.Kind.String()),
		attribute.Bool("active_only", activeOnly),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("files", stats.Files),
			attribute.Int("reparsed", stats.Reparsed),
			attribute.Int("newly_inactive", stats.NewlyInactive),
		)
		observability.EndSpan(span, err, "load")
	}()

	start := time.Now()

	names, err := d.FileList(activeOnly)
	if err != nil {
		return stats, err
	}

	var acc snapshot.Snapshot
	var newInactive []string
	for _, name := range names {
		f := d.file(name)
		s, err := f.Load(ctx)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// rotated away between listing and loading
				log.Debug().Str("file", name).Msg("Log file disappeared, skipping")
				delete(d.files, name)
				continue
			}
			return stats, fmt.Errorf("failed to load %s: %w", name, err)
		}

		stats.Files++
		if f.Reparsed() {
			stats.Reparsed++
		} else {
			stats.CacheHits++
		}

		acc, err = s.Merge(acc)
		if err != nil {
			return stats, err
		}

		active := s.IsActive()
		if !active && !d.isInactive(name) {
			newInactive = append(newInactive, name)
		}

		log.Debug().
			Str("file", name).
			Bool("reparsed", f.Reparsed()).
			Bool("active", active).
			Msg("Loaded log file")
	}

	if acc == nil {
		acc = d.cfg.Kind.New()
	}
	d.data = acc

	if activeOnly && len(newInactive) > 0 {
		d.addInactive(newInactive)
		for _, name := range newInactive {
			delete(d.files, name)
		}
		stats.NewlyInactive = len(newInactive)
		d.saveInactive()
	}

	stats.Inactive = len(d.inactive)
	stats.Duration = time.Since(start)

	log.Info().
		Str("dir", d.cfg.Dir).
		Str("prefix", d.cfg.Prefix).
		Str("kind", d.cfg.Kind.String()).
		Int("files", stats.Files).
		Int("reparsed", stats.Reparsed).
		Int("newly_inactive", stats.NewlyInactive).
		Dur("duration", stats.Duration).
		Msg("Directory loaded")

	return stats, nil
}

// Diff compares the last aggregate with prev; an unloaded Dir diffs as empty
func (d *Dir) Diff(prev snapshot.Snapshot) (*snapshot.Diff, error) {
	cur := d.data
	if cur == nil {
		cur = d.cfg.Kind.New()
	}
	return cur.Diff(prev)
}

func (d *Dir) file(name string) *File {
	f, ok := d.files[name]
	if !ok {
		f = NewFile(filepath.Join(d.cfg.Dir, name), d.cfg.Kind, d.cfg.Options)
		d.files[name] = f
	}
	return f
}

func (d *Dir) isInactive(name string) bool {
	_, ok := d.inactiveSet[name]
	return ok
}

func (d *Dir) addInactive(names []string) {
	for _, name := range names {
		if d.isInactive(name) {
			continue
		}
		d.inactiveSet[name] = struct{}{}
		d.inactive = append(d.inactive, name)
	}
}

func (d *Dir) readInactive() []string {
	data, err := os.ReadFile(d.inactivePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", d.inactivePath).Msg("Failed to read inactive list, starting empty")
		}
		return nil
	}
	names, err := snapshot.DecodeNames(data)
	if err != nil {
		log.Warn().Err(err).Str("file", d.inactivePath).Msg("Inactive list is corrupted, starting empty")
		return nil
	}
	return names
}

// saveInactive merges the list on disk with ours, so names retired by another
// process are kept, and writes the result back.
func (d *Dir) saveInactive() {
	d.addInactive(d.readInactive())

	names := d.Inactive()
	sort.Strings(names)

	data, err := snapshot.EncodeNames(names)
	if err == nil {
		err = d.write(d.inactivePath, data)
	}
	if err != nil {
		if errors.Is(err, ErrCacheWrite) {
			log.Debug().Err(err).Str("file", d.inactivePath).Msg("Inactive list not saved")
			return
		}
		log.Warn().Err(err).Str("file", d.inactivePath).Msg("Failed to save inactive list")
	}
}
