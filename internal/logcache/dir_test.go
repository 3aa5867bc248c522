package logcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SteelMorgan/condorlog/internal/domain"
	"github.com/SteelMorgan/condorlog/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	removedLog = "000 (1.000.000) submitted\n...\n009 (1.000.000) aborted\n...\n"
	activeLog  = "000 (2.000.000) submitted\n...\n001 (2.000.000) executing\n...\n000 (2.001.000) submitted\n...\n"
)

// newTestDir lays out two matching logs plus files the filter must skip
func newTestDir(t *testing.T, kind snapshot.Kind) (*Dir, *countingScanner) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "job.1.log"), removedLog)
	writeFile(t, filepath.Join(dir, "job.2.log"), activeLog)
	writeFile(t, filepath.Join(dir, "other.log"), activeLog)
	writeFile(t, filepath.Join(dir, "job.3.txt"), activeLog)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "job.sub.log"), 0755))

	scanner := &countingScanner{}
	d, err := NewDir(DirConfig{
		Dir:     dir,
		Prefix:  "job.",
		Kind:    kind,
		Options: Options{MaxReloads: DefaultMaxReloads, Scanner: scanner},
	})
	require.NoError(t, err)
	return d, scanner
}

func TestNewDir_Validation(t *testing.T) {
	_, err := NewDir(DirConfig{Prefix: "job.", Kind: snapshot.KindCounts})
	assert.Error(t, err)

	_, err = NewDir(DirConfig{Dir: t.TempDir(), Prefix: "job."})
	assert.Error(t, err)
}

func TestDir_FileList(t *testing.T) {
	d, _ := newTestDir(t, snapshot.KindCounts)

	all, err := d.FileList(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"job.1.log", "job.2.log"}, all)

	active, err := d.FileList(true)
	require.NoError(t, err)
	assert.Equal(t, all, active, "nothing is inactive yet")
}

func TestDir_LoadMergesAndRetires(t *testing.T) {
	d, scanner := newTestDir(t, snapshot.KindCounts)

	stats, err := d.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Reparsed)
	assert.Equal(t, 1, stats.NewlyInactive)
	assert.Len(t, scanner.scanned, 2)

	counts := d.Snapshot().Counts()
	assert.Equal(t, 1, counts[domain.CategoryRemoved])
	assert.Equal(t, 1, counts[domain.CategoryRunning])
	assert.Equal(t, 1, counts[domain.CategoryWait])

	assert.Equal(t, []string{"job.1.log"}, d.Inactive())
	assert.FileExists(t, d.InactivePath())
	assert.Equal(t, filepath.Join(filepath.Dir(d.InactivePath()), "job..log.cifpk"), d.InactivePath())

	active, err := d.FileList(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"job.2.log"}, active)
}

func TestDir_InactiveFileIsNeverRescanned(t *testing.T) {
	d, scanner := newTestDir(t, snapshot.KindSummary)
	_, err := d.Load(context.Background(), true)
	require.NoError(t, err)

	// even a spurious modification of the retired log is ignored
	retired := filepath.Join(filepath.Dir(d.InactivePath()), "job.1.log")
	writeFile(t, retired, removedLog+"001 (1.000.000) executing\n...\n")
	touch(t, retired, time.Now().Add(time.Minute))
	scanner.scanned = nil

	stats, err := d.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Empty(t, scanner.scanned)

	changed, err := d.HasChanged()
	require.NoError(t, err)
	assert.False(t, changed)

	jobs := d.Snapshot().(*snapshot.Summary).Jobs
	assert.Equal(t, []string{"2.000"}, jobs[domain.CategoryRunning])
	assert.Empty(t, jobs[domain.CategoryRemoved])
}

func TestDir_InactiveListSurvivesRestart(t *testing.T) {
	d, _ := newTestDir(t, snapshot.KindCompleted)
	_, err := d.Load(context.Background(), true)
	require.NoError(t, err)

	again, err := NewDir(DirConfig{
		Dir:    filepath.Dir(d.InactivePath()),
		Prefix: "job.",
		Kind:   snapshot.KindCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"job.1.log"}, again.Inactive())

	active, err := again.FileList(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"job.2.log"}, active)
}

func TestDir_SeededInactiveList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "job.1.log"), removedLog)
	writeFile(t, filepath.Join(dir, "job.2.log"), activeLog)

	d, err := NewDir(DirConfig{Dir: dir, Prefix: "job.", Kind: snapshot.KindCounts, Inactive: []string{"job.2.log"}})
	require.NoError(t, err)

	active, err := d.FileList(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"job.1.log"}, active)
}

func TestDir_CorruptInactiveList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "job..log.cifpk"), "garbage")

	d, err := NewDir(DirConfig{Dir: dir, Prefix: "job.", Kind: snapshot.KindCounts})
	require.NoError(t, err)
	assert.Empty(t, d.Inactive())
}

func TestDir_InactiveWriteFailureIsIgnored(t *testing.T) {
	d, _ := newTestDir(t, snapshot.KindCounts)
	d.write = func(path string, data []byte) error {
		return fmt.Errorf("%w: read-only file system", ErrCacheWrite)
	}

	stats, err := d.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewlyInactive)
	assert.Equal(t, []string{"job.1.log"}, d.Inactive(), "kept in memory")
	assert.NoFileExists(t, d.InactivePath())
}

func TestDir_LoadAllDoesNotRetire(t *testing.T) {
	d, _ := newTestDir(t, snapshot.KindCounts)

	stats, err := d.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Zero(t, stats.NewlyInactive)
	assert.Empty(t, d.Inactive())
	assert.NoFileExists(t, d.InactivePath())
}

func TestDir_EmptyDirectory(t *testing.T) {
	for _, kind := range snapshot.Kinds {
		d, err := NewDir(DirConfig{Dir: t.TempDir(), Prefix: "job.", Kind: kind})
		require.NoError(t, err)

		stats, err := d.Load(context.Background(), true)
		require.NoError(t, err)
		assert.Zero(t, stats.Files)
		require.NotNil(t, d.Snapshot())
		assert.Equal(t, kind, d.Snapshot().Kind())
		assert.False(t, d.Snapshot().IsActive())
		assert.Len(t, d.Snapshot().Counts(), len(domain.Categories))
	}
}

func TestDir_DiffBetweenPolls(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "job.2.log")
	writeFile(t, logPath, activeLog)

	d, err := NewDir(DirConfig{Dir: dir, Prefix: "job.", Kind: snapshot.KindSummary})
	require.NoError(t, err)

	_, err = d.Load(context.Background(), true)
	require.NoError(t, err)
	first := d.Snapshot().Clone()

	fromNothing, err := d.Diff(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2.000"}, fromNothing.Lists[domain.CategoryRunning].Entered)
	assert.Empty(t, fromNothing.Lists[domain.CategoryRunning].Exited)

	writeFile(t, logPath, activeLog+"005 (2.000.000) terminated\n...\n")
	touch(t, logPath, time.Now().Add(time.Minute))

	_, err = d.Load(context.Background(), true)
	require.NoError(t, err)

	diff, err := d.Diff(first)
	require.NoError(t, err)
	assert.Equal(t, []string{"2.000"}, diff.Lists[domain.CategoryRunning].Exited)
	assert.Empty(t, diff.Lists[domain.CategoryRunning].Entered)
	assert.Equal(t, []string{"2.000"}, diff.Lists[domain.CategoryCompleted].Entered)
	assert.Empty(t, diff.Lists[domain.CategoryCompleted].Exited)
	for c, delta := range diff.Lists {
		if c == domain.CategoryRunning || c == domain.CategoryCompleted {
			continue
		}
		assert.True(t, delta.Empty(), "category %s", c)
	}
}

func TestDir_DiffKindMismatch(t *testing.T) {
	d, _ := newTestDir(t, snapshot.KindCounts)
	_, err := d.Load(context.Background(), true)
	require.NoError(t, err)

	_, err = d.Diff(snapshot.KindSummary.New())
	assert.ErrorIs(t, err, snapshot.ErrKindMismatch)
}
