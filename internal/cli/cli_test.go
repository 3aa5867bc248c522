package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_PORT", "0")
	t.Setenv("CLICKHOUSE_ENABLED", "false")
	t.Setenv("TRACING_ENABLED", "false")

	var out bytes.Buffer
	root := BuildCLI("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func logDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"job.1.log": "000 (1.000.000) submitted\n...\n009 (1.000.000) aborted\n...\n",
		"job.2.log": "000 (2.000.000) submitted\n...\n001 (2.000.000) executing\n...\n012 (2.001.000) held\n...\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestSummaryCommand(t *testing.T) {
	dir := logDir(t)

	out, err := run(t, "summary", "--dir", dir, "--prefix", "job.", "--kind", "summary")
	require.NoError(t, err)

	var report struct {
		Kind     string                         `yaml:"kind"`
		Files    int                            `yaml:"files"`
		Retired  int                            `yaml:"retired"`
		Counts   map[string]int                 `yaml:"counts"`
		Snapshot map[string]map[string][]string `yaml:"snapshot"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "summary", report.Kind)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 1, report.Retired)
	assert.Equal(t, 1, report.Counts["Running"])
	assert.Equal(t, 1, report.Counts["Held"])
	assert.Equal(t, 1, report.Counts["Removed"])
	assert.Equal(t, []string{"2.001"}, report.Snapshot["jobs"]["Held"])
}

func TestSummaryCommand_BadKind(t *testing.T) {
	_, err := run(t, "summary", "--dir", logDir(t), "--prefix", "job.", "--kind", "everything")
	assert.Error(t, err)
}

func TestSummaryCommand_PrefixRequired(t *testing.T) {
	_, err := run(t, "summary", "--dir", logDir(t))
	assert.Error(t, err)
}

func TestFilesCommand(t *testing.T) {
	dir := logDir(t)
	_, err := run(t, "summary", "--dir", dir, "--prefix", "job.")
	require.NoError(t, err)

	out, err := run(t, "files", "--dir", dir, "--prefix", "job.")
	require.NoError(t, err)

	var listing struct {
		Active   []string `yaml:"active"`
		Inactive []string `yaml:"inactive"`
		Changed  bool     `yaml:"changed"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &listing))
	assert.Equal(t, []string{"job.2.log"}, listing.Active)
	assert.Equal(t, []string{"job.1.log"}, listing.Inactive)
	assert.False(t, listing.Changed)
}

func TestDiffCommand(t *testing.T) {
	dir := logDir(t)
	state := filepath.Join(t.TempDir(), "state.db")
	args := []string{"diff", "--dir", dir, "--prefix", "job.", "--kind", "counts", "--all", "--state", state}

	type diffOut struct {
		First     bool           `yaml:"first_poll"`
		Unchanged bool           `yaml:"unchanged"`
		Deltas    map[string]int `yaml:"deltas"`
	}

	out, err := run(t, args...)
	require.NoError(t, err)
	var first diffOut
	require.NoError(t, yaml.Unmarshal([]byte(out), &first))
	assert.True(t, first.First)
	assert.False(t, first.Unchanged)
	assert.Equal(t, 1, first.Deltas["Removed"])

	out, err = run(t, args...)
	require.NoError(t, err)
	var second diffOut
	require.NoError(t, yaml.Unmarshal([]byte(out), &second))
	assert.False(t, second.First)
	assert.True(t, second.Unchanged)
}

func TestScanCommand(t *testing.T) {
	path := filepath.Join(logDir(t), "job.2.log")

	out, err := run(t, "scan", path, "--category", "Held")
	require.NoError(t, err)

	var report struct {
		Jobs   int `yaml:"jobs"`
		Events []struct {
			Code     string `yaml:"code"`
			Event    string `yaml:"event"`
			Category string `yaml:"category"`
			Jobs     int    `yaml:"jobs"`
		} `yaml:"events"`
		Listed []string `yaml:"listed"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Jobs)
	require.Len(t, report.Events, 2)
	assert.Equal(t, "001", report.Events[0].Code)
	assert.Equal(t, "Job executing", report.Events[0].Event)
	assert.Equal(t, "Running", report.Events[0].Category)
	assert.Equal(t, "012", report.Events[1].Code)
	assert.Equal(t, "Job was held", report.Events[1].Event)
	assert.Equal(t, []string{"2.001"}, report.Listed)
	assert.NoFileExists(t, path+".clcpk", "scan bypasses the cache")
}

func TestScanCommand_BadCategory(t *testing.T) {
	_, err := run(t, "scan", filepath.Join(logDir(t), "job.2.log"), "--category", "held")
	assert.Error(t, err)
}

func TestStateCommands(t *testing.T) {
	dir := logDir(t)
	state := filepath.Join(t.TempDir(), "state.db")
	_, err := run(t, "diff", "--dir", dir, "--prefix", "job.", "--all", "--state", state)
	require.NoError(t, err)

	out, err := run(t, "state", "list", "--state", state)
	require.NoError(t, err)
	var entries []struct {
		Key    string         `yaml:"key"`
		Counts map[string]int `yaml:"counts"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Key, "counts:")
	assert.Equal(t, 1, entries[0].Counts["Removed"])

	_, err = run(t, "state", "forget", entries[0].Key, "--state", state)
	require.NoError(t, err)

	out, err = run(t, "state", "list", "--state", state)
	require.NoError(t, err)
	entries = nil
	require.NoError(t, yaml.Unmarshal([]byte(out), &entries))
	assert.Empty(t, entries)
}

func TestWatchCommand_Once(t *testing.T) {
	dir := logDir(t)
	watchPath := filepath.Join(t.TempDir(), "watch.yaml")
	watch := "targets:\n  - name: test\n    dir: " + dir + "\n    prefix: job.\n"
	require.NoError(t, os.WriteFile(watchPath, []byte(watch), 0644))
	t.Setenv("STATE_DB_PATH", filepath.Join(t.TempDir(), "state.db"))

	_, err := run(t, "watch", "--once", "--watch", watchPath)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "job.2.log.clcpk"))
}

func TestMaxReloadsFlag(t *testing.T) {
	_, err := run(t, "--max-reloads=-1", "summary", "--dir", logDir(t), "--prefix", "job.")
	assert.Error(t, err)
}
