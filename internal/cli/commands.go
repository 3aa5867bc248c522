package cli

import (
	"context"
	"fmt"

	"github.com/SteelMorgan/condorlog/internal/domain"
	"github.com/SteelMorgan/condorlog/internal/logcache"
	"github.com/SteelMorgan/condorlog/internal/pollstate"
	"github.com/SteelMorgan/condorlog/internal/snapshot"
	"github.com/spf13/cobra"
)

// summaryReport is the output of the summary command
type summaryReport struct {
	Dir      string                  `yaml:"dir"`
	Kind     snapshot.Kind           `yaml:"kind"`
	Files    int                     `yaml:"files"`
	Reparsed int                     `yaml:"reparsed"`
	Retired  int                     `yaml:"retired"`
	Counts   map[domain.Category]int `yaml:"counts"`
	Snapshot snapshot.Snapshot       `yaml:"snapshot,omitempty"`
}

// diffReport is the output of the diff command
type diffReport struct {
	Key       string                  `yaml:"key"`
	First     bool                    `yaml:"first_poll"`
	Counts    map[domain.Category]int `yaml:"counts"`
	Deltas    map[domain.Category]int `yaml:"deltas"`
	Changes   *snapshot.Diff          `yaml:"changes"`
	Unchanged bool                    `yaml:"unchanged"`
}

func (a *app) buildSummaryCommand() *cobra.Command {
	var f dirFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the aggregated job states of a directory of logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(&f)
			if err != nil {
				return err
			}
			stats, err := d.Load(cmd.Context(), !f.all)
			if err != nil {
				return err
			}

			snap := d.Snapshot()
			report := summaryReport{
				Dir:      f.dir,
				Kind:     snap.Kind(),
				Files:    stats.Files,
				Reparsed: stats.Reparsed,
				Retired:  stats.NewlyInactive,
				Counts:   snap.Counts(),
			}
			// counts alone are already in the report
			if snap.Kind() != snapshot.KindCounts {
				report.Snapshot = snap
			}
			return printYAML(cmd.OutOrStdout(), report)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) buildFilesCommand() *cobra.Command {
	var f dirFlags

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List the active and retired logs of a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(&f)
			if err != nil {
				return err
			}
			active, err := d.FileList(true)
			if err != nil {
				return err
			}
			changed, err := d.HasChanged()
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), map[string]any{
				"active":        active,
				"inactive":      d.Inactive(),
				"inactive_list": d.InactivePath(),
				"changed":       changed,
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) buildDiffCommand() *cobra.Command {
	var f dirFlags
	var statePath string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show what changed since the previous diff of the same directory",
		Long: `Loads the directory, compares the aggregate with the one stored by the
previous run and stores the new aggregate for the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if statePath == "" {
				statePath = a.cfg.StateDBPath
			}
			store, err := pollstate.NewBoltStore(statePath)
			if err != nil {
				return err
			}
			defer store.Close()

			d, err := a.openDir(&f)
			if err != nil {
				return err
			}
			report, err := diffDir(cmd.Context(), d, store, pollstate.Key(d.Kind(), f.dir, f.prefix, f.suffix), !f.all)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), report)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&statePath, "state", "", "state database (default STATE_DB_PATH)")
	return cmd
}

func diffDir(ctx context.Context, d *logcache.Dir, store pollstate.Store, key string, activeOnly bool) (*diffReport, error) {
	if _, err := d.Load(ctx, activeOnly); err != nil {
		return nil, err
	}
	prev, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	changes, err := d.Diff(prev)
	if err != nil {
		return nil, fmt.Errorf("failed to diff against previous snapshot: %w", err)
	}
	if err := store.Put(ctx, key, d.Snapshot()); err != nil {
		return nil, err
	}

	return &diffReport{
		Key:       key,
		First:     prev == nil,
		Counts:    d.Snapshot().Counts(),
		Deltas:    changes.CountDeltas(),
		Changes:   changes,
		Unchanged: changes.Empty(),
	}, nil
}
