package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/SteelMorgan/condorlog/internal/config"
	"github.com/SteelMorgan/condorlog/internal/logcache"
	"github.com/SteelMorgan/condorlog/internal/observability"
	"github.com/SteelMorgan/condorlog/internal/snapshot"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// app carries the environment configuration and the global flags to the commands
type app struct {
	cfg        *config.Config
	logLevel   string
	maxReloads int
}

// BuildCLI creates the root command
func BuildCLI(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "condorlog",
		Short: "Cached job-state summaries of condor submit logs",
		Long: `condorlog aggregates the job states recorded in condor submit logs.

Every log gets a cache next to it that is rebuilt only when the log changes,
and logs whose jobs have all finished are retired from later scans.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = a.logLevel
			}
			if cmd.Flags().Changed("max-reloads") {
				if a.maxReloads < 0 {
					return fmt.Errorf("--max-reloads must not be negative")
				}
				cfg.MaxReloads = a.maxReloads
			}
			a.cfg = cfg
			observability.InitLogger(cfg.LogLevel, cfg.LogFile)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().IntVar(&a.maxReloads, "max-reloads", logcache.DefaultMaxReloads, "parse passes per log while it keeps changing, 0 = unbounded (overrides MAX_RELOADS)")

	rootCmd.AddCommand(a.buildSummaryCommand())
	rootCmd.AddCommand(a.buildFilesCommand())
	rootCmd.AddCommand(a.buildDiffCommand())
	rootCmd.AddCommand(a.buildScanCommand())
	rootCmd.AddCommand(a.buildStateCommand())
	rootCmd.AddCommand(a.buildWatchCommand())

	return rootCmd
}

// dirFlags select one directory of logs
type dirFlags struct {
	dir    string
	prefix string
	suffix string
	kind   string
	all    bool
}

func (f *dirFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "dir", "d", ".", "directory holding the submit logs")
	cmd.Flags().StringVarP(&f.prefix, "prefix", "p", "", "log file name prefix")
	cmd.Flags().StringVar(&f.suffix, "suffix", logcache.DefaultSuffix, "log file name suffix")
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "counts", "snapshot kind: summary, completed or counts")
	cmd.Flags().BoolVar(&f.all, "all", false, "include retired logs")
	_ = cmd.MarkFlagRequired("prefix")
}

func (f *dirFlags) dirConfig(opts logcache.Options) (logcache.DirConfig, error) {
	kind, err := snapshot.ParseKind(f.kind)
	if err != nil {
		return logcache.DirConfig{}, err
	}
	return logcache.DirConfig{
		Dir:     f.dir,
		Prefix:  f.prefix,
		Suffix:  f.suffix,
		Kind:    kind,
		Options: opts,
	}, nil
}

func (a *app) openDir(f *dirFlags) (*logcache.Dir, error) {
	cfg, err := f.dirConfig(a.cfg.CacheOptions())
	if err != nil {
		return nil, err
	}
	return logcache.NewDir(cfg)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	return enc.Close()
}

// Execute runs the CLI and exits non-zero on error
func Execute(version string) {
	if err := BuildCLI(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
