package cli

import (
	"fmt"

	"github.com/SteelMorgan/condorlog/internal/pollstate"
	"github.com/spf13/cobra"
)

func (a *app) buildStateCommand() *cobra.Command {
	var statePath string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the previous snapshots kept for diff and watch",
	}
	cmd.PersistentFlags().StringVar(&statePath, "state", "", "state database (default STATE_DB_PATH)")

	open := func() (*pollstate.BoltStore, error) {
		if statePath == "" {
			statePath = a.cfg.StateDBPath
		}
		return pollstate.NewBoltStore(statePath)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshot keys with their job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			entries := make([]map[string]any, 0, len(keys))
			for _, key := range keys {
				snap, err := store.Get(cmd.Context(), key)
				if err != nil {
					return err
				}
				entry := map[string]any{"key": key}
				if snap != nil {
					entry["counts"] = snap.Counts()
				}
				entries = append(entries, entry)
			}
			return printYAML(cmd.OutOrStdout(), entries)
		},
	}

	forgetCmd := &cobra.Command{
		Use:   "forget <key>...",
		Short: "Drop stored snapshots so the next diff starts from scratch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, key := range args {
				if err := store.Delete(cmd.Context(), key); err != nil {
					return fmt.Errorf("failed to forget %s: %w", key, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", key)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, forgetCmd)
	return cmd
}
