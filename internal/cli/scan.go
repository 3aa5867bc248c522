package cli

import (
	"sort"

	"github.com/SteelMorgan/condorlog/internal/domain"
	"github.com/SteelMorgan/condorlog/internal/logreader"
	"github.com/spf13/cobra"
)

// eventCount is one line of the scan output
type eventCount struct {
	Code     string          `yaml:"code"`
	Event    string          `yaml:"event"`
	Category domain.Category `yaml:"category"`
	Jobs     int             `yaml:"jobs"`
}

// scanReport is the output of the scan command
type scanReport struct {
	File   string       `yaml:"file"`
	Jobs   int          `yaml:"jobs"`
	Events []eventCount `yaml:"events"`
	Listed []string     `yaml:"listed,omitempty"`
}

func (a *app) buildScanCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "scan <log>",
		Short: "Break one submit log down by last event code, bypassing the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var only domain.Category
			if category != "" {
				c, err := domain.ParseCategory(category)
				if err != nil {
					return err
				}
				only = c
			}

			jobs, err := logreader.ScanFile(args[0])
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), buildScanReport(args[0], jobs, only))
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "also list the jobs of this category (Wait, Idle, Running, Held, Completed, Removed)")
	return cmd
}

func buildScanReport(path string, jobs domain.JobStatusMap, only domain.Category) scanReport {
	report := scanReport{File: path, Jobs: len(jobs)}

	raw := jobs.CountRaw()
	codes := make([]domain.RawStatus, 0, len(raw))
	for s := range raw {
		codes = append(codes, s)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, s := range codes {
		report.Events = append(report.Events, eventCount{
			Code:     s.String(),
			Event:    s.Description(),
			Category: s.Category(),
			Jobs:     raw[s],
		})
	}

	if only != "" {
		report.Listed = listJobs(jobs, only)
	}
	return report
}

// listJobs returns the jobs of one category in cluster/proc order.
// Ids that do not parse keep their raw form and sort last.
func listJobs(jobs domain.JobStatusMap, only domain.Category) []string {
	var ids []domain.JobID
	var unparsed []string
	for key, s := range jobs {
		if s.Category() != only {
			continue
		}
		if id := domain.ParseJobID(key); id.Valid() {
			ids = append(ids, id)
		} else {
			unparsed = append(unparsed, key)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Cluster != ids[j].Cluster {
			return ids[i].Cluster < ids[j].Cluster
		}
		return ids[i].Proc < ids[j].Proc
	})
	sort.Strings(unparsed)

	out := make([]string, 0, len(ids)+len(unparsed))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return append(out, unparsed...)
}
