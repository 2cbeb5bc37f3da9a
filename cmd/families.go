package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"shrike/storage"

	"github.com/spf13/cobra"
)

// familySighting aggregates one family across stored reports.
type familySighting struct {
	Family   string `json:"family"`
	Reports  int    `json:"reports"`
	LastSeen string `json:"last_seen"`
}

// newFamiliesCmd creates the 'families' command with all subcommands
func newFamiliesCmd() *cobra.Command {
	familiesCmd := &cobra.Command{
		Use:     "families",
		Aliases: []string{"family"},
		Short:   "Inspect extracted malware family configurations",
		Long: `Inspect the family attributions and extracted configuration records
held in stored reports.`,
	}

	familiesCmd.AddCommand(newFamiliesListCmd())
	familiesCmd.AddCommand(newFamiliesShowCmd())

	return familiesCmd
}

// newFamiliesListCmd creates the 'families list' subcommand
func newFamiliesListCmd() *cobra.Command {
	var scanLimit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List families seen across stored reports",
		Long:    "Aggregate family attributions over recent reports, most frequent first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			summaries, err := app.Reports.ListReports(ctx, scanLimit, 0)
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}

			sightings := aggregateFamilies(summaries)

			if outputJSON {
				return outputAsJSON(sightings)
			}

			renderFamilySightings(sightings)
			return nil
		},
	}

	cmd.Flags().IntVar(&scanLimit, "scan", 200, "Number of recent reports to aggregate over")

	return cmd
}

// newFamiliesShowCmd creates the 'families show' subcommand
func newFamiliesShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show the family configurations of one report",
		Long:  "Display the extracted configuration records stored with a report.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := app.Reports.GetReport(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get report: %w", err)
			}

			if outputJSON {
				return outputAsJSON(report.Families)
			}

			if len(report.Families) == 0 {
				warningColor.Printf("Report %s has no family configurations\n", report.ID)
				return nil
			}
			renderFamilies(report.Families)
			return nil
		},
	}

	return cmd
}

// aggregateFamilies folds report summaries into per-family sightings,
// ordered by report count, then name. Summaries arrive newest first, so
// the first sighting of a family carries its most recent timestamp.
func aggregateFamilies(summaries []storage.ReportSummary) []familySighting {
	index := make(map[string]*familySighting)
	for _, s := range summaries {
		for _, name := range s.Families {
			key := strings.ToLower(name)
			sighting, ok := index[key]
			if !ok {
				sighting = &familySighting{Family: name, LastSeen: s.CreatedAt}
				index[key] = sighting
			}
			sighting.Reports++
		}
	}

	out := make([]familySighting, 0, len(index))
	for _, sighting := range index {
		out = append(out, *sighting)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reports != out[j].Reports {
			return out[i].Reports > out[j].Reports
		}
		return out[i].Family < out[j].Family
	})
	return out
}

// renderFamilySightings displays aggregated families in a formatted table
func renderFamilySightings(sightings []familySighting) {
	if len(sightings) == 0 {
		warningColor.Println("No families recorded")
		return
	}

	headerColor.Println("FAMILIES")
	headerColor.Println(strings.Repeat("=", 120))
	fmt.Printf("%-28s %-9s %s\n", "Family", "Reports", "Last Seen")
	fmt.Println(strings.Repeat("-", 120))

	for _, s := range sightings {
		fmt.Printf("%-28s %-9d %s\n",
			truncate(s.Family, 27), s.Reports, formatCreatedAt(s.LastSeen))
	}
	fmt.Println(strings.Repeat("=", 120))
}
