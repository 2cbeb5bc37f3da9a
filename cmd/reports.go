package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newReportsCmd creates the 'reports' command with all subcommands
func newReportsCmd() *cobra.Command {
	reportsCmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "Inspect stored analysis reports",
		Long:    "List, show, search and delete analysis reports held in local storage.",
	}

	reportsCmd.AddCommand(newReportsListCmd())
	reportsCmd.AddCommand(newReportsShowCmd())
	reportsCmd.AddCommand(newReportsSearchCmd())
	reportsCmd.AddCommand(newReportsDeleteCmd())

	return reportsCmd
}

// newReportsListCmd creates the 'reports list' subcommand
func newReportsListCmd() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored reports",
		Long:    "Display a table of stored reports, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			summaries, err := app.Reports.ListReports(ctx, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}

			if outputJSON {
				return outputAsJSON(summaries)
			}

			renderReportSummaries(summaries)

			total, err := app.Reports.GetReportCount(ctx)
			if err != nil {
				return fmt.Errorf("failed to count reports: %w", err)
			}
			if !quiet {
				fmt.Printf("Showing %d of %d report(s)\n", len(summaries), total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of reports to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of reports to skip")

	return cmd
}

// newReportsShowCmd creates the 'reports show' subcommand
func newReportsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show a stored report",
		Long:  "Display the full contents of one stored report.",
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
				return outputAsJSON(report)
			}

			renderReport(report)
			return nil
		},
	}

	return cmd
}

// newReportsSearchCmd creates the 'reports search' subcommand
func newReportsSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored reports",
		Long:  "Search reports by target name, SHA-256 or family name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			summaries, err := app.Reports.SearchReports(ctx, args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to search reports: %w", err)
			}

			if outputJSON {
				return outputAsJSON(summaries)
			}

			if len(summaries) == 0 {
				warningColor.Printf("No reports match %q\n", args[0])
				return nil
			}
			renderReportSummaries(summaries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of matches to list")

	return cmd
}

// newReportsDeleteCmd creates the 'reports delete' subcommand
func newReportsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <report-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored report",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			reportID := args[0]

			// Confirm deletion unless force flag is set
			if !force {
				fmt.Printf("Are you sure you want to delete report %s? [y/N]: ", reportID)
				var response string
				if _, err := fmt.Scanln(&response); err != nil {
					// Empty input and EOF both mean "no"
					if err.Error() == "unexpected newline" || err.Error() == "EOF" {
						fmt.Println("Deletion cancelled")
						return nil
					}
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
					fmt.Println("Deletion cancelled")
					return nil
				}
			}

			if err := app.Reports.DeleteReport(ctx, reportID); err != nil {
				return fmt.Errorf("failed to delete report: %w", err)
			}

			if !quiet {
				successColor.Printf("✓ Report deleted: %s\n", reportID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
