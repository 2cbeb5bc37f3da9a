// Package cmd provides the command-line interface for the Shrike analysis engine.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"shrike/bootstrap"
	_ "shrike/signatures"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags shared by all commands
var (
	outputJSON bool
	configFile string
	noColor    bool
	quiet      bool
	debugMode  bool
)

// defaultTimeout bounds every CLI operation, analysis included.
const defaultTimeout = 5 * time.Minute

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shrike",
		Short: "Behavioral detection and config extraction for sandbox runs",
		Long: `Shrike scores recorded sandbox behavior and extracts malware family
configuration.

The analyze command replays a monitor behavior log (JSON Lines, BSON or
msgpack) through the signature catalog and writes the resulting report to
local storage. The remaining commands inspect the catalog and the stored
reports.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	// Add persistent flags
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default paths searched when empty)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newSignaturesCmd())
	rootCmd.AddCommand(newReportsCmd())
	rootCmd.AddCommand(newFamiliesCmd())

	return rootCmd
}

// initApp builds the application container shared by commands that touch
// storage. The returned cleanup shuts the container down and must run
// before the process exits.
func initApp(ctx context.Context) (*bootstrap.App, func(), error) {
	app, err := bootstrap.NewApp(ctx, bootstrap.Options{
		ConfigFile: configFile,
		Debug:      debugMode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		app.Shutdown(shutdownCtx)
	}
	return app, cleanup, nil
}

// outputAsJSON outputs data as formatted JSON
func outputAsJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
