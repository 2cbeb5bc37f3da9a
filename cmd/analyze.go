package cmd

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"shrike/core"
	"shrike/ingest"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// newAnalyzeCmd creates the 'analyze' subcommand
func newAnalyzeCmd() *cobra.Command {
	var (
		samplePath   string
		targetName   string
		noSave       bool
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:     "analyze <behavior-log>",
		Aliases: []string{"scan"},
		Short:   "Analyze a recorded behavior log",
		Long: `Replay a monitor behavior log through the signature catalog.

The log format is selected by extension: .bson and .msgpack/.mp decode
their binary framings, anything else is read as JSON Lines. The resulting
report (findings, extracted family configurations, diagnostics) is written
to local storage unless --no-save is given.

When the analyzed sample itself is available, pass it with --sample to
record its hashes in the report target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			logPath := args[0]
			stream, err := ingest.OpenFile(logPath)
			if err != nil {
				return err
			}
			defer stream.Close()

			engine, err := app.NewEngine()
			if err != nil {
				return err
			}

			target, err := describeTarget(logPath, samplePath, targetName)
			if err != nil {
				return err
			}
			engine.Results().Target = target

			if !quiet && !outputJSON {
				infoColor.Printf("Analyzing: %s\n", filepath.Base(logPath))
			}

			// Show progress spinner if requested
			var s *spinner.Spinner
			if showProgress && !outputJSON && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = " Running signatures..."
				s.Start()
			}

			started := time.Now()
			runErr := engine.Run(ctx, ingest.NewSummarizer(stream, engine.Results()))

			if s != nil {
				s.Stop()
			}

			if runErr != nil {
				return fmt.Errorf("analysis failed: %w", runErr)
			}

			report := engine.Report()
			report.Duration = time.Since(started)

			if !noSave {
				if err := app.SaveReport(ctx, report); err != nil {
					return fmt.Errorf("failed to save report: %w", err)
				}
				if !quiet && !outputJSON {
					successColor.Printf("✓ Report saved: %s\n", report.ID)
				}
			}

			if outputJSON {
				return outputAsJSON(report)
			}

			renderReport(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&samplePath, "sample", "", "Path to the analyzed sample, hashed into the report target")
	cmd.Flags().StringVar(&targetName, "target-name", "", "Override the target name recorded in the report")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Skip writing the report to storage")
	cmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress indicator")

	return cmd
}

// describeTarget assembles the report target block. With a sample path the
// sample is hashed; otherwise the behavior log stands in for the name.
func describeTarget(logPath, samplePath, nameOverride string) (core.Target, error) {
	target := core.Target{Category: "file"}

	if samplePath != "" {
		md5sum, sha1sum, sha256sum, err := hashFile(samplePath)
		if err != nil {
			return core.Target{}, fmt.Errorf("failed to hash sample: %w", err)
		}
		target.Name = filepath.Base(samplePath)
		target.Path = samplePath
		target.MD5 = md5sum
		target.SHA1 = sha1sum
		target.SHA256 = sha256sum
	} else {
		target.Name = filepath.Base(logPath)
		target.Path = logPath
	}

	if nameOverride != "" {
		target.Name = nameOverride
	}
	return target, nil
}

// hashFile computes the MD5, SHA-1 and SHA-256 digests of a file in one
// pass. MD5 and SHA-1 stay in use as sample identifiers across sandbox
// tooling, not as integrity protection.
func hashFile(path string) (string, string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", "", err
	}
	defer f.Close()

	md5h := md5.New()
	sha1h := sha1.New()
	sha256h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(md5h, sha1h, sha256h), f); err != nil {
		return "", "", "", err
	}

	return hex.EncodeToString(md5h.Sum(nil)),
		hex.EncodeToString(sha1h.Sum(nil)),
		hex.EncodeToString(sha256h.Sum(nil)), nil
}
