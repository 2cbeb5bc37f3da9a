package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"shrike/core"
	"shrike/detect"
	"shrike/storage"

	"github.com/fatih/color"
)

// renderReport displays a full analysis report
func renderReport(rep *core.Report) {
	headerColor.Println("ANALYSIS REPORT")
	headerColor.Println(strings.Repeat("=", 120))

	printField("Report ID", rep.ID)
	printField("Created", formatTime(rep.CreatedAt))
	if rep.Duration > 0 {
		printField("Duration", rep.Duration.Round(time.Millisecond).String())
	}
	printField("Target", rep.Target.Name)
	if rep.Target.SHA256 != "" {
		printField("SHA-256", rep.Target.SHA256)
	}
	printField("Score", formatScore(rep.Score))
	fmt.Println()

	renderFindingsTable(rep.Findings)
	renderFamilies(rep.Families)
	renderDiagnostics(rep.Diagnostics)

	fmt.Println(strings.Repeat("=", 120))
}

// renderFindingsTable displays matched signatures in a formatted table
func renderFindingsTable(findings []core.Finding) {
	if len(findings) == 0 {
		successColor.Println("No signatures matched")
		fmt.Println()
		return
	}

	headerColor.Println("FINDINGS")
	fmt.Printf("%-32s %-9s %-22s %-7s %s\n",
		"Name", "Severity", "Families", "Marks", "Description")
	fmt.Println(strings.Repeat("-", 120))

	for _, f := range findings {
		fmt.Printf("%-32s %-9d %-22s %-7d %s\n",
			truncate(f.Name, 31), f.Severity,
			truncate(strings.Join(f.Families, ","), 21),
			f.MarkCount,
			truncate(f.Description, 46))
	}
	fmt.Println()
}

// renderFamilies displays extracted family configuration records
func renderFamilies(families []map[string]interface{}) {
	if len(families) == 0 {
		return
	}

	headerColor.Println("FAMILY CONFIGURATIONS")
	for _, fam := range families {
		printSection(familyName(fam))
		for _, key := range sortedKeys(fam) {
			if key == "family" {
				continue
			}
			printField(key, formatValue(fam[key]))
		}
		fmt.Println()
	}
}

// renderDiagnostics lists signatures that faulted during the run
func renderDiagnostics(diags []core.Diagnostic) {
	if len(diags) == 0 {
		return
	}

	warningColor.Printf("%d signature(s) faulted during analysis:\n", len(diags))
	for _, d := range diags {
		if d.Event != "" {
			fmt.Printf("  %s (%s): %s\n", d.Signature, d.Event, d.Error)
		} else {
			fmt.Printf("  %s: %s\n", d.Signature, d.Error)
		}
	}
	fmt.Println()
}

// renderReportSummaries displays stored reports in a formatted table
func renderReportSummaries(summaries []storage.ReportSummary) {
	if len(summaries) == 0 {
		warningColor.Println("No reports stored")
		return
	}

	headerColor.Println("REPORTS")
	headerColor.Println(strings.Repeat("=", 120))
	fmt.Printf("%-10s %-21s %-28s %-14s %-7s %-9s %s\n",
		"ID", "Created", "Target", "SHA-256", "Score", "Findings", "Families")
	fmt.Println(strings.Repeat("-", 120))

	for _, s := range summaries {
		// Short ID (first 8 chars)
		shortID := s.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		fmt.Printf("%-10s %-21s %-28s %-14s %-7.1f %-9d %s\n",
			shortID, formatCreatedAt(s.CreatedAt),
			truncate(s.TargetName, 27), truncate(s.SHA256, 12),
			s.Score, s.Findings,
			truncate(strings.Join(s.Families, ","), 24))
	}
	fmt.Println(strings.Repeat("=", 120))
}

// renderSignaturesTable displays catalog definitions in a formatted table
func renderSignaturesTable(defs []detect.Definition) {
	if len(defs) == 0 {
		warningColor.Println("No signatures registered")
		return
	}

	headerColor.Println("SIGNATURES")
	headerColor.Println(strings.Repeat("=", 120))
	fmt.Printf("%-32s %-9s %-10s %-24s %-18s %s\n",
		"Name", "Severity", "Platform", "Families", "TTPs", "Description")
	fmt.Println(strings.Repeat("-", 120))

	for _, def := range defs {
		platform := def.Platform
		if platform == "" {
			platform = "any"
		}

		fmt.Printf("%-32s %-9d %-10s %-24s %-18s %s\n",
			truncate(def.Name, 31), def.Severity, platform,
			truncate(strings.Join(def.Families, ","), 23),
			truncate(strings.Join(def.TTPs, ","), 17),
			truncate(def.Description, 22))
	}
	fmt.Println(strings.Repeat("=", 120))
	fmt.Printf("%d signature(s)\n", len(defs))
}

// printSection prints a section header
func printSection(title string) {
	headerColor.Printf("  %s\n", title)
	headerColor.Println("  " + strings.Repeat("─", len(title)))
}

// printField prints a key-value field
func printField(key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Printf("  %-25s %s\n", key+":", value)
}

// formatScore returns a colored score string
func formatScore(score float64) string {
	text := fmt.Sprintf("%.1f", score)
	switch {
	case score >= 4:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case score >= 3:
		return color.New(color.FgYellow).Sprint(text)
	case score > 0:
		return color.New(color.FgCyan).Sprint(text)
	default:
		return color.New(color.FgGreen).Sprint(text)
	}
}

// formatTime formats a timestamp
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatCreatedAt formats a stored RFC 3339 timestamp string
func formatCreatedAt(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return formatTime(t)
}

// familyName extracts the family name from a configuration record
func familyName(fam map[string]interface{}) string {
	if name, ok := fam["family"].(string); ok && name != "" {
		return name
	}
	return "(unnamed)"
}

// formatValue renders a configuration record value for display
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ", ")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sortedKeys returns the map keys in stable order
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate shortens a string to at most n characters
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
