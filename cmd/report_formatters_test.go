package cmd

import (
	"bytes"
	"os"
	"testing"
	"time"

	"shrike/core"
	"shrike/detect"
	"shrike/storage"

	"github.com/stretchr/testify/assert"
)

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
// Colored headers bypass the redirect; assertions must target plain rows.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

// TestRenderReport tests full report rendering
func TestRenderReport(t *testing.T) {
	rep := &core.Report{
		ID:        "4f2c0a31-9d7e-4c53-9f2a-72d41f0a9be2",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Target: core.Target{
			Category: "file",
			Name:     "dropper.exe",
			SHA256:   "aa11bb22cc33dd44",
		},
		Score: 5,
		Findings: []core.Finding{
			{
				Name:        "darkcomet_mutexes",
				Description: "Creates known DarkComet mutexes",
				Severity:    5,
				Families:    []string{"darkcomet"},
				MarkCount:   2,
			},
		},
		Families: []map[string]interface{}{
			{"family": "darkcomet", "cnc": []string{"10.0.0.1:1604"}},
		},
		Diagnostics: []core.Diagnostic{
			{Signature: "broken_probe", Event: "call", Error: "boom"},
		},
	}

	output := captureStdout(t, func() {
		renderReport(rep)
	})

	assert.Contains(t, output, "4f2c0a31-9d7e-4c53-9f2a-72d41f0a9be2")
	assert.Contains(t, output, "dropper.exe")
	assert.Contains(t, output, "darkcomet_mutexes")
	assert.Contains(t, output, "Creates known DarkComet mutexes")
	assert.Contains(t, output, "10.0.0.1:1604")
	assert.Contains(t, output, "broken_probe")
	assert.Contains(t, output, "1.5s")
}

// TestRenderReportEmpty tests rendering a report with no findings
func TestRenderReportEmpty(t *testing.T) {
	assert.NotPanics(t, func() {
		captureStdout(t, func() {
			renderReport(&core.Report{ID: "empty", CreatedAt: time.Now()})
		})
	})
}

// TestRenderReportSummaries tests the reports table
func TestRenderReportSummaries(t *testing.T) {
	summaries := []storage.ReportSummary{
		{
			ID:         "4f2c0a31-9d7e-4c53-9f2a-72d41f0a9be2",
			CreatedAt:  "2026-03-01T10:00:00Z",
			TargetName: "dropper.exe",
			SHA256:     "aa11bb22cc33dd44",
			Score:      5,
			Findings:   2,
			Families:   []string{"darkcomet"},
		},
		{
			ID:         "9c1d2e3f-0000-4c53-9f2a-72d41f0a9be2",
			CreatedAt:  "2026-03-02T10:00:00Z",
			TargetName: "stealer.exe",
			Score:      3,
			Findings:   1,
			Families:   []string{"agenttesla"},
		},
	}

	output := captureStdout(t, func() {
		renderReportSummaries(summaries)
	})

	assert.Contains(t, output, "4f2c0a31")
	assert.Contains(t, output, "dropper.exe")
	assert.Contains(t, output, "stealer.exe")
	assert.Contains(t, output, "agenttesla")
	assert.Contains(t, output, "2026-03-01 10:00:00")
}

// TestRenderReportSummariesEmpty tests rendering with no reports
func TestRenderReportSummariesEmpty(t *testing.T) {
	assert.NotPanics(t, func() {
		renderReportSummaries([]storage.ReportSummary{})
	})
}

// TestRenderSignaturesTable tests the signature catalog table
func TestRenderSignaturesTable(t *testing.T) {
	defs := []detect.Definition{
		{
			Name:        "darkcomet_mutexes",
			Description: "Creates known DarkComet mutexes",
			Severity:    5,
			Families:    []string{"darkcomet"},
			TTPs:        []string{"T1219"},
			Platform:    "windows",
		},
		{
			Name:        "antidebug_timing",
			Description: "Excessive timing queries",
			Severity:    2,
		},
	}

	output := captureStdout(t, func() {
		renderSignaturesTable(defs)
	})

	assert.Contains(t, output, "darkcomet_mutexes")
	assert.Contains(t, output, "antidebug_timing")
	assert.Contains(t, output, "T1219")
	assert.Contains(t, output, "windows")
	assert.Contains(t, output, "any")
	assert.Contains(t, output, "2 signature(s)")
}

// TestFilterDefinitions tests the signature listing filters
func TestFilterDefinitions(t *testing.T) {
	defs := []detect.Definition{
		{Name: "win_only", Platform: "windows", Families: []string{"darkcomet"}},
		{Name: "neutral"},
		{Name: "linux_only", Platform: "linux"},
		{Name: "off", Disabled: true},
	}

	tests := []struct {
		name         string
		platform     string
		family       string
		showDisabled bool
		want         []string
	}{
		{"no filters hides disabled", "", "", false, []string{"win_only", "neutral", "linux_only"}},
		{"all includes disabled", "", "", true, []string{"win_only", "neutral", "linux_only", "off"}},
		{"platform keeps neutral", "windows", "", false, []string{"win_only", "neutral"}},
		{"platform is case-insensitive", "Linux", "", false, []string{"neutral", "linux_only"}},
		{"family filter", "", "DarkComet", false, []string{"win_only"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterDefinitions(defs, tt.platform, tt.family, tt.showDisabled)
			names := make([]string, 0, len(got))
			for _, def := range got {
				names = append(names, def.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

// TestAggregateFamilies tests family aggregation across summaries
func TestAggregateFamilies(t *testing.T) {
	summaries := []storage.ReportSummary{
		{CreatedAt: "2026-03-03T10:00:00Z", Families: []string{"darkcomet", "agenttesla"}},
		{CreatedAt: "2026-03-02T10:00:00Z", Families: []string{"darkcomet"}},
		{CreatedAt: "2026-03-01T10:00:00Z", Families: []string{"njrat"}},
	}

	sightings := aggregateFamilies(summaries)

	assert.Len(t, sightings, 3)
	assert.Equal(t, "darkcomet", sightings[0].Family)
	assert.Equal(t, 2, sightings[0].Reports)
	assert.Equal(t, "2026-03-03T10:00:00Z", sightings[0].LastSeen)

	// Ties break by name
	assert.Equal(t, "agenttesla", sightings[1].Family)
	assert.Equal(t, "njrat", sightings[2].Family)
}

// TestAggregateFamiliesEmpty tests aggregation over no reports
func TestAggregateFamiliesEmpty(t *testing.T) {
	assert.Empty(t, aggregateFamilies(nil))
}

// TestFormatCreatedAt tests stored timestamp formatting
func TestFormatCreatedAt(t *testing.T) {
	assert.Equal(t, "2026-03-01 10:00:00", formatCreatedAt("2026-03-01T10:00:00Z"))
	assert.Equal(t, "not-a-time", formatCreatedAt("not-a-time"))
}

// TestFamilyName tests family record naming
func TestFamilyName(t *testing.T) {
	assert.Equal(t, "darkcomet", familyName(map[string]interface{}{"family": "darkcomet"}))
	assert.Equal(t, "(unnamed)", familyName(map[string]interface{}{}))
	assert.Equal(t, "(unnamed)", familyName(map[string]interface{}{"family": 7}))
}

// TestFormatValue tests configuration value rendering
func TestFormatValue(t *testing.T) {
	assert.Equal(t, "a, b", formatValue([]string{"a", "b"}))
	assert.Equal(t, "1604, tcp", formatValue([]interface{}{1604, "tcp"}))
	assert.Equal(t, "42", formatValue(42))
	assert.Equal(t, "on", formatValue("on"))
}

// TestTruncate tests string truncation
func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly", truncate("exactly", 7))
	assert.Equal(t, "long...", truncate("long string", 7))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
