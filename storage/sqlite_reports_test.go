package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shrike/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestSQLite creates a test SQLite database
func setupTestSQLite(t *testing.T) *SQLite {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	logger := zap.NewNop().Sugar()

	sqlite, err := NewSQLite(dbPath, logger)
	require.NoError(t, err, "Failed to create SQLite database")
	require.NotNil(t, sqlite, "SQLite instance should not be nil")

	t.Cleanup(func() {
		_ = sqlite.Close()
	})

	return sqlite
}

// setupTestReportStorage creates a report storage backed by a temp database
func setupTestReportStorage(t *testing.T) *SQLiteReportStorage {
	return NewSQLiteReportStorage(setupTestSQLite(t), zap.NewNop().Sugar())
}

// sampleReport builds a fully populated report for round-trip tests
func sampleReport(id string, createdAt time.Time) *core.Report {
	return &core.Report{
		ID:        id,
		CreatedAt: createdAt,
		Duration:  1500 * time.Millisecond,
		Target: core.Target{
			Category: "file",
			Name:     "dropper.exe",
			SHA256:   "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		Score: 5,
		Findings: []core.Finding{
			{
				Name:        "darkcomet_mutex",
				Description: "DarkComet synchronization mutex observed",
				Severity:    5,
				Families:    []string{"darkcomet"},
				TTP: map[string]core.TTPDescription{
					"T1219": {Short: "Remote Access Software"},
				},
				Marks: []map[string]interface{}{
					{"type": "config", "config": map[string]interface{}{"family": "darkcomet"}},
				},
				MarkCount: 1,
			},
		},
		Families: []map[string]interface{}{
			{"family": "darkcomet", "mutex": []interface{}{"DC_MUTEX-F54S21D"}},
		},
		Diagnostics: []core.Diagnostic{
			{Signature: "broken_probe", Event: "call", Error: "signature panic: nil map"},
		},
	}
}

func TestNewSQLite_Success(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	logger := zap.NewNop().Sugar()

	sqlite, err := NewSQLite(dbPath, logger)
	require.NoError(t, err, "Should successfully create SQLite database")
	require.NotNil(t, sqlite, "SQLite instance should not be nil")
	require.NotNil(t, sqlite.WriteDB, "Write pool should not be nil")
	require.NotNil(t, sqlite.ReadDB, "Read pool should not be nil")
	assert.Equal(t, dbPath, sqlite.Path, "Database path should match")

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")

	err = sqlite.Close()
	assert.NoError(t, err, "Should close database without error")
}

func TestNewSQLite_CreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "subdir", "nested", "test.db")

	sqlite, err := NewSQLite(dbPath, zap.NewNop().Sugar())
	require.NoError(t, err, "Should create parent directories")
	defer sqlite.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err, "Parent directory should exist")
}

func TestNewSQLite_RejectsBadPaths(t *testing.T) {
	logger := zap.NewNop().Sugar()

	_, err := NewSQLite("", logger)
	assert.Error(t, err, "Empty path should be rejected")

	_, err = NewSQLite("../escape/test.db", logger)
	assert.Error(t, err, "Traversal path should be rejected")
}

func TestNewSQLite_ReadPoolIsReadOnly(t *testing.T) {
	sqlite := setupTestSQLite(t)

	_, err := sqlite.ReadDB.Exec(`INSERT INTO reports (id, created_at, target, findings, families, diagnostics) VALUES ('x', '2026-01-01T00:00:00Z', '{}', '[]', '[]', '[]')`)
	assert.Error(t, err, "Read pool should refuse writes")
}

func TestSQLiteReportStorage_SaveAndGet(t *testing.T) {
	storage := setupTestReportStorage(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	report := sampleReport("report-1", created)
	require.NoError(t, storage.SaveReport(ctx, report))

	got, err := storage.GetReport(ctx, "report-1")
	require.NoError(t, err)

	assert.Equal(t, report.ID, got.ID)
	assert.True(t, created.Equal(got.CreatedAt), "CreatedAt should round-trip")
	assert.Equal(t, report.Duration, got.Duration)
	assert.Equal(t, report.Target, got.Target)
	assert.Equal(t, report.Score, got.Score)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, "darkcomet_mutex", got.Findings[0].Name)
	assert.Equal(t, 5, got.Findings[0].Severity)
	assert.Equal(t, []string{"darkcomet"}, got.Findings[0].Families)
	assert.Equal(t, "Remote Access Software", got.Findings[0].TTP["T1219"].Short)
	require.Len(t, got.Families, 1)
	assert.Equal(t, "darkcomet", got.Families[0]["family"])
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, "broken_probe", got.Diagnostics[0].Signature)
}

func TestSQLiteReportStorage_GetMissing(t *testing.T) {
	storage := setupTestReportStorage(t)

	_, err := storage.GetReport(context.Background(), "no-such-report")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestSQLiteReportStorage_SaveReplacesExisting(t *testing.T) {
	storage := setupTestReportStorage(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	report := sampleReport("report-1", created)
	require.NoError(t, storage.SaveReport(ctx, report))

	report.Score = 3
	report.Findings = nil
	require.NoError(t, storage.SaveReport(ctx, report))

	count, err := storage.GetReportCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "Replacing a report should not add a row")

	got, err := storage.GetReport(ctx, "report-1")
	require.NoError(t, err)
	assert.Equal(t, float64(3), got.Score)
	assert.Empty(t, got.Findings)
}

func TestSQLiteReportStorage_SaveRejectsEmptyID(t *testing.T) {
	storage := setupTestReportStorage(t)

	report := sampleReport("", time.Now().UTC())
	err := storage.SaveReport(context.Background(), report)
	assert.Error(t, err, "Empty report ID should be rejected")
}

func TestSQLiteReportStorage_ListNewestFirst(t *testing.T) {
	storage := setupTestReportStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"report-a", "report-b", "report-c"} {
		report := sampleReport(id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, storage.SaveReport(ctx, report))
	}

	summaries, err := storage.ListReports(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "report-c", summaries[0].ID, "Newest report should come first")
	assert.Equal(t, "report-a", summaries[2].ID)

	assert.Equal(t, "dropper.exe", summaries[0].TargetName)
	assert.Equal(t, float64(5), summaries[0].Score)
	assert.Equal(t, 1, summaries[0].Findings)
	assert.Equal(t, []string{"darkcomet"}, summaries[0].Families)

	page, err := storage.ListReports(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "report-b", page[0].ID, "Offset should skip the newest report")
}

func TestSQLiteReportStorage_ListEmpty(t *testing.T) {
	storage := setupTestReportStorage(t)

	summaries, err := storage.ListReports(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestSQLiteReportStorage_Delete(t *testing.T) {
	storage := setupTestReportStorage(t)
	ctx := context.Background()

	report := sampleReport("report-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, storage.SaveReport(ctx, report))

	require.NoError(t, storage.DeleteReport(ctx, "report-1"))

	_, err := storage.GetReport(ctx, "report-1")
	assert.ErrorIs(t, err, ErrReportNotFound)

	err = storage.DeleteReport(ctx, "report-1")
	assert.ErrorIs(t, err, ErrReportNotFound, "Deleting twice should report a missing record")
}

func TestSQLiteReportStorage_Search(t *testing.T) {
	storage := setupTestReportStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	first := sampleReport("report-1", base)
	require.NoError(t, storage.SaveReport(ctx, first))

	second := sampleReport("report-2", base.Add(time.Hour))
	second.Target.Name = "invoice.docm"
	second.Target.SHA256 = "aa11bb22cc33dd44ee55ff6677889900aabbccddeeff00112233445566778899"
	second.Families = []map[string]interface{}{{"family": "agenttesla"}}
	require.NoError(t, storage.SaveReport(ctx, second))

	byName, err := storage.SearchReports(ctx, "dropper", 10)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "report-1", byName[0].ID)

	byFamily, err := storage.SearchReports(ctx, "agenttesla", 10)
	require.NoError(t, err)
	require.Len(t, byFamily, 1)
	assert.Equal(t, "report-2", byFamily[0].ID)

	byHash, err := storage.SearchReports(ctx, "aa11bb22", 10)
	require.NoError(t, err)
	require.Len(t, byHash, 1)
	assert.Equal(t, "report-2", byHash[0].ID)

	none, err := storage.SearchReports(ctx, "nomatch", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteReportStorage_CountAcrossSaves(t *testing.T) {
	storage := setupTestReportStorage(t)
	ctx := context.Background()

	count, err := storage.GetReportCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	require.NoError(t, storage.SaveReport(ctx, sampleReport("report-1", base)))
	require.NoError(t, storage.SaveReport(ctx, sampleReport("report-2", base.Add(time.Minute))))

	count, err = storage.GetReportCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteReportStorage_InMemory(t *testing.T) {
	sqlite, err := NewSQLite(":memory:", zap.NewNop().Sugar())
	require.NoError(t, err, "In-memory database should initialize")
	defer sqlite.Close()

	storage := NewSQLiteReportStorage(sqlite, zap.NewNop().Sugar())
	ctx := context.Background()

	report := sampleReport("report-1", time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	require.NoError(t, storage.SaveReport(ctx, report))

	got, err := storage.GetReport(ctx, "report-1")
	require.NoError(t, err)
	assert.Equal(t, "dropper.exe", got.Target.Name)
}
