package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shrike/core"
	"shrike/metrics"

	"go.uber.org/zap"
)

// SQLiteReportStorage implements ReportStorageInterface using SQLite
type SQLiteReportStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteReportStorage creates a new SQLite-based report storage
func NewSQLiteReportStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteReportStorage {
	return &SQLiteReportStorage{
		sqlite: sqlite,
		logger: logger,
	}
}

// familyNames extracts the family name strings from a report's family records
func familyNames(report *core.Report) []string {
	names := make([]string, 0, len(report.Families))
	for _, fam := range report.Families {
		if name, ok := fam["family"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SaveReport persists a report, replacing any previous record with the same ID
func (srs *SQLiteReportStorage) SaveReport(ctx context.Context, report *core.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report ID cannot be empty")
	}

	targetJSON, err := json.Marshal(report.Target)
	if err != nil {
		return fmt.Errorf("failed to marshal target: %w", err)
	}
	findingsJSON, err := json.Marshal(report.Findings)
	if err != nil {
		return fmt.Errorf("failed to marshal findings: %w", err)
	}
	familiesJSON, err := json.Marshal(report.Families)
	if err != nil {
		return fmt.Errorf("failed to marshal families: %w", err)
	}
	diagnosticsJSON, err := json.Marshal(report.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	familyNamesJSON, err := json.Marshal(familyNames(report))
	if err != nil {
		return fmt.Errorf("failed to marshal family names: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO reports (id, created_at, duration_ns, score,
		                                target_name, target_sha256, finding_count, family_names,
		                                target, findings, families, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = srs.sqlite.WriteDB.ExecContext(ctx, query,
		report.ID,
		report.CreatedAt.UTC().Format(time.RFC3339),
		int64(report.Duration),
		report.Score,
		report.Target.Name,
		report.Target.SHA256,
		len(report.Findings),
		string(familyNamesJSON),
		string(targetJSON),
		string(findingsJSON),
		string(familiesJSON),
		string(diagnosticsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	metrics.ReportsSaved.WithLabelValues("sqlite").Inc()
	srs.logger.Infof("Saved report %s (score %.0f, %d findings)", report.ID, report.Score, len(report.Findings))
	return nil
}

// GetReport retrieves a full report by ID
func (srs *SQLiteReportStorage) GetReport(ctx context.Context, id string) (*core.Report, error) {
	query := `
		SELECT id, created_at, duration_ns, score, target, findings, families, diagnostics
		FROM reports WHERE id = ?
	`

	var report core.Report
	var createdAt string
	var durationNs int64
	var targetJSON, findingsJSON, familiesJSON, diagnosticsJSON string

	err := srs.sqlite.ReadDB.QueryRowContext(ctx, query, id).Scan(
		&report.ID,
		&createdAt,
		&durationNs,
		&report.Score,
		&targetJSON,
		&findingsJSON,
		&familiesJSON,
		&diagnosticsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	report.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	report.Duration = time.Duration(durationNs)

	if err := json.Unmarshal([]byte(targetJSON), &report.Target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal target: %w", err)
	}
	if err := json.Unmarshal([]byte(findingsJSON), &report.Findings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal findings: %w", err)
	}
	if err := json.Unmarshal([]byte(familiesJSON), &report.Families); err != nil {
		return nil, fmt.Errorf("failed to unmarshal families: %w", err)
	}
	if err := json.Unmarshal([]byte(diagnosticsJSON), &report.Diagnostics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diagnostics: %w", err)
	}

	return &report, nil
}

const summaryColumns = `id, created_at, score, target_name, target_sha256, finding_count, family_names`

// scanSummaries collects ReportSummary rows from a listing query
func scanSummaries(rows *sql.Rows) ([]ReportSummary, error) {
	summaries := make([]ReportSummary, 0)
	for rows.Next() {
		var s ReportSummary
		var familyNamesJSON string
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Score, &s.TargetName, &s.SHA256, &s.Findings, &familyNamesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report summary: %w", err)
		}
		if err := json.Unmarshal([]byte(familyNamesJSON), &s.Families); err != nil {
			return nil, fmt.Errorf("failed to unmarshal family names: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate report rows: %w", err)
	}
	return summaries, nil
}

// ListReports returns report summaries ordered newest first
func (srs *SQLiteReportStorage) ListReports(ctx context.Context, limit int, offset int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + summaryColumns + ` FROM reports ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := srs.sqlite.ReadDB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// GetReportCount returns the total number of stored reports
func (srs *SQLiteReportStorage) GetReportCount(ctx context.Context) (int64, error) {
	var count int64
	err := srs.sqlite.ReadDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// DeleteReport removes a report by ID
func (srs *SQLiteReportStorage) DeleteReport(ctx context.Context, id string) error {
	result, err := srs.sqlite.WriteDB.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrReportNotFound
	}

	srs.logger.Infof("Deleted report %s", id)
	return nil
}

// SearchReports matches the query against target name, hash and family names
func (srs *SQLiteReportStorage) SearchReports(ctx context.Context, query string, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	pattern := "%" + query + "%"
	stmt := `
		SELECT ` + summaryColumns + ` FROM reports
		WHERE target_name LIKE ? OR target_sha256 LIKE ? OR family_names LIKE ?
		ORDER BY created_at DESC LIMIT ?
	`
	rows, err := srs.sqlite.ReadDB.QueryContext(ctx, stmt, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search reports: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}
