package storage

import (
	"context"

	"shrike/core"
)

// ReportStorageInterface defines the interface for analysis report storage
type ReportStorageInterface interface {
	SaveReport(ctx context.Context, report *core.Report) error
	GetReport(ctx context.Context, id string) (*core.Report, error)
	ListReports(ctx context.Context, limit int, offset int) ([]ReportSummary, error)
	GetReportCount(ctx context.Context) (int64, error)
	DeleteReport(ctx context.Context, id string) error
	SearchReports(ctx context.Context, query string, limit int) ([]ReportSummary, error)
}

// ReportSummary is the listing row for stored reports. It carries only the
// denormalized columns so listings never unmarshal full report documents.
type ReportSummary struct {
	ID         string   `json:"id"`
	CreatedAt  string   `json:"created_at"`
	TargetName string   `json:"target_name"`
	SHA256     string   `json:"sha256,omitempty"`
	Score      float64  `json:"score"`
	Findings   int      `json:"findings"`
	Families   []string `json:"families,omitempty"`
}
