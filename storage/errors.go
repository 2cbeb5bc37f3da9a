package storage

import "errors"

// Sentinel errors for the storage layer. Callers match these with
// errors.Is to distinguish missing records from operational failures.
var (
	// ErrReportNotFound is returned when a report lookup matches no record
	ErrReportNotFound = errors.New("report not found")
)
