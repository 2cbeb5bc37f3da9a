package core

import (
	"time"

	"github.com/google/uuid"
)

// Diagnostic records a signature instance that faulted during evaluation.
// Faulted instances are absent from the finding list; the diagnostic is
// the only trace they leave on the report.
type Diagnostic struct {
	Signature string `json:"signature" bson:"signature"`
	Event     string `json:"event,omitempty" bson:"event,omitempty"`
	Error     string `json:"error" bson:"error"`
}

// Report is the persisted outcome of one analysis: the scored findings,
// the merged family configuration records and the diagnostics of faulted
// signatures.
type Report struct {
	ID          string                   `json:"id" bson:"_id"`
	CreatedAt   time.Time                `json:"created_at" bson:"created_at"`
	Duration    time.Duration            `json:"duration" bson:"duration"`
	Target      Target                   `json:"target" bson:"target"`
	Score       float64                  `json:"score" bson:"score"`
	Findings    []Finding                `json:"findings" bson:"findings"`
	Families    []map[string]interface{} `json:"families" bson:"families"`
	Diagnostics []Diagnostic             `json:"diagnostics,omitempty" bson:"diagnostics,omitempty"`
}

// NewReport returns a Report with a fresh identifier and creation time.
func NewReport() *Report {
	return &Report{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
}

// ComputeScore derives the report score from its findings: the highest
// severity among them, zero when nothing matched.
func (r *Report) ComputeScore() {
	score := 0
	for _, f := range r.Findings {
		if f.Severity > score {
			score = f.Severity
		}
	}
	r.Score = float64(score)
}
