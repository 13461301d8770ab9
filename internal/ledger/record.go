package ledger

import "time"

// OutputFileRecord is the size-at-record-time snapshot of one stage output.
type OutputFileRecord struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
}

// ExecutionRecord is one stage attempt in the ledger. A record is opened at
// stage start (provisional, Success=false, no FinishedAt) and closed at
// stage end. Once closed it is never mutated; the log only ever appends.
type ExecutionRecord struct {
	ID               string             `json:"id"`
	StageName        string             `json:"stageName"`
	StartedAt        time.Time          `json:"startedAt"`
	FinishedAt       *time.Time         `json:"finishedAt,omitempty"`
	Success          bool               `json:"success"`
	Skipped          bool               `json:"skipped,omitempty"`
	RecordsProcessed int                `json:"recordsProcessed"`
	ExecutionTimeMs  int64              `json:"executionTimeMs"`
	ErrorCount       int                `json:"errorCount"`
	Metadata         string             `json:"metadata,omitempty"`
	OutputFiles      []OutputFileRecord `json:"outputFiles,omitempty"`
}

// Closed reports whether the record has been finished.
func (r ExecutionRecord) Closed() bool { return r.FinishedAt != nil }
