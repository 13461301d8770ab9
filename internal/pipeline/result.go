package pipeline

import "time"

// StageResult is the immutable outcome of one stage invocation.
// Field order is stable to keep JSON deterministic in tests.
type StageResult struct {
	StageName        string         `json:"stageName"`
	Success          bool           `json:"success"`
	Skipped          bool           `json:"skipped,omitempty"`
	ExecutionTime    time.Duration  `json:"executionTime"`
	RecordsProcessed int            `json:"recordsProcessed"`
	OutputFiles      []string       `json:"outputFiles,omitempty"`
	Errors           []string       `json:"errors,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// SkippedResult returns the zero-cost result used when a stage's cached
// output is still valid and Execute is not called.
func SkippedResult(name string) *StageResult {
	return &StageResult{
		StageName: name,
		Success:   true,
		Skipped:   true,
		Metadata:  map[string]any{"reason": "up-to-date"},
	}
}

// FailedResult wraps an error into a failure result with a single entry
// in the error list.
func FailedResult(name string, err error) *StageResult {
	return &StageResult{
		StageName: name,
		Success:   false,
		Errors:    []string{err.Error()},
	}
}

// AddError appends a per-item error. Per-item errors do not flip Success;
// callers decide stage-level success independently of the item tally.
func (r *StageResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// ErrorCount reports the number of per-item errors recorded on the result.
func (r *StageResult) ErrorCount() int { return len(r.Errors) }
