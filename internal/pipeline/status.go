package pipeline

import "fmt"

// Status is the per-invocation lifecycle of a single stage.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusRunning      Status = "RUNNING"
	StatusSkipped      Status = "SKIPPED"
	StatusPrereqFailed Status = "PREREQ_FAILED"
	StatusSucceeded    Status = "SUCCEEDED"
	StatusFailed       Status = "FAILED"
)

// IsTerminal reports whether the status is final for this invocation.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSkipped, StatusPrereqFailed, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Satisfies reports whether the status satisfies a dependent stage.
// A skip is a success: the cached output is present and valid.
func (s Status) Satisfies() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// statusTable maps a status to its allowed successors.
var statusTable = map[Status][]Status{
	StatusPending: {StatusSkipped, StatusPrereqFailed, StatusRunning},
	StatusRunning: {StatusSucceeded, StatusFailed},
}

// transition performs a validated status change for one stage. The caller
// supplies the expected prior status so invalid sequencing is observable.
func transition(states map[string]Status, name string, from, to Status) error {
	cur, ok := states[name]
	if !ok {
		return fmt.Errorf("unknown stage in state: %q", name)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", name, from, cur)
	}
	for _, allowed := range statusTable[from] {
		if allowed == to {
			states[name] = to
			return nil
		}
	}
	return fmt.Errorf("disallowed transition for %q: %s -> %s", name, from, to)
}
