package pipeline

import "fmt"

// GraphError reports an invalid dependency graph: an unknown dependency
// name or a cycle. It is fatal and raised before any stage executes.
type GraphError struct {
	Problems []string
}

func (e *GraphError) Error() string {
	if len(e.Problems) == 1 {
		return "dependency graph: " + e.Problems[0]
	}
	return fmt.Sprintf("dependency graph: %d problems, first: %s", len(e.Problems), e.Problems[0])
}

// prereqError marks a structural precondition failure. It is converted to a
// failure StageResult at the orchestrator boundary, never propagated.
type prereqError struct {
	stage string
	cause error
}

func (e prereqError) Error() string {
	return fmt.Sprintf("prerequisites for %s: %v", e.stage, e.cause)
}

func (e prereqError) Unwrap() error { return e.cause }
