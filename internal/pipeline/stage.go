package pipeline

import "context"

// Stage is a named unit of pipeline work.
//
// Execute must be safe to re-invoke: a partially-populated prior output must
// not be duplicated or corrupted. Dependencies name stages that must have
// completed successfully first.
type Stage interface {
	Name() string
	Dependencies() []string

	// Execute performs the work and returns a result. Returning an error
	// (or panicking) is converted by the orchestrator into a failure
	// result; it never escapes the pipeline.
	Execute(ctx context.Context, rc *RunContext) (*StageResult, error)

	// ValidatePrerequisites checks structural preconditions such as a
	// required artifact existing. A non-nil error is reported as data,
	// never thrown past the orchestrator.
	ValidatePrerequisites(rc *RunContext) error

	// CanSkip reports whether cached output is still valid. Implementations
	// must re-verify physical evidence rather than trust a completed flag.
	CanSkip(rc *RunContext) bool

	// CleanupOnError is best-effort rollback after a failed Execute.
	CleanupOnError(rc *RunContext, runErr error)
}

// BaseStage provides the default behavior for the optional parts of the
// contract: never skippable, no prerequisites, no cleanup. Concrete stages
// embed it and override what they need.
type BaseStage struct{}

func (BaseStage) Dependencies() []string                      { return nil }
func (BaseStage) ValidatePrerequisites(*RunContext) error     { return nil }
func (BaseStage) CanSkip(*RunContext) bool                    { return false }
func (BaseStage) CleanupOnError(rc *RunContext, runErr error) {}
