package pipeline

// RunContext carries the directories and per-stage summaries shared by all
// stages of one pipeline invocation. It is plain in-memory bookkeeping; the
// orchestrator owns it and stages read and write it through the accessors.
type RunContext struct {
	ProcessingDir string
	OutputDir     string

	// Config is passed through opaquely; the orchestration core never
	// interprets it. Concrete stages type-assert what they need.
	Config any

	stageState map[string]*StageResult
}

// NewRunContext builds a context for one invocation.
func NewRunContext(processingDir, outputDir string, config any) *RunContext {
	return &RunContext{
		ProcessingDir: processingDir,
		OutputDir:     outputDir,
		Config:        config,
		stageState:    map[string]*StageResult{},
	}
}

// StageData returns the last-known result summary for a stage, or nil.
func (rc *RunContext) StageData(name string) *StageResult {
	return rc.stageState[name]
}

// SetStageData records a stage's result summary.
func (rc *RunContext) SetStageData(name string, r *StageResult) {
	rc.stageState[name] = r
}

// StageCompleted reports whether a stage has a recorded, successful summary.
func (rc *RunContext) StageCompleted(name string) bool {
	r, ok := rc.stageState[name]
	return ok && r != nil && r.Success
}
