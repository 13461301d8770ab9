package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flarebyte/seshat-archive/internal/config"
	"github.com/flarebyte/seshat-archive/internal/ledger"
	"github.com/flarebyte/seshat-archive/internal/pipeline"
	"github.com/flarebyte/seshat-archive/internal/stages"
)

// executePipeline wires the orchestrator, runs the requested stages and
// reports one JSON summary line per stage to stdout.
func executePipeline(ctx context.Context, settings config.Settings, requested []string, force, keepGoing bool) error {
	store, err := ledger.NewStore(settings.Processing.Dir)
	if err != nil {
		return err
	}
	o := pipeline.NewOrchestrator(store)
	for _, s := range stages.All() {
		o.Register(s)
	}

	stopOnError := !keepGoing
	if settings.Run.HasStopOnError {
		stopOnError = settings.Run.StopOnError
	}
	if settings.Run.HasForce && settings.Run.Force {
		force = true
	}

	results, err := o.ExecutePipeline(ctx, requested, pipeline.RunConfig{
		ProcessingDir: settings.Processing.Dir,
		OutputDir:     settings.Output.Dir,
		Config:        settings,
		Force:         force,
		StopOnError:   stopOnError,
	})
	if err != nil {
		return err
	}

	order, err := o.ExecutionOrder(requestedOrAll(o, requested))
	if err != nil {
		return err
	}
	for _, name := range order {
		res, ok := results[name]
		if !ok {
			// Halted before this stage; report it as not attempted.
			emitLine(map[string]any{"stage": name, "attempted": false})
			continue
		}
		emitLine(summaryLine(res))
	}
	return evaluateRunExit(order, results)
}

func requestedOrAll(o *pipeline.Orchestrator, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return o.StageNames()
}

func summaryLine(res *pipeline.StageResult) map[string]any {
	line := map[string]any{
		"stage":     res.StageName,
		"attempted": true,
		"success":   res.Success,
		"skipped":   res.Skipped,
		"records":   res.RecordsProcessed,
		"errors":    res.ErrorCount(),
		"ms":        res.ExecutionTime.Milliseconds(),
	}
	return line
}

func emitLine(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(os.Stdout, string(b))
}
