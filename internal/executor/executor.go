package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seedwright/seedwright/internal/handlers"
	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/values"
	"github.com/seedwright/seedwright/internal/workflow"
)

// StepState is the lifecycle position of a workflow step.
type StepState string

const (
	StatePending    StepState = "pending"
	StateValidating StepState = "validating"
	StateAutoFixing StepState = "auto_fixing"
	StateExecuting  StepState = "executing"
	StateSucceeded  StepState = "succeeded"
	StateSkipped    StepState = "skipped"
	StateFailed     StepState = "failed"
)

// ConstraintViolation is one failed precondition.
type ConstraintViolation struct {
	StepID  string `json:"step_id"`
	Type    string `json:"type"`
	Table   string `json:"table,omitempty"`
	RuleID  string `json:"rule_id,omitempty"`
	Message string `json:"message"`
}

// AutoFixApplied records one remediation made during a run.
type AutoFixApplied struct {
	StepID string `json:"step_id"`
	Field  string `json:"field"`
	Value  any    `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// RollbackEntry is the compensation record for one successful write:
// enough to delete the row again.
type RollbackEntry struct {
	StepID    string `json:"step_id"`
	Table     string `json:"table"`
	KeyColumn string `json:"key_column"`
	Key       any    `json:"key"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	StepID     string                `json:"step_id"`
	Table      string                `json:"table"`
	State      StepState             `json:"state"`
	Success    bool                  `json:"success"`
	Data       metadata.Row          `json:"data,omitempty"`
	Error      string                `json:"error,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
	Violations []ConstraintViolation `json:"violations,omitempty"`
	AutoFixes  []AutoFixApplied      `json:"auto_fixes,omitempty"`
	Duration   time.Duration         `json:"duration"`
	Rollback   *RollbackEntry        `json:"rollback,omitempty"`
}

// ExecutionResult summarizes a whole run. Even a failed run carries the
// full per-step breakdown: diagnostics are never discarded.
type ExecutionResult struct {
	Success    bool                  `json:"success"`
	Steps      []StepResult          `json:"steps"`
	Succeeded  int                   `json:"succeeded"`
	Skipped    int                   `json:"skipped"`
	Failed     int                   `json:"failed"`
	AutoFixes  []AutoFixApplied      `json:"auto_fixes,omitempty"`
	Violations []ConstraintViolation `json:"violations,omitempty"`
	RolledBack int                   `json:"rolled_back,omitempty"`
	Duration   time.Duration         `json:"duration"`
	Warnings   []string              `json:"warnings,omitempty"`
}

// Executor runs workflows against the target database with constraint
// validation, auto-fixing, and compensation-based rollback.
type Executor struct {
	Client      metadata.Client
	Registry    *handlers.Registry
	Provider    *values.Provider
	Metadata    *rules.ConstraintMetadata
	Parallelism int
	Logger      *slog.Logger
}

// Execute runs every step of the workflow, honoring declared step
// dependencies: steps whose dependencies are all finished may run
// concurrently, bounded by Parallelism. Failure handling follows the
// workflow's policy; rollback, when enabled, compensates successful writes
// in reverse order after a fatal failure.
func (e *Executor) Execute(ctx context.Context, wf *workflow.Workflow, input map[string]any) (*ExecutionResult, error) {
	if e.Client == nil {
		return nil, fmt.Errorf("executor needs a metadata client")
	}
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	provider := e.Provider
	if provider == nil {
		provider = values.New()
	}
	registry := e.Registry
	if registry == nil {
		var err error
		registry, err = handlers.NewDefaultRegistry(provider, log)
		if err != nil {
			return nil, fmt.Errorf("default handlers: %w", err)
		}
	}
	parallelism := e.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	start := time.Now()
	ec := newExecutionContext(input, e.Metadata, len(wf.Steps))
	run := &stepRunner{
		client:   e.Client,
		registry: registry,
		provider: provider,
		metadata: e.Metadata,
		log:      log,
	}

	remaining := make([]*workflow.WorkflowStep, 0, len(wf.Steps))
	for i := range wf.Steps {
		remaining = append(remaining, &wf.Steps[i])
	}

	aborted := false
	for len(remaining) > 0 && !aborted {
		ready, rest := splitReady(remaining, ec)
		if len(ready) == 0 {
			// Unresolvable dependencies (a cycle, or a dep outside this
			// workflow). Run the head anyway so progress never stalls.
			ready, rest = remaining[:1], remaining[1:]
		}
		remaining = rest

		if wf.OnFailure == workflow.FailFast {
			// Fail-fast means nothing may execute past a required
			// failure, so ready steps run strictly one at a time.
			for i, step := range ready {
				res := run.runStep(ctx, ec, wf, step)
				ec.record(res)
				if res.State == StateFailed && step.Required {
					aborted = true
					remaining = append(append([]*workflow.WorkflowStep(nil), ready[i+1:]...), remaining...)
					break
				}
			}
			continue
		}

		for _, res := range runBatch(ctx, run, ec, wf, ready, parallelism) {
			ec.record(res)
		}
	}

	if aborted {
		for _, step := range remaining {
			ec.record(&StepResult{
				StepID:   step.ID,
				Table:    step.Table,
				State:    StateSkipped,
				Warnings: []string{"workflow aborted before this step"},
			})
		}
	}

	result := summarize(ec, time.Since(start))
	if (aborted || result.Failed > 0) && wf.Rollback {
		result.RolledBack = e.rollback(ctx, ec, log)
	}
	log.Info("workflow execution finished",
		"success", result.Success,
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"rolled_back", result.RolledBack,
		"duration", result.Duration)
	return result, nil
}

// splitReady partitions steps into those whose dependencies are all
// recorded and the rest. Dependencies on steps outside the workflow count
// as satisfied.
func splitReady(steps []*workflow.WorkflowStep, ec *ExecutionContext) (ready, rest []*workflow.WorkflowStep) {
	pending := make(map[string]bool, len(steps))
	for _, s := range steps {
		pending[s.ID] = true
	}
	for _, s := range steps {
		ok := true
		for _, dep := range s.DependsOn {
			if pending[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, s)
		} else {
			rest = append(rest, s)
		}
	}
	return ready, rest
}

func runBatch(ctx context.Context, run *stepRunner, ec *ExecutionContext, wf *workflow.Workflow, batch []*workflow.WorkflowStep, parallelism int) []*StepResult {
	results := make([]*StepResult, len(batch))
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i, step := range batch {
		wg.Add(1)
		go func(i int, step *workflow.WorkflowStep) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = run.runStep(ctx, ec, wf, step)
		}(i, step)
	}
	wg.Wait()
	return results
}

func summarize(ec *ExecutionContext, elapsed time.Duration) *ExecutionResult {
	out := &ExecutionResult{Duration: elapsed}
	for _, res := range ec.finished() {
		out.Steps = append(out.Steps, *res)
		out.AutoFixes = append(out.AutoFixes, res.AutoFixes...)
		out.Violations = append(out.Violations, res.Violations...)
		out.Warnings = append(out.Warnings, res.Warnings...)
		switch res.State {
		case StateSucceeded:
			out.Succeeded++
		case StateSkipped:
			out.Skipped++
		case StateFailed:
			out.Failed++
		}
	}
	out.Success = out.Succeeded > 0 && out.Failed == 0
	return out
}

// rollback replays the compensation log of every successful step in
// reverse completion order. Best effort: a failed delete is logged and the
// replay continues.
func (e *Executor) rollback(ctx context.Context, ec *ExecutionContext, log *slog.Logger) int {
	finished := ec.finished()
	rolled := 0
	for i := len(finished) - 1; i >= 0; i-- {
		res := finished[i]
		if res.State != StateSucceeded || res.Rollback == nil {
			continue
		}
		rb := res.Rollback
		if err := e.Client.DeleteRow(ctx, rb.Table, rb.KeyColumn, rb.Key); err != nil {
			log.Warn("rollback delete failed",
				"step", rb.StepID, "table", rb.Table, "key", rb.Key, "error", err)
			continue
		}
		rolled++
	}
	return rolled
}
