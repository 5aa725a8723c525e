package executor

import (
	"strings"
	"sync"

	"github.com/seedwright/seedwright/internal/rules"
)

// ExecutionContext is the single shared state of one workflow run: caller
// input, per-step results, and progress counters. Steps may run
// concurrently, so all access goes through the mutex. A context belongs to
// exactly one run and is discarded afterwards.
type ExecutionContext struct {
	mu       sync.Mutex
	input    map[string]any
	results  map[string]*StepResult
	order    []string
	metadata *rules.ConstraintMetadata
	current  int
	total    int
}

func newExecutionContext(input map[string]any, meta *rules.ConstraintMetadata, total int) *ExecutionContext {
	if input == nil {
		input = make(map[string]any)
	}
	return &ExecutionContext{
		input:    input,
		results:  make(map[string]*StepResult),
		metadata: meta,
		total:    total,
	}
}

// Input returns a caller-supplied value by key.
func (c *ExecutionContext) Input(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.input[key]
	return v, ok
}

// Result returns a finished step's result, or nil.
func (c *ExecutionContext) Result(stepID string) *StepResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[stepID]
}

// StepValue reads one field out of a finished step's produced row.
func (c *ExecutionContext) StepValue(stepID, field string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.results[stepID]
	if res == nil || res.Data == nil {
		return nil, false
	}
	v, ok := res.Data[field]
	return v, ok
}

func (c *ExecutionContext) record(res *StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[res.StepID] = res
	c.order = append(c.order, res.StepID)
	c.current++
}

// Progress reports completed and total step counts.
func (c *ExecutionContext) Progress() (current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.total
}

// finished returns results in completion order.
func (c *ExecutionContext) finished() []*StepResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*StepResult, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.results[id])
	}
	return out
}

// resolveRef splits a source reference into its scheme and remainder:
// "input.email" -> ("input", "email"), "create_users.id" ->
// ("create_users", "id").
func resolveRef(source string) (scheme, rest string) {
	i := strings.Index(source, ".")
	if i < 0 {
		return source, ""
	}
	return source[:i], source[i+1:]
}
