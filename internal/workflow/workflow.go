package workflow

import (
	"time"

	"github.com/seedwright/seedwright/internal/rules"
)

// Operation is what a step does against the target table.
type Operation string

const (
	OpInsert   Operation = "insert"
	OpUpdate   Operation = "update"
	OpValidate Operation = "validate"
	OpSkip     Operation = "skip"
)

// ErrorAction is the per-step policy when a precondition or write fails.
type ErrorAction string

const (
	ActionAutoFix ErrorAction = "auto_fix"
	ActionSkip    ErrorAction = "skip"
	ActionFail    ErrorAction = "fail"
)

// FailurePolicy controls how the whole workflow reacts to a failed step.
type FailurePolicy string

const (
	FailFast            FailurePolicy = "fail_fast"
	GracefulDegradation FailurePolicy = "graceful_degradation"
	BestEffort          FailurePolicy = "best_effort"
)

// FieldMapping binds one column of the target row to a value source.
// Source is a reference string: "input.<key>" reads caller input,
// "generated.<kind>" asks the value provider, "<stepId>.<field>" reads a
// previous step's result, "existing.<table>.<column>" samples a live row,
// and "literal" takes Value as-is.
type FieldMapping struct {
	Field    string `json:"field" yaml:"field"`
	Source   string `json:"source" yaml:"source"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// ConstraintCondition is a precondition evaluated before a step executes.
// Type "exists" requires at least one row in Table matching the reference;
// "business_rule" defers to the discovered rule named by RuleID.
type ConstraintCondition struct {
	Type    string `json:"type" yaml:"type"`
	Table   string `json:"table,omitempty" yaml:"table,omitempty"`
	Column  string `json:"column,omitempty" yaml:"column,omitempty"`
	RuleID  string `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// WorkflowStep is one unit of work. Array order in the workflow follows
// creation order; DependsOn carries the same ordering explicitly so
// independent steps may run concurrently.
type WorkflowStep struct {
	ID            string                    `json:"id" yaml:"id"`
	Table         string                    `json:"table" yaml:"table"`
	Operation     Operation                 `json:"operation" yaml:"operation"`
	Required      bool                      `json:"required" yaml:"required"`
	Conditions    []ConstraintCondition     `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	FieldMappings []FieldMapping            `json:"field_mappings,omitempty" yaml:"field_mappings,omitempty"`
	OnError       ErrorAction               `json:"on_error" yaml:"on_error"`
	DependsOn     []string                  `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	AutoFixes     []rules.AutoFixSuggestion `json:"auto_fixes,omitempty" yaml:"auto_fixes,omitempty"`
}

// Workflow is an ordered plan plus its run policies.
type Workflow struct {
	Name      string         `json:"name" yaml:"name"`
	Steps     []WorkflowStep `json:"steps" yaml:"steps"`
	OnFailure FailurePolicy  `json:"on_failure" yaml:"on_failure"`
	Rollback  bool           `json:"rollback" yaml:"rollback"`
	Validate  bool           `json:"validate" yaml:"validate"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
}

// Step returns the step with the given id, or nil.
func (w *Workflow) Step(id string) *WorkflowStep {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// GenerationMetadata describes how a workflow was produced.
type GenerationMetadata struct {
	GeneratedAt   time.Time `json:"generated_at" yaml:"generated_at"`
	Tables        []string  `json:"tables" yaml:"tables"`
	SkippedTables []string  `json:"skipped_tables,omitempty" yaml:"skipped_tables,omitempty"`
	RuleCount     int       `json:"rule_count" yaml:"rule_count"`
	Confidence    float64   `json:"confidence" yaml:"confidence"`
	Warnings      []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
