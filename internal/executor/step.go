package executor

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/seedwright/seedwright/internal/handlers"
	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/values"
	"github.com/seedwright/seedwright/internal/workflow"
)

type stepRunner struct {
	client   metadata.Client
	registry *handlers.Registry
	provider *values.Provider
	metadata *rules.ConstraintMetadata
	log      *slog.Logger
}

// runStep takes one step through its lifecycle: validate preconditions,
// apply available auto-fixes and re-validate exactly once, then execute.
func (r *stepRunner) runStep(ctx context.Context, ec *ExecutionContext, wf *workflow.Workflow, step *workflow.WorkflowStep) *StepResult {
	start := time.Now()
	res := &StepResult{StepID: step.ID, Table: step.Table, State: StatePending}
	defer func() { res.Duration = time.Since(start) }()

	if step.Operation == workflow.OpSkip {
		res.State = StateSucceeded
		res.Success = true
		return res
	}

	// A step whose dependency did not succeed cannot resolve its
	// references; it is skipped, not failed.
	for _, dep := range step.DependsOn {
		if prior := ec.Result(dep); prior != nil && prior.State != StateSucceeded {
			res.State = StateSkipped
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("dependency %s did not succeed", dep))
			return res
		}
	}

	res.State = StateValidating
	row, buildViolations := r.buildRow(ctx, ec, step, res)
	res.Violations = append(res.Violations, buildViolations...)

	violations, fixedRow := r.validate(ctx, step, row)
	res.Violations = append(res.Violations, violations...)

	if len(res.Violations) > 0 {
		if step.OnError == workflow.ActionAutoFix && fixedRow != nil {
			res.State = StateAutoFixing
			for field, v := range diffRows(row, fixedRow) {
				res.AutoFixes = append(res.AutoFixes, AutoFixApplied{
					StepID: step.ID, Field: field, Value: v,
					Reason: "constraint auto-fix",
				})
			}
			row = fixedRow

			// One re-validation pass. A step still violating after its
			// fixes is failed, never retried again.
			again, _ := r.validate(ctx, step, row)
			if len(again) > 0 || len(buildViolations) > 0 {
				res.Violations = append(res.Violations, again...)
				return r.fail(res, "constraint violations persist after auto-fix")
			}
		} else {
			return r.violationOutcome(wf, step, res)
		}
	}

	res.State = StateExecuting
	switch step.Operation {
	case workflow.OpInsert:
		inserted, err := r.client.InsertRow(ctx, step.Table, row)
		if err != nil {
			return r.fail(res, fmt.Sprintf("insert into %s: %v", step.Table, err))
		}
		res.Data = inserted
		if id, ok := inserted["id"]; ok {
			res.Rollback = &RollbackEntry{
				StepID: step.ID, Table: step.Table, KeyColumn: "id", Key: id,
			}
		}
	case workflow.OpValidate:
		res.Data = row
	default:
		res.State = StateSkipped
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("operation %q is not executable", step.Operation))
		return res
	}

	res.State = StateSucceeded
	res.Success = true
	return res
}

func (r *stepRunner) fail(res *StepResult, msg string) *StepResult {
	res.State = StateFailed
	res.Error = msg
	return res
}

// violationOutcome maps unfixable violations to a terminal state. A step
// that demands failure fails; otherwise a required step fails only when the
// workflow runs fail-fast, and everything else degrades to a skip.
func (r *stepRunner) violationOutcome(wf *workflow.Workflow, step *workflow.WorkflowStep, res *StepResult) *StepResult {
	switch {
	case step.OnError == workflow.ActionFail:
		res.State = StateFailed
		res.Error = "preconditions not met"
	case step.Required && wf.OnFailure == workflow.FailFast:
		res.State = StateFailed
		res.Error = "preconditions not met"
	default:
		res.State = StateSkipped
		res.Warnings = append(res.Warnings, "preconditions not met, step skipped")
	}
	return res
}

// buildRow resolves the step's field mappings against the execution
// context. Literal mappings that mirror an auto-fix suggestion are deferred:
// the fix is applied during validation only when the row actually violates,
// so a compliant row keeps its original values.
func (r *stepRunner) buildRow(ctx context.Context, ec *ExecutionContext, step *workflow.WorkflowStep, res *StepResult) (metadata.Row, []ConstraintViolation) {
	fixFields := make(map[string]bool, len(step.AutoFixes))
	for _, f := range step.AutoFixes {
		fixFields[f.Field] = true
	}

	row := make(metadata.Row)
	var violations []ConstraintViolation
	for _, m := range step.FieldMappings {
		if m.Source == "literal" && fixFields[m.Field] {
			if _, present := row[m.Field]; !present {
				// Nothing else supplies this field; take the fix value
				// up front so required columns are not left unset.
				row[m.Field] = m.Value
			}
			continue
		}
		v, ok, err := r.resolveMapping(ctx, ec, m)
		if err != nil || !ok {
			if m.Required {
				msg := fmt.Sprintf("cannot resolve required field %s from %s", m.Field, m.Source)
				if err != nil {
					msg += ": " + err.Error()
				}
				violations = append(violations, ConstraintViolation{
					StepID: step.ID, Type: "missing_field", Message: msg,
				})
			} else {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("field %s unresolved from %s, omitted", m.Field, m.Source))
			}
			continue
		}
		row[m.Field] = v
	}
	return row, violations
}

func (r *stepRunner) resolveMapping(ctx context.Context, ec *ExecutionContext, m workflow.FieldMapping) (any, bool, error) {
	scheme, rest := resolveRef(m.Source)
	switch scheme {
	case "literal":
		return m.Value, true, nil
	case "input":
		v, ok := ec.Input(rest)
		return v, ok, nil
	case "generated":
		v, err := r.provider.Generate(rest)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	case "existing":
		table, column := splitTableColumn(rest)
		rows, err := r.client.SelectRows(ctx, table, nil, 1)
		if err != nil {
			return nil, false, err
		}
		if len(rows) == 0 {
			return nil, false, fmt.Errorf("no existing rows in %s", table)
		}
		v, ok := rows[0][column]
		return v, ok, nil
	default:
		// A step-result reference: <stepId>.<field>.
		v, ok := ec.StepValue(scheme, rest)
		return v, ok, nil
	}
}

// validate evaluates every constraint condition against the built row and
// the live database. It returns the violations found and, when handlers
// could remediate, the row as fixed by them.
func (r *stepRunner) validate(ctx context.Context, step *workflow.WorkflowStep, row metadata.Row) ([]ConstraintViolation, metadata.Row) {
	var violations []ConstraintViolation
	var fixed metadata.Row

	for _, cond := range step.Conditions {
		switch cond.Type {
		case "exists":
			rows, err := r.client.SelectRows(ctx, cond.Table, nil, 1)
			if err != nil || len(rows) == 0 {
				msg := cond.Message
				if msg == "" {
					msg = fmt.Sprintf("no rows exist in %s", cond.Table)
				}
				if err != nil {
					msg += ": " + err.Error()
				}
				violations = append(violations, ConstraintViolation{
					StepID: step.ID, Type: "exists", Table: cond.Table, Message: msg,
				})
			}
		case "business_rule":
			v, fixedRow := r.checkBusinessRule(step, cond, pick(fixed, row))
			if v != nil {
				violations = append(violations, *v)
			}
			if fixedRow != nil {
				fixed = fixedRow
			}
		}
	}
	return violations, fixed
}

// checkBusinessRule evaluates one discovered rule against the row by
// handing its source CHECK clause to the handler registry. A fix returned
// by the handler means the row violated the rule and a remediation exists.
func (r *stepRunner) checkBusinessRule(step *workflow.WorkflowStep, cond workflow.ConstraintCondition, row metadata.Row) (*ConstraintViolation, metadata.Row) {
	rule := r.findRule(cond.RuleID)
	if rule == nil {
		return nil, nil
	}
	clause, ok := strings.CutPrefix(rule.SourcePattern, "conditional_insert:")
	if !ok {
		// Trigger-derived and structural rules have no evaluable clause.
		return nil, nil
	}

	result := r.registry.Handle(handlers.CheckConstraint{
		Name:   rule.Name,
		Table:  step.Table,
		Clause: clause,
	}, row)

	if len(result.Fixes) > 0 {
		return &ConstraintViolation{
			StepID:  step.ID,
			Type:    "business_rule",
			RuleID:  rule.ID,
			Message: fmt.Sprintf("%s: %s", rule.Name, rule.Condition),
		}, result.Data
	}
	if !result.Success {
		return &ConstraintViolation{
			StepID: step.ID, Type: "business_rule", RuleID: rule.ID,
			Message: strings.Join(result.Errors, "; "),
		}, nil
	}
	return nil, nil
}

func (r *stepRunner) findRule(id string) *rules.BusinessRule {
	if r.metadata == nil {
		return nil
	}
	for i := range r.metadata.BusinessRules {
		if r.metadata.BusinessRules[i].ID == id {
			return &r.metadata.BusinessRules[i]
		}
	}
	return nil
}

// diffRows lists the fields whose values changed between the original and
// fixed row, including newly set fields. Row values are not guaranteed
// comparable, so equality goes through reflect.
func diffRows(before, after metadata.Row) map[string]any {
	out := make(map[string]any)
	for k, v := range after {
		if prev, ok := before[k]; !ok || !reflect.DeepEqual(prev, v) {
			out[k] = v
		}
	}
	return out
}

func pick(fixed, original metadata.Row) metadata.Row {
	if fixed != nil {
		return fixed
	}
	return original
}

func splitTableColumn(ref string) (table, column string) {
	i := strings.LastIndex(ref, ".")
	if i < 0 {
		return ref, "id"
	}
	return ref[:i], ref[i+1:]
}
