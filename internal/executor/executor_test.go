package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/values"
	"github.com/seedwright/seedwright/internal/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor(client metadata.Client, meta *rules.ConstraintMetadata) *Executor {
	return &Executor{
		Client:   client,
		Provider: values.NewSeeded(1),
		Metadata: meta,
		Logger:   testLogger(),
	}
}

func slugCheckMetadata() *rules.ConstraintMetadata {
	return &rules.ConstraintMetadata{
		Tables: []string{"accounts", "profiles"},
		BusinessRules: []rules.BusinessRule{
			{
				ID: "accounts_slug_check", Name: "accounts_slug_null_if_personal",
				Kind: rules.KindValidation, Table: "accounts",
				Condition:     "slug must be NULL when is_personal_account is true",
				Action:        rules.ActionDefault,
				Confidence:    0.8,
				SourcePattern: "conditional_insert:(is_personal_account = false) OR (slug IS NULL)",
				AutoFix:       &rules.AutoFixSuggestion{Type: "set_field", Field: "slug", Value: nil},
			},
		},
	}
}

// accountsWorkflow is the two-table auto-fix scenario: an accounts insert
// guarded by the personal-account slug rule, then a dependent profile.
func accountsWorkflow(policy workflow.FailurePolicy, rollback bool) *workflow.Workflow {
	return &workflow.Workflow{
		Name:      "seed_accounts_profiles",
		OnFailure: policy,
		Rollback:  rollback,
		Steps: []workflow.WorkflowStep{
			{
				ID: "create_accounts", Table: "accounts", Operation: workflow.OpInsert,
				Required: true, OnError: workflow.ActionAutoFix,
				FieldMappings: []workflow.FieldMapping{
					{Field: "id", Source: "generated.uuid", Required: true},
					{Field: "name", Source: "input.name", Required: true},
					{Field: "is_personal_account", Source: "input.is_personal_account"},
					{Field: "slug", Source: "input.slug"},
					{Field: "slug", Source: "literal", Value: nil},
				},
				Conditions: []workflow.ConstraintCondition{
					{Type: "business_rule", RuleID: "accounts_slug_check"},
				},
				AutoFixes: []rules.AutoFixSuggestion{
					{Type: "set_field", Field: "slug", Value: nil},
				},
			},
			{
				ID: "create_profiles", Table: "profiles", Operation: workflow.OpInsert,
				OnError: workflow.ActionAutoFix,
				FieldMappings: []workflow.FieldMapping{
					{Field: "id", Source: "generated.uuid", Required: true},
					{Field: "account_id", Source: "create_accounts.id", Required: true},
				},
				Conditions: []workflow.ConstraintCondition{
					{Type: "exists", Table: "accounts"},
				},
				DependsOn: []string{"create_accounts"},
			},
		},
	}
}

func TestExecuteAppliesAutoFix(t *testing.T) {
	client := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {}, "profiles": {},
	}}
	exec := newExecutor(client, slugCheckMetadata())

	result, err := exec.Execute(context.Background(), accountsWorkflow(workflow.GracefulDegradation, false), map[string]any{
		"name":                "Jo Personal",
		"slug":                "jo-team",
		"is_personal_account": true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.Succeeded != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	if len(result.AutoFixes) != 1 || result.AutoFixes[0].Field != "slug" {
		t.Fatalf("auto fixes = %+v", result.AutoFixes)
	}
	if len(client.Inserted) != 2 {
		t.Fatalf("inserted = %+v", client.Inserted)
	}
	account := client.Inserted[0].Row
	if account["slug"] != nil {
		t.Fatalf("slug should be cleared, got %v", account["slug"])
	}
	if account["is_personal_account"] != true || account["name"] != "Jo Personal" {
		t.Fatalf("account row = %+v", account)
	}

	profile := client.Inserted[1].Row
	if profile["account_id"] != account["id"] {
		t.Fatalf("profile references %v, account id is %v", profile["account_id"], account["id"])
	}
}

func TestExecuteKeepsCompliantSlug(t *testing.T) {
	client := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {}, "profiles": {},
	}}
	exec := newExecutor(client, slugCheckMetadata())

	result, err := exec.Execute(context.Background(), accountsWorkflow(workflow.GracefulDegradation, false), map[string]any{
		"name":                "Jo Team",
		"slug":                "jo-team",
		"is_personal_account": false,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.AutoFixes) != 0 {
		t.Fatalf("no fix should apply: %+v", result.AutoFixes)
	}
	if client.Inserted[0].Row["slug"] != "jo-team" {
		t.Fatalf("slug = %v", client.Inserted[0].Row["slug"])
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
}

func failingPreconditionWorkflow(policy workflow.FailurePolicy) *workflow.Workflow {
	return &workflow.Workflow{
		Name:      "seed_blocked",
		OnFailure: policy,
		Steps: []workflow.WorkflowStep{
			{
				ID: "create_orders", Table: "orders", Operation: workflow.OpInsert,
				Required: true, OnError: workflow.ActionAutoFix,
				Conditions: []workflow.ConstraintCondition{
					{Type: "exists", Table: "customers"},
				},
			},
			{
				ID: "create_notes", Table: "notes", Operation: workflow.OpInsert,
				OnError: workflow.ActionAutoFix,
				FieldMappings: []workflow.FieldMapping{
					{Field: "body", Source: "generated.text"},
				},
			},
		},
	}
}

func TestExecuteFailFastStopsAfterRequiredFailure(t *testing.T) {
	// customers is empty, so the exists precondition fails with no fix.
	client := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"customers": {}, "orders": {}, "notes": {},
	}}
	exec := newExecutor(client, nil)

	result, err := exec.Execute(context.Background(), failingPreconditionWorkflow(workflow.FailFast), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatal("run must not be successful")
	}
	if result.Failed != 1 || result.Succeeded != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(client.Inserted) != 0 {
		t.Fatalf("no step may execute after the failure: %+v", client.Inserted)
	}
	// The trailing step is recorded, not silently dropped.
	if result.Skipped != 1 {
		t.Fatalf("skipped = %d", result.Skipped)
	}
}

func TestExecuteGracefulDegradationSkipsAndContinues(t *testing.T) {
	client := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"customers": {}, "orders": {}, "notes": {},
	}}
	exec := newExecutor(client, nil)

	result, err := exec.Execute(context.Background(), failingPreconditionWorkflow(workflow.GracefulDegradation), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Failed != 0 || result.Skipped != 1 || result.Succeeded != 1 {
		t.Fatalf("result = %+v", result)
	}
	if !result.Success {
		t.Fatal("one success and zero failures is a successful run")
	}
	if len(client.Inserted) != 1 || client.Inserted[0].Table != "notes" {
		t.Fatalf("inserted = %+v", client.Inserted)
	}
}

func TestExecuteRollsBackOnFailure(t *testing.T) {
	client := &metadata.MockClient{
		Rows:       map[string][]metadata.Row{"accounts": {}, "profiles": {}},
		InsertErrs: map[string]error{"profiles": errors.New("disk full")},
	}
	exec := newExecutor(client, slugCheckMetadata())

	wf := accountsWorkflow(workflow.FailFast, true)
	wf.Steps[1].Required = true

	result, err := exec.Execute(context.Background(), wf, map[string]any{
		"name": "Jo", "is_personal_account": false,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.RolledBack != 1 {
		t.Fatalf("rolled back = %d", result.RolledBack)
	}
	if len(client.Deleted) != 1 || client.Deleted[0].Table != "accounts" {
		t.Fatalf("deleted = %+v", client.Deleted)
	}
}

func TestExecuteSkipsDependentsOfSkippedSteps(t *testing.T) {
	client := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"customers": {}, "orders": {}, "items": {},
	}}
	exec := newExecutor(client, nil)

	wf := failingPreconditionWorkflow(workflow.GracefulDegradation)
	wf.Steps = append(wf.Steps, workflow.WorkflowStep{
		ID: "create_items", Table: "items", Operation: workflow.OpInsert,
		OnError:   workflow.ActionAutoFix,
		DependsOn: []string{"create_orders"},
	})

	result, err := exec.Execute(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Skipped != 2 {
		t.Fatalf("both orders and its dependent must be skipped: %+v", result)
	}
	for _, table := range []string{"orders", "items"} {
		for _, ins := range client.Inserted {
			if ins.Table == table {
				t.Fatalf("%s must not be inserted", table)
			}
		}
	}
}

func TestExecuteMissingRequiredInputFails(t *testing.T) {
	client := &metadata.MockClient{Rows: map[string][]metadata.Row{"accounts": {}, "profiles": {}}}
	exec := newExecutor(client, slugCheckMetadata())

	wf := accountsWorkflow(workflow.FailFast, false)
	result, err := exec.Execute(context.Background(), wf, map[string]any{
		"is_personal_account": false, // name is required and missing
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	var found bool
	for _, v := range result.Violations {
		if v.Type == "missing_field" {
			found = true
		}
	}
	if !found {
		t.Fatalf("violations = %+v", result.Violations)
	}
}

func TestExecuteResolvesExistingRows(t *testing.T) {
	client := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"users":    {{"id": int64(7), "email": "a@b.c"}},
		"profiles": {},
	}}
	exec := newExecutor(client, nil)

	wf := &workflow.Workflow{
		Name:      "seed_profiles",
		OnFailure: workflow.GracefulDegradation,
		Steps: []workflow.WorkflowStep{{
			ID: "create_profiles", Table: "profiles", Operation: workflow.OpInsert,
			OnError: workflow.ActionAutoFix,
			FieldMappings: []workflow.FieldMapping{
				{Field: "user_id", Source: "existing.users.id", Required: true},
			},
		}},
	}
	result, err := exec.Execute(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if client.Inserted[0].Row["user_id"] != int64(7) {
		t.Fatalf("row = %+v", client.Inserted[0].Row)
	}
}

func TestExecuteValidateStepNeverWrites(t *testing.T) {
	client := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {{"id": int64(1)}},
	}}
	exec := newExecutor(client, nil)

	wf := &workflow.Workflow{
		Name:      "validate_only",
		OnFailure: workflow.GracefulDegradation,
		Steps: []workflow.WorkflowStep{{
			ID: "validate_accounts", Table: "accounts", Operation: workflow.OpValidate,
			OnError: workflow.ActionSkip,
			Conditions: []workflow.ConstraintCondition{
				{Type: "exists", Table: "accounts"},
			},
		}},
	}
	result, err := exec.Execute(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.Succeeded != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(client.Inserted) != 0 {
		t.Fatalf("validate must not write: %+v", client.Inserted)
	}
}

func TestDiffRowsHandlesUncomparableValues(t *testing.T) {
	before := metadata.Row{"tags": []string{"a", "b"}, "amount": 1}
	after := metadata.Row{"tags": []string{"a", "b"}, "amount": 2, "meta": map[string]any{"k": "v"}}

	diff := diffRows(before, after)
	if _, ok := diff["tags"]; ok {
		t.Fatalf("unchanged slice reported as a fix: %v", diff)
	}
	if diff["amount"] != 2 {
		t.Fatalf("diff = %v", diff)
	}
	if _, ok := diff["meta"]; !ok {
		t.Fatalf("newly set field missing from diff: %v", diff)
	}
}
