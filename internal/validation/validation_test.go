package validation

import (
	"context"
	"testing"

	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/schema"
)

func validationSnapshot() *schema.Snapshot {
	return &schema.Snapshot{Tables: []schema.Table{
		{
			Name: "accounts",
			Columns: []schema.Column{
				{Name: "id", DataType: "uuid"},
				{Name: "email", DataType: "text"},
				{Name: "slug", DataType: "text", Nullable: true},
			},
		},
		{
			Name: "profiles",
			Columns: []schema.Column{
				{Name: "id", DataType: "uuid"},
				{Name: "account_id", DataType: "uuid"},
			},
		},
	}}
}

func validationMetadata() *rules.ConstraintMetadata {
	return &rules.ConstraintMetadata{
		Tables: []string{"accounts", "profiles"},
		Dependencies: []rules.TableDependency{
			{FromTable: "profiles", FromColumn: "account_id", ToTable: "accounts", ToColumn: "id", Required: true},
		},
	}
}

func TestValidatePassesOnConsistentData(t *testing.T) {
	mock := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {{"id": "a1", "email": "ada@example.com", "slug": nil}},
		"profiles": {{"id": "p1", "account_id": "a1"}},
	}}
	v := &Validator{Client: mock, Snapshot: validationSnapshot(), Metadata: validationMetadata()}

	result, err := v.Validate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Status != "PASS" {
		t.Fatalf("status = %q, want PASS: %+v", result.Status, result.Tables)
	}
	if len(result.Tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(result.Tables))
	}
	for _, tr := range result.Tables {
		if tr.Status != "PASS" {
			t.Errorf("%s status = %q, want PASS", tr.Name, tr.Status)
		}
	}
}

func TestValidateFlagsOrphanedForeignKey(t *testing.T) {
	mock := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {{"id": "a1", "email": "ada@example.com"}},
		"profiles": {{"id": "p1", "account_id": "missing"}},
	}}
	v := &Validator{Client: mock, Snapshot: validationSnapshot(), Metadata: validationMetadata()}

	result, err := v.Validate(context.Background(), []string{"profiles"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Status != "FAIL" {
		t.Fatalf("status = %q, want FAIL", result.Status)
	}
	ic := result.Tables[0].IntegrityCheck
	if ic == nil || len(ic.Orphans) != 1 {
		t.Fatalf("integrity = %+v, want one orphan", ic)
	}
	if ic.Orphans[0].ReferencedTable != "accounts" || ic.Orphans[0].Value != "missing" {
		t.Errorf("orphan = %+v", ic.Orphans[0])
	}
}

func TestValidateFlagsMissingRequiredColumn(t *testing.T) {
	mock := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {
			{"id": "a1", "email": nil},
			{"id": "a2", "email": "grace@example.com"},
		},
	}}
	v := &Validator{Client: mock, Snapshot: validationSnapshot(), Metadata: validationMetadata()}

	result, err := v.Validate(context.Background(), []string{"accounts"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	rc := result.Tables[0].RequiredCheck
	if rc == nil || rc.Passed {
		t.Fatalf("required check = %+v, want failure", rc)
	}
	if len(rc.Missing) != 1 || rc.Missing[0].Column != "email" || rc.Missing[0].Rows != 1 {
		t.Errorf("missing = %+v, want email in 1 row", rc.Missing)
	}
}

func TestValidateEmptyTableFailsRowCount(t *testing.T) {
	mock := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {},
	}}
	v := &Validator{Client: mock, Snapshot: validationSnapshot(), Metadata: validationMetadata()}

	result, err := v.Validate(context.Background(), []string{"accounts"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Tables[0].RowCountCheck.Passed {
		t.Error("empty table should fail the row count check")
	}
	if result.Status != "FAIL" {
		t.Errorf("status = %q, want FAIL", result.Status)
	}
}

func TestValidatePartialStatus(t *testing.T) {
	mock := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {{"id": "a1", "email": "ada@example.com"}},
		"profiles": {},
	}}
	v := &Validator{Client: mock, Snapshot: validationSnapshot(), Metadata: validationMetadata()}

	result, err := v.Validate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Status != "PARTIAL" {
		t.Errorf("status = %q, want PARTIAL", result.Status)
	}
}

func TestValidateReportsPerCheckCallback(t *testing.T) {
	mock := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"profiles": {{"id": "p1", "account_id": "a1"}},
		"accounts": {{"id": "a1", "email": "ada@example.com"}},
	}}
	var calls []string
	v := &Validator{
		Client:   mock,
		Snapshot: validationSnapshot(),
		Metadata: validationMetadata(),
		Callback: func(table, checkType string, passed bool) {
			calls = append(calls, table+":"+checkType)
		},
	}

	if _, err := v.Validate(context.Background(), []string{"profiles"}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []string{"profiles:row_count", "profiles:integrity", "profiles:required"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}
