package rollback

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/seedwright/seedwright/internal/executor"
	"github.com/seedwright/seedwright/internal/metadata"
)

func sampleManifest() *Manifest {
	return &Manifest{
		Database: "appdb",
		Workflow: "seed_accounts_profiles",
		Entries: []Entry{
			{StepID: "create_accounts", Table: "accounts", KeyColumn: "id", Key: "a1"},
			{StepID: "create_profiles", Table: "profiles", KeyColumn: "id", Key: "p1"},
		},
	}
}

func TestFromExecutionCollectsSucceededInserts(t *testing.T) {
	result := &executor.ExecutionResult{Steps: []executor.StepResult{
		{StepID: "create_accounts", Rollback: &executor.RollbackEntry{
			StepID: "create_accounts", Table: "accounts", KeyColumn: "id", Key: "a1"}},
		{StepID: "validate_accounts"},
		{StepID: "create_profiles", Rollback: &executor.RollbackEntry{
			StepID: "create_profiles", Table: "profiles", KeyColumn: "id", Key: "p1"}},
	}}

	m := FromExecution("appdb", "seed_accounts_profiles", result)
	if len(m.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(m.Entries))
	}
	if m.Entries[0].Table != "accounts" || m.Entries[1].Table != "profiles" {
		t.Errorf("entries out of order: %+v", m.Entries)
	}
}

func TestExecuteDeletesInReverseOrder(t *testing.T) {
	mock := &metadata.MockClient{Rows: map[string][]metadata.Row{
		"accounts": {{"id": "a1"}},
		"profiles": {{"id": "p1"}},
	}}

	res, err := Execute(context.Background(), mock, sampleManifest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Deleted != 2 {
		t.Fatalf("deleted = %d, want 2", res.Deleted)
	}
	if mock.Deleted[0].Table != "profiles" || mock.Deleted[1].Table != "accounts" {
		t.Errorf("deletion order = %+v, want profiles before accounts", mock.Deleted)
	}
}

func TestExecuteContinuesPastFailures(t *testing.T) {
	mock := &metadata.MockClient{DeleteErr: errors.New("permission denied")}

	res, err := Execute(context.Background(), mock, sampleManifest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Deleted != 0 {
		t.Errorf("deleted = %d, want 0", res.Deleted)
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v, want one per entry", res.Errors)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undo", "manifest.yaml")
	if err := sampleManifest().WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	got, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if got.Database != "appdb" || len(got.Entries) != 2 {
		t.Errorf("round trip lost data: %+v", got)
	}
	if got.Entries[0].Key != "a1" {
		t.Errorf("key = %v, want a1", got.Entries[0].Key)
	}
}
