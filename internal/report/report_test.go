package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seedwright/seedwright/internal/executor"
)

func sampleResult() *executor.ExecutionResult {
	return &executor.ExecutionResult{
		Success:   true,
		Succeeded: 3,
		Skipped:   1,
		Failed:    0,
		AutoFixes: []executor.AutoFixApplied{
			{StepID: "create_accounts", Field: "slug", Reason: "personal accounts must not carry a slug"},
		},
		Duration: 120 * time.Millisecond,
		Warnings: []string{"step create_profiles skipped: precondition not met"},
	}
}

func TestBuildStatus(t *testing.T) {
	tests := []struct {
		name   string
		result *executor.ExecutionResult
		want   string
	}{
		{"success", sampleResult(), "succeeded"},
		{"partial", &executor.ExecutionResult{Succeeded: 1, Failed: 1}, "partial"},
		{"failed", &executor.ExecutionResult{Failed: 2}, "failed"},
		{"plan only", nil, "not_run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Build(TargetSummary{Database: "app"}, DiscoverySummary{}, WorkflowSummary{}, tt.result)
			if r.Execution.Status != tt.want {
				t.Errorf("status = %q, want %q", r.Execution.Status, tt.want)
			}
		})
	}
}

func TestBuildCarriesWarningsAndNextSteps(t *testing.T) {
	res := sampleResult()
	res.Skipped = 1
	r := Build(TargetSummary{}, DiscoverySummary{}, WorkflowSummary{}, res)

	if len(r.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(r.Warnings))
	}
	if len(r.NextSteps) != 1 || !strings.Contains(r.NextSteps[0], "skipped") {
		t.Errorf("next steps = %v, want skipped-step hint", r.NextSteps)
	}
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	r := Build(
		TargetSummary{Host: "localhost", Database: "app", Schema: "public", Tables: 12},
		DiscoverySummary{Rules: 24, Dependencies: 8, Confidence: 0.82, Framework: "makerkit"},
		WorkflowSummary{Name: "seed_app", Steps: 5, Mode: "smart"},
		sampleResult(),
	)

	path := filepath.Join(t.TempDir(), "reports", "run.json")
	if err := WriteJSON(r, path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	got, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Target.Database != "app" {
		t.Errorf("database = %q, want app", got.Target.Database)
	}
	if got.Discovery.Rules != 24 {
		t.Errorf("rules = %d, want 24", got.Discovery.Rules)
	}
	if got.Execution.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", got.Execution.Succeeded)
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	if _, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFormatText(t *testing.T) {
	r := Build(
		TargetSummary{Host: "localhost", Database: "app", Schema: "public", Tables: 12},
		DiscoverySummary{Rules: 24, Dependencies: 8, Confidence: 0.82, Framework: "makerkit"},
		WorkflowSummary{Name: "seed_app", Steps: 5, Mode: "smart"},
		sampleResult(),
	)

	text := FormatText(r)
	for _, want := range []string{
		"=== Seedwright Run Report ===",
		"Database: app",
		"Rules:        24",
		"Framework:    makerkit",
		"Execution: succeeded",
		"Auto-fixes: 1",
		"Warnings:",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q", want)
		}
	}
}

func TestWriteTextCreatesDirectories(t *testing.T) {
	r := Build(TargetSummary{Database: "app"}, DiscoverySummary{}, WorkflowSummary{Name: "plan"}, nil)
	path := filepath.Join(t.TempDir(), "deep", "nested", "run.txt")
	if err := WriteText(r, path); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if !strings.Contains(string(got), "plan") {
		t.Errorf("text report missing workflow name")
	}
}
