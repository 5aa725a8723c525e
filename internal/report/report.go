package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seedwright/seedwright/internal/executor"
)

// SeedReport is the final report of one seeding run.
type SeedReport struct {
	Version     string           `json:"version"`
	GeneratedAt time.Time        `json:"generated_at"`
	Target      TargetSummary    `json:"target"`
	Discovery   DiscoverySummary `json:"discovery"`
	Workflow    WorkflowSummary  `json:"workflow"`
	Execution   ExecutionSummary `json:"execution"`
	Warnings    []string         `json:"warnings,omitempty"`
	NextSteps   []string         `json:"next_steps,omitempty"`
}

// TargetSummary describes the seeded database.
type TargetSummary struct {
	Host     string `json:"host"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Tables   int    `json:"tables"`
}

// DiscoverySummary describes the constraint discovery pass.
type DiscoverySummary struct {
	Rules        int     `json:"rules"`
	Dependencies int     `json:"dependencies"`
	Confidence   float64 `json:"confidence"`
	Framework    string  `json:"framework,omitempty"`
}

// WorkflowSummary describes the generated plan.
type WorkflowSummary struct {
	Name    string `json:"name"`
	Steps   int    `json:"steps"`
	Skipped int    `json:"skipped_tables"`
	Mode    string `json:"mode"`
}

// ExecutionSummary describes the run outcome.
type ExecutionSummary struct {
	Status     string        `json:"status"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	AutoFixes  int           `json:"auto_fixes"`
	Violations int           `json:"violations"`
	RolledBack int           `json:"rolled_back,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Build assembles a report from the run's artifacts. A nil execution result
// produces a plan-only report.
func Build(target TargetSummary, discovery DiscoverySummary, wf WorkflowSummary, result *executor.ExecutionResult) *SeedReport {
	r := &SeedReport{
		Version:     "1",
		GeneratedAt: time.Now().UTC(),
		Target:      target,
		Discovery:   discovery,
		Workflow:    wf,
	}
	if result == nil {
		r.Execution.Status = "not_run"
		r.NextSteps = append(r.NextSteps, "Run 'seedwright seed' to execute the generated workflow")
		return r
	}

	r.Execution = ExecutionSummary{
		Succeeded:  result.Succeeded,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		AutoFixes:  len(result.AutoFixes),
		Violations: len(result.Violations),
		RolledBack: result.RolledBack,
		Duration:   result.Duration,
	}
	r.Warnings = append(r.Warnings, result.Warnings...)

	switch {
	case result.Success:
		r.Execution.Status = "succeeded"
	case result.Succeeded > 0:
		r.Execution.Status = "partial"
	default:
		r.Execution.Status = "failed"
	}

	if result.Failed > 0 {
		r.NextSteps = append(r.NextSteps, "Inspect failed steps and re-run with --on-failure graceful_degradation")
	}
	if result.Skipped > 0 {
		r.NextSteps = append(r.NextSteps, "Review skipped steps: unmet preconditions are listed under warnings")
	}
	return r
}

// WriteJSON writes the report as JSON.
func WriteJSON(report *SeedReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*SeedReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &SeedReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// WriteText writes the report as human-readable text.
func WriteText(report *SeedReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(FormatText(report)), 0o644)
}

// FormatText renders the report as human-readable text.
func FormatText(report *SeedReport) string {
	var b strings.Builder

	b.WriteString("=== Seedwright Run Report ===\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339)))

	b.WriteString("Target:\n")
	b.WriteString(fmt.Sprintf("  Host:     %s\n", report.Target.Host))
	b.WriteString(fmt.Sprintf("  Database: %s\n", report.Target.Database))
	b.WriteString(fmt.Sprintf("  Schema:   %s\n", report.Target.Schema))
	b.WriteString(fmt.Sprintf("  Tables:   %d\n\n", report.Target.Tables))

	b.WriteString("Discovery:\n")
	b.WriteString(fmt.Sprintf("  Rules:        %d\n", report.Discovery.Rules))
	b.WriteString(fmt.Sprintf("  Dependencies: %d\n", report.Discovery.Dependencies))
	b.WriteString(fmt.Sprintf("  Confidence:   %.2f\n", report.Discovery.Confidence))
	if report.Discovery.Framework != "" {
		b.WriteString(fmt.Sprintf("  Framework:    %s\n", report.Discovery.Framework))
	}
	b.WriteString("\n")

	b.WriteString("Workflow:\n")
	b.WriteString(fmt.Sprintf("  Name:  %s\n", report.Workflow.Name))
	b.WriteString(fmt.Sprintf("  Steps: %d\n", report.Workflow.Steps))
	b.WriteString(fmt.Sprintf("  Mode:  %s\n\n", report.Workflow.Mode))

	b.WriteString(fmt.Sprintf("Execution: %s\n", report.Execution.Status))
	b.WriteString(fmt.Sprintf("  Succeeded:  %d\n", report.Execution.Succeeded))
	b.WriteString(fmt.Sprintf("  Skipped:    %d\n", report.Execution.Skipped))
	b.WriteString(fmt.Sprintf("  Failed:     %d\n", report.Execution.Failed))
	b.WriteString(fmt.Sprintf("  Auto-fixes: %d\n", report.Execution.AutoFixes))
	if report.Execution.RolledBack > 0 {
		b.WriteString(fmt.Sprintf("  Rolled back: %d\n", report.Execution.RolledBack))
	}
	b.WriteString("\n")

	if len(report.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range report.Warnings {
			b.WriteString(fmt.Sprintf("  - %s\n", w))
		}
		b.WriteString("\n")
	}

	if len(report.NextSteps) > 0 {
		b.WriteString("Next Steps:\n")
		for i, s := range report.NextSteps {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, s))
		}
	}

	return b.String()
}
