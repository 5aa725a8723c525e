package rollback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seedwright/seedwright/internal/executor"
	"github.com/seedwright/seedwright/internal/metadata"
)

// Manifest records every row a seeding run inserted, so the run can be
// undone later even after the process exits.
type Manifest struct {
	CreatedAt time.Time `yaml:"created_at"`
	Database  string    `yaml:"database"`
	Workflow  string    `yaml:"workflow,omitempty"`
	Entries   []Entry   `yaml:"entries"`
}

// Entry identifies one inserted row.
type Entry struct {
	StepID    string `yaml:"step_id,omitempty"`
	Table     string `yaml:"table"`
	KeyColumn string `yaml:"key_column"`
	Key       any    `yaml:"key"`
}

// Result holds the outcome of an undo pass.
type Result struct {
	Deleted int      `yaml:"deleted"`
	Errors  []string `yaml:"errors,omitempty"`
}

// FromExecution builds a manifest from the rollback entries of succeeded
// steps, in execution order.
func FromExecution(database, workflowName string, result *executor.ExecutionResult) *Manifest {
	m := &Manifest{
		CreatedAt: time.Now().UTC(),
		Database:  database,
		Workflow:  workflowName,
	}
	for _, step := range result.Steps {
		if step.Rollback == nil {
			continue
		}
		m.Entries = append(m.Entries, Entry{
			StepID:    step.Rollback.StepID,
			Table:     step.Rollback.Table,
			KeyColumn: step.Rollback.KeyColumn,
			Key:       step.Rollback.Key,
		})
	}
	return m
}

// Execute deletes the manifest's rows in reverse insertion order, so
// dependent rows go before the rows they reference. Each deletion continues
// even if a prior one fails.
func Execute(ctx context.Context, client metadata.Client, m *Manifest) (*Result, error) {
	if client == nil {
		return nil, fmt.Errorf("undo requires a database client")
	}

	result := &Result{}
	for i := len(m.Entries) - 1; i >= 0; i-- {
		e := m.Entries[i]
		if err := client.DeleteRow(ctx, e.Table, e.KeyColumn, e.Key); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("deleting %s %s=%v: %v", e.Table, e.KeyColumn, e.Key, err))
			continue
		}
		result.Deleted++
	}
	return result, nil
}

// WriteYAML writes the manifest to a YAML file at the given path.
func (m *Manifest) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// LoadYAML reads a manifest from a YAML file.
func LoadYAML(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}
