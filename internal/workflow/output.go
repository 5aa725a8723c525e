package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a workflow from a YAML file.
func LoadYAML(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	w := &Workflow{}
	if err := yaml.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	return w, nil
}

// WriteYAML writes the workflow to a YAML file at the given path.
func (w *Workflow) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshaling workflow: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Summary returns a human-readable summary of the workflow.
func (w *Workflow) Summary() string {
	inserts, validations, required := 0, 0, 0
	for _, s := range w.Steps {
		switch s.Operation {
		case OpInsert:
			inserts++
		case OpValidate:
			validations++
		}
		if s.Required {
			required++
		}
	}
	return fmt.Sprintf(
		"Workflow %s: %d steps (%d inserts, %d validations, %d required), failure policy %s",
		w.Name, len(w.Steps), inserts, validations, required, w.OnFailure,
	)
}
