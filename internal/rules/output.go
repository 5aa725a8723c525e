package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads constraint metadata from a YAML file.
func LoadYAML(path string) (*ConstraintMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading constraints file: %w", err)
	}
	m := &ConstraintMetadata{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing constraints: %w", err)
	}
	return m, nil
}

// WriteYAML writes the constraint metadata to a YAML file at the given path.
func (m *ConstraintMetadata) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling constraints: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Summary returns a human-readable summary of the discovered constraints.
func (m *ConstraintMetadata) Summary() string {
	byKind := make(map[RuleKind]int)
	fixable := 0
	for _, r := range m.BusinessRules {
		byKind[r.Kind]++
		if r.AutoFix != nil {
			fixable++
		}
	}
	return fmt.Sprintf(
		"Discovered %d rules across %d tables (%d validation, %d dependency, %d business logic, %d auto-fixable), %d dependencies, confidence %.2f",
		len(m.BusinessRules), len(m.Tables),
		byKind[KindValidation], byKind[KindDependency], byKind[KindBusinessLogic],
		fixable, len(m.Dependencies), m.Confidence,
	)
}
