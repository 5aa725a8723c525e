package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a schema snapshot from a YAML file.
func LoadYAML(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	s := &Snapshot{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return s, nil
}

// WriteYAML writes the snapshot to a YAML file at the given path.
func (s *Snapshot) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Summary returns a human-readable summary of the snapshot.
func (s *Snapshot) Summary() string {
	var totalRows int64
	var totalCols, totalFKs, totalChecks, totalTriggers int

	for _, t := range s.Tables {
		totalRows += t.RowCount
		totalCols += len(t.Columns)
		totalTriggers += len(t.Triggers)
		for _, c := range t.Constraints {
			switch c.Kind {
			case KindForeignKey:
				totalFKs++
			case KindCheck:
				totalChecks++
			}
		}
	}

	return fmt.Sprintf(
		"Found %d tables, %d columns, %d foreign keys, %d check constraints, %d triggers\nTotal rows: %d",
		len(s.Tables), totalCols, totalFKs, totalChecks, totalTriggers, totalRows,
	)
}
