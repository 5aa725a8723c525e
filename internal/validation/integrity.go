package validation

import (
	"context"
	"fmt"

	"github.com/seedwright/seedwright/internal/metadata"
)

// IntegrityCheck verifies sampled foreign key values resolve to rows in the
// referenced table.
type IntegrityCheck struct {
	Checked int      `json:"checked"`
	Orphans []Orphan `json:"orphans,omitempty"`
	Passed  bool     `json:"passed"`
	Error   string   `json:"error,omitempty"`
}

// Orphan records one foreign key value with no matching referenced row.
type Orphan struct {
	Column          string `json:"column"`
	Value           any    `json:"value"`
	ReferencedTable string `json:"referenced_table"`
}

// validateIntegrity samples rows and resolves every discovered dependency.
// Returns nil when the table has no outgoing dependencies.
func (v *Validator) validateIntegrity(ctx context.Context, table string) *IntegrityCheck {
	if v.Metadata == nil {
		return nil
	}
	deps := v.Metadata.DependenciesFrom(table)
	if len(deps) == 0 {
		return nil
	}

	check := &IntegrityCheck{}
	rows, err := v.Client.SelectRows(ctx, table, nil, v.SampleSize)
	if err != nil {
		check.Error = fmt.Sprintf("sampling %s: %v", table, err)
		return check
	}

	for _, row := range rows {
		for _, dep := range deps {
			val, ok := row[dep.FromColumn]
			if !ok || val == nil {
				// NULL optional keys are legal; required NULLs are the
				// required-columns check's finding.
				continue
			}
			check.Checked++

			refCol := dep.ToColumn
			if refCol == "" {
				refCol = "id"
			}
			parents, err := v.Client.SelectRows(ctx, dep.ToTable, metadata.Row{refCol: val}, 1)
			if err != nil {
				check.Error = fmt.Sprintf("resolving %s.%s: %v", dep.ToTable, refCol, err)
				return check
			}
			if len(parents) == 0 {
				check.Orphans = append(check.Orphans, Orphan{
					Column:          dep.FromColumn,
					Value:           val,
					ReferencedTable: dep.ToTable,
				})
			}
		}
	}

	check.Passed = len(check.Orphans) == 0
	return check
}
