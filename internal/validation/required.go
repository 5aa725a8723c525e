package validation

import (
	"context"
	"fmt"

	"github.com/seedwright/seedwright/internal/schema"
)

// RequiredCheck verifies sampled rows carry values for every non-nullable
// column without a database default.
type RequiredCheck struct {
	Sampled int       `json:"sampled"`
	Missing []Missing `json:"missing,omitempty"`
	Passed  bool      `json:"passed"`
	Error   string    `json:"error,omitempty"`
}

// Missing records one sampled row lacking a required value.
type Missing struct {
	Column string `json:"column"`
	Rows   int    `json:"rows"`
}

// validateRequired samples rows and counts NULLs in required columns.
// Returns nil when the table has no required columns to check.
func (v *Validator) validateRequired(ctx context.Context, table *schema.Table) *RequiredCheck {
	var required []string
	for _, col := range table.Columns {
		if !col.Nullable && !col.IsSequence && col.DefaultValue == nil {
			required = append(required, col.Name)
		}
	}
	if len(required) == 0 {
		return nil
	}

	check := &RequiredCheck{}
	rows, err := v.Client.SelectRows(ctx, table.Name, nil, v.SampleSize)
	if err != nil {
		check.Error = fmt.Sprintf("sampling %s: %v", table.Name, err)
		return check
	}
	check.Sampled = len(rows)

	nulls := make(map[string]int)
	for _, row := range rows {
		for _, col := range required {
			if val, ok := row[col]; !ok || val == nil {
				nulls[col]++
			}
		}
	}
	for _, col := range required {
		if n := nulls[col]; n > 0 {
			check.Missing = append(check.Missing, Missing{Column: col, Rows: n})
		}
	}

	check.Passed = len(check.Missing) == 0
	return check
}
