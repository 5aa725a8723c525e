package validation

import "context"

// RowCountCheck verifies that a seeded table actually holds rows.
type RowCountCheck struct {
	Count  int64  `json:"count"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

func (v *Validator) validateRowCount(ctx context.Context, table string) *RowCountCheck {
	check := &RowCountCheck{}
	count, err := v.Client.CountRows(ctx, table)
	if err != nil {
		check.Error = err.Error()
		return check
	}
	check.Count = count
	check.Passed = count > 0
	return check
}
