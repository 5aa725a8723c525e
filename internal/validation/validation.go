package validation

import (
	"context"
	"time"

	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/schema"
)

// Result holds the outcome of post-seed validation.
type Result struct {
	Status      string        `json:"status"` // PASS, FAIL, PARTIAL
	Tables      []TableResult `json:"tables"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// TableResult holds validation results for a single table.
type TableResult struct {
	Name           string          `json:"name"`
	RowCountCheck  *RowCountCheck  `json:"row_count_check,omitempty"`
	IntegrityCheck *IntegrityCheck `json:"integrity_check,omitempty"`
	RequiredCheck  *RequiredCheck  `json:"required_check,omitempty"`
	Status         string          `json:"status"` // PASS, FAIL
}

// Validator checks seeded data against the schema and discovered rules.
type Validator struct {
	Client     metadata.Client
	Snapshot   *schema.Snapshot
	Metadata   *rules.ConstraintMetadata
	SampleSize int
	Callback   func(table, checkType string, passed bool)
}

// Validate runs all checks for the named tables: row presence, foreign key
// integrity, and required columns. An empty table list means every snapshot
// table. A single table's check error marks that table failed; it does not
// abort the rest.
func (v *Validator) Validate(ctx context.Context, tables []string) (*Result, error) {
	if len(tables) == 0 {
		for _, t := range v.Snapshot.Tables {
			tables = append(tables, t.Name)
		}
	}
	if v.SampleSize <= 0 {
		v.SampleSize = 10
	}

	result := &Result{StartedAt: time.Now().UTC()}
	for _, name := range tables {
		table := v.Snapshot.Table(name)
		if table == nil {
			continue
		}

		tr := TableResult{Name: name, Status: "PASS"}

		tr.RowCountCheck = v.validateRowCount(ctx, name)
		v.notify(name, "row_count", tr.RowCountCheck.Passed)

		tr.IntegrityCheck = v.validateIntegrity(ctx, name)
		if tr.IntegrityCheck != nil {
			v.notify(name, "integrity", tr.IntegrityCheck.Passed)
		}

		tr.RequiredCheck = v.validateRequired(ctx, table)
		if tr.RequiredCheck != nil {
			v.notify(name, "required", tr.RequiredCheck.Passed)
		}

		if !tr.RowCountCheck.Passed ||
			(tr.IntegrityCheck != nil && !tr.IntegrityCheck.Passed) ||
			(tr.RequiredCheck != nil && !tr.RequiredCheck.Passed) {
			tr.Status = "FAIL"
		}
		result.Tables = append(result.Tables, tr)
	}

	result.CompletedAt = time.Now().UTC()
	result.Status = computeOverallStatus(result.Tables)
	return result, nil
}

func (v *Validator) notify(table, checkType string, passed bool) {
	if v.Callback != nil {
		v.Callback(table, checkType, passed)
	}
}

func computeOverallStatus(tables []TableResult) string {
	passed, failed := 0, 0
	for _, t := range tables {
		if t.Status == "PASS" {
			passed++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0:
		return "PASS"
	case passed == 0:
		return "FAIL"
	default:
		return "PARTIAL"
	}
}
