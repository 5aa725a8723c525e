package selection

import (
	"strings"

	"github.com/seedwright/seedwright/internal/schema"
)

// Expand resolves table name patterns (e.g. "order_*") against the snapshot
// into concrete table names, preserving pattern order and dropping
// duplicates. A plain name passes through even when the snapshot lacks it,
// so callers get a useful error from the stage that needs the table.
func Expand(snap *schema.Snapshot, patterns []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, p := range patterns {
		if !strings.Contains(p, "*") {
			add(p)
			continue
		}
		for _, t := range snap.Tables {
			if matchGlob(t.Name, p) {
				add(t.Name)
			}
		}
	}
	return out
}

// FilterByPattern returns tables matching a glob-like pattern (e.g., "order_*").
func FilterByPattern(tables []schema.Table, pattern string) []schema.Table {
	var matched []schema.Table
	for _, t := range tables {
		if matchGlob(t.Name, pattern) {
			matched = append(matched, t)
		}
	}
	return matched
}

// TotalRows returns the sum of RowCount for the given tables.
func TotalRows(tables []schema.Table) int64 {
	var total int64
	for _, t := range tables {
		total += t.RowCount
	}
	return total
}

// OrphanedRef represents a foreign key pointing to a table outside the
// seeded set. The executor falls back to existing rows for these, so they
// are a warning, not an error.
type OrphanedRef struct {
	Table           string
	ForeignKey      string
	ReferencedTable string
}

// FindOrphanedReferences returns foreign keys on the selected tables that
// reference tables not in the selection.
func FindOrphanedReferences(snap *schema.Snapshot, selected []string) []OrphanedRef {
	selectedNames := make(map[string]bool, len(selected))
	for _, name := range selected {
		selectedNames[name] = true
	}

	var orphans []OrphanedRef
	for _, name := range selected {
		t := snap.Table(name)
		if t == nil {
			continue
		}
		for _, fk := range t.ForeignKeys() {
			if !selectedNames[fk.ReferencedTable] {
				orphans = append(orphans, OrphanedRef{
					Table:           t.Name,
					ForeignKey:      fk.Name,
					ReferencedTable: fk.ReferencedTable,
				})
			}
		}
	}
	return orphans
}

func matchGlob(name, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(name, pattern[1:])
	}
	return name == pattern
}
