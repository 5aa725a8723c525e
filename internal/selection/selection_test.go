package selection

import (
	"reflect"
	"testing"

	"github.com/seedwright/seedwright/internal/schema"
)

func testSnapshot() *schema.Snapshot {
	return &schema.Snapshot{Tables: []schema.Table{
		{Name: "orders", RowCount: 100},
		{Name: "order_items", RowCount: 500,
			Constraints: []schema.Constraint{
				{Name: "order_items_order_id_fkey", Kind: schema.KindForeignKey,
					Columns: []string{"order_id"}, ReferencedTable: "orders"},
				{Name: "order_items_product_id_fkey", Kind: schema.KindForeignKey,
					Columns: []string{"product_id"}, ReferencedTable: "products"},
			}},
		{Name: "products", RowCount: 40},
		{Name: "users", RowCount: 10},
	}}
}

func TestExpand(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"prefix glob", []string{"order*"}, []string{"orders", "order_items"}},
		{"plain names pass through", []string{"users", "missing"}, []string{"users", "missing"}},
		{"mixed without duplicates", []string{"orders", "order*"}, []string{"orders", "order_items"}},
		{"star matches all", []string{"*"}, []string{"orders", "order_items", "products", "users"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(snap, tt.patterns)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expand(%v) = %v, want %v", tt.patterns, got, tt.want)
			}
		})
	}
}

func TestFilterByPattern(t *testing.T) {
	snap := testSnapshot()
	got := FilterByPattern(snap.Tables, "*_items")
	if len(got) != 1 || got[0].Name != "order_items" {
		t.Errorf("FilterByPattern = %v, want order_items", got)
	}
}

func TestTotalRows(t *testing.T) {
	snap := testSnapshot()
	if total := TotalRows(snap.Tables); total != 650 {
		t.Errorf("TotalRows = %d, want 650", total)
	}
}

func TestFindOrphanedReferences(t *testing.T) {
	snap := testSnapshot()

	orphans := FindOrphanedReferences(snap, []string{"orders", "order_items"})
	if len(orphans) != 1 {
		t.Fatalf("orphans = %v, want exactly one", orphans)
	}
	if orphans[0].Table != "order_items" || orphans[0].ReferencedTable != "products" {
		t.Errorf("orphan = %+v, want order_items -> products", orphans[0])
	}

	// A selection covering every referenced table has no orphans.
	if got := FindOrphanedReferences(snap, []string{"orders", "order_items", "products"}); len(got) != 0 {
		t.Errorf("expected no orphans, got %v", got)
	}
}
