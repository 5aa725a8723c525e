package depgraph

import (
	"reflect"
	"testing"

	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/schema"
)

func dep(from, fromCol, to string) rules.TableDependency {
	return rules.TableDependency{
		FromTable: from, FromColumn: fromCol, ToTable: to, ToColumn: "id", Required: true,
	}
}

func TestBuildAcyclicOrder(t *testing.T) {
	meta := &rules.ConstraintMetadata{
		Tables: []string{"accounts", "memberships", "users"},
		Dependencies: []rules.TableDependency{
			dep("memberships", "account_id", "accounts"),
			dep("memberships", "user_id", "users"),
			dep("accounts", "primary_owner_user_id", "users"),
		},
	}

	g := Build(meta, nil)
	if len(g.Cycles) != 0 {
		t.Fatalf("unexpected cycles: %v", g.Cycles)
	}
	if len(g.CreationOrder) != 3 {
		t.Fatalf("creation order = %v", g.CreationOrder)
	}
	pos := make(map[string]int)
	for i, name := range g.CreationOrder {
		pos[name] = i
	}
	for _, e := range g.Edges {
		if pos[e.To] > pos[e.From] {
			t.Fatalf("%s must be created before %s, order = %v", e.To, e.From, g.CreationOrder)
		}
	}
}

func TestBuildReportsSelfCycle(t *testing.T) {
	meta := &rules.ConstraintMetadata{
		Tables: []string{"categories"},
		Dependencies: []rules.TableDependency{
			dep("categories", "parent_id", "categories"),
		},
	}

	g := Build(meta, nil)
	if len(g.Cycles) != 1 || len(g.Cycles[0]) != 1 || g.Cycles[0][0] != "categories" {
		t.Fatalf("cycles = %v", g.Cycles)
	}
	if !g.Node("categories").InCycle {
		t.Fatal("self-referencing table should be flagged in-cycle")
	}
	if len(g.CreationOrder) != 1 {
		t.Fatalf("creation order must still contain the table: %v", g.CreationOrder)
	}
}

func TestBuildReportsTwoCycle(t *testing.T) {
	meta := &rules.ConstraintMetadata{
		Tables: []string{"a", "b", "c"},
		Dependencies: []rules.TableDependency{
			dep("a", "b_id", "b"),
			dep("b", "a_id", "a"),
			dep("c", "a_id", "a"),
		},
	}

	g := Build(meta, nil)
	if len(g.Cycles) != 1 || len(g.Cycles[0]) != 2 {
		t.Fatalf("cycles = %v", g.Cycles)
	}
	for _, name := range []string{"a", "b"} {
		if !g.Node(name).InCycle {
			t.Fatalf("%s should be flagged in-cycle", name)
		}
	}
	if g.Node("c").InCycle {
		t.Fatal("c is not part of the cycle")
	}

	seen := make(map[string]int)
	for _, name := range g.CreationOrder {
		seen[name]++
	}
	for _, name := range []string{"a", "b", "c"} {
		if seen[name] != 1 {
			t.Fatalf("%s should appear exactly once in %v", name, g.CreationOrder)
		}
	}
}

func TestBuildFlagsJunctionTable(t *testing.T) {
	snap := &schema.Snapshot{
		Tables: []schema.Table{
			{
				Name: "user_roles",
				Columns: []schema.Column{
					{Name: "user_id"},
					{Name: "role_id"},
					{Name: "created_at", Nullable: true},
				},
				Constraints: []schema.Constraint{
					{Name: "user_roles_user_id_fkey", Kind: schema.KindForeignKey,
						Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}},
					{Name: "user_roles_role_id_fkey", Kind: schema.KindForeignKey,
						Columns: []string{"role_id"}, ReferencedTable: "roles", ReferencedColumns: []string{"id"}},
				},
			},
			{
				Name: "orders",
				Columns: []schema.Column{
					{Name: "id"}, {Name: "user_id"}, {Name: "product_id"},
					{Name: "quantity"}, {Name: "total"}, {Name: "shipped_at", Nullable: true},
				},
				Constraints: []schema.Constraint{
					{Name: "orders_pkey", Kind: schema.KindPrimaryKey, Columns: []string{"id"}},
					{Name: "orders_user_id_fkey", Kind: schema.KindForeignKey,
						Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}},
					{Name: "orders_product_id_fkey", Kind: schema.KindForeignKey,
						Columns: []string{"product_id"}, ReferencedTable: "products", ReferencedColumns: []string{"id"}},
				},
			},
		},
	}
	meta := &rules.ConstraintMetadata{
		Tables: []string{"user_roles", "orders"},
		Dependencies: []rules.TableDependency{
			dep("user_roles", "user_id", "users"),
			dep("user_roles", "role_id", "roles"),
			dep("orders", "user_id", "users"),
			dep("orders", "product_id", "products"),
		},
	}

	g := Build(meta, snap)
	if !g.Node("user_roles").IsJunctionTable {
		t.Fatal("user_roles should be flagged as a junction table")
	}
	if g.Node("orders").IsJunctionTable {
		t.Fatal("orders carries too many non-key columns to be a junction table")
	}
	if got := g.JunctionTables(); len(got) != 1 || got[0] != "user_roles" {
		t.Fatalf("JunctionTables = %v", got)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	meta := &rules.ConstraintMetadata{
		Tables: []string{"posts", "comments", "users", "tags"},
		Dependencies: []rules.TableDependency{
			dep("comments", "post_id", "posts"),
			dep("comments", "user_id", "users"),
			dep("posts", "user_id", "users"),
		},
	}

	first := Build(meta, nil)
	for i := 0; i < 5; i++ {
		again := Build(meta, nil)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("build output changed between runs:\n%+v\n%+v", first, again)
		}
	}
}
