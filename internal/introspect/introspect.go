package introspect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/schema"
)

// IntrospectionError indicates the metadata client itself was unreachable.
// Individual table-level failures are absorbed into warnings instead.
type IntrospectionError struct {
	Err error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspection failed: %v", e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// Result is the outcome of one introspection pass. It is immutable once
// returned; run Introspect again for a fresh snapshot.
type Result struct {
	Snapshot        *schema.Snapshot       `yaml:"snapshot" json:"snapshot"`
	Relationships   []schema.Relationship  `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Patterns        []schema.TablePattern  `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Framework       *schema.FrameworkGuess `yaml:"framework,omitempty" json:"framework,omitempty"`
	Recommendations []string               `yaml:"recommendations,omitempty" json:"recommendations,omitempty"`
	Warnings        []string               `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// probeTables is the conventional table list probed when catalog views are
// inaccessible.
var probeTables = []string{
	"users", "accounts", "profiles", "organizations", "teams", "memberships",
	"posts", "comments", "tags", "orders", "products", "roles", "user_roles",
}

// Introspector turns raw catalog metadata into a typed schema snapshot with
// inferred table roles and a framework fingerprint.
type Introspector struct {
	Client      metadata.Client
	Logger      *slog.Logger
	Parallelism int // per-table fetch fan-out, default 4

	// DatabaseType/Host/Database/SchemaName annotate the snapshot.
	DatabaseType string
	Host         string
	Database     string
	SchemaName   string
}

// Introspect enumerates base tables and fetches columns, constraints,
// indexes, triggers, and row counts for each, with bounded parallel fan-out.
// A single table's failure is logged and skipped; only client-level
// unreachability is fatal.
func (in *Introspector) Introspect(ctx context.Context) (*Result, error) {
	if err := in.Client.Ping(ctx); err != nil {
		return nil, &IntrospectionError{Err: err}
	}

	result := &Result{}

	refs, err := in.Client.ListTables(ctx)
	if err != nil {
		in.Logger.Warn("catalog views inaccessible, probing conventional tables", "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("catalog listing failed: %v", err))
		refs = in.probe(ctx)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })

	tables, warnings := in.fetchTables(ctx, refs)
	result.Warnings = append(result.Warnings, warnings...)

	result.Snapshot = &schema.Snapshot{
		DatabaseType: orDefault(in.DatabaseType, "postgresql"),
		Host:         in.Host,
		Database:     in.Database,
		SchemaName:   orDefault(in.SchemaName, "public"),
		Tables:       tables,
	}

	result.Relationships = deriveRelationships(tables)
	result.Patterns = inferPatterns(tables)
	result.Framework = fingerprintFramework(tables)
	result.Recommendations = recommend(tables, result.Patterns)

	return result, nil
}

// fetchTables runs per-table metadata fetches through a bounded worker pool.
// Results are merged deterministically by the (sorted) input order.
func (in *Introspector) fetchTables(ctx context.Context, refs []metadata.TableRef) ([]schema.Table, []string) {
	parallelism := in.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	type slot struct {
		table *schema.Table
		warn  string
	}
	slots := make([]slot, len(refs))

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i, ref := range refs {
		// Cooperative cancellation: stop dispatching between tables.
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ref metadata.TableRef) {
			defer wg.Done()
			defer func() { <-sem }()
			t, warn := in.fetchTable(ctx, ref)
			slots[i] = slot{table: t, warn: warn}
		}(i, ref)
	}
	wg.Wait()

	var tables []schema.Table
	var warnings []string
	for _, s := range slots {
		if s.warn != "" {
			warnings = append(warnings, s.warn)
		}
		if s.table != nil {
			tables = append(tables, *s.table)
		}
	}
	return tables, warnings
}

// fetchTable gathers all metadata for one table. Column and constraint
// fetches are independent: one failing does not abort the other.
func (in *Introspector) fetchTable(ctx context.Context, ref metadata.TableRef) (*schema.Table, string) {
	t := schema.Table{Name: ref.Name, Schema: ref.Schema, RowCount: ref.RowEstimate}
	var warn string

	cols, err := in.Client.FetchColumns(ctx, ref.Name)
	if err != nil {
		in.Logger.Warn("fetching columns failed", "table", ref.Name, "error", err)
		warn = fmt.Sprintf("table %s: columns unavailable: %v", ref.Name, err)
	}
	t.Columns = cols

	constraints, err := in.Client.FetchConstraints(ctx, ref.Name)
	if err != nil {
		in.Logger.Warn("fetching constraints failed", "table", ref.Name, "error", err)
		if warn != "" {
			// Both fetches failed; nothing useful remains of this table.
			return nil, fmt.Sprintf("table %s: skipped, metadata unavailable", ref.Name)
		}
		warn = fmt.Sprintf("table %s: constraints unavailable: %v", ref.Name, err)
	}
	t.Constraints = constraints

	if indexes, err := in.Client.FetchIndexes(ctx, ref.Name); err == nil {
		t.Indexes = indexes
	} else {
		in.Logger.Debug("fetching indexes failed", "table", ref.Name, "error", err)
	}

	if triggers, err := in.Client.FetchTriggers(ctx, ref.Name); err == nil {
		t.Triggers = triggers
	} else {
		in.Logger.Debug("fetching triggers failed", "table", ref.Name, "error", err)
	}

	if count, err := in.Client.CountRows(ctx, ref.Name); err == nil {
		t.RowCount = count
	}

	markKeyColumns(&t)
	return &t, warn
}

// probe attempts a zero-row select against conventionally-named tables to
// recover a table list when the catalog is inaccessible.
func (in *Introspector) probe(ctx context.Context) []metadata.TableRef {
	var refs []metadata.TableRef
	for _, name := range probeTables {
		if ctx.Err() != nil {
			break
		}
		if _, err := in.Client.SelectRows(ctx, name, nil, 1); err == nil {
			refs = append(refs, metadata.TableRef{Name: name, Schema: in.SchemaName})
		}
	}
	return refs
}

// markKeyColumns flags primary and foreign key columns from the table's
// constraint set.
func markKeyColumns(t *schema.Table) {
	pk := make(map[string]bool)
	fk := make(map[string]bool)
	for _, c := range t.Constraints {
		switch c.Kind {
		case schema.KindPrimaryKey:
			for _, col := range c.Columns {
				pk[col] = true
			}
		case schema.KindForeignKey:
			for _, col := range c.Columns {
				fk[col] = true
			}
		}
	}
	for i := range t.Columns {
		t.Columns[i].IsPrimaryKey = pk[t.Columns[i].Name]
		t.Columns[i].IsForeignKey = fk[t.Columns[i].Name]
	}
}

// deriveRelationships flattens FOREIGN KEY constraints into directed edges.
// Composite keys contribute one edge per column pair.
func deriveRelationships(tables []schema.Table) []schema.Relationship {
	var rels []schema.Relationship
	for _, t := range tables {
		for _, fk := range t.ForeignKeys() {
			for i, col := range fk.Columns {
				refCol := ""
				if i < len(fk.ReferencedColumns) {
					refCol = fk.ReferencedColumns[i]
				}
				required := true
				if c := t.Column(col); c != nil && c.Nullable {
					required = false
				}
				rels = append(rels, schema.Relationship{
					FromTable:  t.Name,
					FromColumn: col,
					ToTable:    fk.ReferencedTable,
					ToColumn:   refCol,
					Required:   required,
				})
			}
		}
	}
	return rels
}

func recommend(tables []schema.Table, patterns []schema.TablePattern) []string {
	var recs []string

	roles := make(map[string]schema.TableRole)
	for _, p := range patterns {
		roles[p.Table] = p.Role
	}

	for _, t := range tables {
		if len(t.PrimaryKeyColumns()) == 0 && len(t.Columns) > 0 {
			recs = append(recs, fmt.Sprintf("table %s has no primary key; rollback for it will be unavailable", t.Name))
		}
		if roles[t.Name] == schema.RoleSystem {
			recs = append(recs, fmt.Sprintf("table %s looks framework-managed; seeding will skip it", t.Name))
		}
	}
	return recs
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
