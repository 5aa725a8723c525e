package schema

// ConstraintKind identifies the shape of a database constraint.
type ConstraintKind string

const (
	KindPrimaryKey ConstraintKind = "primary_key"
	KindForeignKey ConstraintKind = "foreign_key"
	KindUnique     ConstraintKind = "unique"
	KindCheck      ConstraintKind = "check"
	KindNotNull    ConstraintKind = "not_null"
)

// Snapshot represents the complete introspected schema of a target database.
// A snapshot is immutable once returned; a new introspection pass produces a
// new snapshot rather than mutating an old one.
type Snapshot struct {
	DatabaseType string  `yaml:"database_type" json:"databaseType"`
	Host         string  `yaml:"host" json:"host"`
	Database     string  `yaml:"database" json:"database"`
	SchemaName   string  `yaml:"schema_name,omitempty" json:"schemaName,omitempty"`
	Tables       []Table `yaml:"tables" json:"tables"`
}

// Table represents a database table.
type Table struct {
	Name        string       `yaml:"name" json:"name"`
	Schema      string       `yaml:"schema,omitempty" json:"schema,omitempty"`
	Columns     []Column     `yaml:"columns" json:"columns"`
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Indexes     []Index      `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	Triggers    []Trigger    `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	RowCount    int64        `yaml:"row_count" json:"rowCount"`
}

// Column represents a table column.
type Column struct {
	Name         string   `yaml:"name" json:"name"`
	DataType     string   `yaml:"data_type" json:"dataType"`
	Nullable     bool     `yaml:"nullable" json:"nullable"`
	DefaultValue *string  `yaml:"default_value,omitempty" json:"defaultValue,omitempty"`
	IsPrimaryKey bool     `yaml:"is_primary_key,omitempty" json:"isPrimaryKey,omitempty"`
	IsForeignKey bool     `yaml:"is_foreign_key,omitempty" json:"isForeignKey,omitempty"`
	MaxLength    *int     `yaml:"max_length,omitempty" json:"maxLength,omitempty"`
	EnumValues   []string `yaml:"enum_values,omitempty" json:"enumValues,omitempty"`
	IsSequence   bool     `yaml:"is_sequence,omitempty" json:"isSequence,omitempty"`
}

// Constraint represents a database-enforced rule on a table.
type Constraint struct {
	Name              string         `yaml:"name" json:"name"`
	Kind              ConstraintKind `yaml:"kind" json:"kind"`
	Columns           []string       `yaml:"columns,omitempty" json:"columns,omitempty"`
	ReferencedTable   string         `yaml:"referenced_table,omitempty" json:"referencedTable,omitempty"`
	ReferencedColumns []string       `yaml:"referenced_columns,omitempty" json:"referencedColumns,omitempty"`
	CheckClause       string         `yaml:"check_clause,omitempty" json:"checkClause,omitempty"`
	OnDelete          string         `yaml:"on_delete,omitempty" json:"onDelete,omitempty"`
}

// Index represents a database index.
type Index struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns" json:"columns"`
	Unique  bool     `yaml:"unique" json:"unique"`
	Type    string   `yaml:"type,omitempty" json:"type,omitempty"` // btree, hash, gin, gist, etc.
}

// Trigger represents a trigger attached to a table. The trigger function body
// is not inspected; the function name is recorded as provenance for rule
// discovery.
type Trigger struct {
	Name     string `yaml:"name" json:"name"`
	Timing   string `yaml:"timing,omitempty" json:"timing,omitempty"` // BEFORE or AFTER
	Event    string `yaml:"event,omitempty" json:"event,omitempty"`   // INSERT, UPDATE, DELETE
	Function string `yaml:"function" json:"function"`
}

// Relationship is a foreign key edge between two tables, derived from a
// FOREIGN KEY constraint during introspection.
type Relationship struct {
	FromTable  string `yaml:"from_table" json:"fromTable"`
	FromColumn string `yaml:"from_column" json:"fromColumn"`
	ToTable    string `yaml:"to_table" json:"toTable"`
	ToColumn   string `yaml:"to_column" json:"toColumn"`
	Required   bool   `yaml:"required" json:"required"`
}

// ForeignKeys returns the table's FOREIGN KEY constraints.
func (t *Table) ForeignKeys() []Constraint {
	var fks []Constraint
	for _, c := range t.Constraints {
		if c.Kind == KindForeignKey {
			fks = append(fks, c)
		}
	}
	return fks
}

// PrimaryKeyColumns returns the names of the primary key columns, if any.
func (t *Table) PrimaryKeyColumns() []string {
	for _, c := range t.Constraints {
		if c.Kind == KindPrimaryKey {
			return c.Columns
		}
	}
	var cols []string
	for _, col := range t.Columns {
		if col.IsPrimaryKey {
			cols = append(cols, col.Name)
		}
	}
	return cols
}

// Column returns the named column, or nil if the table has no such column.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// NonKeyColumns returns columns that participate in neither the primary key
// nor any foreign key.
func (t *Table) NonKeyColumns() []Column {
	keyCols := make(map[string]bool)
	for _, c := range t.Constraints {
		if c.Kind == KindPrimaryKey || c.Kind == KindForeignKey {
			for _, col := range c.Columns {
				keyCols[col] = true
			}
		}
	}
	var cols []Column
	for _, col := range t.Columns {
		if !keyCols[col.Name] {
			cols = append(cols, col)
		}
	}
	return cols
}

// Table returns the named table from the snapshot, or nil.
func (s *Snapshot) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableNames returns the names of all tables in the snapshot.
func (s *Snapshot) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
