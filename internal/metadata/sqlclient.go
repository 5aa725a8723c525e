package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/seedwright/seedwright/internal/schema"
)

// SQLClient implements Client over a database/sql handle, for Postgres-family
// stores reached through a stdlib driver. The handle is injected so callers
// own its lifecycle (and tests can substitute a mock).
type SQLClient struct {
	db         *sql.DB
	schemaName string
}

// NewSQL creates a metadata client over an existing database/sql handle.
func NewSQL(db *sql.DB, schemaName string) *SQLClient {
	if schemaName == "" {
		schemaName = "public"
	}
	return &SQLClient{db: db, schemaName: schemaName}
}

func (c *SQLClient) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return &ConnectError{Host: "sql", Err: err}
	}
	return nil
}

// Close is a no-op: the injected handle is owned by the caller.
func (c *SQLClient) Close() {}

func (c *SQLClient) ListTables(ctx context.Context) ([]TableRef, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := c.db.QueryContext(ctx, query, c.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []TableRef
	for rows.Next() {
		t := TableRef{Schema: c.schemaName}
		if err := rows.Scan(&t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (c *SQLClient) FetchColumns(ctx context.Context, table string) ([]schema.Column, error) {
	query := `
		SELECT
			column_name,
			data_type,
			is_nullable,
			column_default,
			character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := c.db.QueryContext(ctx, query, c.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, dataType, nullable string
			defaultVal               sql.NullString
			maxLen                   sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &nullable, &defaultVal, &maxLen); err != nil {
			return nil, err
		}

		col := schema.Column{
			Name:     name,
			DataType: dataType,
			Nullable: nullable == "YES",
		}
		if defaultVal.Valid {
			v := defaultVal.String
			col.DefaultValue = &v
			col.IsSequence = strings.HasPrefix(v, "nextval(")
		}
		if maxLen.Valid {
			n := int(maxLen.Int64)
			col.MaxLength = &n
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *SQLClient) FetchConstraints(ctx context.Context, table string) ([]schema.Constraint, error) {
	query := `
		SELECT
			tc.constraint_name,
			tc.constraint_type,
			COALESCE(kcu.column_name, '') AS column_name,
			COALESCE(ccu.table_name, '') AS referenced_table,
			COALESCE(ccu.column_name, '') AS referenced_column,
			COALESCE(cc.check_clause, '') AS check_clause
		FROM information_schema.table_constraints tc
		LEFT JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		  AND tc.table_schema = ccu.table_schema
		  AND tc.constraint_type = 'FOREIGN KEY'
		LEFT JOIN information_schema.check_constraints cc
		  ON tc.constraint_name = cc.constraint_name
		  AND tc.constraint_schema = cc.constraint_schema
		WHERE tc.table_schema = $1
		  AND tc.table_name = $2
		  AND tc.constraint_name NOT LIKE '%_not_null'
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := c.db.QueryContext(ctx, query, c.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[string]*schema.Constraint)
	var order []string

	for rows.Next() {
		var name, ctype, column, refTable, refColumn, checkClause string
		if err := rows.Scan(&name, &ctype, &column, &refTable, &refColumn, &checkClause); err != nil {
			return nil, err
		}

		cons, exists := grouped[name]
		if !exists {
			cons = &schema.Constraint{Name: name, Kind: constraintKind(ctype)}
			switch cons.Kind {
			case schema.KindForeignKey:
				cons.ReferencedTable = refTable
			case schema.KindCheck:
				cons.CheckClause = checkClause
			}
			grouped[name] = cons
			order = append(order, name)
		}
		if column != "" {
			cons.Columns = append(cons.Columns, column)
			if cons.Kind == schema.KindForeignKey {
				cons.ReferencedColumns = append(cons.ReferencedColumns, refColumn)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	constraints := make([]schema.Constraint, 0, len(order))
	for _, name := range order {
		constraints = append(constraints, *grouped[name])
	}
	return constraints, nil
}

// FetchIndexes is not available through information_schema alone; the SQL
// client reports none and leaves index discovery to the native client.
func (c *SQLClient) FetchIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	return nil, nil
}

func (c *SQLClient) FetchTriggers(ctx context.Context, table string) ([]schema.Trigger, error) {
	query := `
		SELECT
			trigger_name,
			action_timing,
			event_manipulation,
			action_statement
		FROM information_schema.triggers
		WHERE trigger_schema = $1
		  AND event_object_table = $2
		ORDER BY trigger_name`

	rows, err := c.db.QueryContext(ctx, query, c.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []schema.Trigger
	for rows.Next() {
		var t schema.Trigger
		var statement string
		if err := rows.Scan(&t.Name, &t.Timing, &t.Event, &statement); err != nil {
			return nil, err
		}
		t.Function = functionFromStatement(statement)
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// functionFromStatement extracts the function name from an action statement
// like "EXECUTE FUNCTION enforce_personal_account_slug()".
func functionFromStatement(statement string) string {
	s := statement
	for _, prefix := range []string{"EXECUTE FUNCTION ", "EXECUTE PROCEDURE "} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = rest
			break
		}
	}
	if i := strings.Index(s, "("); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func (c *SQLClient) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", qualify(c.schemaName, table))
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *SQLClient) SelectRows(ctx context.Context, table string, filters Row, limit int) ([]Row, error) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(qualify(c.schemaName, table))

	var args []any
	if len(filters) > 0 {
		cols := sortedKeys(filters)
		sb.WriteString(" WHERE ")
		for i, col := range cols {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			args = append(args, filters[col])
			fmt.Fprintf(&sb, "%s = $%d", quoteIdent(col), len(args))
		}
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

func (c *SQLClient) InsertRow(ctx context.Context, table string, row Row) (Row, error) {
	cols := sortedKeys(row)
	args := make([]any, len(cols))
	placeholders := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, col := range cols {
		args[i] = row[col]
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		quoted[i] = quoteIdent(col)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		qualify(c.schemaName, table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inserted, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(inserted) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}
	return inserted[0], nil
}

func (c *SQLClient) DeleteRow(ctx context.Context, table, keyColumn string, key any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", qualify(c.schemaName, table), quoteIdent(keyColumn))
	_, err := c.db.ExecContext(ctx, query, key)
	return err
}

// scanRows reads all rows into generic maps, converting []byte to string.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		r := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				r[col] = string(b)
			} else {
				r[col] = values[i]
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

var _ Client = (*SQLClient)(nil)
