package metadata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seedwright/seedwright/internal/config"
	"github.com/seedwright/seedwright/internal/schema"
)

// PostgresClient implements Client over a pgx connection pool.
type PostgresClient struct {
	cfg    *config.TargetConfig
	pool   *pgxpool.Pool
	schema string // pg schema, defaults to "public"
}

// NewPostgres creates a PostgreSQL metadata client. Connect must be called
// before any other method.
func NewPostgres(cfg *config.TargetConfig) *PostgresClient {
	s := cfg.Schema
	if s == "" {
		s = "public"
	}
	return &PostgresClient{cfg: cfg, schema: s}
}

// Connect establishes the connection pool and verifies connectivity.
func (p *PostgresClient) Connect(ctx context.Context) error {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s",
		p.cfg.Host, p.cfg.Port, p.cfg.Database, p.cfg.Username, p.cfg.Password,
	)
	if p.cfg.SSL {
		connStr += " sslmode=require"
	} else {
		connStr += " sslmode=disable"
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("parsing connection string: %w", err)
	}
	if p.cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(p.cfg.MaxConnections)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return &ConnectError{Host: p.cfg.Host, Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return &ConnectError{Host: p.cfg.Host, Err: err}
	}

	p.pool = pool
	return nil
}

func (p *PostgresClient) Ping(ctx context.Context) error {
	if p.pool == nil {
		return &ConnectError{Host: p.cfg.Host, Err: fmt.Errorf("not connected; call Connect first")}
	}
	if err := p.pool.Ping(ctx); err != nil {
		return &ConnectError{Host: p.cfg.Host, Err: err}
	}
	return nil
}

func (p *PostgresClient) Close() {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
}

// ListTables enumerates base tables with planner row estimates.
func (p *PostgresClient) ListTables(ctx context.Context) ([]TableRef, error) {
	query := `
		SELECT
			c.relname AS table_name,
			c.reltuples::bigint AS row_estimate
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind = 'r'
		ORDER BY c.relname`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []TableRef
	for rows.Next() {
		t := TableRef{Schema: p.schema}
		if err := rows.Scan(&t.Name, &t.RowEstimate); err != nil {
			return nil, err
		}
		// reltuples is -1 for never-analyzed tables
		if t.RowEstimate < 0 {
			t.RowEstimate = 0
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// FetchColumns returns columns in ordinal position order, with enum values
// resolved for user-defined enum types.
func (p *PostgresClient) FetchColumns(ctx context.Context, table string) ([]schema.Column, error) {
	query := `
		SELECT
			column_name,
			data_type,
			udt_name,
			is_nullable,
			column_default,
			character_maximum_length,
			is_identity
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.Column
	var enumTypes []string
	colEnumType := make(map[string]string)

	for rows.Next() {
		var (
			name, dataType, udtName, nullable, identity string
			defaultVal                                  *string
			maxLen                                      *int
		)
		if err := rows.Scan(&name, &dataType, &udtName, &nullable, &defaultVal, &maxLen, &identity); err != nil {
			return nil, err
		}

		col := schema.Column{
			Name:         name,
			DataType:     dataType,
			Nullable:     nullable == "YES",
			DefaultValue: defaultVal,
			MaxLength:    maxLen,
		}
		if identity == "YES" || (defaultVal != nil && strings.HasPrefix(*defaultVal, "nextval(")) {
			col.IsSequence = true
		}
		if dataType == "USER-DEFINED" {
			colEnumType[name] = udtName
			enumTypes = append(enumTypes, udtName)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(enumTypes) > 0 {
		labels, err := p.enumLabels(ctx, enumTypes)
		if err != nil {
			return nil, err
		}
		for i := range cols {
			if typ, ok := colEnumType[cols[i].Name]; ok {
				cols[i].EnumValues = labels[typ]
			}
		}
	}

	return cols, nil
}

func (p *PostgresClient) enumLabels(ctx context.Context, types []string) (map[string][]string, error) {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_enum e
		JOIN pg_type t ON t.oid = e.enumtypid
		WHERE t.typname = ANY($1)
		ORDER BY t.typname, e.enumsortorder`

	rows, err := p.pool.Query(ctx, query, types)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make(map[string][]string)
	for rows.Next() {
		var typ, label string
		if err := rows.Scan(&typ, &label); err != nil {
			return nil, err
		}
		labels[typ] = append(labels[typ], label)
	}
	return labels, rows.Err()
}

// FetchConstraints returns PK, FK, UNIQUE, and CHECK constraints. Composite
// key constraints are grouped into a single entry with ordered column lists.
func (p *PostgresClient) FetchConstraints(ctx context.Context, table string) ([]schema.Constraint, error) {
	keyed, err := p.keyConstraints(ctx, table)
	if err != nil {
		return nil, err
	}
	checks, err := p.checkConstraints(ctx, table)
	if err != nil {
		return nil, err
	}
	return append(keyed, checks...), nil
}

func (p *PostgresClient) keyConstraints(ctx context.Context, table string) ([]schema.Constraint, error) {
	query := `
		SELECT
			tc.constraint_name,
			tc.constraint_type,
			kcu.column_name,
			COALESCE(ccu.table_name, '') AS referenced_table,
			COALESCE(ccu.column_name, '') AS referenced_column,
			COALESCE(rc.delete_rule, '') AS delete_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		LEFT JOIN information_schema.referential_constraints rc
		  ON tc.constraint_name = rc.constraint_name
		  AND tc.table_schema = rc.constraint_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		  AND tc.table_schema = ccu.table_schema
		  AND tc.constraint_type = 'FOREIGN KEY'
		WHERE tc.table_schema = $1
		  AND tc.table_name = $2
		  AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY', 'UNIQUE')
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[string]*schema.Constraint)
	var order []string

	for rows.Next() {
		var name, ctype, column, refTable, refColumn, deleteRule string
		if err := rows.Scan(&name, &ctype, &column, &refTable, &refColumn, &deleteRule); err != nil {
			return nil, err
		}

		c, exists := grouped[name]
		if !exists {
			c = &schema.Constraint{Name: name, Kind: constraintKind(ctype)}
			if c.Kind == schema.KindForeignKey {
				c.ReferencedTable = refTable
				c.OnDelete = deleteRule
			}
			grouped[name] = c
			order = append(order, name)
		}
		c.Columns = append(c.Columns, column)
		if c.Kind == schema.KindForeignKey {
			c.ReferencedColumns = append(c.ReferencedColumns, refColumn)
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

func (p *PostgresClient) checkConstraints(ctx context.Context, table string) ([]schema.Constraint, error) {
	query := `
		SELECT
			tc.constraint_name,
			cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
		  ON tc.constraint_name = cc.constraint_name
		  AND tc.constraint_schema = cc.constraint_schema
		WHERE tc.constraint_type = 'CHECK'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		  AND tc.constraint_name NOT LIKE '%_not_null'
		ORDER BY tc.constraint_name`

	rows, err := p.pool.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []schema.Constraint
	for rows.Next() {
		var name, clause string
		if err := rows.Scan(&name, &clause); err != nil {
			return nil, err
		}
		constraints = append(constraints, schema.Constraint{
			Name:        name,
			Kind:        schema.KindCheck,
			CheckClause: clause,
		})
	}
	return constraints, rows.Err()
}

// FetchIndexes returns non-primary-key indexes.
func (p *PostgresClient) FetchIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	query := `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			am.amname AS index_type,
			a.attname AS column_name
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND NOT ix.indisprimary
		ORDER BY i.relname, array_position(ix.indkey, a.attnum)`

	rows, err := p.pool.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[string]*schema.Index)
	var order []string

	for rows.Next() {
		var name, indexType, column string
		var unique bool
		if err := rows.Scan(&name, &unique, &indexType, &column); err != nil {
			return nil, err
		}
		idx, exists := grouped[name]
		if !exists {
			idx = &schema.Index{Name: name, Unique: unique, Type: indexType}
			grouped[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]schema.Index, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *grouped[name])
	}
	return indexes, nil
}

// FetchTriggers returns user triggers with their function names. Internal
// constraint triggers are excluded.
func (p *PostgresClient) FetchTriggers(ctx context.Context, table string) ([]schema.Trigger, error) {
	query := `
		SELECT
			tg.tgname,
			CASE WHEN (tg.tgtype & 2) > 0 THEN 'BEFORE' ELSE 'AFTER' END AS timing,
			CASE
				WHEN (tg.tgtype & 4) > 0 THEN 'INSERT'
				WHEN (tg.tgtype & 8) > 0 THEN 'DELETE'
				ELSE 'UPDATE'
			END AS event,
			p.proname AS function_name
		FROM pg_trigger tg
		JOIN pg_class c ON c.oid = tg.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_proc p ON p.oid = tg.tgfoid
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND NOT tg.tgisinternal
		ORDER BY tg.tgname`

	rows, err := p.pool.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []schema.Trigger
	for rows.Next() {
		var t schema.Trigger
		if err := rows.Scan(&t.Name, &t.Timing, &t.Event, &t.Function); err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// CountRows returns the exact row count of a table.
func (p *PostgresClient) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", qualify(p.schema, table))
	if err := p.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SelectRows fetches rows matching equality filters, up to limit.
func (p *PostgresClient) SelectRows(ctx context.Context, table string, filters Row, limit int) ([]Row, error) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(qualify(p.schema, table))

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

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRows(rows)
}

// InsertRow inserts a row and returns it as written, including generated
// defaults, via RETURNING *.
func (p *PostgresClient) InsertRow(ctx context.Context, table string, row Row) (Row, error) {
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
		qualify(p.schema, table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inserted, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	if len(inserted) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}
	return inserted[0], nil
}

// DeleteRow deletes a single row by key column equality.
func (p *PostgresClient) DeleteRow(ctx context.Context, table, keyColumn string, key any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", qualify(p.schema, table), quoteIdent(keyColumn))
	_, err := p.pool.Exec(ctx, query, key)
	return err
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	fields := rows.FieldDescriptions()
	var result []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		r := make(Row, len(fields))
		for i, f := range fields {
			r[f.Name] = values[i]
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func constraintKind(ctype string) schema.ConstraintKind {
	switch ctype {
	case "PRIMARY KEY":
		return schema.KindPrimaryKey
	case "FOREIGN KEY":
		return schema.KindForeignKey
	case "UNIQUE":
		return schema.KindUnique
	default:
		return schema.KindCheck
	}
}

func qualify(schemaName, table string) string {
	return quoteIdent(schemaName) + "." + quoteIdent(table)
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compile-time interface check
var _ Client = (*PostgresClient)(nil)
