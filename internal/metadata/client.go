package metadata

import (
	"context"
	"fmt"

	"github.com/seedwright/seedwright/internal/schema"
)

// Row is a single database row keyed by column name. Column sets are
// intentionally loose: callers decide what a row contains.
type Row map[string]any

// TableRef identifies a base table along with its planner row estimate.
type TableRef struct {
	Name        string
	Schema      string
	RowEstimate int64
}

// Client is the metadata and query surface the core depends on. Any
// SQL-backed store exposing catalog views (or an equivalent introspection
// API) can satisfy it.
type Client interface {
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// ListTables enumerates base tables in the configured schema.
	ListTables(ctx context.Context) ([]TableRef, error)

	// FetchColumns returns the columns of a table in ordinal position order.
	FetchColumns(ctx context.Context, table string) ([]schema.Column, error)

	// FetchConstraints returns all table-level constraints (PK, FK, UNIQUE,
	// CHECK) for a table.
	FetchConstraints(ctx context.Context, table string) ([]schema.Constraint, error)

	// FetchIndexes returns the table's non-primary-key indexes.
	FetchIndexes(ctx context.Context, table string) ([]schema.Index, error)

	// FetchTriggers returns user triggers attached to a table.
	FetchTriggers(ctx context.Context, table string) ([]schema.Trigger, error)

	// CountRows returns the exact row count of a table.
	CountRows(ctx context.Context, table string) (int64, error)

	// SelectRows fetches rows matching equality filters, up to limit.
	// A nil or empty filter set selects unconditionally.
	SelectRows(ctx context.Context, table string, filters Row, limit int) ([]Row, error)

	// InsertRow inserts a row and returns it as written, including any
	// database-generated values.
	InsertRow(ctx context.Context, table string, row Row) (Row, error)

	// DeleteRow deletes a single row by key column equality.
	DeleteRow(ctx context.Context, table, keyColumn string, key any) error

	// Close releases the underlying connections.
	Close()
}

// ConnectError indicates the metadata client itself is unreachable. It is
// fatal: callers abort the whole operation rather than degrade.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("metadata client unreachable at %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
