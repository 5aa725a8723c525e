package metadata

import (
	"context"
	"fmt"
	"sync"

	"github.com/seedwright/seedwright/internal/schema"
)

// MockClient is a test double for the Client interface. Tables hold the
// catalog metadata; Rows hold per-table data for queries and inserts.
type MockClient struct {
	mu sync.Mutex

	Tables []schema.Table
	Rows   map[string][]Row

	PingErr        error
	ListErr        error
	ColumnErrs     map[string]error
	ConstraintErrs map[string]error
	SelectErr      error
	InsertErrs     map[string]error
	DeleteErr      error

	// NextID is the id assigned to the next inserted row lacking one.
	NextID int64

	// Track calls
	Inserted []InsertedRow
	Deleted  []DeletedRow
}

// InsertedRow records one InsertRow call.
type InsertedRow struct {
	Table string
	Row   Row
}

// DeletedRow records one DeleteRow call.
type DeletedRow struct {
	Table     string
	KeyColumn string
	Key       any
}

func (m *MockClient) Ping(_ context.Context) error { return m.PingErr }

func (m *MockClient) Close() {}

func (m *MockClient) ListTables(_ context.Context) ([]TableRef, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	refs := make([]TableRef, len(m.Tables))
	for i, t := range m.Tables {
		refs[i] = TableRef{Name: t.Name, Schema: t.Schema, RowEstimate: t.RowCount}
	}
	return refs, nil
}

func (m *MockClient) FetchColumns(_ context.Context, table string) ([]schema.Column, error) {
	if err := m.ColumnErrs[table]; err != nil {
		return nil, err
	}
	t := m.table(table)
	if t == nil {
		return nil, fmt.Errorf("no such table %q", table)
	}
	return t.Columns, nil
}

func (m *MockClient) FetchConstraints(_ context.Context, table string) ([]schema.Constraint, error) {
	if err := m.ConstraintErrs[table]; err != nil {
		return nil, err
	}
	t := m.table(table)
	if t == nil {
		return nil, fmt.Errorf("no such table %q", table)
	}
	return t.Constraints, nil
}

func (m *MockClient) FetchIndexes(_ context.Context, table string) ([]schema.Index, error) {
	if t := m.table(table); t != nil {
		return t.Indexes, nil
	}
	return nil, nil
}

func (m *MockClient) FetchTriggers(_ context.Context, table string) ([]schema.Trigger, error) {
	if t := m.table(table); t != nil {
		return t.Triggers, nil
	}
	return nil, nil
}

func (m *MockClient) CountRows(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.Rows[table])), nil
}

func (m *MockClient) SelectRows(_ context.Context, table string, filters Row, limit int) ([]Row, error) {
	if m.SelectErr != nil {
		return nil, m.SelectErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.Rows[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}

	var result []Row
	for _, r := range rows {
		if matches(r, filters) {
			result = append(result, r)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockClient) InsertRow(_ context.Context, table string, row Row) (Row, error) {
	if err := m.InsertErrs[table]; err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := make(Row, len(row)+1)
	for k, v := range row {
		inserted[k] = v
	}
	if _, ok := inserted["id"]; !ok {
		m.NextID++
		inserted["id"] = m.NextID
	}

	if m.Rows == nil {
		m.Rows = make(map[string][]Row)
	}
	m.Rows[table] = append(m.Rows[table], inserted)
	m.Inserted = append(m.Inserted, InsertedRow{Table: table, Row: inserted})
	return inserted, nil
}

func (m *MockClient) DeleteRow(_ context.Context, table, keyColumn string, key any) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.Rows[table]
	for i, r := range rows {
		if r[keyColumn] == key {
			m.Rows[table] = append(rows[:i], rows[i+1:]...)
			break
		}
	}
	m.Deleted = append(m.Deleted, DeletedRow{Table: table, KeyColumn: keyColumn, Key: key})
	return nil
}

func (m *MockClient) table(name string) *schema.Table {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i]
		}
	}
	return nil
}

func matches(r Row, filters Row) bool {
	for k, want := range filters {
		if fmt.Sprintf("%v", r[k]) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

var _ Client = (*MockClient)(nil)
