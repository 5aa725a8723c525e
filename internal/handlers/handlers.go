package handlers

import (
	"strings"

	"github.com/seedwright/seedwright/internal/metadata"
)

// Type classifies the constraint a handler deals with.
type Type string

const (
	TypeCheck      Type = "check"
	TypeForeignKey Type = "foreign_key"
	TypeUnique     Type = "unique"
	TypeNotNull    Type = "not_null"
)

// FoldOrder is the sequence in which a table's constraint set is handled.
// Each handler sees the data as mutated by the previous one.
var FoldOrder = []Type{TypeCheck, TypeForeignKey, TypeUnique, TypeNotNull}

func validType(t Type) bool {
	for _, v := range FoldOrder {
		if t == v {
			return true
		}
	}
	return false
}

// Constraint is the closed union of handleable constraint shapes. Exactly
// the four concrete types below implement it.
type Constraint interface {
	ConstraintType() Type
	ConstraintName() string
	// SearchText is the text used for keyword matching during handler
	// selection: the name plus any expression the constraint carries.
	SearchText() string
}

// CheckConstraint is a CHECK clause on a table.
type CheckConstraint struct {
	Name   string
	Table  string
	Clause string
}

func (c CheckConstraint) ConstraintType() Type   { return TypeCheck }
func (c CheckConstraint) ConstraintName() string { return c.Name }
func (c CheckConstraint) SearchText() string     { return c.Name + " " + c.Clause }

// ForeignKeyConstraint is one column-level reference to another table.
type ForeignKeyConstraint struct {
	Name      string
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

func (c ForeignKeyConstraint) ConstraintType() Type   { return TypeForeignKey }
func (c ForeignKeyConstraint) ConstraintName() string { return c.Name }
func (c ForeignKeyConstraint) SearchText() string {
	return c.Name + " " + c.Column + " " + c.RefTable
}

// UniqueConstraint covers one or more columns.
type UniqueConstraint struct {
	Name    string
	Table   string
	Columns []string
}

func (c UniqueConstraint) ConstraintType() Type   { return TypeUnique }
func (c UniqueConstraint) ConstraintName() string { return c.Name }
func (c UniqueConstraint) SearchText() string {
	return c.Name + " " + strings.Join(c.Columns, " ")
}

// NotNullConstraint requires a single column to carry a value.
type NotNullConstraint struct {
	Table  string
	Column string
}

func (c NotNullConstraint) ConstraintType() Type   { return TypeNotNull }
func (c NotNullConstraint) ConstraintName() string { return c.Table + "." + c.Column + " not null" }
func (c NotNullConstraint) SearchText() string     { return c.Column }

// AppliedFix records one mutation a handler made to the data.
type AppliedFix struct {
	Field  string `json:"field"`
	Value  any    `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// Result is the outcome of handling one constraint, or the merge of a whole
// fold. BypassRequired signals that the caller must not assume the
// constraint is satisfied.
type Result struct {
	Success        bool         `json:"success"`
	Data           metadata.Row `json:"data,omitempty"`
	Fixes          []AppliedFix `json:"fixes,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
	Errors         []string     `json:"errors,omitempty"`
	BypassRequired bool         `json:"bypass_required,omitempty"`
}

// merge folds another result in: success ANDs, bypass ORs, and the
// diagnostics accumulate. Data adopts the later result's view when present.
func (r *Result) merge(other Result) {
	r.Success = r.Success && other.Success
	r.BypassRequired = r.BypassRequired || other.BypassRequired
	r.Fixes = append(r.Fixes, other.Fixes...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Errors = append(r.Errors, other.Errors...)
	if other.Data != nil {
		r.Data = other.Data
	}
}

// ConstraintHandler resolves one family of constraints. Implementations are
// registered explicitly at startup; there is no reflective discovery.
type ConstraintHandler interface {
	ID() string
	Type() Type
	Priority() int
	CanHandle(c Constraint, data metadata.Row) bool
	Handle(c Constraint, data metadata.Row) Result
}
