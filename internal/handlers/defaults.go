package handlers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/schema"
	"github.com/seedwright/seedwright/internal/values"
)

// NewDefaultRegistry builds a registry with the stock handler set. The
// provider fills missing values for not-null remediation.
func NewDefaultRegistry(provider *values.Provider, log *slog.Logger) (*Registry, error) {
	r := NewRegistry(log)
	stock := []ConstraintHandler{
		&personalAccountSlugHandler{},
		&patternCheckHandler{},
		&foreignKeyHandler{},
		&uniqueHandler{},
		&notNullHandler{provider: provider},
	}
	for _, h := range stock {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// personalAccountSlugHandler resolves the multi-tenant account convention
// where personal accounts must carry a NULL slug.
type personalAccountSlugHandler struct{}

func (h *personalAccountSlugHandler) ID() string    { return "personal_account_slug" }
func (h *personalAccountSlugHandler) Type() Type    { return TypeCheck }
func (h *personalAccountSlugHandler) Priority() int { return 90 }

func (h *personalAccountSlugHandler) CanHandle(c Constraint, _ metadata.Row) bool {
	text := strings.ToLower(c.SearchText())
	return strings.Contains(text, "is_personal_account") && strings.Contains(text, "slug")
}

func (h *personalAccountSlugHandler) Handle(_ Constraint, data metadata.Row) Result {
	out := cloneRow(data)
	res := Result{Success: true, Data: out}
	if personal, _ := out["is_personal_account"].(bool); personal && out["slug"] != nil {
		out["slug"] = nil
		res.Fixes = append(res.Fixes, AppliedFix{
			Field:  "slug",
			Value:  nil,
			Reason: "personal accounts cannot carry a slug",
		})
	}
	return res
}

// patternCheckHandler covers any CHECK clause the discovery patterns can
// derive a remediation for.
type patternCheckHandler struct{}

func (h *patternCheckHandler) ID() string    { return "pattern_check" }
func (h *patternCheckHandler) Type() Type    { return TypeCheck }
func (h *patternCheckHandler) Priority() int { return 50 }

func (h *patternCheckHandler) CanHandle(c Constraint, _ metadata.Row) bool {
	check, ok := c.(CheckConstraint)
	if !ok {
		return false
	}
	pattern, _, _ := rules.MatchCheck(check.Clause)
	return pattern != "raw_check"
}

func (h *patternCheckHandler) Handle(c Constraint, data metadata.Row) Result {
	check := c.(CheckConstraint)
	res := Result{Success: true, Data: data}

	_, _, fix := rules.MatchCheck(check.Clause)
	if fix == nil || fix.Type != "set_field" {
		return res
	}
	// A row that already satisfies the clause keeps its values.
	if ok, evaluable := rules.CheckSatisfied(check.Clause, data); !evaluable || ok {
		return res
	}

	out := cloneRow(data)
	out[fix.Field] = fix.Value
	res.Data = out
	res.Fixes = append(res.Fixes, AppliedFix{Field: fix.Field, Value: fix.Value, Reason: fix.Reason})
	return res
}

// foreignKeyHandler verifies the referencing column carries a value. It
// cannot prove the referenced row exists; that remains the executor's
// exists-condition, so an absent value is a bypass, not a failure.
type foreignKeyHandler struct{}

func (h *foreignKeyHandler) ID() string    { return "foreign_key_presence" }
func (h *foreignKeyHandler) Type() Type    { return TypeForeignKey }
func (h *foreignKeyHandler) Priority() int { return 60 }

func (h *foreignKeyHandler) CanHandle(c Constraint, _ metadata.Row) bool {
	_, ok := c.(ForeignKeyConstraint)
	return ok
}

func (h *foreignKeyHandler) Handle(c Constraint, data metadata.Row) Result {
	fk := c.(ForeignKeyConstraint)
	res := Result{Success: true, Data: data}
	if v, present := data[fk.Column]; !present || v == nil {
		res.BypassRequired = true
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s.%s has no value to reference %s", fk.Table, fk.Column, fk.RefTable))
	}
	return res
}

// uniqueHandler checks that every column of a unique key carries a value.
// Collision detection needs a live query, which stays with the executor, so
// an unset column is a bypass with a warning.
type uniqueHandler struct{}

func (h *uniqueHandler) ID() string    { return "unique_presence" }
func (h *uniqueHandler) Type() Type    { return TypeUnique }
func (h *uniqueHandler) Priority() int { return 60 }

func (h *uniqueHandler) CanHandle(c Constraint, _ metadata.Row) bool {
	u, ok := c.(UniqueConstraint)
	return ok && len(u.Columns) > 0
}

func (h *uniqueHandler) Handle(c Constraint, data metadata.Row) Result {
	u := c.(UniqueConstraint)
	res := Result{Success: true, Data: data}
	for _, col := range u.Columns {
		if v, present := data[col]; !present || v == nil {
			res.BypassRequired = true
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("unique column %s.%s is unset", u.Table, col))
		}
	}
	return res
}

// notNullHandler fills a missing required column with a generated value.
type notNullHandler struct {
	provider *values.Provider
}

func (h *notNullHandler) ID() string    { return "not_null_fill" }
func (h *notNullHandler) Type() Type    { return TypeNotNull }
func (h *notNullHandler) Priority() int { return 70 }

func (h *notNullHandler) CanHandle(c Constraint, _ metadata.Row) bool {
	_, ok := c.(NotNullConstraint)
	return ok && h.provider != nil
}

func (h *notNullHandler) Handle(c Constraint, data metadata.Row) Result {
	nn := c.(NotNullConstraint)
	if v, present := data[nn.Column]; present && v != nil {
		return Result{Success: true, Data: data}
	}

	out := cloneRow(data)
	res := Result{Success: true, Data: out}
	v, err := h.provider.ForColumn(columnShape(nn.Column))
	if err != nil {
		res.Success = false
		res.BypassRequired = true
		res.Errors = append(res.Errors,
			fmt.Sprintf("cannot fill %s.%s: %v", nn.Table, nn.Column, err))
		return res
	}
	out[nn.Column] = v
	res.Fixes = append(res.Fixes, AppliedFix{
		Field:  nn.Column,
		Value:  v,
		Reason: "filled required column",
	})
	return res
}

// columnShape gives the provider enough of a column to generate from. Name
// conventions carry most of the signal; the type defaults to text.
func columnShape(name string) schema.Column {
	return schema.Column{Name: name, DataType: "text"}
}

func cloneRow(data metadata.Row) metadata.Row {
	out := make(metadata.Row, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
