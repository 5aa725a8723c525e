package handlers

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/values"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubHandler is a configurable test double.
type stubHandler struct {
	id       string
	typ      Type
	priority int
	accepts  bool
	handle   func(c Constraint, data metadata.Row) Result
}

func (s *stubHandler) ID() string    { return s.id }
func (s *stubHandler) Type() Type    { return s.typ }
func (s *stubHandler) Priority() int { return s.priority }
func (s *stubHandler) CanHandle(Constraint, metadata.Row) bool {
	return s.accepts
}
func (s *stubHandler) Handle(c Constraint, data metadata.Row) Result {
	if s.handle != nil {
		return s.handle(c, data)
	}
	return Result{Success: true, Data: data}
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry(testLogger())

	if err := r.Register(nil); err == nil {
		t.Fatal("nil handler must be rejected")
	}
	if err := r.Register(&stubHandler{id: "", typ: TypeCheck}); err == nil {
		t.Fatal("empty id must be rejected")
	}
	if err := r.Register(&stubHandler{id: "h1", typ: Type("bogus")}); err == nil {
		t.Fatal("invalid type must be rejected")
	}
	if err := r.Register(&stubHandler{id: "h1", typ: TypeCheck}); err != nil {
		t.Fatalf("valid handler rejected: %v", err)
	}
	if err := r.Register(&stubHandler{id: "h1", typ: TypeUnique}); err == nil {
		t.Fatal("duplicate id must be a configuration error")
	}
}

func TestFindHandlerNoneRegistered(t *testing.T) {
	r := NewRegistry(testLogger())
	if _, _, ok := r.FindHandler(CheckConstraint{Name: "c"}, nil); ok {
		t.Fatal("empty registry must return none")
	}

	// A handler of a different type does not count.
	if err := r.Register(&stubHandler{id: "u", typ: TypeUnique, accepts: true}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, ok := r.FindHandler(CheckConstraint{Name: "c"}, nil); ok {
		t.Fatal("type mismatch must return none")
	}
}

func TestFindHandlerScoring(t *testing.T) {
	r := NewRegistry(testLogger())
	low := &stubHandler{id: "low", typ: TypeCheck, priority: 40, accepts: true}
	high := &stubHandler{id: "high", typ: TypeCheck, priority: 80, accepts: true}
	for _, h := range []ConstraintHandler{low, high} {
		if err := r.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	h, confidence, ok := r.FindHandler(CheckConstraint{Name: "quantity_positive"}, nil)
	if !ok || h.ID() != "high" {
		t.Fatalf("expected high-priority handler, got %v", h)
	}
	if confidence != 0.8 {
		t.Fatalf("confidence = %v", confidence)
	}
}

func TestFindHandlerKeywordBoost(t *testing.T) {
	r := NewRegistry(testLogger())
	generic := &stubHandler{id: "generic_check", typ: TypeCheck, priority: 80, accepts: true}
	slugger := &stubHandler{id: "personal_account_slug", typ: TypeCheck, priority: 40, accepts: true}
	for _, h := range []ConstraintHandler{generic, slugger} {
		if err := r.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	c := CheckConstraint{
		Name:   "accounts_slug_null_if_personal",
		Clause: "(is_personal_account = false) OR (slug IS NULL)",
	}
	// 0.4 + 0.3 boost = 0.7 vs plain 0.8: within the tie window, priority
	// decides, so the generic handler still wins.
	h, _, ok := r.FindHandler(c, nil)
	if !ok || h.ID() != "generic_check" {
		t.Fatalf("got %v", h)
	}

	// Raising the specialist's priority moves it past the tie window.
	r2 := NewRegistry(testLogger())
	slugger2 := &stubHandler{id: "personal_account_slug", typ: TypeCheck, priority: 70, accepts: true}
	if err := r2.Register(generic); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r2.Register(slugger2); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h, confidence, ok := r2.FindHandler(c, nil)
	if !ok || h.ID() != "personal_account_slug" {
		t.Fatalf("got %v", h)
	}
	if confidence < 0.9 {
		t.Fatalf("confidence = %v", confidence)
	}
}

func TestHandleNoHandlerBypasses(t *testing.T) {
	r := NewRegistry(testLogger())
	res := r.Handle(CheckConstraint{Name: "orphan_check"}, metadata.Row{"a": 1})
	if !res.BypassRequired {
		t.Fatal("missing handler must require bypass")
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "orphan_check") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestHandlePanicContained(t *testing.T) {
	r := NewRegistry(testLogger())
	boom := &stubHandler{
		id: "boom", typ: TypeCheck, priority: 50, accepts: true,
		handle: func(Constraint, metadata.Row) Result { panic("kaboom") },
	}
	if err := r.Register(boom); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := r.Handle(CheckConstraint{Name: "c"}, metadata.Row{"a": 1})
	if res.Success {
		t.Fatal("panicked handler must fail")
	}
	if !res.BypassRequired || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestHandleAllFoldsInOrderAndThreadsData(t *testing.T) {
	r := NewRegistry(testLogger())
	var order []Type
	mark := func(t Type) func(Constraint, metadata.Row) Result {
		return func(_ Constraint, data metadata.Row) Result {
			order = append(order, t)
			out := cloneRow(data)
			out[string(t)] = true
			return Result{Success: true, Data: out}
		}
	}
	specs := []struct {
		id  string
		typ Type
	}{
		{"h_nn", TypeNotNull}, {"h_u", TypeUnique}, {"h_fk", TypeForeignKey}, {"h_c", TypeCheck},
	}
	for _, s := range specs {
		h := &stubHandler{id: s.id, typ: s.typ, priority: 50, accepts: true, handle: mark(s.typ)}
		if err := r.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	constraints := []Constraint{
		NotNullConstraint{Table: "t", Column: "a"},
		UniqueConstraint{Name: "u", Table: "t", Columns: []string{"a"}},
		ForeignKeyConstraint{Name: "fk", Table: "t", Column: "b"},
		CheckConstraint{Name: "c", Table: "t"},
	}
	res := r.HandleAll(constraints, metadata.Row{})
	if !res.Success {
		t.Fatalf("fold failed: %+v", res)
	}

	want := []Type{TypeCheck, TypeForeignKey, TypeUnique, TypeNotNull}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	// Every handler's mutation must survive the fold.
	for _, typ := range want {
		if res.Data[string(typ)] != true {
			t.Fatalf("data missing %s mutation: %v", typ, res.Data)
		}
	}
}

func TestHandleAllMergesBypass(t *testing.T) {
	r := NewRegistry(testLogger())
	okHandler := &stubHandler{id: "ok", typ: TypeCheck, priority: 50, accepts: true}
	if err := r.Register(okHandler); err != nil {
		t.Fatalf("Register: %v", err)
	}

	constraints := []Constraint{
		CheckConstraint{Name: "handled"},
		UniqueConstraint{Name: "unhandled", Columns: []string{"x"}},
	}
	res := r.HandleAll(constraints, metadata.Row{})
	if !res.Success {
		t.Fatal("bypass alone must not fail the fold")
	}
	if !res.BypassRequired {
		t.Fatal("any bypassed constraint must mark the merged result")
	}
}

func TestDefaultRegistrySlugFix(t *testing.T) {
	r, err := NewDefaultRegistry(values.NewSeeded(1), testLogger())
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}

	c := CheckConstraint{
		Name:   "accounts_slug_null_if_personal",
		Table:  "accounts",
		Clause: "(is_personal_account = false) OR (slug IS NULL)",
	}
	res := r.Handle(c, metadata.Row{"is_personal_account": true, "slug": "my-team"})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.Data["slug"] != nil {
		t.Fatalf("slug should be cleared, got %v", res.Data["slug"])
	}
	if len(res.Fixes) != 1 || res.Fixes[0].Field != "slug" {
		t.Fatalf("fixes = %+v", res.Fixes)
	}

	// Non-personal accounts keep their slug.
	res = r.Handle(c, metadata.Row{"is_personal_account": false, "slug": "my-team"})
	if res.Data["slug"] != "my-team" || len(res.Fixes) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestDefaultRegistryKeepsCompliantRows(t *testing.T) {
	r, err := NewDefaultRegistry(values.NewSeeded(1), testLogger())
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}

	cases := []struct {
		name   string
		clause string
		row    metadata.Row
	}{
		{"positive amount", "amount > 0", metadata.Row{"amount": 5}},
		{"listed status", "status IN ('active', 'pending')", metadata.Row{"status": "pending"}},
		{"reason on archived row", "(is_archived = false) OR (delete_reason IS NULL)",
			metadata.Row{"is_archived": false, "delete_reason": "spam"}},
		{"non-empty name", "char_length(name) > 0", metadata.Row{"name": "Ada"}},
	}
	for _, tc := range cases {
		res := r.Handle(CheckConstraint{Name: tc.name, Table: "t", Clause: tc.clause}, tc.row)
		if !res.Success {
			t.Errorf("%s: result = %+v", tc.name, res)
			continue
		}
		if len(res.Fixes) != 0 {
			t.Errorf("%s: compliant row must not be fixed: %+v", tc.name, res.Fixes)
		}
		for k, v := range tc.row {
			if res.Data[k] != v {
				t.Errorf("%s: %s = %v, want %v", tc.name, k, res.Data[k], v)
			}
		}
	}
}

func TestDefaultRegistryFixesViolatingRows(t *testing.T) {
	r, err := NewDefaultRegistry(values.NewSeeded(1), testLogger())
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}

	cases := []struct {
		name   string
		clause string
		row    metadata.Row
		field  string
		value  any
	}{
		{"zero amount", "amount > 0", metadata.Row{"amount": 0}, "amount", 1},
		{"unlisted status", "status IN ('active', 'pending')", metadata.Row{"status": "cancelled"}, "status", "active"},
		{"empty name", "char_length(name) > 0", metadata.Row{"name": ""}, "name", "placeholder"},
	}
	for _, tc := range cases {
		res := r.Handle(CheckConstraint{Name: tc.name, Table: "t", Clause: tc.clause}, tc.row)
		if !res.Success {
			t.Errorf("%s: result = %+v", tc.name, res)
			continue
		}
		if len(res.Fixes) != 1 || res.Fixes[0].Field != tc.field {
			t.Errorf("%s: fixes = %+v", tc.name, res.Fixes)
			continue
		}
		if res.Data[tc.field] != tc.value {
			t.Errorf("%s: %s = %v, want %v", tc.name, tc.field, res.Data[tc.field], tc.value)
		}
		if tc.row[tc.field] == res.Data[tc.field] {
			t.Errorf("%s: input row must not be mutated in place", tc.name)
		}
	}
}

func TestDefaultRegistryNotNullFill(t *testing.T) {
	r, err := NewDefaultRegistry(values.NewSeeded(1), testLogger())
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}

	res := r.Handle(NotNullConstraint{Table: "users", Column: "email"}, metadata.Row{})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	s, ok := res.Data["email"].(string)
	if !ok || !strings.Contains(s, "@") {
		t.Fatalf("filled email = %v", res.Data["email"])
	}
}
