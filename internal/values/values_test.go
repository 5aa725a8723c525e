package values

import (
	"strings"
	"testing"
	"time"

	"github.com/seedwright/seedwright/internal/schema"
)

func TestGenerateKnownKinds(t *testing.T) {
	p := NewSeeded(1)
	for _, kind := range []string{"uuid", "email", "name", "username", "slug", "text", "int", "bool"} {
		v, err := p.Generate(kind)
		if err != nil {
			t.Fatalf("Generate(%s): %v", kind, err)
		}
		if v == nil {
			t.Fatalf("Generate(%s) returned nil", kind)
		}
	}

	v, err := p.Generate("email")
	if err != nil {
		t.Fatalf("Generate(email): %v", err)
	}
	if s, ok := v.(string); !ok || !strings.Contains(s, "@") {
		t.Fatalf("email = %v", v)
	}
}

func TestGenerateUnknownKind(t *testing.T) {
	if _, err := NewSeeded(1).Generate("quantum"); err == nil {
		t.Fatal("unknown kind should error")
	}
}

func TestGenerateNow(t *testing.T) {
	v, err := NewSeeded(1).Generate("now")
	if err != nil {
		t.Fatalf("Generate(now): %v", err)
	}
	ts, ok := v.(time.Time)
	if !ok {
		t.Fatalf("now should be a time, got %T", v)
	}
	if time.Since(ts) > time.Minute {
		t.Fatalf("now is stale: %v", ts)
	}
}

func TestForColumnPrefersEnumValues(t *testing.T) {
	p := NewSeeded(1)
	v, err := p.ForColumn(schema.Column{
		Name: "status", DataType: "USER-DEFINED", EnumValues: []string{"active", "inactive"},
	})
	if err != nil {
		t.Fatalf("ForColumn: %v", err)
	}
	if v != "active" && v != "inactive" {
		t.Fatalf("value %v not drawn from the enum", v)
	}
}

func TestForColumnNameConventions(t *testing.T) {
	p := NewSeeded(1)

	v, err := p.ForColumn(schema.Column{Name: "contact_email", DataType: "text"})
	if err != nil {
		t.Fatalf("ForColumn: %v", err)
	}
	if s, ok := v.(string); !ok || !strings.Contains(s, "@") {
		t.Fatalf("contact_email = %v", v)
	}

	v, err = p.ForColumn(schema.Column{Name: "deleted_at", DataType: "timestamptz"})
	if err != nil {
		t.Fatalf("ForColumn: %v", err)
	}
	if _, ok := v.(time.Time); !ok {
		t.Fatalf("deleted_at should be a time, got %T", v)
	}
}

func TestForColumnRespectsMaxLength(t *testing.T) {
	p := NewSeeded(1)
	limit := 5
	v, err := p.ForColumn(schema.Column{Name: "code", DataType: "varchar", MaxLength: &limit})
	if err != nil {
		t.Fatalf("ForColumn: %v", err)
	}
	if s, ok := v.(string); !ok || len(s) > limit {
		t.Fatalf("value %q exceeds max length %d", v, limit)
	}
}
