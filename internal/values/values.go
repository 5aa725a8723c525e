package values

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jaswdr/faker"

	"github.com/seedwright/seedwright/internal/schema"
)

// Provider produces values for "generated.*" field-mapping sources. It is
// safe for concurrent use by workflow steps.
type Provider struct {
	mu sync.Mutex
	f  faker.Faker
}

// New creates a provider with a clock-seeded source.
func New() *Provider {
	return &Provider{f: faker.New()}
}

// NewSeeded creates a deterministic provider for reproducible runs.
func NewSeeded(seed int64) *Provider {
	return &Provider{f: faker.NewWithSeed(rand.NewSource(seed))}
}

// Generate produces a value for a named kind, as referenced by
// "generated.<kind>" sources.
func (p *Provider) Generate(kind string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch kind {
	case "uuid":
		return p.f.UUID().V4(), nil
	case "now", "timestamp":
		return time.Now().UTC(), nil
	case "email":
		return p.f.Internet().Email(), nil
	case "name":
		return p.f.Person().Name(), nil
	case "first_name":
		return p.f.Person().FirstName(), nil
	case "last_name":
		return p.f.Person().LastName(), nil
	case "username":
		return p.f.Internet().User(), nil
	case "password":
		return p.f.Internet().Password(), nil
	case "slug":
		return p.f.Internet().Slug(), nil
	case "url":
		return p.f.Internet().URL(), nil
	case "phone":
		return p.f.Phone().Number(), nil
	case "company":
		return p.f.Company().Name(), nil
	case "text", "sentence":
		return p.f.Lorem().Sentence(8), nil
	case "paragraph":
		return p.f.Lorem().Paragraph(3), nil
	case "int":
		return p.f.IntBetween(1, 1000), nil
	case "bool":
		return p.f.Bool(), nil
	}
	return nil, fmt.Errorf("unknown generated kind %q", kind)
}

// ForColumn derives a plausible value from a column's shape: enum values
// win, then name conventions, then the declared type.
func (p *Provider) ForColumn(col schema.Column) (any, error) {
	if len(col.EnumValues) > 0 {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.f.RandomStringElement(col.EnumValues), nil
	}

	if kind := kindForName(col.Name); kind != "" {
		return p.Generate(kind)
	}

	switch strings.ToLower(col.DataType) {
	case "uuid":
		return p.Generate("uuid")
	case "boolean", "bool":
		return p.Generate("bool")
	case "integer", "bigint", "smallint", "int", "int4", "int8", "numeric", "decimal":
		return p.Generate("int")
	case "timestamp", "timestamptz", "timestamp with time zone", "timestamp without time zone", "date":
		return p.Generate("now")
	default:
		v, err := p.Generate("text")
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok && col.MaxLength != nil && *col.MaxLength > 0 && len(s) > *col.MaxLength {
			return s[:*col.MaxLength], nil
		}
		return v, nil
	}
}

var nameKinds = []struct {
	suffix string
	kind   string
}{
	{"email", "email"},
	{"first_name", "first_name"},
	{"last_name", "last_name"},
	{"username", "username"},
	{"password", "password"},
	{"slug", "slug"},
	{"url", "url"},
	{"phone", "phone"},
	{"company", "company"},
	{"name", "name"},
	{"_at", "now"},
}

func kindForName(column string) string {
	lower := strings.ToLower(column)
	for _, nk := range nameKinds {
		if strings.HasSuffix(lower, nk.suffix) {
			return nk.kind
		}
	}
	return ""
}
