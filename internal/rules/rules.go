package rules

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// RuleKind classifies a discovered business rule.
type RuleKind string

const (
	KindValidation    RuleKind = "validation"
	KindDependency    RuleKind = "dependency"
	KindBusinessLogic RuleKind = "business_logic"
)

// RuleAction is what a rule does when its condition is not met.
type RuleAction string

const (
	ActionDeny    RuleAction = "deny"
	ActionDefault RuleAction = "default"
	ActionRequire RuleAction = "require"
)

// AutoFixSuggestion is a mutation that resolves a detected violation before
// an operation is retried.
type AutoFixSuggestion struct {
	Type   string `yaml:"type" json:"type"` // set_field
	Field  string `yaml:"field" json:"field"`
	Value  any    `yaml:"value" json:"value"`
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// BusinessRule is a higher-level invariant inferred from a constraint or
// trigger, with a confidence score and an optional automatic remediation.
type BusinessRule struct {
	ID            string             `yaml:"id" json:"id"`
	Name          string             `yaml:"name" json:"name"`
	Kind          RuleKind           `yaml:"kind" json:"kind"`
	Table         string             `yaml:"table" json:"table"`
	Condition     string             `yaml:"condition" json:"condition"`
	Action        RuleAction         `yaml:"action" json:"action"`
	Confidence    float64            `yaml:"confidence" json:"confidence"`
	SourcePattern string             `yaml:"source_pattern" json:"sourcePattern"`
	DependsOn     []string           `yaml:"depends_on,omitempty" json:"dependsOn,omitempty"`
	AutoFix       *AutoFixSuggestion `yaml:"auto_fix,omitempty" json:"autoFix,omitempty"`
}

// TableDependency is a directed foreign-key edge between two tables.
// Multiple edges between the same pair are allowed (composite keys).
type TableDependency struct {
	FromTable     string `yaml:"from_table" json:"fromTable"`
	FromColumn    string `yaml:"from_column" json:"fromColumn"`
	ToTable       string `yaml:"to_table" json:"toTable"`
	ToColumn      string `yaml:"to_column" json:"toColumn"`
	Required      bool   `yaml:"required" json:"required"`
	CascadeDelete bool   `yaml:"cascade_delete,omitempty" json:"cascadeDelete,omitempty"`
}

// ConstraintMetadata aggregates everything discovered for a set of tables.
// Callers must treat it as immutable once returned; it is cacheable by
// table-name-set key.
type ConstraintMetadata struct {
	BusinessRules []BusinessRule    `yaml:"business_rules" json:"businessRules"`
	Dependencies  []TableDependency `yaml:"dependencies" json:"dependencies"`
	Tables        []string          `yaml:"tables" json:"tables"`
	Confidence    float64           `yaml:"confidence" json:"confidence"`
	DiscoveredAt  time.Time         `yaml:"discovered_at" json:"discoveredAt"`
}

// RulesFor returns the rules owned by a table.
func (m *ConstraintMetadata) RulesFor(table string) []BusinessRule {
	var out []BusinessRule
	for _, r := range m.BusinessRules {
		if r.Table == table {
			out = append(out, r)
		}
	}
	return out
}

// DependenciesFrom returns the outgoing dependency edges of a table.
func (m *ConstraintMetadata) DependenciesFrom(table string) []TableDependency {
	var out []TableDependency
	for _, d := range m.Dependencies {
		if d.FromTable == table {
			out = append(out, d)
		}
	}
	return out
}

// Cache is an explicit, caller-owned metadata cache keyed by the table-name
// set. There is no implicit module-level state: callers create, share, and
// clear their own cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*ConstraintMetadata
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*ConstraintMetadata)}
}

// Get returns the cached metadata for a table set, if present.
func (c *Cache) Get(tables []string) (*ConstraintMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[cacheKey(tables)]
	return m, ok
}

// Put stores metadata under its table-set key.
func (c *Cache) Put(tables []string, m *ConstraintMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(tables)] = m
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*ConstraintMetadata)
}

func cacheKey(tables []string) string {
	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
