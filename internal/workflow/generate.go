package workflow

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/seedwright/seedwright/internal/depgraph"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/schema"
)

// UserStrategy controls how many conventional fields a step maps.
type UserStrategy string

const (
	StrategyComprehensive UserStrategy = "comprehensive"
	StrategyMinimal       UserStrategy = "minimal"
	StrategyAdaptive      UserStrategy = "adaptive"
)

// Mode is the constraint-handling posture of the generated workflow.
type Mode string

const (
	ModeStrict     Mode = "strict"
	ModePermissive Mode = "permissive"
	ModeAutoFix    Mode = "auto_fix"
)

// Options tunes workflow generation.
type Options struct {
	UserStrategy      UserStrategy
	Mode              Mode
	IncludeOptional   bool
	IncludeValidation bool
	OnFailure         FailurePolicy
	Rollback          bool
}

// Tables assumed to pre-exist and never seeded.
var systemTables = map[string]bool{
	"schema_migrations":    true,
	"ar_internal_metadata": true,
	"migrations":           true,
	"pg_stat_statements":   true,
}

// Core identity tables are required even when nothing depends on them.
var alwaysRequired = map[string]bool{
	"users":    true,
	"accounts": true,
}

// Generator turns a dependency graph plus discovered rules into an ordered,
// executable workflow.
type Generator struct {
	Graph    *depgraph.DependencyGraph
	Metadata *rules.ConstraintMetadata
	Snapshot *schema.Snapshot
	Patterns []schema.TablePattern
	Logger   *slog.Logger
}

// Generate emits one insert step per requested table, ordered by the
// graph's creation order. System and auth-schema tables are skipped; cycles
// do not abort generation but are surfaced as warnings.
func (g *Generator) Generate(tableNames []string, opts Options) (*Workflow, *GenerationMetadata, error) {
	if g.Graph == nil || g.Metadata == nil {
		return nil, nil, fmt.Errorf("generator needs a dependency graph and constraint metadata")
	}
	log := g.Logger
	if log == nil {
		log = slog.Default()
	}
	applyOptionDefaults(&opts)

	requested := make(map[string]bool, len(tableNames))
	for _, t := range tableNames {
		requested[t] = true
	}

	meta := &GenerationMetadata{
		GeneratedAt: time.Now().UTC(),
		RuleCount:   len(g.Metadata.BusinessRules),
		Confidence:  g.Metadata.Confidence,
	}
	for _, cycle := range g.Graph.Cycles {
		meta.Warnings = append(meta.Warnings,
			fmt.Sprintf("dependency cycle %s: creation order is best effort", strings.Join(cycle, " -> ")))
	}

	wf := &Workflow{
		Name:      "seed_" + strings.Join(sortedRequested(tableNames), "_"),
		OnFailure: opts.OnFailure,
		Rollback:  opts.Rollback,
		Validate:  opts.IncludeValidation,
		CreatedAt: meta.GeneratedAt,
	}

	dependents := g.dependentCounts()
	for _, table := range g.Graph.CreationOrder {
		if !requested[table] {
			continue
		}
		if g.isSystemTable(table) {
			meta.SkippedTables = append(meta.SkippedTables, table)
			continue
		}
		step := g.buildStep(table, requested, dependents, opts)
		wf.Steps = append(wf.Steps, step)
		meta.Tables = append(meta.Tables, table)

		if opts.IncludeValidation && len(g.Metadata.RulesFor(table)) > 0 {
			wf.Steps = append(wf.Steps, g.validationStep(table, step.ID))
		}
	}

	log.Info("workflow generated",
		"steps", len(wf.Steps),
		"skipped", len(meta.SkippedTables),
		"mode", string(opts.Mode))
	return wf, meta, nil
}

func (g *Generator) buildStep(table string, requested map[string]bool, dependents map[string]int, opts Options) WorkflowStep {
	step := WorkflowStep{
		ID:        stepID(table),
		Table:     table,
		Operation: OpInsert,
		Required:  alwaysRequired[table] || dependents[table] > 0,
		OnError:   onErrorFor(opts.Mode),
	}

	step.FieldMappings = g.baselineMappings(table)
	step.FieldMappings = append(step.FieldMappings, g.roleMappings(table, opts)...)

	for _, rule := range g.Metadata.RulesFor(table) {
		if rule.AutoFix != nil && rule.AutoFix.Type == "set_field" {
			step.FieldMappings = append(step.FieldMappings, FieldMapping{
				Field:  rule.AutoFix.Field,
				Source: "literal",
				Value:  rule.AutoFix.Value,
			})
			step.AutoFixes = append(step.AutoFixes, *rule.AutoFix)
		}
		if rule.Kind == rules.KindValidation || rule.Kind == rules.KindBusinessLogic {
			step.Conditions = append(step.Conditions, ConstraintCondition{
				Type:    "business_rule",
				RuleID:  rule.ID,
				Message: rule.Condition,
			})
		}
	}

	seen := make(map[string]bool)
	for _, dep := range g.Metadata.DependenciesFrom(table) {
		step.Conditions = append(step.Conditions, ConstraintCondition{
			Type:    "exists",
			Table:   dep.ToTable,
			Column:  dep.FromColumn,
			Message: fmt.Sprintf("%s.%s references %s.%s", table, dep.FromColumn, dep.ToTable, dep.ToColumn),
		})
		// Keys into seeded tables read the producing step's result; keys
		// into tables outside this run resolve against existing rows.
		source := "existing." + dep.ToTable + "." + dep.ToColumn
		if requested[dep.ToTable] && dep.ToTable != table {
			source = stepID(dep.ToTable) + "." + dep.ToColumn
			if !seen[dep.ToTable] {
				seen[dep.ToTable] = true
				step.DependsOn = append(step.DependsOn, stepID(dep.ToTable))
			}
		}
		if dep.FromColumn != "" {
			step.FieldMappings = append(step.FieldMappings, FieldMapping{
				Field:    dep.FromColumn,
				Source:   source,
				Required: dep.Required,
			})
		}
	}

	return step
}

// baselineMappings covers the generic identity and timestamp columns every
// seeded row needs.
func (g *Generator) baselineMappings(table string) []FieldMapping {
	var out []FieldMapping
	t := g.table(table)
	if t == nil {
		return out
	}
	for _, col := range t.Columns {
		switch {
		case col.Name == "id" && !col.IsSequence && col.DefaultValue == nil:
			out = append(out, FieldMapping{Field: "id", Source: "generated.uuid", Required: true})
		case (col.Name == "created_at" || col.Name == "updated_at") && col.DefaultValue == nil:
			out = append(out, FieldMapping{Field: col.Name, Source: "generated.now"})
		}
	}
	return out
}

// roleMappings adds conventional fields for the table's inferred role. The
// user strategy decides how much beyond the required set is mapped.
func (g *Generator) roleMappings(table string, opts Options) []FieldMapping {
	pattern := g.pattern(table)
	if pattern == nil {
		return nil
	}
	t := g.table(table)

	semantics := make([]string, 0, len(pattern.FieldMap))
	for s := range pattern.FieldMap {
		semantics = append(semantics, s)
	}
	sort.Strings(semantics)

	var out []FieldMapping
	for _, semantic := range semantics {
		col := firstPresent(t, pattern.FieldMap[semantic])
		if col == "" {
			continue
		}
		required := t != nil && t.Column(col) != nil && !t.Column(col).Nullable
		switch opts.UserStrategy {
		case StrategyMinimal:
			if !required {
				continue
			}
		case StrategyAdaptive:
			if !required && !opts.IncludeOptional {
				continue
			}
		}
		out = append(out, FieldMapping{
			Field:    col,
			Source:   "input." + semantic,
			Required: required,
		})
	}
	return out
}

func (g *Generator) validationStep(table, after string) WorkflowStep {
	step := WorkflowStep{
		ID:        "validate_" + table,
		Table:     table,
		Operation: OpValidate,
		OnError:   ActionSkip,
		DependsOn: []string{after},
	}
	for _, rule := range g.Metadata.RulesFor(table) {
		step.Conditions = append(step.Conditions, ConstraintCondition{
			Type:    "business_rule",
			RuleID:  rule.ID,
			Message: rule.Condition,
		})
	}
	return step
}

// dependentCounts counts, per table, how many other tables require it.
func (g *Generator) dependentCounts() map[string]int {
	out := make(map[string]int)
	for _, e := range g.Graph.Edges {
		if e.From != e.To {
			out[e.To]++
		}
	}
	return out
}

func (g *Generator) isSystemTable(table string) bool {
	if systemTables[table] || strings.HasPrefix(table, "pg_") {
		return true
	}
	if p := g.pattern(table); p != nil {
		return p.Role == schema.RoleSystem || p.Role == schema.RoleAuth
	}
	return false
}

func (g *Generator) pattern(table string) *schema.TablePattern {
	for i := range g.Patterns {
		if g.Patterns[i].Table == table {
			return &g.Patterns[i]
		}
	}
	return nil
}

func (g *Generator) table(name string) *schema.Table {
	if g.Snapshot == nil {
		return nil
	}
	return g.Snapshot.Table(name)
}

func onErrorFor(mode Mode) ErrorAction {
	switch mode {
	case ModeAutoFix:
		return ActionAutoFix
	case ModePermissive:
		return ActionSkip
	default:
		return ActionFail
	}
}

func applyOptionDefaults(opts *Options) {
	if opts.UserStrategy == "" {
		opts.UserStrategy = StrategyAdaptive
	}
	if opts.Mode == "" {
		opts.Mode = ModeAutoFix
	}
	if opts.OnFailure == "" {
		opts.OnFailure = GracefulDegradation
	}
}

func stepID(table string) string { return "create_" + table }

func firstPresent(t *schema.Table, candidates []string) string {
	if t == nil {
		if len(candidates) > 0 {
			return candidates[0]
		}
		return ""
	}
	for _, c := range candidates {
		if t.Column(c) != nil {
			return c
		}
	}
	return ""
}

func sortedRequested(tables []string) []string {
	out := make([]string, len(tables))
	copy(out, tables)
	sort.Strings(out)
	return out
}
