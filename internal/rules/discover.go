package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/schema"
)

// Rule confidences reflect how directly the source constraint encodes the
// inferred intent: NOT NULL is unambiguous, a matched CHECK pattern is a
// strong guess, an opaque CHECK or a trigger name is weak evidence.
const (
	notNullConfidence      = 0.9
	matchedCheckConfidence = 0.8
	rawCheckConfidence     = 0.6
	triggerConfidence      = 0.5
)

// Engine derives business rules and dependency edges from table metadata.
// When Snapshot is set, tables are read from it; otherwise each table is
// fetched from Client on demand.
type Engine struct {
	Client   metadata.Client
	Snapshot *schema.Snapshot
	Logger   *slog.Logger
}

// Discover builds constraint metadata for the named tables. Tables that
// cannot be loaded are skipped with a warning rather than failing the run.
// The result's table list is sorted and deduplicated.
func (e *Engine) Discover(ctx context.Context, tableNames []string) (*ConstraintMetadata, error) {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}

	names := dedupeSorted(tableNames)
	meta := &ConstraintMetadata{
		Tables:       names,
		DiscoveredAt: time.Now().UTC(),
	}

	for _, name := range names {
		table, err := e.loadTable(ctx, name)
		if err != nil {
			log.Warn("skipping table during discovery", "table", name, "error", err)
			continue
		}
		tableRules := e.tableRules(table)
		meta.BusinessRules = append(meta.BusinessRules, tableRules...)
		meta.Dependencies = append(meta.Dependencies, tableDependencies(table)...)
	}

	meta.Confidence = aggregateConfidence(meta.BusinessRules)
	log.Info("constraint discovery complete",
		"tables", len(meta.Tables),
		"rules", len(meta.BusinessRules),
		"dependencies", len(meta.Dependencies),
		"confidence", meta.Confidence)
	return meta, nil
}

func (e *Engine) loadTable(ctx context.Context, name string) (*schema.Table, error) {
	if e.Snapshot != nil {
		if t := e.Snapshot.Table(name); t != nil {
			return t, nil
		}
		return nil, fmt.Errorf("table %q not in snapshot", name)
	}
	if e.Client == nil {
		return nil, fmt.Errorf("no snapshot or client configured")
	}

	cols, err := e.Client.FetchColumns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch columns: %w", err)
	}
	cons, err := e.Client.FetchConstraints(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch constraints: %w", err)
	}
	// Triggers are best effort; a table without trigger visibility still
	// yields column and constraint rules.
	trigs, err := e.Client.FetchTriggers(ctx, name)
	if err != nil {
		trigs = nil
	}
	return &schema.Table{Name: name, Columns: cols, Constraints: cons, Triggers: trigs}, nil
}

// tableRules derives the rule set for one table: required columns from NOT
// NULL, conditional-insert rules from CHECK clauses, and business-logic
// markers from trigger names.
func (e *Engine) tableRules(table *schema.Table) []BusinessRule {
	var out []BusinessRule

	fkCols := make(map[string]bool)
	for _, fk := range table.ForeignKeys() {
		for _, c := range fk.Columns {
			fkCols[c] = true
		}
	}
	colSet := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		colSet[strings.ToLower(col.Name)] = true
	}

	notNullIDs := make(map[string]string)
	for _, col := range table.Columns {
		if col.Nullable || col.IsSequence || col.DefaultValue != nil {
			continue
		}
		kind := KindValidation
		if fkCols[col.Name] {
			kind = KindDependency
		}
		id := ruleID(table.Name, col.Name, "not_null")
		notNullIDs[strings.ToLower(col.Name)] = id
		out = append(out, BusinessRule{
			ID:            id,
			Name:          table.Name + "." + col.Name + " required",
			Kind:          kind,
			Table:         table.Name,
			Condition:     col.Name + " must be set",
			Action:        ActionRequire,
			Confidence:    notNullConfidence,
			SourcePattern: "required_relationship",
		})
	}

	for _, c := range table.Constraints {
		if c.Kind != schema.KindCheck || c.CheckClause == "" {
			continue
		}
		pattern, condition, fix := MatchCheck(c.CheckClause)
		confidence := rawCheckConfidence
		if pattern != "raw_check" {
			confidence = matchedCheckConfidence
		}
		rule := BusinessRule{
			ID:            ruleID(table.Name, c.Name, "check"),
			Name:          c.Name,
			Kind:          KindValidation,
			Table:         table.Name,
			Condition:     condition,
			Action:        ActionDeny,
			Confidence:    confidence,
			SourcePattern: "conditional_insert:" + c.CheckClause,
			AutoFix:       fix,
		}
		if fix != nil {
			rule.Action = ActionDefault
		}
		for _, col := range referencedColumns(c.CheckClause, colSet) {
			if id, ok := notNullIDs[col]; ok {
				rule.DependsOn = append(rule.DependsOn, id)
			}
		}
		out = append(out, rule)
	}

	for _, trig := range table.Triggers {
		out = append(out, BusinessRule{
			ID:            ruleID(table.Name, trig.Name, "trigger"),
			Name:          trig.Name,
			Kind:          KindBusinessLogic,
			Table:         table.Name,
			Condition:     strings.ToLower(trig.Timing) + " " + strings.ToLower(trig.Event) + " runs " + trig.Function,
			Action:        ActionDeny,
			Confidence:    triggerConfidence,
			SourcePattern: "business_rule:" + trig.Function,
		})
	}

	return out
}

func tableDependencies(table *schema.Table) []TableDependency {
	nullable := make(map[string]bool)
	for _, col := range table.Columns {
		nullable[col.Name] = col.Nullable
	}

	var out []TableDependency
	for _, fk := range table.ForeignKeys() {
		for i, col := range fk.Columns {
			ref := ""
			if i < len(fk.ReferencedColumns) {
				ref = fk.ReferencedColumns[i]
			}
			out = append(out, TableDependency{
				FromTable:     table.Name,
				FromColumn:    col,
				ToTable:       fk.ReferencedTable,
				ToColumn:      ref,
				Required:      !nullable[col],
				CascadeDelete: strings.EqualFold(fk.OnDelete, "CASCADE"),
			})
		}
	}
	return out
}

// aggregateConfidence is the mean of all rule confidences, floored at zero.
// No rules means no opinion, not full confidence.
func aggregateConfidence(rules []BusinessRule) float64 {
	if len(rules) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rules {
		sum += r.Confidence
	}
	mean := sum / float64(len(rules))
	if mean < 0 {
		return 0
	}
	return mean
}

func ruleID(parts ...string) string {
	joined := strings.Join(parts, "_")
	return strings.ToLower(strings.ReplaceAll(joined, " ", "_"))
}

func dedupeSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
