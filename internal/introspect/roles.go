package introspect

import (
	"fmt"
	"strings"

	"github.com/seedwright/seedwright/internal/schema"
)

// Role scoring is weighted evidence accumulation: each matching signal adds
// its weight, a role is accepted once the best score reaches acceptScore,
// and the score normalizes to a confidence capped at 1. The exact weights
// are tunable; only the relative ordering (more evidence, higher confidence)
// is load-bearing.
const (
	acceptScore    = 10
	normalizeScore = 100
)

var roleColumnSignals = map[schema.TableRole][]columnSignal{
	schema.RoleUser: {
		{columns: []string{"email", "username"}, weight: 30, note: "identity column"},
		{columns: []string{"encrypted_password", "password_digest", "password_hash"}, weight: 25, note: "credential column"},
		{columns: []string{"name", "full_name", "display_name"}, weight: 10, note: "name column"},
	},
	schema.RoleContent: {
		{columns: []string{"title", "body", "content", "description"}, weight: 20, note: "content column"},
		{columns: []string{"published_at", "slug"}, weight: 10, note: "publication column"},
	},
	schema.RoleAuth: {
		{columns: []string{"token", "refresh_token", "expires_at", "revoked_at"}, weight: 25, note: "token column"},
	},
}

var roleNameSignals = map[schema.TableRole][]nameSignal{
	schema.RoleUser: {
		{names: []string{"users", "accounts", "profiles", "customers"}, weight: 15},
	},
	schema.RoleAuth: {
		{names: []string{"sessions", "tokens", "refresh_tokens", "mfa_factors", "identities"}, weight: 30},
	},
	schema.RoleSystem: {
		{names: []string{"schema_migrations", "ar_internal_metadata", "migrations", "flyway_schema_history"}, weight: 50},
	},
}

// fieldMaps lists candidate column names per semantic field for each role,
// consumed by workflow generation when mapping caller input.
var fieldMaps = map[schema.TableRole]map[string][]string{
	schema.RoleUser: {
		"email": {"email", "email_address"},
		"name":  {"name", "full_name", "display_name", "username"},
	},
	schema.RoleContent: {
		"title": {"title", "name", "subject"},
		"body":  {"body", "content", "description"},
	},
}

type columnSignal struct {
	columns []string
	weight  int
	note    string
}

type nameSignal struct {
	names  []string
	weight int
}

// inferPatterns scores candidate roles for every table and keeps the best
// role per table when it clears the acceptance threshold.
func inferPatterns(tables []schema.Table) []schema.TablePattern {
	var patterns []schema.TablePattern

	for _, t := range tables {
		best := scoreRoles(&t)
		if best == nil {
			continue
		}
		patterns = append(patterns, *best)
	}
	return patterns
}

func scoreRoles(t *schema.Table) *schema.TablePattern {
	colSet := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		colSet[strings.ToLower(c.Name)] = true
	}

	scores := make(map[schema.TableRole]int)
	evidence := make(map[schema.TableRole][]string)

	for role, signals := range roleColumnSignals {
		for _, sig := range signals {
			for _, col := range sig.columns {
				if colSet[col] {
					scores[role] += sig.weight
					evidence[role] = append(evidence[role], fmt.Sprintf("%s %q (+%d)", sig.note, col, sig.weight))
					break
				}
			}
		}
	}

	name := strings.ToLower(t.Name)
	for role, signals := range roleNameSignals {
		for _, sig := range signals {
			for _, n := range sig.names {
				if name == n {
					scores[role] += sig.weight
					evidence[role] = append(evidence[role], fmt.Sprintf("table name %q (+%d)", n, sig.weight))
					break
				}
			}
		}
	}

	// Two or more outgoing foreign keys suggest an association table.
	if fks := t.ForeignKeys(); len(fks) >= 2 {
		scores[schema.RoleAssociation] += 20
		evidence[schema.RoleAssociation] = append(evidence[schema.RoleAssociation],
			fmt.Sprintf("%d outgoing foreign keys (+20)", len(fks)))
	}

	var bestRole schema.TableRole
	bestScore := 0
	for role, score := range scores {
		if score > bestScore || (score == bestScore && role < bestRole) {
			bestRole = role
			bestScore = score
		}
	}

	if bestScore < acceptScore {
		return nil
	}

	confidence := float64(bestScore) / normalizeScore
	if confidence > 1 {
		confidence = 1
	}

	return &schema.TablePattern{
		Table:      t.Name,
		Role:       bestRole,
		Confidence: confidence,
		Evidence:   evidence[bestRole],
		FieldMap:   fieldMaps[bestRole],
	}
}
