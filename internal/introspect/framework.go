package introspect

import (
	"fmt"
	"strings"

	"github.com/seedwright/seedwright/internal/schema"
)

// frameworkFingerprints holds weighted evidence sets per known application
// scaffold. Co-occurrence of tables, columns, and trigger function name
// fragments accumulates a score that normalizes to a confidence.
var frameworkFingerprints = []frameworkFingerprint{
	{
		name: "makerkit",
		tableSets: []evidenceSet{
			{items: []string{"accounts", "memberships"}, weight: 30},
			{items: []string{"subscriptions"}, weight: 10},
		},
		columnSets: []evidenceSet{
			{items: []string{"accounts.primary_owner_user_id"}, weight: 25},
			{items: []string{"accounts.is_personal_account"}, weight: 25},
		},
		triggerFragments: []evidenceSet{
			{items: []string{"personal_account"}, weight: 20},
		},
	},
	{
		name: "rails",
		tableSets: []evidenceSet{
			{items: []string{"schema_migrations", "ar_internal_metadata"}, weight: 40},
		},
		columnSets: []evidenceSet{
			{items: []string{"users.encrypted_password"}, weight: 20},
		},
	},
	{
		name: "supabase",
		tableSets: []evidenceSet{
			{items: []string{"profiles"}, weight: 10},
		},
		columnSets: []evidenceSet{
			{items: []string{"profiles.avatar_url"}, weight: 15},
		},
		triggerFragments: []evidenceSet{
			{items: []string{"handle_new_user"}, weight: 30},
		},
	},
}

// minFrameworkConfidence is the floor below which a fingerprint is "no
// opinion" rather than a guess.
const minFrameworkConfidence = 0.10

type evidenceSet struct {
	items  []string
	weight int
}

type frameworkFingerprint struct {
	name             string
	tableSets        []evidenceSet // all tables in a set must co-occur
	columnSets       []evidenceSet // table.column entries
	triggerFragments []evidenceSet // substring of any trigger function name
}

// fingerprintFramework scores each known scaffold against the snapshot and
// returns the best guess, or nil when nothing clears the confidence floor.
func fingerprintFramework(tables []schema.Table) *schema.FrameworkGuess {
	tableSet := make(map[string]bool)
	columnSet := make(map[string]bool)
	var triggerFunctions []string

	for _, t := range tables {
		tableSet[strings.ToLower(t.Name)] = true
		for _, c := range t.Columns {
			columnSet[strings.ToLower(t.Name+"."+c.Name)] = true
		}
		for _, tr := range t.Triggers {
			triggerFunctions = append(triggerFunctions, strings.ToLower(tr.Function))
		}
	}

	var best *schema.FrameworkGuess
	for _, fp := range frameworkFingerprints {
		score := 0
		var evidence []string

		for _, set := range fp.tableSets {
			if containsAll(tableSet, set.items) {
				score += set.weight
				evidence = append(evidence, fmt.Sprintf("tables %s (+%d)", strings.Join(set.items, "+"), set.weight))
			}
		}
		for _, set := range fp.columnSets {
			if containsAll(columnSet, set.items) {
				score += set.weight
				evidence = append(evidence, fmt.Sprintf("columns %s (+%d)", strings.Join(set.items, "+"), set.weight))
			}
		}
		for _, set := range fp.triggerFragments {
			for _, frag := range set.items {
				if anyContains(triggerFunctions, frag) {
					score += set.weight
					evidence = append(evidence, fmt.Sprintf("trigger function ~%q (+%d)", frag, set.weight))
					break
				}
			}
		}

		confidence := float64(score) / normalizeScore
		if confidence > 1 {
			confidence = 1
		}
		if confidence < minFrameworkConfidence {
			continue
		}
		if best == nil || confidence > best.Confidence {
			best = &schema.FrameworkGuess{Name: fp.name, Confidence: confidence, Evidence: evidence}
		}
	}

	return best
}

func containsAll(set map[string]bool, items []string) bool {
	for _, item := range items {
		if !set[strings.ToLower(item)] {
			return false
		}
	}
	return true
}

func anyContains(haystack []string, fragment string) bool {
	for _, s := range haystack {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}
