package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// checkPattern recognizes a family of CHECK clauses and derives a
// remediation for rows that would violate them. satisfied evaluates the
// recognized predicate against a row; a remediation is only ever applied
// when satisfied reports false.
type checkPattern struct {
	name      string
	re        *regexp.Regexp
	build     func(match []string) (condition string, fix *AutoFixSuggestion)
	satisfied func(match []string, row map[string]any) bool
}

// Built-in patterns are tried in order; the first match wins. Clauses are
// matched textually, not parsed: unrecognized clauses still produce a rule,
// just without a remediation and at lower confidence.
var checkPatterns = []checkPattern{
	{
		// (flag = false) OR (col IS NULL): col must be cleared whenever
		// the flag is set. Seen as personal-account slug enforcement.
		name: "null_when_flag",
		re:   regexp.MustCompile(`(?i)\(?\s*(\w+)\s*=\s*false\s*\)?\s*or\s*\(?\s*(\w+)\s+is\s+null`),
		build: func(m []string) (string, *AutoFixSuggestion) {
			flag, col := m[1], m[2]
			return col + " must be NULL when " + flag + " is true", &AutoFixSuggestion{
				Type:   "set_field",
				Field:  col,
				Value:  nil,
				Reason: "cleared to satisfy " + flag + " exclusion",
			}
		},
		satisfied: func(m []string, row map[string]any) bool {
			return nullWhenFlagHolds(row, m[1], m[2])
		},
	},
	{
		// (col IS NULL) OR (flag = false): same rule, operands swapped.
		name: "null_when_flag",
		re:   regexp.MustCompile(`(?i)\(?\s*(\w+)\s+is\s+null\s*\)?\s*or\s*\(?\s*(\w+)\s*=\s*false`),
		build: func(m []string) (string, *AutoFixSuggestion) {
			col, flag := m[1], m[2]
			return col + " must be NULL when " + flag + " is true", &AutoFixSuggestion{
				Type:   "set_field",
				Field:  col,
				Value:  nil,
				Reason: "cleared to satisfy " + flag + " exclusion",
			}
		},
		satisfied: func(m []string, row map[string]any) bool {
			return nullWhenFlagHolds(row, m[2], m[1])
		},
	},
	{
		// col IN ('a', 'b', ...): value must come from a fixed list.
		name: "value_in_list",
		re:   regexp.MustCompile(`(?i)\(?\s*(\w+)\s*\)?(?:::\w+)?\s+in\s*\(\s*('[^)]*)\)`),
		build: func(m []string) (string, *AutoFixSuggestion) {
			col := m[1]
			allowed := listLiterals(m[2])
			if len(allowed) == 0 {
				return col + " must be one of a fixed list", nil
			}
			return col + " must be one of a fixed list", &AutoFixSuggestion{
				Type:   "set_field",
				Field:  col,
				Value:  allowed[0],
				Reason: "defaulted to first allowed value",
			}
		},
		satisfied: func(m []string, row map[string]any) bool {
			v, present := row[m[1]]
			if !present || v == nil {
				return true
			}
			s, ok := v.(string)
			if !ok {
				s = fmt.Sprint(v)
			}
			for _, lit := range listLiterals(m[2]) {
				if s == lit {
					return true
				}
			}
			return false
		},
	},
	{
		// col > n or col >= n: numeric lower bound.
		name: "numeric_floor",
		re:   regexp.MustCompile(`(?i)\(?\s*(\w+)\s*>(=?)\s*(-?\d+)`),
		build: func(m []string) (string, *AutoFixSuggestion) {
			col := m[1]
			n, _ := strconv.Atoi(m[3])
			v := n
			if m[2] == "" {
				v = n + 1
			}
			return col + " must be at least " + strconv.Itoa(v), &AutoFixSuggestion{
				Type:   "set_field",
				Field:  col,
				Value:  v,
				Reason: "raised to minimum allowed value",
			}
		},
		satisfied: func(m []string, row map[string]any) bool {
			v, present := row[m[1]]
			if !present || v == nil {
				return true
			}
			f, ok := toFloat(v)
			if !ok {
				return true
			}
			n, _ := strconv.Atoi(m[3])
			if m[2] == "=" {
				return f >= float64(n)
			}
			return f > float64(n)
		},
	},
	{
		// char_length(col) > 0 or length(col) > 0: non-empty string.
		name: "non_empty",
		re:   regexp.MustCompile(`(?i)(?:char_)?length\(\s*(\w+)(?:::\w+)?\s*\)\s*>\s*0`),
		build: func(m []string) (string, *AutoFixSuggestion) {
			col := m[1]
			return col + " must not be empty", &AutoFixSuggestion{
				Type:   "set_field",
				Field:  col,
				Value:  "placeholder",
				Reason: "filled to satisfy non-empty check",
			}
		},
		satisfied: func(m []string, row map[string]any) bool {
			v, present := row[m[1]]
			if !present || v == nil {
				return true
			}
			s, ok := v.(string)
			return !ok || len(s) > 0
		},
	},
}

// MatchCheck runs a CHECK clause through the pattern table. The returned
// pattern name is "raw_check" when nothing matched.
func MatchCheck(clause string) (pattern, condition string, fix *AutoFixSuggestion) {
	for _, p := range checkPatterns {
		if m := p.re.FindStringSubmatch(clause); m != nil {
			cond, f := p.build(m)
			return p.name, cond, f
		}
	}
	return "raw_check", strings.TrimSpace(clause), nil
}

// CheckSatisfied evaluates a CHECK clause against a row. evaluable is false
// when the clause matches no pattern; such clauses cannot be judged and
// must not be remediated. Unset and NULL values satisfy a check the way
// they do in SQL.
func CheckSatisfied(clause string, row map[string]any) (satisfied, evaluable bool) {
	for _, p := range checkPatterns {
		if m := p.re.FindStringSubmatch(clause); m != nil {
			return p.satisfied(m, row), true
		}
	}
	return false, false
}

// nullWhenFlagHolds reports whether row complies with
// (flag = false) OR (col IS NULL).
func nullWhenFlagHolds(row map[string]any, flag, col string) bool {
	set, _ := row[flag].(bool)
	if !set {
		return true
	}
	v, present := row[col]
	return !present || v == nil
}

var quotedLiteralRe = regexp.MustCompile(`'([^']*)'`)

// listLiterals pulls the quoted literals out of an IN (...) list body.
func listLiterals(body string) []string {
	var out []string
	for _, m := range quotedLiteralRe.FindAllStringSubmatch(body, -1) {
		out = append(out, m[1])
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

var identRe = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// referencedColumns extracts the column names a clause mentions, given the
// set of columns that exist on the table. SQL keywords fall out naturally
// because they are not column names.
func referencedColumns(clause string, columns map[string]bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ident := range identRe.FindAllString(clause, -1) {
		lower := strings.ToLower(ident)
		if columns[lower] && !seen[lower] {
			seen[lower] = true
			out = append(out, lower)
		}
	}
	return out
}
