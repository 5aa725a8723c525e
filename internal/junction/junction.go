package junction

import (
	"regexp"
	"strings"

	"github.com/seedwright/seedwright/internal/depgraph"
	"github.com/seedwright/seedwright/internal/schema"
)

// Detection confidence starts at a neutral base and is boosted by structural
// evidence. Constants are tunable; what matters is that more evidence yields
// a higher score.
const (
	baseConfidence       = 0.5
	twoForeignKeysBoost  = 0.3
	fewExtraColumnsBoost = 0.2
	timestampBoost       = 0.1
	namePatternBoost     = 0.2
	minDetectConfidence  = 0.7
)

// Side identifies one end of a junction relationship: the FK column on the
// junction table and the key column it references.
type Side struct {
	Table     string `yaml:"table" json:"table"`
	Column    string `yaml:"column" json:"column"`
	RefColumn string `yaml:"ref_column" json:"refColumn"`
}

// Cardinality describes the relationship shape and how densely it is
// populated relative to the full cross product.
type Cardinality struct {
	LeftSide         string  `yaml:"left_side" json:"leftSide"` // one or many
	RightSide        string  `yaml:"right_side" json:"rightSide"`
	EstimatedDensity float64 `yaml:"estimated_density" json:"estimatedDensity"`
}

// JunctionTableInfo is one detected many-to-many junction table.
type JunctionTableInfo struct {
	Table             string      `yaml:"table" json:"table"`
	Left              Side        `yaml:"left" json:"left"`
	Right             Side        `yaml:"right" json:"right"`
	AdditionalColumns []string    `yaml:"additional_columns,omitempty" json:"additionalColumns,omitempty"`
	Cardinality       Cardinality `yaml:"cardinality" json:"cardinality"`
	Confidence        float64     `yaml:"confidence" json:"confidence"`
}

var defaultNamePatterns = []string{
	`_roles$`,
	`_tags$`,
	`_users$`,
	`_members(hips)?$`,
	`_permissions$`,
	`_categories$`,
	`_likes$`,
	`_follow(er)?s$`,
}

var timestampColumns = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"inserted_at": true,
}

// Detector classifies junction-table candidates from a dependency graph.
// Name patterns are registrable: callers may add their own conventions
// beyond the built-in list.
type Detector struct {
	Snapshot *schema.Snapshot
	patterns []*regexp.Regexp
}

// NewDetector creates a detector with the built-in naming conventions.
func NewDetector(snap *schema.Snapshot) *Detector {
	d := &Detector{Snapshot: snap}
	for _, p := range defaultNamePatterns {
		d.patterns = append(d.patterns, regexp.MustCompile(p))
	}
	return d
}

// RegisterPattern adds a custom table-name pattern. Invalid expressions are
// reported, not compiled lazily.
func (d *Detector) RegisterPattern(expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return err
	}
	d.patterns = append(d.patterns, re)
	return nil
}

// Detect scores every table in the graph with at least two outgoing foreign
// keys and returns those above the detection threshold, in graph node order.
func (d *Detector) Detect(g *depgraph.DependencyGraph) []JunctionTableInfo {
	var out []JunctionTableInfo
	for _, node := range g.Nodes {
		table := d.Snapshot.Table(node.Table)
		if table == nil {
			continue
		}
		fks := table.ForeignKeys()
		if len(fks) < 2 {
			continue
		}
		info := d.classify(table, fks)
		if info.Confidence >= minDetectConfidence {
			out = append(out, info)
		}
	}
	return out
}

func (d *Detector) classify(table *schema.Table, fks []schema.Constraint) JunctionTableInfo {
	extra := extraColumns(table, fks)

	confidence := baseConfidence
	if len(fks) == 2 {
		confidence += twoForeignKeysBoost
	}
	if len(extra) <= 2 {
		confidence += fewExtraColumnsBoost
	}
	if hasTimestamps(table) {
		confidence += timestampBoost
	}
	for _, re := range d.patterns {
		if re.MatchString(table.Name) {
			confidence += namePatternBoost
			break
		}
	}
	if confidence > 1 {
		confidence = 1
	}

	info := JunctionTableInfo{
		Table:             table.Name,
		Left:              sideFor(fks[0]),
		Right:             sideFor(fks[1]),
		AdditionalColumns: extra,
		Cardinality:       Cardinality{LeftSide: "many", RightSide: "many"},
		Confidence:        confidence,
	}
	if d.Snapshot != nil {
		info.Cardinality.EstimatedDensity = estimateDensity(d.Snapshot, &info, table.RowCount)
	}
	return info
}

func sideFor(fk schema.Constraint) Side {
	s := Side{Table: fk.ReferencedTable, RefColumn: "id"}
	if len(fk.Columns) > 0 {
		s.Column = fk.Columns[0]
	}
	if len(fk.ReferencedColumns) > 0 {
		s.RefColumn = fk.ReferencedColumns[0]
	}
	return s
}

// extraColumns returns columns carrying payload beyond keys and timestamps.
func extraColumns(table *schema.Table, fks []schema.Constraint) []string {
	key := make(map[string]bool)
	for _, pk := range table.PrimaryKeyColumns() {
		key[pk] = true
	}
	for _, fk := range fks {
		for _, c := range fk.Columns {
			key[c] = true
		}
	}
	var out []string
	for _, col := range table.Columns {
		if !key[col.Name] && !timestampColumns[col.Name] {
			out = append(out, col.Name)
		}
	}
	return out
}

func hasTimestamps(table *schema.Table) bool {
	for _, col := range table.Columns {
		if timestampColumns[col.Name] || strings.HasSuffix(col.Name, "_at") {
			return true
		}
	}
	return false
}

// estimateDensity reports existing rows over the full left-by-right cross
// product, when both side counts are known.
func estimateDensity(snap *schema.Snapshot, info *JunctionTableInfo, rows int64) float64 {
	left := snap.Table(info.Left.Table)
	right := snap.Table(info.Right.Table)
	if left == nil || right == nil || left.RowCount == 0 || right.RowCount == 0 {
		return 0
	}
	return float64(rows) / float64(left.RowCount*right.RowCount)
}
