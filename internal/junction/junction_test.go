package junction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/seedwright/seedwright/internal/depgraph"
	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func junctionTable(name string, extras int) schema.Table {
	t := schema.Table{
		Name: name,
		Columns: []schema.Column{
			{Name: "user_id", DataType: "uuid"},
			{Name: "role_id", DataType: "uuid"},
		},
		Constraints: []schema.Constraint{
			{Name: name + "_user_id_fkey", Kind: schema.KindForeignKey,
				Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}},
			{Name: name + "_role_id_fkey", Kind: schema.KindForeignKey,
				Columns: []string{"role_id"}, ReferencedTable: "roles", ReferencedColumns: []string{"id"}},
		},
	}
	for i := 0; i < extras; i++ {
		t.Columns = append(t.Columns, schema.Column{
			Name: fmt.Sprintf("extra_%d", i), DataType: "text", Nullable: true,
		})
	}
	return t
}

func graphFor(snap *schema.Snapshot) *depgraph.DependencyGraph {
	meta := &rules.ConstraintMetadata{}
	for _, t := range snap.Tables {
		meta.Tables = append(meta.Tables, t.Name)
		for _, fk := range t.ForeignKeys() {
			meta.Dependencies = append(meta.Dependencies, rules.TableDependency{
				FromTable: t.Name, FromColumn: fk.Columns[0],
				ToTable: fk.ReferencedTable, ToColumn: "id", Required: true,
			})
		}
	}
	return depgraph.Build(meta, snap)
}

func TestDetectPureJunctionHighConfidence(t *testing.T) {
	snap := &schema.Snapshot{Tables: []schema.Table{junctionTable("user_roles", 0)}}
	infos := NewDetector(snap).Detect(graphFor(snap))

	if len(infos) != 1 {
		t.Fatalf("expected one junction table, got %d", len(infos))
	}
	info := infos[0]
	if info.Confidence < 0.8 {
		t.Fatalf("confidence = %v, want >= 0.8", info.Confidence)
	}
	if info.Left.Table != "users" || info.Left.Column != "user_id" {
		t.Fatalf("left side = %+v", info.Left)
	}
	if info.Right.Table != "roles" || info.Right.Column != "role_id" {
		t.Fatalf("right side = %+v", info.Right)
	}
}

func TestDetectMorePayloadLowersConfidence(t *testing.T) {
	// Neutral names keep the scores away from the ceiling.
	one := &schema.Snapshot{Tables: []schema.Table{junctionTable("links", 1)}}
	five := &schema.Snapshot{Tables: []schema.Table{junctionTable("links", 5)}}

	a := NewDetector(one).classify(one.Table("links"), one.Table("links").ForeignKeys())
	b := NewDetector(five).classify(five.Table("links"), five.Table("links").ForeignKeys())
	if b.Confidence >= a.Confidence {
		t.Fatalf("5 extra columns (%v) should score below 1 extra column (%v)", b.Confidence, a.Confidence)
	}
	if len(b.AdditionalColumns) != 5 {
		t.Fatalf("additional columns = %v", b.AdditionalColumns)
	}
}

func TestDetectCustomPattern(t *testing.T) {
	snap := &schema.Snapshot{Tables: []schema.Table{junctionTable("acl_entries", 3)}}
	d := NewDetector(snap)

	base := d.classify(snap.Table("acl_entries"), snap.Table("acl_entries").ForeignKeys())
	if err := d.RegisterPattern(`^acl_`); err != nil {
		t.Fatalf("RegisterPattern: %v", err)
	}
	boosted := d.classify(snap.Table("acl_entries"), snap.Table("acl_entries").ForeignKeys())
	if boosted.Confidence <= base.Confidence {
		t.Fatalf("custom pattern should raise confidence: %v -> %v", base.Confidence, boosted.Confidence)
	}

	if err := d.RegisterPattern(`[`); err == nil {
		t.Fatal("invalid pattern should be rejected")
	}
}

func idRows(n int) []metadata.Row {
	rows := make([]metadata.Row, n)
	for i := range rows {
		rows[i] = metadata.Row{"id": int64(i + 1)}
	}
	return rows
}

func testInfo() JunctionTableInfo {
	return JunctionTableInfo{
		Table: "user_roles",
		Left:  Side{Table: "users", Column: "user_id", RefColumn: "id"},
		Right: Side{Table: "roles", Column: "role_id", RefColumn: "id"},
	}
}

func TestGenerateRandomHitsTargetWithoutDuplicates(t *testing.T) {
	pairs, err := GenerateRelationships(testInfo(), idRows(10), idRows(3), GenerateOptions{
		Strategy: StrategyRandom, Density: 0.5, Seed: 42,
	})
	if err != nil {
		t.Fatalf("GenerateRelationships: %v", err)
	}
	if len(pairs) != 15 {
		t.Fatalf("expected 15 pairs (10*3*0.5), got %d", len(pairs))
	}
	seen := make(map[[2]any]bool)
	for _, p := range pairs {
		k := [2]any{p.Left, p.Right}
		if seen[k] {
			t.Fatalf("duplicate pair %v", k)
		}
		seen[k] = true
	}
}

func TestGenerateEvenBoundsPartnersPerLeft(t *testing.T) {
	left, right := 10, 20
	pairs, err := GenerateRelationships(testInfo(), idRows(left), idRows(right), GenerateOptions{
		Strategy: StrategyEven, Density: 0.25, Seed: 7,
	})
	if err != nil {
		t.Fatalf("GenerateRelationships: %v", err)
	}
	target := int(math.Round(float64(left*right) * 0.25))
	if len(pairs) != target {
		t.Fatalf("expected %d pairs, got %d", target, len(pairs))
	}
	bound := int(math.Ceil(float64(target) / float64(left)))
	perLeft := make(map[any]int)
	for _, p := range pairs {
		perLeft[p.Left]++
	}
	for l, n := range perLeft {
		if n > bound {
			t.Fatalf("left %v has %d partners, bound is %d", l, n, bound)
		}
	}
}

func TestGenerateClusteredFavorsPopularSet(t *testing.T) {
	pairs, err := GenerateRelationships(testInfo(), idRows(10), idRows(50), GenerateOptions{
		Strategy: StrategyClustered, Density: 0.4, PopularFraction: 0.2, Seed: 11,
	})
	if err != nil {
		t.Fatalf("GenerateRelationships: %v", err)
	}

	perLeft := make(map[any]int)
	for _, p := range pairs {
		perLeft[p.Left]++
	}
	var counts []int
	for _, n := range perLeft {
		counts = append(counts, n)
	}
	max, sum := 0, 0
	for _, n := range counts {
		sum += n
		if n > max {
			max = n
		}
	}
	mean := float64(sum) / float64(len(counts))
	if float64(max) < mean*2 {
		t.Fatalf("clustered distribution looks flat: max=%d mean=%v", max, mean)
	}
}

func TestGenerateAvoidOrphansCoversBothSides(t *testing.T) {
	pairs, err := GenerateRelationships(testInfo(), idRows(8), idRows(6), GenerateOptions{
		Strategy: StrategyRandom, Density: 1, AvoidOrphans: true, Seed: 3,
	})
	if err != nil {
		t.Fatalf("GenerateRelationships: %v", err)
	}
	lefts := make(map[any]bool)
	rights := make(map[any]bool)
	for _, p := range pairs {
		lefts[p.Left] = true
		rights[p.Right] = true
	}
	if len(lefts) != 8 || len(rights) != 6 {
		t.Fatalf("orphans remain: %d lefts, %d rights covered", len(lefts), len(rights))
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	if _, err := GenerateRelationships(testInfo(), nil, idRows(3), GenerateOptions{Density: 0.5}); err == nil {
		t.Fatal("empty left side should error")
	}
	if _, err := GenerateRelationships(testInfo(), idRows(2), idRows(3), GenerateOptions{Density: 0}); err == nil {
		t.Fatal("zero density should error")
	}
	if _, err := GenerateRelationships(testInfo(), idRows(2), idRows(3), GenerateOptions{Density: 2}); err == nil {
		t.Fatal("density above 1 should error")
	}
}

// flakyClient fails InsertRow on chosen call numbers.
type flakyClient struct {
	*metadata.MockClient
	calls  int
	failOn map[int]bool
}

func (f *flakyClient) InsertRow(ctx context.Context, table string, row metadata.Row) (metadata.Row, error) {
	f.calls++
	if f.failOn[f.calls] {
		return nil, errors.New("unique violation")
	}
	return f.MockClient.InsertRow(ctx, table, row)
}

func TestInsertContinuesPastFailedBatch(t *testing.T) {
	client := &flakyClient{
		MockClient: &metadata.MockClient{},
		failOn:     map[int]bool{4: true}, // second row of the second batch
	}
	pairs := []Pair{
		{Left: 1, Right: 1}, {Left: 1, Right: 2}, {Left: 2, Right: 1},
		{Left: 2, Right: 2}, {Left: 3, Right: 1},
	}

	report, err := Insert(context.Background(), client, testInfo(), pairs, 2, testLogger())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if report.Batches != 3 {
		t.Fatalf("batches = %d", report.Batches)
	}
	// Batch 2 loses its second row; batches 1 and 3 land fully.
	if report.Inserted != 4 || report.Failed != 1 {
		t.Fatalf("inserted/failed = %d/%d", report.Inserted, report.Failed)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v", report.Errors)
	}
}
