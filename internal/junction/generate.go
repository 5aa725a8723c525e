package junction

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/seedwright/seedwright/internal/metadata"
)

// Strategy selects how relationship pairs are distributed.
type Strategy string

const (
	StrategyRandom    Strategy = "random"
	StrategyEven      Strategy = "even"
	StrategyClustered Strategy = "clustered"
)

// Pair is one generated (left, right) relationship.
type Pair struct {
	Left  any `json:"left"`
	Right any `json:"right"`
}

// GenerateOptions tunes relationship generation. Density is the fraction of
// the left-by-right cross product to fill, in (0, 1]. A zero Seed derives
// one from the clock.
type GenerateOptions struct {
	Strategy        Strategy
	Density         float64
	AvoidOrphans    bool
	PopularFraction float64 // clustered: share of left rows in the popular set
	Seed            int64
}

// The popular set of a clustered distribution receives this share of all
// relationships.
const popularShare = 0.7

// GenerateRelationships produces unique (left, right) pairs for a junction
// table. The target count is leftCount*rightCount*density, clamped to the
// size of the cross product. Pairs are never duplicated under any strategy.
func GenerateRelationships(info JunctionTableInfo, leftRows, rightRows []metadata.Row, opts GenerateOptions) ([]Pair, error) {
	if len(leftRows) == 0 || len(rightRows) == 0 {
		return nil, fmt.Errorf("both sides need rows: left=%d right=%d", len(leftRows), len(rightRows))
	}
	if opts.Density <= 0 || opts.Density > 1 {
		return nil, fmt.Errorf("density %v out of range (0, 1]", opts.Density)
	}

	lefts, err := keysOf(leftRows, info.Left.RefColumn)
	if err != nil {
		return nil, fmt.Errorf("left rows: %w", err)
	}
	rights, err := keysOf(rightRows, info.Right.RefColumn)
	if err != nil {
		return nil, fmt.Errorf("right rows: %w", err)
	}

	target := int(math.Round(float64(len(lefts)) * float64(len(rights)) * opts.Density))
	if max := len(lefts) * len(rights); target > max {
		target = max
	}
	if target < 1 {
		target = 1
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	gen := &pairSet{seen: make(map[[2]any]bool)}
	if opts.AvoidOrphans {
		coverBothSides(gen, rng, lefts, rights, target)
	}

	switch opts.Strategy {
	case StrategyEven:
		generateEven(gen, rng, lefts, rights, target)
	case StrategyClustered:
		fraction := opts.PopularFraction
		if fraction <= 0 || fraction >= 1 {
			fraction = 0.2
		}
		generateClustered(gen, rng, lefts, rights, target, fraction)
	case StrategyRandom, "":
		generateRandom(gen, rng, lefts, rights, target)
	default:
		return nil, fmt.Errorf("unknown strategy %q", opts.Strategy)
	}
	return gen.pairs, nil
}

// Rows converts pairs into insertable junction rows.
func Rows(info JunctionTableInfo, pairs []Pair) []metadata.Row {
	out := make([]metadata.Row, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, metadata.Row{
			info.Left.Column:  p.Left,
			info.Right.Column: p.Right,
		})
	}
	return out
}

type pairSet struct {
	pairs []Pair
	seen  map[[2]any]bool
}

func (s *pairSet) add(left, right any) bool {
	k := [2]any{left, right}
	if s.seen[k] {
		return false
	}
	s.seen[k] = true
	s.pairs = append(s.pairs, Pair{Left: left, Right: right})
	return true
}

func (s *pairSet) len() int { return len(s.pairs) }

// generateRandom samples uniformly from the cross product until the target
// is met, rejecting duplicates.
func generateRandom(s *pairSet, rng *rand.Rand, lefts, rights []any, target int) {
	// Rejection sampling stalls near a full cross product; bail out after
	// enough consecutive misses and fill the remainder by scan.
	misses := 0
	for s.len() < target && misses < target*20+100 {
		if s.add(lefts[rng.Intn(len(lefts))], rights[rng.Intn(len(rights))]) {
			misses = 0
		} else {
			misses++
		}
	}
	fillSequential(s, lefts, rights, target)
}

// generateEven hands out partners one per left row, round-robin, so no left
// row exceeds ceil(target/leftCount) partners.
func generateEven(s *pairSet, rng *rand.Rand, lefts, rights []any, target int) {
	perm := rng.Perm(len(lefts))
	for i := 0; s.len() < target && i < target*len(rights); i++ {
		left := lefts[perm[i%len(perm)]]
		pickPartner(s, rng, left, rights)
	}
	fillSequential(s, lefts, rights, target)
}

// generateClustered splits the left rows into a popular set that receives a
// fixed share of all relationships and a long tail sharing the rest.
func generateClustered(s *pairSet, rng *rand.Rand, lefts, rights []any, target int, fraction float64) {
	perm := rng.Perm(len(lefts))
	popularCount := int(math.Ceil(fraction * float64(len(lefts))))
	if popularCount < 1 {
		popularCount = 1
	}
	popular := make([]any, 0, popularCount)
	tail := make([]any, 0, len(lefts)-popularCount)
	for i, idx := range perm {
		if i < popularCount {
			popular = append(popular, lefts[idx])
		} else {
			tail = append(tail, lefts[idx])
		}
	}

	popularTarget := int(math.Round(popularShare * float64(target)))
	for i := 0; s.len() < popularTarget && i < target*len(rights); i++ {
		pickPartner(s, rng, popular[i%len(popular)], rights)
	}
	if len(tail) > 0 {
		for i := 0; s.len() < target && i < target*len(rights); i++ {
			pickPartner(s, rng, tail[i%len(tail)], rights)
		}
	}
	fillSequential(s, lefts, rights, target)
}

// coverBothSides guarantees every row on each side appears in at least one
// pair before the density target is pursued.
func coverBothSides(s *pairSet, rng *rand.Rand, lefts, rights []any, target int) {
	for _, left := range lefts {
		if s.len() >= target {
			break
		}
		s.add(left, rights[rng.Intn(len(rights))])
	}
	covered := make(map[any]bool)
	for _, p := range s.pairs {
		covered[p.Right] = true
	}
	for _, right := range rights {
		if s.len() >= target {
			break
		}
		if !covered[right] {
			pickLeft(s, rng, right, lefts)
		}
	}
}

// pickPartner attaches a random unused right partner to left.
func pickPartner(s *pairSet, rng *rand.Rand, left any, rights []any) {
	start := rng.Intn(len(rights))
	for i := 0; i < len(rights); i++ {
		if s.add(left, rights[(start+i)%len(rights)]) {
			return
		}
	}
}

func pickLeft(s *pairSet, rng *rand.Rand, right any, lefts []any) {
	start := rng.Intn(len(lefts))
	for i := 0; i < len(lefts); i++ {
		if s.add(lefts[(start+i)%len(lefts)], right) {
			return
		}
	}
}

// fillSequential tops up to the target by scanning the cross product in
// order. Only reached when sampling could not find free pairs.
func fillSequential(s *pairSet, lefts, rights []any, target int) {
	for _, left := range lefts {
		for _, right := range rights {
			if s.len() >= target {
				return
			}
			s.add(left, right)
		}
	}
}

func keysOf(rows []metadata.Row, column string) ([]any, error) {
	out := make([]any, 0, len(rows))
	for i, row := range rows {
		v, ok := row[column]
		if !ok || v == nil {
			return nil, fmt.Errorf("row %d has no %q value", i, column)
		}
		out = append(out, v)
	}
	return out, nil
}
