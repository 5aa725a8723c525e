package depgraph

import (
	"sort"

	"github.com/yourbasic/graph"

	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/schema"
)

// Node is one table in the dependency graph.
type Node struct {
	Table             string `yaml:"table" json:"table"`
	IsJunctionTable   bool   `yaml:"is_junction_table,omitempty" json:"isJunctionTable,omitempty"`
	InCycle           bool   `yaml:"in_cycle,omitempty" json:"inCycle,omitempty"`
	ForeignKeyCount   int    `yaml:"foreign_key_count" json:"foreignKeyCount"`
	NonKeyColumnCount int    `yaml:"non_key_column_count" json:"nonKeyColumnCount"`
}

// Edge records that From requires To to exist first.
type Edge struct {
	From     string `yaml:"from" json:"from"`
	To       string `yaml:"to" json:"to"`
	Required bool   `yaml:"required" json:"required"`
}

// DependencyGraph is the directed table graph with its derived orderings.
// CreationOrder lists every node exactly once; tables inside a cycle are
// still emitted, in discovery order, and the cycle is reported alongside.
type DependencyGraph struct {
	Nodes         []Node     `yaml:"nodes" json:"nodes"`
	Edges         []Edge     `yaml:"edges" json:"edges"`
	Cycles        [][]string `yaml:"cycles,omitempty" json:"cycles,omitempty"`
	CreationOrder []string   `yaml:"creation_order" json:"creationOrder"`
}

// Node returns the node for a table, or nil.
func (g *DependencyGraph) Node(table string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Table == table {
			return &g.Nodes[i]
		}
	}
	return nil
}

// JunctionTables returns the names of nodes flagged as junction tables.
func (g *DependencyGraph) JunctionTables() []string {
	var out []string
	for _, n := range g.Nodes {
		if n.IsJunctionTable {
			out = append(out, n.Table)
		}
	}
	return out
}

// Build assembles the graph from discovered dependencies. The snapshot, when
// available, supplies the column shape used for junction-table flagging;
// without it no table is flagged. Output is deterministic: nodes, edges, and
// traversal roots are all processed in sorted table order.
func Build(meta *rules.ConstraintMetadata, snap *schema.Snapshot) *DependencyGraph {
	tables := make(map[string]bool)
	for _, t := range meta.Tables {
		tables[t] = true
	}
	for _, d := range meta.Dependencies {
		tables[d.FromTable] = true
		tables[d.ToTable] = true
	}
	names := make([]string, 0, len(tables))
	for t := range tables {
		names = append(names, t)
	}
	sort.Strings(names)

	// One graph edge per (from, to) pair; composite keys collapse into a
	// single edge that is required if any of its columns is.
	type pair struct{ from, to string }
	edgeSet := make(map[pair]bool)
	fkCount := make(map[string]int)
	adj := make(map[string][]string)
	for _, d := range meta.Dependencies {
		fkCount[d.FromTable]++
		p := pair{d.FromTable, d.ToTable}
		if req, seen := edgeSet[p]; seen {
			edgeSet[p] = req || d.Required
			continue
		}
		edgeSet[p] = d.Required
		adj[d.FromTable] = append(adj[d.FromTable], d.ToTable)
	}
	for _, deps := range adj {
		sort.Strings(deps)
	}

	g := &DependencyGraph{}
	for p, req := range edgeSet {
		g.Edges = append(g.Edges, Edge{From: p.from, To: p.to, Required: req})
	}
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].From != g.Edges[j].From {
			return g.Edges[i].From < g.Edges[j].From
		}
		return g.Edges[i].To < g.Edges[j].To
	})

	g.CreationOrder, g.Cycles = traverse(names, adj)

	inCycle := cyclicTables(names, adj)
	for _, name := range names {
		node := Node{
			Table:           name,
			InCycle:         inCycle[name],
			ForeignKeyCount: fkCount[name],
		}
		if snap != nil {
			if t := snap.Table(name); t != nil {
				node.NonKeyColumnCount = len(t.NonKeyColumns())
				node.IsJunctionTable = fkCount[name] >= 2 && node.NonKeyColumnCount <= 2
			}
		}
		g.Nodes = append(g.Nodes, node)
	}
	return g
}

const (
	white = iota // unvisited
	gray         // on the traversal path
	black        // done
)

// traverse runs an iterative post-order DFS over the dependency edges.
// Visiting a table's dependencies before appending the table itself yields a
// creation order where prerequisites come first. Meeting a gray table means
// the current path closes a cycle; the cycle is recorded and traversal
// continues rather than failing, so cyclic tables still land in the order.
func traverse(names []string, adj map[string][]string) (order []string, cycles [][]string) {
	state := make(map[string]int, len(names))
	pathIdx := make(map[string]int)
	var path []string
	seenCycles := make(map[string]bool)

	type frame struct {
		node string
		next int
	}

	for _, root := range names {
		if state[root] != white {
			continue
		}
		stack := []frame{{node: root}}
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if f.next == 0 {
				state[f.node] = gray
				pathIdx[f.node] = len(path)
				path = append(path, f.node)
			}
			deps := adj[f.node]
			if f.next < len(deps) {
				child := deps[f.next]
				f.next++
				switch state[child] {
				case white:
					stack = append(stack, frame{node: child})
				case gray:
					cycle := append([]string(nil), path[pathIdx[child]:]...)
					if key := cycleKey(cycle); !seenCycles[key] {
						seenCycles[key] = true
						cycles = append(cycles, cycle)
					}
				}
				continue
			}
			state[f.node] = black
			order = append(order, f.node)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return order, cycles
}

// cycleKey normalizes a cycle to its rotation starting at the smallest table
// name, so the same loop found from different entry points dedupes.
func cycleKey(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	min := 0
	for i, t := range cycle {
		if t < cycle[min] {
			min = i
		}
	}
	key := ""
	for i := range cycle {
		key += cycle[(min+i)%len(cycle)] + "|"
	}
	return key
}

// cyclicTables flags every table belonging to a strongly connected component
// of size greater than one, or carrying a self edge. This is computed
// independently of the DFS as a consistency check on cycle reporting.
func cyclicTables(names []string, adj map[string][]string) map[string]bool {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	dg := graph.New(len(names))
	selfEdge := make(map[string]bool)
	for from, deps := range adj {
		for _, to := range deps {
			if from == to {
				selfEdge[from] = true
			}
			dg.Add(idx[from], idx[to])
		}
	}

	out := make(map[string]bool)
	for _, comp := range graph.StrongComponents(dg) {
		if len(comp) > 1 {
			for _, v := range comp {
				out[names[v]] = true
			}
		}
	}
	for t := range selfEdge {
		out[t] = true
	}
	return out
}
