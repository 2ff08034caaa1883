package planner

import "github.com/wbrown/chronoquery/ast"

// NodeKind classifies a node of the intra-aggregation DAG (spec.md
// §4.D: "edges go AliasedAggregation -> Aggregation -> {Expression|
// Attribute}, then Expression -> Attribute").
type NodeKind uint8

const (
	KindAttr NodeKind = iota + 1
	KindExpr
	KindAggr
	KindAlias
)

func (k NodeKind) String() string {
	switch k {
	case KindAttr:
		return "attr"
	case KindExpr:
		return "expr"
	case KindAggr:
		return "aggr"
	case KindAlias:
		return "alias"
	default:
		return "unknown"
	}
}

// weight implements spec.md §4.D's tie-break category weights.
var weight = map[NodeKind]int{
	KindAlias: 4,
	KindAggr:  3,
	KindExpr:  2,
	KindAttr:  1,
}

// Node is one coalesced subexpression. Expressions that appear
// identically (by structural string) more than once across a Select's
// features collapse into a single Node, shared by every dependent.
type Node struct {
	ID    int
	Kind  NodeKind
	Key   string
	Depth int
	Expr  ast.Expr
	Deps  []int // indices into Graph.Nodes this node depends on
}

// Graph is the intra-aggregation DAG for one Select.
type Graph struct {
	Nodes []*Node
	byKey map[string]int
}

// Build constructs the DAG for a Select's top-level feature
// expressions, coalescing any subexpression that recurs verbatim
// across features (e.g. the same `pressure` attribute referenced by
// two different aggregations shares one node).
func Build(items []ast.Expr) *Graph {
	g := &Graph{byKey: map[string]int{}}
	for _, item := range items {
		g.add(item, 0)
	}
	return g
}

// ByKey looks up the node coalesced from an expression whose String()
// equals key, if any has been added to the graph.
func (g *Graph) ByKey(key string) (int, bool) {
	idx, ok := g.byKey[key]
	return idx, ok
}

func (g *Graph) add(e ast.Expr, depth int) int {
	key := e.String()
	if idx, ok := g.byKey[key]; ok {
		if depth > g.Nodes[idx].Depth {
			g.Nodes[idx].Depth = depth
		}
		return idx
	}

	n := &Node{ID: len(g.Nodes), Kind: classify(e), Key: key, Depth: depth, Expr: e}
	g.Nodes = append(g.Nodes, n)
	g.byKey[key] = n.ID

	for _, child := range e.Children() {
		if child == nil {
			continue
		}
		n.Deps = append(n.Deps, g.add(child, depth+1))
	}
	return n.ID
}

func classify(e ast.Expr) NodeKind {
	switch e.(type) {
	case *ast.AliasExpr:
		return KindAlias
	case *ast.AggrExpr:
		return KindAggr
	case *ast.AttrRef, *ast.ContextAttr, *ast.Reserved, *ast.Literal, *ast.Wildcard:
		return KindAttr
	default:
		return KindExpr
	}
}

// Order returns the DAG's nodes in dependency-first computation order:
// a node never precedes one of its own Deps. Among nodes ready to
// schedule at the same step, ties are broken by (a) deepest node
// first, then (b) category weight, ascending if asc is true and
// descending otherwise (spec.md §4.D: "user-selectable ascending/
// descending by node category weight").
func (g *Graph) Order(asc bool) []*Node {
	n := len(g.Nodes)
	indeg := make([]int, n)
	fanout := make([][]int, n)
	for _, node := range g.Nodes {
		indeg[node.ID] = len(node.Deps)
		for _, dep := range node.Deps {
			fanout[dep] = append(fanout[dep], node.ID)
		}
	}

	ready := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready[i] = true
		}
	}

	order := make([]*Node, 0, n)
	for len(ready) > 0 {
		best := -1
		for id := range ready {
			if best == -1 || scheduleBefore(g.Nodes[id], g.Nodes[best], asc) {
				best = id
			}
		}
		delete(ready, best)
		order = append(order, g.Nodes[best])
		for _, next := range fanout[best] {
			indeg[next]--
			if indeg[next] == 0 {
				ready[next] = true
			}
		}
	}
	return order
}

func scheduleBefore(a, b *Node, asc bool) bool {
	if a.Depth != b.Depth {
		return a.Depth > b.Depth
	}
	wa, wb := weight[a.Kind], weight[b.Kind]
	if wa != wb {
		if asc {
			return wa < wb
		}
		return wa > wb
	}
	return a.ID < b.ID
}
