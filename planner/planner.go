// Package planner orders the work described by a parsed query: the
// inter-feature dependency DAG of spec.md §4.H (which `@name := expr`
// assignments must run before the features that use them), and the
// intra-aggregation DAG of spec.md §4.D's "Dependency analysis" section
// (coalescing shared subexpressions across aggregations). Grounded on
// the teacher's datalog/planner package in spirit only — this spec's
// planning problem is a feature DAG over expressions, not the teacher's
// datalog-pattern query planner, so the graph algorithms here are
// written fresh rather than adapted line-by-line; no example repo in
// the corpus ships a general-purpose graph/topological-sort library,
// so Kahn's algorithm is implemented directly over the standard
// library.
package planner

import (
	"sort"

	"github.com/wbrown/chronoquery/ast"
)

// PlanFeatures returns the order in which to evaluate a Select's items
// so that every `@x := expr` assignment runs before any feature that
// uses `@x` (spec.md §4.H). Ties among independent features are broken
// by source order. If the dependency graph has a cycle, PlanFeatures
// falls back to source order outright: evaluation will then fail at
// the first unresolved use, which is the intended user-visible error
// rather than a silently-wrong reordering.
func PlanFeatures(items []ast.Expr) []int {
	n := len(items)
	assignedBy := map[string]int{}
	usesByFeature := make([]map[string]bool, n)

	for i, item := range items {
		assigns, uses := ast.FeatureDeps(item)
		usesByFeature[i] = toSet(uses)
		for _, name := range assigns {
			assignedBy[name] = i
		}
	}

	adj := make([][]int, n)
	indegree := make([]int, n)
	for i := range items {
		for name := range usesByFeature[i] {
			if j, ok := assignedBy[name]; ok && j != i {
				adj[j] = append(adj[j], i)
				indegree[i]++
			}
		}
	}

	if order, ok := kahnStable(adj, indegree, n); ok {
		return order
	}
	return sourceOrder(n)
}

func toSet(vals []string) map[string]bool {
	s := make(map[string]bool, len(vals))
	for _, v := range vals {
		s[v] = true
	}
	return s
}

func sourceOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// kahnStable runs Kahn's algorithm, always picking the smallest ready
// index so results are deterministic across runs with the same input.
func kahnStable(adj [][]int, indegree []int, n int) ([]int, bool) {
	indeg := append([]int(nil), indegree...)
	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	var order []int
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)
		for _, next := range adj[node] {
			indeg[next]--
			if indeg[next] == 0 {
				ready = append(ready, next)
				sort.Ints(ready)
			}
		}
	}
	if len(order) != n {
		return nil, false
	}
	return order, true
}
