package query

import (
	"github.com/wbrown/chronoquery/planner"
)

// ExplainPlan parses raw the same way BuildFeatures does and builds the
// intra-aggregation coalescing DAG of spec.md §4.D over its features:
// any subexpression that recurs verbatim across two or more features
// (the same `pressure` attribute read by two aggregations, say) is
// collapsed into one shared Node. The returned order is the dependency-
// first schedule a coalescing evaluator would follow; it is diagnostic
// only here (see trace.FormatPlan / the CLI's -explain flag) and does
// not itself change how Run evaluates the query.
func ExplainPlan(raw interface{}) (*planner.Graph, []*planner.Node, error) {
	features, _, err := BuildFeatures(raw)
	if err != nil {
		return nil, nil, err
	}
	g := planner.Build(features.Items)
	return g, g.Order(true), nil
}
