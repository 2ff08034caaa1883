package query

import (
	"fmt"

	"github.com/wbrown/chronoquery/ast"
	"github.com/wbrown/chronoquery/parser"
	"github.com/wbrown/chronoquery/planner"
)

// Features is a Select's items together with their evaluation order
// and output column names (spec.md §4.I step 2). VarAssign items
// contribute no output column (spec.md §4.H).
type Features struct {
	Items []ast.Expr
	Order []int
	Names []string // one per Items[i] that is not a VarAssign, in Items order
}

// BuildFeatures parses raw (either one "SELECT ... FOR ..." query, or a
// list of bare expression strings) into a Features, per spec.md §6.5's
// "raw query (one string OR list of strings)".
func BuildFeatures(raw interface{}) (*Features, string, error) {
	switch v := raw.(type) {
	case string:
		q, err := parser.ParseQuery(v)
		if err == nil {
			return newFeatures(q.Select.Items), q.EntityType, nil
		}
		sel, err2 := parser.ParseSelectList(v)
		if err2 != nil {
			return nil, "", fmt.Errorf("query: could not parse %q as a full query (%v) or an expression list (%w)", v, err, err2)
		}
		return newFeatures(sel.Items), "", nil
	case []string:
		items := make([]ast.Expr, len(v))
		for i, src := range v {
			e, err := parser.ParseExpr(src)
			if err != nil {
				return nil, "", fmt.Errorf("query: feature %d: %w", i, err)
			}
			items[i] = e
		}
		return newFeatures(items), "", nil
	default:
		return nil, "", fmt.Errorf("query: raw query must be a string or []string, got %T", raw)
	}
}

func newFeatures(items []ast.Expr) *Features {
	f := &Features{Items: items, Order: planner.PlanFeatures(items)}
	for _, it := range items {
		if _, ok := it.(*ast.VarAssign); ok {
			continue
		}
		f.Names = append(f.Names, featureName(it))
	}
	return f
}

func featureName(e ast.Expr) string {
	if a, ok := e.(*ast.AliasExpr); ok {
		return a.Name
	}
	return e.String()
}
