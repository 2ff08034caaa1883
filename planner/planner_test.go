package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/ast"
)

func TestPlanFeaturesOrdersAssignmentBeforeUse(t *testing.T) {
	// items: [0] uses @base, [1] assigns @base
	items := []ast.Expr{
		&ast.AliasExpr{Name: "delta", Inner: &ast.BinaryExpr{
			Op:    "-",
			Left:  &ast.AttrRef{Name: "pressure"},
			Right: &ast.ContextAttr{Name: "base"},
		}},
		&ast.VarAssign{Name: "base", Expr: &ast.Literal{Value: cq.Int(10)}},
	}
	order := PlanFeatures(items)
	require.Len(t, order, 2)
	pos := make(map[int]int, len(order))
	for i, idx := range order {
		pos[idx] = i
	}
	assert.Less(t, pos[1], pos[0], "assignment of @base must precede its use")
}

func TestPlanFeaturesIndependentFeaturesKeepSourceOrder(t *testing.T) {
	items := []ast.Expr{
		&ast.AttrRef{Name: "a"},
		&ast.AttrRef{Name: "b"},
		&ast.AttrRef{Name: "c"},
	}
	order := PlanFeatures(items)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestPlanFeaturesCycleFallsBackToSourceOrder(t *testing.T) {
	// [0] @x := @y, [1] @y := @x -- a cycle.
	items := []ast.Expr{
		&ast.VarAssign{Name: "x", Expr: &ast.ContextAttr{Name: "y"}},
		&ast.VarAssign{Name: "y", Expr: &ast.ContextAttr{Name: "x"}},
	}
	order := PlanFeatures(items)
	assert.Equal(t, []int{0, 1}, order)
}

func TestPlanFeaturesChainOfAssignments(t *testing.T) {
	// [0] uses @c, [1] @c := @b, [2] @b := @a, [3] @a := literal
	items := []ast.Expr{
		&ast.AliasExpr{Name: "out", Inner: &ast.ContextAttr{Name: "c"}},
		&ast.VarAssign{Name: "c", Expr: &ast.ContextAttr{Name: "b"}},
		&ast.VarAssign{Name: "b", Expr: &ast.ContextAttr{Name: "a"}},
		&ast.VarAssign{Name: "a", Expr: &ast.Literal{Value: cq.Int(1)}},
	}
	order := PlanFeatures(items)
	pos := make(map[int]int, len(order))
	for i, idx := range order {
		pos[idx] = i
	}
	assert.Less(t, pos[3], pos[2])
	assert.Less(t, pos[2], pos[1])
	assert.Less(t, pos[1], pos[0])
}

func TestGraphCoalescesSharedSubexpression(t *testing.T) {
	attr := &ast.AttrRef{Name: "pressure"}
	items := []ast.Expr{
		&ast.AggrExpr{Func: "avg", Arg: attr},
		&ast.AggrExpr{Func: "sum", Arg: &ast.AttrRef{Name: "pressure"}},
	}
	g := Build(items)
	var attrCount int
	for _, n := range g.Nodes {
		if n.Kind == KindAttr && n.Key == "pressure" {
			attrCount++
		}
	}
	assert.Equal(t, 1, attrCount, "identical attribute refs across features must coalesce to one node")
}

func TestGraphOrderDependenciesBeforeDependents(t *testing.T) {
	items := []ast.Expr{
		&ast.AliasExpr{Name: "total", Inner: &ast.AggrExpr{
			Func: "sum",
			Arg:  &ast.AttrRef{Name: "pressure"},
		}},
	}
	g := Build(items)
	order := g.Order(true)
	pos := make(map[int]int, len(order))
	for i, n := range order {
		pos[n.ID] = i
	}
	var aliasIdx, aggrIdx, attrIdx int
	for _, n := range g.Nodes {
		switch n.Kind {
		case KindAlias:
			aliasIdx = n.ID
		case KindAggr:
			aggrIdx = n.ID
		case KindAttr:
			attrIdx = n.ID
		}
	}
	assert.Less(t, pos[attrIdx], pos[aggrIdx])
	assert.Less(t, pos[aggrIdx], pos[aliasIdx])
}

func TestGraphOrderNeverPrecedesOwnDependency(t *testing.T) {
	items := []ast.Expr{
		&ast.BinaryExpr{
			Op:    "+",
			Left:  &ast.AttrRef{Name: "a"},
			Right: &ast.BinaryExpr{Op: "*", Left: &ast.AttrRef{Name: "b"}, Right: &ast.AttrRef{Name: "c"}},
		},
	}
	g := Build(items)
	for _, asc := range []bool{true, false} {
		order := g.Order(asc)
		pos := make(map[int]int, len(order))
		for i, n := range order {
			pos[n.ID] = i
		}
		for _, n := range g.Nodes {
			for _, dep := range n.Deps {
				assert.Less(t, pos[dep], pos[n.ID])
			}
		}
	}
}
