package ast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cq "github.com/wbrown/chronoquery"
)

func TestExtractDepsFindsAssignsAndUses(t *testing.T) {
	// @a + @b as c, with @a := 1, @b := 2 -- S5-style feature list.
	c := &AliasExpr{
		Inner: &BinaryExpr{Op: "+", Left: &ContextAttr{Name: "a"}, Right: &ContextAttr{Name: "b"}},
		Name:  "c",
	}
	d := ExtractDeps(c)
	assert.ElementsMatch(t, []string{"a", "b"}, d.Uses)
	assert.Empty(t, d.Assigns)

	assign := &VarAssign{Name: "a", Expr: &Literal{Value: cq.Int(1)}}
	d2 := ExtractDeps(assign)
	assert.Equal(t, []string{"a"}, d2.Assigns)
}

func TestExtractDepsFindsAggregationsAndAttrs(t *testing.T) {
	agg := &AggrExpr{
		Func: "sum",
		Arg:  &AttrRef{Name: "pressure"},
	}
	d := ExtractDeps(agg)
	require.Len(t, d.Aggregations, 1)
	require.Len(t, d.UntypedAttrs, 1)
	assert.Equal(t, "pressure", d.UntypedAttrs[0].Name)
}

func TestWalkVisitsEveryNodeOnce(t *testing.T) {
	e := &BinaryExpr{
		Op:   "+",
		Left: &Literal{Value: cq.Int(1)},
		Right: &FuncCall{
			Name: "abs",
			Args: []Expr{&Literal{Value: cq.Int(2)}},
		},
	}
	count := 0
	Walk(VisitorFunc(func(n Expr) bool {
		count++
		return true
	}), e)
	assert.Equal(t, 4, count) // BinaryExpr, Literal, FuncCall, Literal
}

type stubResolver struct {
	kind cq.Kind
	err  error
}

func (s stubResolver) ResolveUntyped(name string) (cq.Kind, error) { return s.kind, s.err }

func TestResolveUntypedAttrsSetsKind(t *testing.T) {
	ref := &AttrRef{Name: "pressure"}
	errs := ResolveUntypedAttrs(ref, stubResolver{kind: cq.KindFloat})
	assert.Empty(t, errs)
	assert.True(t, ref.Resolved)
	assert.Equal(t, cq.KindFloat, ref.ResolvedKind)
}

func TestResolveUntypedAttrsCollectsErrors(t *testing.T) {
	e := &BinaryExpr{
		Op:   "+",
		Left: &AttrRef{Name: "x"},
		Right: &AttrRef{Name: "y"},
	}
	boom := errors.New("ambiguous")
	errs := ResolveUntypedAttrs(e, stubResolver{err: boom})
	assert.Len(t, errs, 2)
}

func TestResolveUntypedAttrsSkipsTypedRefs(t *testing.T) {
	ref := &AttrRef{EventType: "sensor", Name: "pressure"}
	errs := ResolveUntypedAttrs(ref, stubResolver{err: errors.New("should not be called")})
	assert.Empty(t, errs)
	assert.False(t, ref.Resolved)
}
