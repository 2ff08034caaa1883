package eval

import (
	"fmt"
	"math"
	"strings"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/ast"
)

// Eval recursively evaluates e against ctx (spec.md §4.F). Both
// operands of `and`/`or` are always evaluated (no short-circuiting);
// a non-boolean operand to either collapses to Bool(false), per the
// spec's "strict evaluation" rule.
func Eval(e ast.Expr, ctx *Context) (cq.Value, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return n.Value, nil
	case *ast.Wildcard:
		return cq.Wildcard(), nil
	case *ast.AttrRef:
		return evalAttrRef(n, ctx)
	case *ast.Reserved:
		return evalReserved(n, ctx)
	case *ast.ContextAttr:
		return evalContextAttr(n, ctx)
	case *ast.UnaryExpr:
		return evalUnary(n, ctx)
	case *ast.BinaryExpr:
		return evalBinary(n, ctx)
	case *ast.InExpr:
		return evalIn(n, ctx)
	case *ast.FuncCall:
		return evalFuncCall(n, ctx)
	case *ast.AggrExpr:
		return EvalAggregation(n, ctx)
	case *ast.AliasExpr:
		return Eval(n.Inner, ctx)
	case *ast.VarAssign:
		v, err := Eval(n.Expr, ctx)
		if err != nil {
			return cq.Null(), err
		}
		ctx.SetVariable(n.Name, v)
		return v, nil
	default:
		return cq.Null(), fmt.Errorf("%w: unhandled expression node %T", cq.ErrType, e)
	}
}

// evalAttrRef reads ref off the current context event. A typed
// reference (event_type.attr) is scoped to events of that type, so it
// reads as Null when the context event is some other type instead of
// accidentally picking up an attribute that happens to share the name.
// Ambiguity across event types for an untyped reference is caught
// earlier, by ast.ResolveUntypedAttrs against the store's schema
// (query.Run runs this once per feature before evaluating any entity);
// by the time an untyped ref reaches here it has either been marked
// Resolved or the query already failed, so the lookup itself is just
// the attribute path read.
func evalAttrRef(ref *ast.AttrRef, ctx *Context) (cq.Value, error) {
	if ctx.ContextEvent == nil {
		return cq.Null(), fmt.Errorf("%w: attribute %q referenced with no context event", cq.ErrMissingContext, ref.Name)
	}
	if ref.EventType != "" && ctx.ContextEvent.EventType != ref.EventType {
		return cq.Null(), nil
	}
	return ctx.ContextEvent.AttrPath(ref.Name), nil
}

func evalReserved(r *ast.Reserved, ctx *Context) (cq.Value, error) {
	switch r.Kind {
	case ast.ReservedObsDt:
		return cq.DateTime(ctx.ObsTime), nil
	case ast.ReservedEntity:
		id, ok := ctx.Entities.Get(cq.EntityType(r.EntityType))
		if !ok {
			return cq.Null(), nil
		}
		return cq.Str(string(id)), nil
	case ast.ReservedEventType, ast.ReservedEventTime, ast.ReservedEventID:
		if ctx.ContextEvent == nil {
			return cq.Null(), fmt.Errorf("%w: %s referenced with no context event", cq.ErrMissingContext, r.String())
		}
		v, _ := ctx.ContextEvent.Reserved(r.String())
		return v, nil
	default:
		return cq.Null(), fmt.Errorf("%w: unknown reserved symbol", cq.ErrType)
	}
}

// evalContextAttr implements the `@name` resolution order of spec.md
// §4.F: entities.<type> reference, then a stored variable for the
// current observation time, then a fallback to the context event's
// attribute.
func evalContextAttr(c *ast.ContextAttr, ctx *Context) (cq.Value, error) {
	if strings.HasPrefix(c.Name, "entities.") {
		typ := cq.EntityType(strings.TrimPrefix(c.Name, "entities."))
		id, ok := ctx.Entities.Get(typ)
		if !ok {
			return cq.Null(), nil
		}
		return cq.Str(string(id)), nil
	}
	if v, ok := ctx.lookupVariable(c.Name); ok {
		return v, nil
	}
	if ctx.ContextEvent == nil {
		return cq.Null(), fmt.Errorf("%w: @%s referenced with no stored variable and no context event", cq.ErrMissingContext, c.Name)
	}
	return ctx.ContextEvent.AttrPath(c.Name), nil
}

func evalUnary(u *ast.UnaryExpr, ctx *Context) (cq.Value, error) {
	v, err := Eval(u.Operand, ctx)
	if err != nil {
		return cq.Null(), err
	}
	v = v.Unwrap()
	switch u.Op {
	case "-":
		f, ferr := v.ToFloat()
		if ferr != nil {
			return cq.Null(), fmt.Errorf("%w: cannot negate %s", cq.ErrType, v.Kind())
		}
		if v.Kind() == cq.KindInt {
			return cq.Int(-v.AsInt()), nil
		}
		return cq.Float(-f), nil
	case "not":
		if v.Kind() != cq.KindBool {
			return cq.Bool(false), nil
		}
		return cq.Bool(!v.AsBool()), nil
	default:
		return cq.Null(), fmt.Errorf("%w: unknown unary operator %q", cq.ErrType, u.Op)
	}
}

func evalBinary(b *ast.BinaryExpr, ctx *Context) (cq.Value, error) {
	if b.Op == "and" || b.Op == "or" {
		left, err := Eval(b.Left, ctx)
		if err != nil {
			return cq.Null(), err
		}
		right, err := Eval(b.Right, ctx)
		if err != nil {
			return cq.Null(), err
		}
		lb, lok := asStrictBool(left)
		rb, rok := asStrictBool(right)
		if !lok {
			lb = false
		}
		if !rok {
			rb = false
		}
		if b.Op == "and" {
			return cq.Bool(lb && rb), nil
		}
		return cq.Bool(lb || rb), nil
	}

	left, err := Eval(b.Left, ctx)
	if err != nil {
		return cq.Null(), err
	}
	right, err := Eval(b.Right, ctx)
	if err != nil {
		return cq.Null(), err
	}

	switch b.Op {
	case "+":
		return cq.Add(left, right)
	case "-":
		return cq.Sub(left, right)
	case "*":
		return cq.Mul(left, right)
	case "/":
		return cq.Div(left, right)
	case "^":
		lf, lerr := left.Unwrap().ToFloat()
		rf, rerr := right.Unwrap().ToFloat()
		if lerr != nil || rerr != nil {
			return cq.Null(), fmt.Errorf("%w: `^` requires numeric operands", cq.ErrType)
		}
		return cq.Float(math.Pow(lf, rf)), nil
	case "<", "<=", ">", ">=":
		cmp, cerr := cq.Compare(left, right)
		if cerr != nil {
			return cq.Null(), cerr
		}
		switch b.Op {
		case "<":
			return cq.Bool(cmp < 0), nil
		case "<=":
			return cq.Bool(cmp <= 0), nil
		case ">":
			return cq.Bool(cmp > 0), nil
		default:
			return cq.Bool(cmp >= 0), nil
		}
	case "=", "==":
		return cq.Bool(cq.Equal(left, right)), nil
	case "!=", "<>":
		return cq.Bool(!cq.Equal(left, right)), nil
	default:
		return cq.Null(), fmt.Errorf("%w: unknown binary operator %q", cq.ErrType, b.Op)
	}
}

func asStrictBool(v cq.Value) (bool, bool) {
	u := v.Unwrap()
	if u.Kind() != cq.KindBool {
		return false, false
	}
	return u.AsBool(), true
}

func evalIn(in *ast.InExpr, ctx *Context) (cq.Value, error) {
	v, err := Eval(in.Operand, ctx)
	if err != nil {
		return cq.Null(), err
	}
	vec, err := Eval(in.Vec, ctx)
	if err != nil {
		return cq.Null(), err
	}
	ok, err := cq.In(v, vec)
	if err != nil {
		return cq.Null(), err
	}
	if in.Negate {
		ok = !ok
	}
	return cq.Bool(ok), nil
}
