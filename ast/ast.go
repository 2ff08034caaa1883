// Package ast defines the expression tree for the query language of
// spec.md §4.D: literals, attribute references, the reserved context
// symbols, operators, function calls, aggregations, aliasing and
// variable assignment, plus a visitor for extraction and rewrite
// passes.
package ast

import (
	"time"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/interval"
)

// Expr is any node in the expression tree. Children exposes the node's
// immediate subexpressions so Walk can traverse without a node-type
// switch at every call site (spec.md §9: "expose a visitor interface").
type Expr interface {
	Children() []Expr
	String() string
}

// Literal is a scalar or homogeneous-vector constant.
type Literal struct {
	Value cq.Value
}

func (l *Literal) Children() []Expr { return nil }
func (l *Literal) String() string   { return l.Value.String() }

// AttrRef is an attribute reference, typed when EventType is non-empty
// ("event_type.attr"), untyped (late-bound via the schema) otherwise.
// Name may be a dotted path ("dict.m").
type AttrRef struct {
	EventType string
	Name      string

	// Resolved/ResolvedKind are populated by ResolveUntypedAttrs for an
	// initially-untyped reference, once its unique Kind is known.
	Resolved     bool
	ResolvedKind cq.Kind
}

func (a *AttrRef) Children() []Expr { return nil }
func (a *AttrRef) String() string {
	if a.EventType == "" {
		return a.Name
	}
	return a.EventType + "." + a.Name
}

// ReservedKind enumerates the built-in context symbols of spec.md
// §4.D: event_type, event_time, event_id, obs_dt, and entities.<type>.
type ReservedKind uint8

const (
	ReservedEventType ReservedKind = iota
	ReservedEventTime
	ReservedEventID
	ReservedObsDt
	ReservedEntity
)

// Reserved is a reference to one of the reserved context symbols.
// EntityType is populated only for ReservedEntity ("entities.<type>").
type Reserved struct {
	Kind       ReservedKind
	EntityType string
}

func (r *Reserved) Children() []Expr { return nil }
func (r *Reserved) String() string {
	switch r.Kind {
	case ReservedEventType:
		return "event_type"
	case ReservedEventTime:
		return "event_time"
	case ReservedEventID:
		return "event_id"
	case ReservedObsDt:
		return "obs_dt"
	case ReservedEntity:
		return "entities." + r.EntityType
	default:
		return "<reserved>"
	}
}

// ContextAttr is an `@name` reference: a stored variable previously
// assigned with `@name := expr`, or (when no such assignment exists in
// scope) an attribute of the context event.
type ContextAttr struct {
	Name string
}

func (c *ContextAttr) Children() []Expr { return nil }
func (c *ContextAttr) String() string   { return "@" + c.Name }

// Wildcard is the bare `*` used in `count(*)`.
type Wildcard struct{}

func (w *Wildcard) Children() []Expr { return nil }
func (w *Wildcard) String() string   { return "*" }

// BinaryExpr is an arithmetic, comparison, or logical binary operator.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (b *BinaryExpr) Children() []Expr { return []Expr{b.Left, b.Right} }
func (b *BinaryExpr) String() string   { return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")" }

// UnaryExpr is a prefix operator (unary minus, logical not).
type UnaryExpr struct {
	Op      string
	Operand Expr
}

func (u *UnaryExpr) Children() []Expr { return []Expr{u.Operand} }
func (u *UnaryExpr) String() string   { return u.Op + u.Operand.String() }

// InExpr is `expr in (lit, lit, ...)` / `expr not in (...)`.
type InExpr struct {
	Operand Expr
	Vec     Expr // a *Literal carrying a homogeneous vector Value
	Negate  bool
}

func (i *InExpr) Children() []Expr { return []Expr{i.Operand, i.Vec} }
func (i *InExpr) String() string {
	if i.Negate {
		return i.Operand.String() + " not in " + i.Vec.String()
	}
	return i.Operand.String() + " in " + i.Vec.String()
}

// FuncCall is a scalar function invocation (see functions.go).
type FuncCall struct {
	Name string
	Args []Expr
}

func (f *FuncCall) Children() []Expr { return f.Args }
func (f *FuncCall) String() string {
	s := f.Name + "("
	for i, a := range f.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}

// HavingClause selects, among the events contributing to an
// aggregation, every event at which a secondary expression attains its
// minimum/maximum, ties included (spec.md §6.1: `HAVING ("min"|"max") expr`).
type HavingClause struct {
	MinMax string // "min" or "max"
	Expr   Expr
}

// WhenSpec mirrors interval.When, but BetweenStart/BetweenEnd are
// still-unevaluated expression nodes here: resolving "between expr to
// expr" into concrete dates is the evaluator's job (component F), once
// it has a context to evaluate those sub-expressions against. This
// keeps the interval package free of any ast import.
type WhenSpec struct {
	Kind      interval.Kind
	Direction interval.Direction
	N         int
	Unit      interval.Unit

	StartDate time.Time
	EndDate   time.Time

	BetweenStart Expr
	BetweenEnd   Expr

	Keyword interval.Keyword
}

// AggrExpr is one aggregation: agg_func(agg_expr) [FROM event_type]
// OVER when [WHERE where] [GROUP BY groupby] [HAVING min|max having].
// Extra holds any arguments beyond the first (e.g. nth's index, or
// values' optional cap) — the grammar's `agg_name "(" expr ")"` is, in
// practice, `agg_name "(" expr ("," expr)* ")"` for the handful of
// aggregate functions that take auxiliary parameters.
type AggrExpr struct {
	Func      string
	Arg       Expr
	Extra     []Expr
	FromEvent string // "" means no FROM clause (all event types)
	When      WhenSpec
	Where     Expr // nil if absent
	GroupBy   Expr // nil if absent
	Having    *HavingClause
}

func (a *AggrExpr) Children() []Expr {
	children := []Expr{a.Arg}
	children = append(children, a.Extra...)
	if a.Where != nil {
		children = append(children, a.Where)
	}
	if a.GroupBy != nil {
		children = append(children, a.GroupBy)
	}
	if a.Having != nil {
		children = append(children, a.Having.Expr)
	}
	if a.When.BetweenStart != nil {
		children = append(children, a.When.BetweenStart)
	}
	if a.When.BetweenEnd != nil {
		children = append(children, a.When.BetweenEnd)
	}
	return children
}
func (a *AggrExpr) String() string { return a.Func + "(" + a.Arg.String() + ")" }

// AliasExpr is `expr as name`.
type AliasExpr struct {
	Inner Expr
	Name  string
}

func (a *AliasExpr) Children() []Expr { return []Expr{a.Inner} }
func (a *AliasExpr) String() string   { return a.Inner.String() + " as " + a.Name }

// VarAssign is `@name := expr`, a feature that contributes no output
// column but whose value other features in the same Select may use via
// ContextAttr (spec.md §4.D/§4.H).
type VarAssign struct {
	Name string
	Expr Expr
}

func (v *VarAssign) Children() []Expr { return []Expr{v.Expr} }
func (v *VarAssign) String() string   { return "@" + v.Name + " := " + v.Expr.String() }

// Select is the top-level feature list of one query.
type Select struct {
	Items []Expr
}

func (s *Select) Children() []Expr { return s.Items }
func (s *Select) String() string {
	out := ""
	for i, it := range s.Items {
		if i > 0 {
			out += ", "
		}
		out += it.String()
	}
	return out
}

// Query is a full "SELECT ... FOR @entities := type" statement.
type Query struct {
	Select      *Select
	EntitiesVar string
	EntityType  string
}
