// Package chronoquery implements a temporal feature-engineering engine:
// given an append-only log of timestamped events attached to entities and
// a set of observation times per entity, it evaluates a small declarative
// query language that computes windowed aggregations for each
// (entity, observation-time) pair.
package chronoquery

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind tags the dynamic type carried by a Value. Values are a closed
// enum rather than a bare interface{}: attribute types are discovered
// incrementally from events (see event.Schema), so type mismatches must
// surface as query errors, not compile errors, and dispatch has to be an
// explicit match over a known set of tags.
type Kind uint8

const (
	KindNull Kind = iota
	KindWildcard
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindDateTime
	KindMapValue
	KindMapFloat
	KindMapString
	KindVecBool
	KindVecInt
	KindVecFloat
	KindVecString
	KindAliased
	KindNotCalculatedYet
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindWildcard:
		return "wildcard"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindMapValue:
		return "map<value>"
	case KindMapFloat:
		return "map<float>"
	case KindMapString:
		return "map<string>"
	case KindVecBool:
		return "vec<bool>"
	case KindVecInt:
		return "vec<int>"
	case KindVecFloat:
		return "vec<float>"
	case KindVecString:
		return "vec<string>"
	case KindAliased:
		return "aliased"
	case KindNotCalculatedYet:
		return "not-calculated-yet"
	default:
		return "unknown"
	}
}

// Value is a dynamically-typed scalar or collection value produced by
// expression evaluation and stored in event attributes. The zero Value
// is Null.
type Value struct {
	kind Kind

	b bool
	i int64
	f float64
	s string
	t time.Time

	mv map[string]Value
	mf map[string]float64
	ms map[string]string

	vb []bool
	vi []int64
	vf []float64
	vs []string

	aliasName string
	aliasVal  *Value
}

// Constructors, mirroring the teacher's value.go helper style
// (String/Int/Float/Bool/Time) but producing a closed-enum Value.

func Null() Value             { return Value{kind: KindNull} }
func Wildcard() Value         { return Value{kind: KindWildcard} }
func NotCalculatedYet() Value { return Value{kind: KindNotCalculatedYet} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int(i int64) Value       { return Value{kind: KindInt, i: i} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func Str(s string) Value      { return Value{kind: KindString, s: s} }
func Date(t time.Time) Value  { return Value{kind: KindDate, t: t} }
func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, t: t}
}
func MapValue(m map[string]Value) Value   { return Value{kind: KindMapValue, mv: m} }
func MapFloat(m map[string]float64) Value { return Value{kind: KindMapFloat, mf: m} }
func MapString(m map[string]string) Value { return Value{kind: KindMapString, ms: m} }
func VecBool(v []bool) Value              { return Value{kind: KindVecBool, vb: v} }
func VecInt(v []int64) Value              { return Value{kind: KindVecInt, vi: v} }
func VecFloat(v []float64) Value          { return Value{kind: KindVecFloat, vf: v} }
func VecString(v []string) Value          { return Value{kind: KindVecString, vs: v} }

// Aliased wraps a value together with the alias name it was selected
// under (`X as name`).
func Aliased(name string, v Value) Value {
	vv := v
	return Value{kind: KindAliased, aliasName: name, aliasVal: &vv}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsWildcard() bool  { return v.kind == KindWildcard }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsInt() int64      { return v.i }
func (v Value) AsFloat() float64  { return v.f }
func (v Value) AsString() string  { return v.s }
func (v Value) AsTime() time.Time { return v.t }
func (v Value) AsMapValue() map[string]Value   { return v.mv }
func (v Value) AsMapFloat() map[string]float64 { return v.mf }
func (v Value) AsMapString() map[string]string { return v.ms }
func (v Value) AsVecBool() []bool     { return v.vb }
func (v Value) AsVecInt() []int64     { return v.vi }
func (v Value) AsVecFloat() []float64 { return v.vf }
func (v Value) AsVecString() []string { return v.vs }

// Unwrap strips an aliased wrapper, returning the inner value unchanged
// for anything else.
func (v Value) Unwrap() Value {
	if v.kind == KindAliased && v.aliasVal != nil {
		return v.aliasVal.Unwrap()
	}
	return v
}

// AliasName returns the alias name for an Aliased value, or "".
func (v Value) AliasName() string {
	if v.kind == KindAliased {
		return v.aliasName
	}
	return ""
}

// floatEpsilon is the tolerance used for float equality, per spec.md
// §3's "equality on float uses an absolute-epsilon tolerance (ε =
// machine epsilon of the float type)".
const floatEpsilon = 2.220446049250313e-16

func floatsEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b) <= floatEpsilon
}

// Get descends a dotted attribute path ("a.b.c") through nested
// map-of-value attributes. A missing segment yields Null, never an
// error — spec.md §4.A: "a missing segment yields null".
func (v Value) Get(path string) Value {
	if path == "" {
		return v
	}
	cur := v.Unwrap()
	segs := splitPath(path)
	for _, seg := range segs {
		if cur.kind != KindMapValue {
			return Null()
		}
		next, ok := cur.mv[seg]
		if !ok {
			return Null()
		}
		cur = next.Unwrap()
	}
	return cur
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}

// ToFloat coerces a Value to float64 for aggregation purposes:
// bool -> {0,1}, int -> float, float passthrough; anything else fails.
func (v Value) ToFloat() (float64, error) {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindInt:
		return float64(v.i), nil
	case KindFloat:
		return v.f, nil
	default:
		return 0, fmt.Errorf("%w: cannot coerce %s to float", ErrType, v.kind)
	}
}

// numericWiden returns (leftFloat, rightFloat, bothInt, ok) for a pair
// of values in an arithmetic/comparison context; ok is false when either
// side is not numeric.
func numericWiden(a, b Value) (af, bf float64, bothInt bool, ok bool) {
	if a.kind == KindInt && b.kind == KindInt {
		return float64(a.i), float64(b.i), true, true
	}
	if (a.kind == KindInt || a.kind == KindFloat) && (b.kind == KindInt || b.kind == KindFloat) {
		af = a.f
		if a.kind == KindInt {
			af = float64(a.i)
		}
		bf = b.f
		if b.kind == KindInt {
			bf = float64(b.i)
		}
		return af, bf, false, true
	}
	return 0, 0, false, false
}

// Add implements arithmetic + with widening on mixed numeric operands.
func Add(a, b Value) (Value, error) { return arith("+", a, b) }

// Sub implements arithmetic - with widening on mixed numeric operands.
func Sub(a, b Value) (Value, error) { return arith("-", a, b) }

// Mul implements arithmetic * with widening on mixed numeric operands.
func Mul(a, b Value) (Value, error) { return arith("*", a, b) }

// Div implements arithmetic / with widening on mixed numeric operands.
// Division always produces a float, matching the original behavior of
// integer division promoting to float to avoid silent truncation.
func Div(a, b Value) (Value, error) { return arith("/", a, b) }

func arith(op string, a, b Value) (Value, error) {
	af, bf, bothInt, ok := numericWiden(a, b)
	if !ok {
		return Null(), fmt.Errorf("%w: incompatible operand types for %q: %s and %s", ErrType, op, a.kind, b.kind)
	}
	switch op {
	case "+":
		if bothInt {
			return Int(a.i + b.i), nil
		}
		return Float(af + bf), nil
	case "-":
		if bothInt {
			return Int(a.i - b.i), nil
		}
		return Float(af - bf), nil
	case "*":
		if bothInt {
			return Int(a.i * b.i), nil
		}
		return Float(af * bf), nil
	case "/":
		if bf == 0 {
			return Null(), nil
		}
		return Float(af / bf), nil
	default:
		return Null(), fmt.Errorf("%w: unknown operator %q", ErrType, op)
	}
}

// Compare returns -1, 0, or 1 for left compared to right, following a
// total order for compatible types: numeric cross-compare widens
// int->float; string/date/datetime compare lexicographically/
// chronologically. It errors for incompatible types, carrying both
// operand kinds in the message (spec.md §4.A).
func Compare(left, right Value) (int, error) {
	l, r := left.Unwrap(), right.Unwrap()

	if l.kind == KindNull && r.kind == KindNull {
		return 0, nil
	}
	if l.kind == KindNull {
		return -1, nil
	}
	if r.kind == KindNull {
		return 1, nil
	}

	switch l.kind {
	case KindInt, KindFloat:
		if r.kind == KindInt || r.kind == KindFloat {
			af, bf, _, _ := numericWiden(l, r)
			if floatsEqual(af, bf) {
				return 0, nil
			}
			if af < bf {
				return -1, nil
			}
			return 1, nil
		}
	case KindString:
		if r.kind == KindString {
			return stringCompare(l.s, r.s), nil
		}
	case KindBool:
		if r.kind == KindBool {
			if l.b == r.b {
				return 0, nil
			}
			if !l.b {
				return -1, nil
			}
			return 1, nil
		}
	case KindDate, KindDateTime:
		if r.kind == KindDate || r.kind == KindDateTime {
			if l.t.Equal(r.t) {
				return 0, nil
			}
			if l.t.Before(r.t) {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, fmt.Errorf("%w: incomparable types %s and %s", ErrType, l.kind, r.kind)
}

func stringCompare(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Equal reports whether two values are equal, using epsilon-toleranced
// comparison for floats and exact comparison otherwise.
func Equal(a, b Value) bool {
	l, r := a.Unwrap(), b.Unwrap()
	if l.kind == KindNull || r.kind == KindNull {
		return l.kind == r.kind
	}
	switch l.kind {
	case KindInt, KindFloat:
		if r.kind != KindInt && r.kind != KindFloat {
			return false
		}
		af, bf, _, _ := numericWiden(l, r)
		return floatsEqual(af, bf)
	case KindString:
		return r.kind == KindString && l.s == r.s
	case KindBool:
		return r.kind == KindBool && l.b == r.b
	case KindDate, KindDateTime:
		return (r.kind == KindDate || r.kind == KindDateTime) && l.t.Equal(r.t)
	default:
		return false
	}
}

// In reports whether value equals any element of a homogeneous vector
// literal (spec.md §4.A "membership over homogeneous vector literals").
func In(v Value, vec Value) (bool, error) {
	u := v.Unwrap()
	switch vec.kind {
	case KindVecString:
		if u.kind != KindString {
			return false, fmt.Errorf("%w: `in` string vector against %s", ErrType, u.kind)
		}
		for _, s := range vec.vs {
			if s == u.s {
				return true, nil
			}
		}
		return false, nil
	case KindVecInt:
		if u.kind != KindInt && u.kind != KindFloat {
			return false, fmt.Errorf("%w: `in` int vector against %s", ErrType, u.kind)
		}
		for _, i := range vec.vi {
			if Equal(u, Int(i)) {
				return true, nil
			}
		}
		return false, nil
	case KindVecFloat:
		if u.kind != KindInt && u.kind != KindFloat {
			return false, fmt.Errorf("%w: `in` float vector against %s", ErrType, u.kind)
		}
		for _, f := range vec.vf {
			if Equal(u, Float(f)) {
				return true, nil
			}
		}
		return false, nil
	case KindVecBool:
		if u.kind != KindBool {
			return false, fmt.Errorf("%w: `in` bool vector against %s", ErrType, u.kind)
		}
		for _, b := range vec.vb {
			if b == u.b {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: `in` requires a vector literal, got %s", ErrType, vec.kind)
	}
}

// String renders a Value for diagnostics, group-by bucket keys, and
// trace output.
func (v Value) String() string {
	u := v.Unwrap()
	switch u.kind {
	case KindNull:
		return "null"
	case KindWildcard:
		return "*"
	case KindNotCalculatedYet:
		return "<not calculated yet>"
	case KindBool:
		return fmt.Sprintf("%t", u.b)
	case KindInt:
		return fmt.Sprintf("%d", u.i)
	case KindFloat:
		return fmt.Sprintf("%g", u.f)
	case KindString:
		return u.s
	case KindDate:
		return u.t.Format("2006-01-02")
	case KindDateTime:
		return u.t.Format(time.RFC3339)
	case KindMapValue:
		keys := make([]string, 0, len(u.mv))
		for k := range u.mv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%v", keys)
	case KindVecString:
		return fmt.Sprintf("%v", u.vs)
	case KindVecInt:
		return fmt.Sprintf("%v", u.vi)
	case KindVecFloat:
		return fmt.Sprintf("%v", u.vf)
	case KindVecBool:
		return fmt.Sprintf("%v", u.vb)
	default:
		return "<value>"
	}
}
