// Package partialagg implements the incremental aggregate state
// machines of spec.md §4.C: closed-form invertible reducers that
// support update/merge/subtract for the sliding-window driver, and
// non-invertible reducers that fall back to full recompute over the
// materialized window.
package partialagg

import (
	"math"
	"time"

	cq "github.com/wbrown/chronoquery"
)

// Func names a supported aggregate function.
type Func uint8

const (
	Count Func = iota
	Sum
	Product
	Avg
	Var
	StDev
	Min
	Max
	Median
	First
	Last
	Nth
	TimeOfFirst
	TimeOfLast
	TimeOfNext
	AvgDaysBetween
	Mode
	ArgMin
	ArgMax
	Values
	Any
	All
	MaxConsecutiveTrue
)

// Invertible reports whether fn has closed-form update/merge/subtract
// state (spec.md §4.C table), as opposed to falling back to recompute.
func (fn Func) Invertible() bool {
	switch fn {
	case Count, Sum, Product, Avg, Var, StDev, Min:
		return true
	default:
		return false
	}
}

// Aggregate is one running aggregate computation. Update folds in one
// observation; Evaluate produces the current Value.
type Aggregate interface {
	Update(v cq.Value, ts time.Time)
	Evaluate() cq.Value
}

// Mergeable aggregates can be combined from two states computed over
// disjoint inputs, the basis of the sliding-window pre-aggregation
// pass (spec.md §4.G).
type Mergeable interface {
	Aggregate
	Merge(other Aggregate) Aggregate
}

// Invertible aggregates additionally support reversing a previous
// Merge, letting the sliding window evict observations that have
// fallen out of range without rescanning.
type Invertible interface {
	Mergeable
	SubtractInPlace(other Aggregate)
}

// New constructs a zero-valued aggregate for fn. Args are the extra
// parameters some functions need: Nth takes an int index; all others
// ignore args.
func New(fn Func, args ...cq.Value) Aggregate {
	switch fn {
	case Count:
		return &countAgg{}
	case Sum:
		return &sumAgg{}
	case Product:
		return &productAgg{}
	case Avg:
		return &avgAgg{}
	case Var:
		return &varAgg{}
	case StDev:
		return &stdevAgg{varAgg: &varAgg{}}
	case Min:
		return newMultisetAgg(true)
	case Max:
		return &naiveAgg{fn: Max}
	case Median:
		return &naiveAgg{fn: Median}
	case First:
		return &naiveAgg{fn: First}
	case Last:
		return &naiveAgg{fn: Last}
	case Nth:
		n := 0
		if len(args) > 0 {
			u := args[0].Unwrap()
			switch u.Kind() {
			case cq.KindInt:
				n = int(u.AsInt())
			case cq.KindFloat:
				n = int(u.AsFloat())
			}
		}
		return &naiveAgg{fn: Nth, n: n}
	case TimeOfFirst:
		return &naiveAgg{fn: TimeOfFirst}
	case TimeOfLast:
		return &naiveAgg{fn: TimeOfLast}
	case TimeOfNext:
		return &naiveAgg{fn: TimeOfNext}
	case AvgDaysBetween:
		return &naiveAgg{fn: AvgDaysBetween}
	case Mode:
		return &naiveAgg{fn: Mode}
	case ArgMin:
		return &argExtremumAgg{findMax: false}
	case ArgMax:
		return &argExtremumAgg{findMax: true}
	case Values:
		return &naiveAgg{fn: Values}
	case Any:
		return &naiveAgg{fn: Any}
	case All:
		return &naiveAgg{fn: All}
	case MaxConsecutiveTrue:
		return &maxConsecutiveTrueAgg{}
	default:
		return &naiveAgg{fn: fn}
	}
}

// collapseFloat applies the spec's numerical policy: NaN/Inf results
// collapse to null (spec.md §7 "Numerical").
func collapseFloat(f float64) cq.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return cq.Null()
	}
	return cq.Float(f)
}
