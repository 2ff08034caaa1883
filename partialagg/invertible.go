package partialagg

import (
	"math"
	"time"

	cq "github.com/wbrown/chronoquery"
)

// countAgg implements Count: (n:int) -> n.
type countAgg struct{ n int64 }

func (a *countAgg) Update(v cq.Value, _ time.Time) {
	if v.Unwrap().IsNull() {
		return
	}
	a.n++
}
func (a *countAgg) Evaluate() cq.Value { return cq.Int(a.n) }
func (a *countAgg) Merge(other Aggregate) Aggregate {
	o := other.(*countAgg)
	return &countAgg{n: a.n + o.n}
}
func (a *countAgg) SubtractInPlace(other Aggregate) {
	o := other.(*countAgg)
	a.n -= o.n
}

// sumAgg implements Sum: (s:float) -> s.
type sumAgg struct {
	s float64
	n int64 // count of folded-in values, so an empty window returns null
}

func (a *sumAgg) Update(v cq.Value, _ time.Time) {
	u := v.Unwrap()
	if u.IsNull() {
		return
	}
	f, err := u.ToFloat()
	if err != nil {
		return
	}
	a.s += f
	a.n++
}
func (a *sumAgg) Evaluate() cq.Value {
	if a.n == 0 {
		return cq.Null()
	}
	return collapseFloat(a.s)
}
func (a *sumAgg) Merge(other Aggregate) Aggregate {
	o := other.(*sumAgg)
	return &sumAgg{s: a.s + o.s, n: a.n + o.n}
}
func (a *sumAgg) SubtractInPlace(other Aggregate) {
	o := other.(*sumAgg)
	a.s -= o.s
	a.n -= o.n
}

// productAgg implements Product: (p:float, init 1) -> p.
type productAgg struct {
	p   float64
	n   int64 // count of folded-in values, so an empty window still returns null
	set bool
}

func (a *productAgg) Update(v cq.Value, _ time.Time) {
	u := v.Unwrap()
	if u.IsNull() {
		return
	}
	f, err := u.ToFloat()
	if err != nil {
		return
	}
	if !a.set {
		a.p = 1
		a.set = true
	}
	a.p *= f
	a.n++
}
func (a *productAgg) Evaluate() cq.Value {
	if a.n == 0 {
		return cq.Null()
	}
	return collapseFloat(a.p)
}
func (a *productAgg) Merge(other Aggregate) Aggregate {
	o := other.(*productAgg)
	if !a.set && !o.set {
		return &productAgg{}
	}
	p := 1.0
	if a.set {
		p *= a.p
	}
	if o.set {
		p *= o.p
	}
	return &productAgg{p: p, n: a.n + o.n, set: true}
}
func (a *productAgg) SubtractInPlace(other Aggregate) {
	o := other.(*productAgg)
	if o.set && o.p != 0 {
		a.p /= o.p
	}
	a.n -= o.n
	if a.n <= 0 {
		a.set = false
		a.p = 0
		a.n = 0
	}
}

// avgAgg implements Avg: (s, n) -> s/n.
type avgAgg struct {
	s float64
	n int64
}

func (a *avgAgg) Update(v cq.Value, _ time.Time) {
	u := v.Unwrap()
	if u.IsNull() {
		return
	}
	f, err := u.ToFloat()
	if err != nil {
		return
	}
	a.s += f
	a.n++
}
func (a *avgAgg) Evaluate() cq.Value {
	if a.n == 0 {
		return cq.Null()
	}
	return collapseFloat(a.s / float64(a.n))
}
func (a *avgAgg) Merge(other Aggregate) Aggregate {
	o := other.(*avgAgg)
	return &avgAgg{s: a.s + o.s, n: a.n + o.n}
}
func (a *avgAgg) SubtractInPlace(other Aggregate) {
	o := other.(*avgAgg)
	a.s -= o.s
	a.n -= o.n
}

// varAgg implements Var: (s, ss, n) -> (ss/n - (s/n)^2) * n/(n-1); 0 if n<2.
type varAgg struct {
	s  float64
	ss float64
	n  int64
}

func (a *varAgg) Update(v cq.Value, _ time.Time) {
	u := v.Unwrap()
	if u.IsNull() {
		return
	}
	f, err := u.ToFloat()
	if err != nil {
		return
	}
	a.s += f
	a.ss += f * f
	a.n++
}
func (a *varAgg) Evaluate() cq.Value {
	if a.n == 0 {
		return cq.Null()
	}
	if a.n < 2 {
		return cq.Float(0)
	}
	n := float64(a.n)
	mean := a.s / n
	population := a.ss/n - mean*mean
	return collapseFloat(population * n / (n - 1))
}
func (a *varAgg) Merge(other Aggregate) Aggregate {
	o := other.(*varAgg)
	return &varAgg{s: a.s + o.s, ss: a.ss + o.ss, n: a.n + o.n}
}
func (a *varAgg) SubtractInPlace(other Aggregate) {
	o := other.(*varAgg)
	a.s -= o.s
	a.ss -= o.ss
	a.n -= o.n
}

// stdevAgg implements StDev as sqrt(Var), sharing Var's state exactly
// (spec.md §4.C: "same as Var").
type stdevAgg struct{ *varAgg }

func (a *stdevAgg) Evaluate() cq.Value {
	v := a.varAgg.Evaluate()
	if v.IsNull() {
		return cq.Null()
	}
	f := v.AsFloat()
	if f < 0 {
		return cq.Float(0)
	}
	return collapseFloat(math.Sqrt(f))
}
func (a *stdevAgg) Merge(other Aggregate) Aggregate {
	o := other.(*stdevAgg)
	merged := a.varAgg.Merge(o.varAgg).(*varAgg)
	return &stdevAgg{varAgg: merged}
}
func (a *stdevAgg) SubtractInPlace(other Aggregate) {
	o := other.(*stdevAgg)
	a.varAgg.SubtractInPlace(o.varAgg)
}

// multisetAgg implements Min (and its mirror, Max) as an ordered
// multiset of (value, count), per spec.md §4.C: "Min: multiset (ordered
// map value->count), evaluate: smallest key". Max reuses the same
// state with the comparison inverted and is listed as a non-invertible
// fallback by the spec anyway, so it is driven through naiveAgg instead
// — this type backs Min only.
type multisetAgg struct {
	findMin bool
	counts  map[string]int
	values  map[string]cq.Value
}

func newMultisetAgg(findMin bool) *multisetAgg {
	return &multisetAgg{findMin: findMin, counts: map[string]int{}, values: map[string]cq.Value{}}
}

func (a *multisetAgg) Update(v cq.Value, _ time.Time) {
	u := v.Unwrap()
	if u.IsNull() {
		return
	}
	key := u.String()
	a.counts[key]++
	a.values[key] = u
}
func (a *multisetAgg) Evaluate() cq.Value {
	var best cq.Value
	found := false
	for key, c := range a.counts {
		if c <= 0 {
			continue
		}
		v := a.values[key]
		if !found {
			best = v
			found = true
			continue
		}
		cmp, err := cq.Compare(v, best)
		if err != nil {
			continue
		}
		if (a.findMin && cmp < 0) || (!a.findMin && cmp > 0) {
			best = v
		}
	}
	if !found {
		return cq.Null()
	}
	return best
}
func (a *multisetAgg) Merge(other Aggregate) Aggregate {
	o := other.(*multisetAgg)
	merged := newMultisetAgg(a.findMin)
	for k, c := range a.counts {
		merged.counts[k] += c
		merged.values[k] = a.values[k]
	}
	for k, c := range o.counts {
		merged.counts[k] += c
		merged.values[k] = o.values[k]
	}
	return merged
}
func (a *multisetAgg) SubtractInPlace(other Aggregate) {
	o := other.(*multisetAgg)
	for k, c := range o.counts {
		a.counts[k] -= c
		if a.counts[k] <= 0 {
			delete(a.counts, k)
			delete(a.values, k)
		}
	}
}
