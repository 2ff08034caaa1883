package partialagg

import (
	"sort"
	"time"

	cq "github.com/wbrown/chronoquery"
)

// observation is one (value, timestamp) pair folded into a naive
// aggregate, mirroring the original's ValueWithTimestamp (naive_aggregate_funcs.rs).
type observation struct {
	v  cq.Value
	ts time.Time
}

// naiveAgg recomputes its result from the full list of observations on
// every Evaluate, backing every non-invertible reducer of spec.md §4.C
// (Max, Median, First, Last, Nth, TimeOf{First,Last,Next},
// AvgDaysBetween, Mode, Values, Any, All). ArgMin/ArgMax/
// MaxConsecutiveTrue get their own dedicated types instead (see
// argextremum.go, maxconsecutive.go), since the original
// keeps those algorithms separate rather than lumping them in here.
type naiveAgg struct {
	fn   Func
	n    int // Nth index argument
	obs  []observation
}

func (a *naiveAgg) Update(v cq.Value, ts time.Time) {
	a.obs = append(a.obs, observation{v: v, ts: ts})
}

func (a *naiveAgg) Evaluate() cq.Value {
	switch a.fn {
	case Max:
		return naiveMax(a.obs)
	case Median:
		return naiveMedian(a.obs)
	case First:
		return naiveFirst(a.obs)
	case Last:
		return naiveLast(a.obs)
	case Nth:
		return naiveNth(a.obs, a.n)
	case TimeOfFirst:
		return naiveTimeOfFirst(a.obs)
	case TimeOfLast:
		return naiveTimeOfLast(a.obs)
	case TimeOfNext:
		return naiveTimeOfFirst(a.obs)
	case AvgDaysBetween:
		return naiveAvgDaysBetween(a.obs)
	case Mode:
		return naiveMode(a.obs)
	case Values:
		return naiveValues(a.obs)
	case Any:
		return naiveAny(a.obs)
	case All:
		return naiveAll(a.obs)
	default:
		return cq.Null()
	}
}

func naiveMax(obs []observation) cq.Value {
	var best cq.Value
	found := false
	for _, o := range obs {
		u := o.v.Unwrap()
		if u.IsNull() {
			continue
		}
		if !found {
			best = u
			found = true
			continue
		}
		if cmp, err := cq.Compare(u, best); err == nil && cmp > 0 {
			best = u
		}
	}
	if !found {
		return cq.Null()
	}
	return best
}

func naiveMedian(obs []observation) cq.Value {
	nums := extractFloats(obs)
	if len(nums) == 0 {
		return cq.Null()
	}
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return collapseFloat(sorted[mid])
	}
	return collapseFloat((sorted[mid-1] + sorted[mid]) / 2)
}

func naiveFirst(obs []observation) cq.Value {
	if len(obs) == 0 {
		return cq.Null()
	}
	return obs[0].v.Unwrap()
}

func naiveLast(obs []observation) cq.Value {
	if len(obs) == 0 {
		return cq.Null()
	}
	return obs[len(obs)-1].v.Unwrap()
}

// naiveNth supports negative indices counting from the end, matching
// the original's nth() (naive_aggregate_funcs.rs): index -1 is the
// last element, -2 the second-to-last, and so on.
func naiveNth(obs []observation, n int) cq.Value {
	if n >= 0 {
		if n >= len(obs) {
			return cq.Null()
		}
		return obs[n].v.Unwrap()
	}
	idx := len(obs) + n
	if idx < 0 || idx >= len(obs) {
		return cq.Null()
	}
	return obs[idx].v.Unwrap()
}

func naiveTimeOfFirst(obs []observation) cq.Value {
	for _, o := range obs {
		u := o.v.Unwrap()
		if u.Kind() == cq.KindBool && u.AsBool() {
			return cq.DateTime(o.ts)
		}
	}
	return cq.Null()
}

func naiveTimeOfLast(obs []observation) cq.Value {
	for i := len(obs) - 1; i >= 0; i-- {
		u := obs[i].v.Unwrap()
		if u.Kind() == cq.KindBool && u.AsBool() {
			return cq.DateTime(obs[i].ts)
		}
	}
	return cq.Null()
}

func naiveAvgDaysBetween(obs []observation) cq.Value {
	var times []time.Time
	for _, o := range obs {
		u := o.v.Unwrap()
		if u.Kind() == cq.KindBool && u.AsBool() {
			times = append(times, o.ts)
		}
	}
	if len(times) < 2 {
		return cq.Null()
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	var sum float64
	for i := 1; i < len(times); i++ {
		sum += times[i].Sub(times[i-1]).Hours() / 24
	}
	return collapseFloat(sum / float64(len(times)-1))
}

func naiveMode(obs []observation) cq.Value {
	counts := map[string]int{}
	values := map[string]cq.Value{}
	for _, o := range obs {
		u := o.v.Unwrap()
		if u.IsNull() {
			continue
		}
		key := u.String()
		counts[key]++
		values[key] = u
	}
	var best cq.Value
	bestCount := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			bestCount = counts[k]
			best = values[k]
		}
	}
	if bestCount < 0 {
		return cq.Null()
	}
	return best
}

func naiveValues(obs []observation) cq.Value {
	if len(obs) == 0 {
		return cq.Null()
	}
	allNumeric := true
	allString := true
	for _, o := range obs {
		u := o.v.Unwrap()
		switch u.Kind() {
		case cq.KindInt, cq.KindFloat, cq.KindBool:
			allString = false
		case cq.KindString, cq.KindDate, cq.KindDateTime:
			allNumeric = false
		default:
			allNumeric, allString = false, false
		}
	}
	switch {
	case allNumeric:
		return cq.VecFloat(extractFloats(obs))
	case allString:
		out := make([]string, len(obs))
		for i, o := range obs {
			out[i] = o.v.Unwrap().String()
		}
		return cq.VecString(out)
	default:
		return cq.Null()
	}
}

func naiveAny(obs []observation) cq.Value {
	for _, o := range obs {
		u := o.v.Unwrap()
		if u.Kind() == cq.KindBool && u.AsBool() {
			return cq.Bool(true)
		}
	}
	return cq.Bool(false)
}

func naiveAll(obs []observation) cq.Value {
	for _, o := range obs {
		u := o.v.Unwrap()
		if u.Kind() == cq.KindBool && !u.AsBool() {
			return cq.Bool(false)
		}
	}
	return cq.Bool(true)
}

func extractFloats(obs []observation) []float64 {
	var out []float64
	for _, o := range obs {
		u := o.v.Unwrap()
		if f, err := u.ToFloat(); err == nil {
			out = append(out, f)
		}
	}
	return out
}
