package partialagg

import (
	"time"

	cq "github.com/wbrown/chronoquery"
)

// maxConsecutiveTrueAgg backs MaxConsecutiveTrue: the longest run of
// true boolean observations in window order (max_consecutive_true.rs).
// It recomputes over the full observation list on Evaluate rather than
// keeping the original's segment-merge invertible state, matching
// spec.md's classification of it as a non-invertible reducer.
type maxConsecutiveTrueAgg struct {
	obs []observation
}

func (a *maxConsecutiveTrueAgg) Update(v cq.Value, ts time.Time) {
	a.obs = append(a.obs, observation{v: v, ts: ts})
}

func (a *maxConsecutiveTrueAgg) Evaluate() cq.Value {
	var maxRun, run int64
	for _, o := range a.obs {
		u := o.v.Unwrap()
		if u.Kind() == cq.KindBool && u.AsBool() {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}
	return cq.Int(maxRun)
}
