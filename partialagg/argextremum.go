package partialagg

import (
	"time"

	cq "github.com/wbrown/chronoquery"
)

// argExtremumAgg backs ArgMin/ArgMax: "when did the first minimum/
// maximum happen" (argmax.rs). Given the numeric nature of the
// comparison and the need for the earliest timestamp on ties, it keeps
// its own recompute state rather than routing through naiveAgg.
type argExtremumAgg struct {
	findMax bool
	obs     []observation
}

func (a *argExtremumAgg) Update(v cq.Value, ts time.Time) {
	if v.Unwrap().IsNull() {
		return
	}
	a.obs = append(a.obs, observation{v: v, ts: ts})
}

func (a *argExtremumAgg) Evaluate() cq.Value {
	if len(a.obs) == 0 {
		return cq.Null()
	}
	best := a.obs[0]
	for _, o := range a.obs[1:] {
		cmp, err := cq.Compare(o.v.Unwrap(), best.v.Unwrap())
		if err != nil {
			continue
		}
		if a.findMax {
			if cmp > 0 {
				best = o
			}
		} else {
			if cmp < 0 {
				best = o
			}
		}
	}
	return cq.DateTime(best.ts)
}
