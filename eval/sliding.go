package eval

import (
	"fmt"
	"sort"
	"time"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/ast"
	"github.com/wbrown/chronoquery/event"
	"github.com/wbrown/chronoquery/partialagg"
)

// WEntry is one pre-aggregated (timestamp, value) pair of the sorted
// table W the sliding-window driver walks (spec.md §4.G).
type WEntry struct {
	Ts    time.Time
	Value cq.Value
}

// SlidingAggregator drives an invertible aggregation with no groupby/
// having across an ascending sequence of observation times for one
// entity, using the two-pointer algorithm of spec.md §4.G instead of a
// full rescan per observation time.
//
// This implementation assumes, as the spec's own driver does, that
// observation times (and therefore their materialized interval
// left/right bounds) are visited in non-decreasing order; both cursors
// only ever advance forward through W.
type SlidingAggregator struct {
	fn    partialagg.Func
	extra []cq.Value
	w     []WEntry

	fwd, bwd int
	state    partialagg.Aggregate

	havePrev         bool
	prevEnd          *time.Time
	prevInclusiveEnd bool
}

// NewSlidingAggregator precomputes W by fetching every candidate event
// for agg across the entity's entire timeline (ignoring the per-
// observation window), applying `where`, and evaluating the
// aggregation argument once per event.
func NewSlidingAggregator(agg *ast.AggrExpr, ctx *Context) (*SlidingAggregator, error) {
	fn, ok := aggFuncs[agg.Func]
	if !ok {
		return nil, fmt.Errorf("%w: unknown aggregate function %q", cq.ErrType, agg.Func)
	}
	if !fn.Invertible() {
		return nil, fmt.Errorf("%w: %q is not eligible for the sliding-window driver", cq.ErrType, agg.Func)
	}
	if agg.GroupBy != nil || agg.Having != nil {
		return nil, fmt.Errorf("%w: sliding-window driver does not support group by/having", cq.ErrType)
	}

	var eventType *string
	if agg.FromEvent != "" {
		eventType = &agg.FromEvent
	}
	candidates := ctx.Store.QueryEntityScoped([]cq.Entity(ctx.Entities), eventType, event.Unbounded, ctx.ExperimentID)
	survivors, err := applyWhere(agg.Where, candidates, ctx)
	if err != nil {
		return nil, err
	}
	extra, err := evalExtraArgs(agg.Extra, ctx)
	if err != nil {
		return nil, err
	}

	w := make([]WEntry, len(survivors))
	for i := range survivors {
		v, err := evalArgForEvent(agg.Arg, ctx, &survivors[i])
		if err != nil {
			return nil, err
		}
		w[i] = WEntry{Ts: survivors[i].EventTime, Value: v}
	}
	sort.SliceStable(w, func(i, j int) bool { return w[i].Ts.Before(w[j].Ts) })

	return &SlidingAggregator{fn: fn, extra: extra, w: w, state: partialagg.New(fn, extra...)}, nil
}

// Evaluate advances the window to [start, end] and returns the current
// aggregate value, per the steps of spec.md §4.G.
func (s *SlidingAggregator) Evaluate(start, end *time.Time, inclusiveStart, inclusiveEnd bool) cq.Value {
	if s.disjointFromPrev(start, inclusiveStart) {
		s.state = partialagg.New(s.fn, s.extra...)
		idx := s.lowerBound(start, inclusiveStart)
		s.fwd, s.bwd = idx, idx
	}

	for s.fwd < len(s.w) && beforeOrEqualEnd(s.w[s.fwd].Ts, end, inclusiveEnd) {
		s.state.Update(s.w[s.fwd].Value, s.w[s.fwd].Ts)
		s.fwd++
	}
	for s.bwd < s.fwd && !afterOrEqualStart(s.w[s.bwd].Ts, start, inclusiveStart) {
		if inv, ok := s.state.(partialagg.Invertible); ok {
			singleton := partialagg.New(s.fn, s.extra...)
			singleton.Update(s.w[s.bwd].Value, s.w[s.bwd].Ts)
			inv.SubtractInPlace(singleton)
		}
		s.bwd++
	}

	s.havePrev = true
	s.prevEnd = end
	s.prevInclusiveEnd = inclusiveEnd
	return s.state.Evaluate()
}

// disjointFromPrev reports whether the new window's start lies beyond
// the previous window's end, per spec.md §9 "reset the state and both
// cursors whenever the current and previous intervals are strictly
// disjoint".
func (s *SlidingAggregator) disjointFromPrev(start *time.Time, inclusiveStart bool) bool {
	if !s.havePrev {
		return true
	}
	if s.prevEnd == nil || start == nil {
		return false
	}
	if s.prevEnd.Before(*start) {
		return true
	}
	if s.prevEnd.Equal(*start) {
		return !(s.prevInclusiveEnd && inclusiveStart)
	}
	return false
}

// lowerBound returns the index of the first entry in w whose timestamp
// would be included by [start, ...) under the given inclusivity.
func (s *SlidingAggregator) lowerBound(start *time.Time, inclusiveStart bool) int {
	if start == nil {
		return 0
	}
	return sort.Search(len(s.w), func(i int) bool {
		return afterOrEqualStart(s.w[i].Ts, start, inclusiveStart)
	})
}

func beforeOrEqualEnd(ts time.Time, end *time.Time, inclusiveEnd bool) bool {
	if end == nil {
		return true
	}
	if inclusiveEnd {
		return !ts.After(*end)
	}
	return ts.Before(*end)
}

func afterOrEqualStart(ts time.Time, start *time.Time, inclusiveStart bool) bool {
	if start == nil {
		return true
	}
	if inclusiveStart {
		return !ts.Before(*start)
	}
	return ts.After(*start)
}
