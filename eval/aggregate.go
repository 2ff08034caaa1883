package eval

import (
	"fmt"
	"sort"
	"time"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/ast"
	"github.com/wbrown/chronoquery/event"
	"github.com/wbrown/chronoquery/interval"
	"github.com/wbrown/chronoquery/partialagg"
)

// aggFuncs maps the parser's aggregate function names to the
// partialagg state machine they drive.
var aggFuncs = map[string]partialagg.Func{
	"count":                partialagg.Count,
	"sum":                  partialagg.Sum,
	"product":              partialagg.Product,
	"avg":                  partialagg.Avg,
	"var":                  partialagg.Var,
	"stdev":                partialagg.StDev,
	"min":                  partialagg.Min,
	"max":                  partialagg.Max,
	"median":               partialagg.Median,
	"first":                partialagg.First,
	"last":                 partialagg.Last,
	"nth":                  partialagg.Nth,
	"time_of_first":        partialagg.TimeOfFirst,
	"time_of_last":         partialagg.TimeOfLast,
	"time_of_next":         partialagg.TimeOfNext,
	"avg_days_between":     partialagg.AvgDaysBetween,
	"mode":                 partialagg.Mode,
	"argmin":               partialagg.ArgMin,
	"argmax":               partialagg.ArgMax,
	"values":               partialagg.Values,
	"any":                  partialagg.Any,
	"all":                  partialagg.All,
	"max_consecutive_true": partialagg.MaxConsecutiveTrue,
}

// EvalAggregation runs the full naive pipeline of spec.md §4.F for one
// observation time: materialize the window, fetch candidates, apply
// where/having/groupby, then aggregate. The sliding-window driver
// (sliding.go) is an optimization over repeated calls to this same
// pipeline across an ascending sequence of observation times; it is
// wired in by the query orchestrator (component I), not from here.
func EvalAggregation(agg *ast.AggrExpr, ctx *Context) (cq.Value, error) {
	fn, ok := aggFuncs[agg.Func]
	if !ok {
		return cq.Null(), fmt.Errorf("%w: unknown aggregate function %q", cq.ErrType, agg.Func)
	}

	ival, err := MaterializeWindow(agg, ctx)
	if err != nil {
		return cq.Null(), err
	}

	var eventType *string
	if agg.FromEvent != "" {
		eventType = &agg.FromEvent
	}
	rng := event.Range{
		Start: ival.Start, End: ival.End,
		InclusiveStart: ival.InclusiveStart, InclusiveEnd: ival.InclusiveEnd,
	}
	candidates := ctx.Store.QueryEntityScoped([]cq.Entity(ctx.Entities), eventType, rng, ctx.ExperimentID)

	survivors, err := applyWhere(agg.Where, candidates, ctx)
	if err != nil {
		return cq.Null(), err
	}
	survivors, err = applyHaving(agg.Having, survivors, ctx)
	if err != nil {
		return cq.Null(), err
	}

	extra, err := evalExtraArgs(agg.Extra, ctx)
	if err != nil {
		return cq.Null(), err
	}

	if agg.GroupBy != nil {
		return aggregateGrouped(fn, agg.Arg, agg.GroupBy, survivors, ctx, extra)
	}
	return aggregateBucket(fn, agg.Arg, survivors, ctx, extra)
}

// MaterializeWindow resolves and materializes agg's `over`/`from` window
// for ctx's current observation time. Exported so the query orchestrator
// can share it between the naive path and SlidingAggregator.
func MaterializeWindow(agg *ast.AggrExpr, ctx *Context) (interval.Interval, error) {
	w, err := resolveWhen(agg.When, ctx)
	if err != nil {
		return interval.Interval{}, err
	}
	return interval.Materialize(w, ctx.ObsTime, ctx.IntervalConfig)
}

func evalExtraArgs(extra []ast.Expr, ctx *Context) ([]cq.Value, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	out := make([]cq.Value, len(extra))
	for i, e := range extra {
		v, err := Eval(e, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func resolveWhen(spec ast.WhenSpec, ctx *Context) (interval.When, error) {
	w := interval.When{
		Kind:      spec.Kind,
		Direction: spec.Direction,
		N:         spec.N,
		Unit:      spec.Unit,
		StartDate: spec.StartDate,
		EndDate:   spec.EndDate,
		Keyword:   spec.Keyword,
	}
	if spec.Kind != interval.KindBetween {
		return w, nil
	}
	start, err := evalAsTime(spec.BetweenStart, ctx)
	if err != nil {
		return w, err
	}
	end, err := evalAsTime(spec.BetweenEnd, ctx)
	if err != nil {
		return w, err
	}
	w.BetweenStart = start
	w.BetweenEnd = end
	return w, nil
}

func evalAsTime(e ast.Expr, ctx *Context) (time.Time, error) {
	v, err := Eval(e, ctx)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := asTimeValue(v.Unwrap())
	if !ok {
		return time.Time{}, fmt.Errorf("%w: `between` bound must evaluate to a date/datetime, got %s", cq.ErrType, v.Kind())
	}
	return t, nil
}

func withEvent(ctx *Context, ev *event.Event) *Context {
	c := *ctx
	c.ContextEvent = ev
	return &c
}

// applyWhere keeps only events for which where evaluates to a boolean
// true; a nil where clause keeps every candidate; a false or
// non-boolean result skips the event (spec.md §4.F step 2).
func applyWhere(where ast.Expr, events []event.Event, ctx *Context) ([]event.Event, error) {
	if where == nil {
		return events, nil
	}
	var out []event.Event
	for i := range events {
		v, err := Eval(where, withEvent(ctx, &events[i]))
		if err != nil {
			return nil, err
		}
		if b, ok := asStrictBool(v.Unwrap()); ok && b {
			out = append(out, events[i])
		}
	}
	return out, nil
}

// applyHaving keeps only the survivors attaining the min/max of
// having.Expr, preserving ties (spec.md §4.F step 3, §9 open question).
func applyHaving(having *ast.HavingClause, events []event.Event, ctx *Context) ([]event.Event, error) {
	if having == nil || len(events) == 0 {
		return events, nil
	}
	vals := make([]cq.Value, len(events))
	for i := range events {
		v, err := Eval(having.Expr, withEvent(ctx, &events[i]))
		if err != nil {
			return nil, err
		}
		vals[i] = v.Unwrap()
	}
	best := vals[0]
	for _, v := range vals[1:] {
		cmp, err := cq.Compare(v, best)
		if err != nil {
			continue
		}
		if (having.MinMax == "max" && cmp > 0) || (having.MinMax == "min" && cmp < 0) {
			best = v
		}
	}
	var out []event.Event
	for i, v := range vals {
		if cq.Equal(v, best) {
			out = append(out, events[i])
		}
	}
	return out, nil
}

// aggregateGrouped buckets survivors by the stringified value of
// groupBy, aggregating each bucket independently (spec.md §4.F step 4).
func aggregateGrouped(fn partialagg.Func, arg, groupBy ast.Expr, events []event.Event, ctx *Context, extra []cq.Value) (cq.Value, error) {
	buckets := map[string][]event.Event{}
	var order []string
	for i := range events {
		v, err := Eval(groupBy, withEvent(ctx, &events[i]))
		if err != nil {
			return cq.Null(), err
		}
		key := v.Unwrap().String()
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], events[i])
	}
	sort.Strings(order)
	out := make(map[string]cq.Value, len(buckets))
	for _, key := range order {
		v, err := aggregateBucket(fn, arg, buckets[key], ctx, extra)
		if err != nil {
			return cq.Null(), err
		}
		out[key] = v
	}
	return cq.MapValue(out), nil
}

// aggregateBucket folds one bucket of events through a fresh
// partialagg state and evaluates it. A genuine evaluation error (a
// type error inside the argument expression, not a missing attribute
// path segment — Value.Get already resolves those to Null without
// error) is fatal to the whole aggregation, per spec.md §7.
func aggregateBucket(fn partialagg.Func, arg ast.Expr, events []event.Event, ctx *Context, extra []cq.Value) (cq.Value, error) {
	state := partialagg.New(fn, extra...)
	for i := range events {
		v, err := evalArgForEvent(arg, ctx, &events[i])
		if err != nil {
			return cq.Null(), err
		}
		state.Update(v, events[i].EventTime)
	}
	return state.Evaluate(), nil
}

// evalArgForEvent evaluates an aggregation's argument expression
// against one candidate event; a bare wildcard (count(*)) contributes
// a non-null presence marker rather than an attribute lookup.
func evalArgForEvent(arg ast.Expr, ctx *Context, ev *event.Event) (cq.Value, error) {
	if _, ok := arg.(*ast.Wildcard); ok {
		return cq.Bool(true), nil
	}
	return Eval(arg, withEvent(ctx, ev))
}
