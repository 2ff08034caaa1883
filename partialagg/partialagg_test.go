package partialagg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	cq "github.com/wbrown/chronoquery"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func feed(a Aggregate, vals []cq.Value) {
	for i, v := range vals {
		a.Update(v, day(i+1))
	}
}

func floats(vs ...float64) []cq.Value {
	out := make([]cq.Value, len(vs))
	for i, f := range vs {
		out[i] = cq.Float(f)
	}
	return out
}

func TestSumMatchesNaiveSum(t *testing.T) {
	vals := floats(1, 2, 3, 4, 5, 6)
	agg := New(Sum)
	feed(agg, vals)
	assert.InDelta(t, 21.0, agg.Evaluate().AsFloat(), 1e-9)
}

func TestCountSkipsNull(t *testing.T) {
	agg := New(Count)
	agg.Update(cq.Int(1), day(1))
	agg.Update(cq.Null(), day(2))
	agg.Update(cq.Int(3), day(3))
	assert.Equal(t, int64(2), agg.Evaluate().AsInt())
}

func TestCountEmptyIsZero(t *testing.T) {
	agg := New(Count)
	assert.Equal(t, int64(0), agg.Evaluate().AsInt())
}

func TestOtherAggregationsEmptyIsNull(t *testing.T) {
	for _, fn := range []Func{Sum, Avg, Var, StDev, Min, Max, Median} {
		agg := New(fn)
		assert.True(t, agg.Evaluate().IsNull(), "fn=%v", fn)
	}
}

func TestVarAndStDevAgree(t *testing.T) {
	vals := floats(2, 4, 4, 4, 5, 5, 7, 9)
	v := New(Var)
	sd := New(StDev)
	feed(v, vals)
	feed(sd, vals)
	variance := v.Evaluate().AsFloat()
	stdev := sd.Evaluate().AsFloat()
	assert.InDelta(t, variance, stdev*stdev, 1e-6)
}

func TestMinMultisetTracksSmallest(t *testing.T) {
	agg := New(Min)
	feed(agg, floats(5, 3, 8, 1, 9))
	assert.InDelta(t, 1.0, agg.Evaluate().AsFloat(), 1e-9)
}

func TestInvertibleMergeAndSubtractRoundtrip(t *testing.T) {
	for _, fn := range []Func{Count, Sum, Product, Avg, Var, StDev, Min} {
		a := New(fn).(Invertible)
		b := New(fn).(Invertible)
		c := New(fn).(Invertible)

		vals := floats(1, 2, 3, 4, 5)
		feed(a, vals)
		feed(c, vals)

		feed(b, floats(10, 20))

		merged := a.Merge(b).(Invertible)
		merged.SubtractInPlace(b)

		assertValuesApproxEqual(t, c.Evaluate(), merged.Evaluate(), fn)
	}
}

func assertValuesApproxEqual(t *testing.T, want, got cq.Value, fn Func) {
	t.Helper()
	if want.IsNull() || got.IsNull() {
		assert.Equal(t, want.IsNull(), got.IsNull(), "fn=%v", fn)
		return
	}
	wf, errW := want.ToFloat()
	gf, errG := got.ToFloat()
	if errW == nil && errG == nil {
		assert.InDelta(t, wf, gf, 1e-6, "fn=%v", fn)
		return
	}
	assert.Equal(t, want.String(), got.String(), "fn=%v", fn)
}

func TestNthPositiveAndNegativeIndices(t *testing.T) {
	vals := floats(1, 2, 3, 4, 5, 6)

	agg := New(Nth, cq.Int(-2))
	feed(agg, vals)
	assert.InDelta(t, 5.0, agg.Evaluate().AsFloat(), 1e-9)

	outOfRange := New(Nth, cq.Int(-7))
	feed(outOfRange, vals)
	assert.True(t, outOfRange.Evaluate().IsNull())
}

func TestFirstAndLast(t *testing.T) {
	vals := floats(1, 2, 3)
	first := New(First)
	last := New(Last)
	feed(first, vals)
	feed(last, vals)
	assert.InDelta(t, 1.0, first.Evaluate().AsFloat(), 1e-9)
	assert.InDelta(t, 3.0, last.Evaluate().AsFloat(), 1e-9)
}

func TestAnyAllOverBools(t *testing.T) {
	any := New(Any)
	all := New(All)
	bools := []cq.Value{cq.Bool(false), cq.Bool(true), cq.Bool(false)}
	feed(any, bools)
	feed(all, bools)
	assert.True(t, any.Evaluate().AsBool())
	assert.False(t, all.Evaluate().AsBool())
}

func TestMaxConsecutiveTrue(t *testing.T) {
	agg := New(MaxConsecutiveTrue)
	bools := []cq.Value{cq.Bool(true), cq.Bool(false), cq.Bool(true), cq.Bool(true)}
	feed(agg, bools)
	assert.Equal(t, int64(2), agg.Evaluate().AsInt())
}

func TestArgMaxReturnsEarliestTimestampOfMaximum(t *testing.T) {
	agg := New(ArgMax)
	agg.Update(cq.Float(3), day(3))
	agg.Update(cq.Float(2), day(2))
	agg.Update(cq.Float(5), day(5))
	agg.Update(cq.Float(4), day(4))
	got := agg.Evaluate()
	assert.True(t, got.AsTime().Equal(day(5)))
}

func TestModePicksMostFrequent(t *testing.T) {
	agg := New(Mode)
	vals := []cq.Value{cq.Str("a"), cq.Str("b"), cq.Str("a"), cq.Str("a"), cq.Str("b")}
	feed(agg, vals)
	assert.Equal(t, "a", agg.Evaluate().AsString())
}

func TestFuncInvertibleClassification(t *testing.T) {
	invertible := []Func{Count, Sum, Product, Avg, Var, StDev, Min}
	for _, fn := range invertible {
		assert.True(t, fn.Invertible(), "fn=%v", fn)
	}
	nonInvertible := []Func{Max, Median, First, Last, Nth, TimeOfFirst, TimeOfLast,
		TimeOfNext, AvgDaysBetween, Mode, ArgMin, ArgMax, Values, Any, All, MaxConsecutiveTrue}
	for _, fn := range nonInvertible {
		assert.False(t, fn.Invertible(), "fn=%v", fn)
	}
}
