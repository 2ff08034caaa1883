package eval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/event"
	"github.com/wbrown/chronoquery/parser"
)

var baseDay = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return baseDay.AddDate(0, 0, n-1) }

func insertReading(t *testing.T, st *event.Store, day int, attrs map[string]cq.Value) {
	t.Helper()
	require.NoError(t, st.Insert(event.Event{
		EventType: "sensor_reading",
		EventTime: baseDay.AddDate(0, 0, day-1),
		Entities:  cq.EntitySet{{Type: "well", ID: "w1"}},
		Attrs:     cq.MapValue(attrs),
	}))
}

func evalAggStr(t *testing.T, src string, ctx *Context) cq.Value {
	t.Helper()
	e, err := parser.ParseExpr(src)
	require.NoError(t, err)
	v, err := Eval(e, ctx)
	require.NoError(t, err)
	return v
}

func TestAggregateSumOverPast(t *testing.T) {
	st := event.New()
	for i := 1; i <= 6; i++ {
		insertReading(t, st, i, map[string]cq.Value{"pressure": cq.Int(int64(i))})
	}

	ctx := &Context{Store: st, Entities: cq.EntitySet{{Type: "well", ID: "w1"}}, ObsTime: day(30)}
	v := evalAggStr(t, "sum(pressure) over past", ctx)
	assert.Equal(t, float64(21), v.Unwrap().AsFloat())
}

func TestAggregateHavingMax(t *testing.T) {
	st := event.New()
	letters := []string{"a", "b", "c", "d", "e", "f"}
	pressures := []int64{1, 100, 3, 5, 200, -100}
	for i, l := range letters {
		insertReading(t, st, i+1, map[string]cq.Value{
			"type":     cq.Str(l),
			"pressure": cq.Int(pressures[i]),
		})
	}

	ctx := &Context{Store: st, Entities: cq.EntitySet{{Type: "well", ID: "w1"}}, ObsTime: day(30)}
	v := evalAggStr(t, "first(type) over past having max pressure", ctx)
	assert.Equal(t, "e", v.Unwrap().AsString())
}

func TestAggregateInVectorCounts(t *testing.T) {
	st := event.New()
	letters := []string{"a", "b", "c", "d", "e", "f"}
	for i, l := range letters {
		insertReading(t, st, i+1, map[string]cq.Value{"type": cq.Str(l)})
	}

	ctx := &Context{Store: st, Entities: cq.EntitySet{{Type: "well", ID: "w1"}}, ObsTime: day(30)}

	v := evalAggStr(t, "count(type) over past where type in ('a', 'b', 'c', 'd')", ctx)
	assert.Equal(t, int64(4), v.Unwrap().AsInt())

	v = evalAggStr(t, "count(type) over past where type not in ('a', 'b', 'c', 'd')", ctx)
	assert.Equal(t, int64(2), v.Unwrap().AsInt())
}

func TestAggregateNth(t *testing.T) {
	st := event.New()
	for i := 1; i <= 6; i++ {
		insertReading(t, st, i, map[string]cq.Value{"temp": cq.Int(int64(i))})
	}

	ctx := &Context{Store: st, Entities: cq.EntitySet{{Type: "well", ID: "w1"}}, ObsTime: day(30)}

	v := evalAggStr(t, "nth(temp, -2) over past", ctx)
	assert.Equal(t, int64(5), v.Unwrap().AsInt())

	v = evalAggStr(t, "nth(temp, -7) over past", ctx)
	assert.True(t, v.Unwrap().IsNull())
}

func TestAggregateLastOnDottedAttribute(t *testing.T) {
	st := event.New()
	insertReading(t, st, 1, map[string]cq.Value{
		"dict": cq.MapValue(map[string]cq.Value{"m": cq.Float(1.0)}),
	})

	ctx := &Context{Store: st, Entities: cq.EntitySet{{Type: "well", ID: "w1"}}, ObsTime: day(30)}
	v := evalAggStr(t, "last(dict.m) over past", ctx)
	assert.Equal(t, float64(1.0), v.Unwrap().AsFloat())
}
