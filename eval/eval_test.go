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

func newTestContext(obsTime time.Time, ctxEvent *event.Event) *Context {
	return &Context{
		Store:        event.New(),
		Entities:     cq.EntitySet{{Type: "well", ID: "w1"}},
		ObsTime:      obsTime,
		ContextEvent: ctxEvent,
	}
}

func evalStr(t *testing.T, src string, ctx *Context) cq.Value {
	t.Helper()
	e, err := parser.ParseExpr(src)
	require.NoError(t, err)
	v, err := Eval(e, ctx)
	require.NoError(t, err)
	return v
}

func TestEvalLiteralsAndArithmetic(t *testing.T) {
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	v := evalStr(t, "1 + 2 * 3", ctx)
	assert.Equal(t, int64(7), v.AsInt())

	v = evalStr(t, "(1 + 2) * 3", ctx)
	assert.Equal(t, int64(9), v.AsInt())

	v = evalStr(t, "2 ^ 10", ctx)
	assert.Equal(t, float64(1024), v.AsFloat())
}

func TestEvalAttrRefAndContextAttr(t *testing.T) {
	obs := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctxEvent := &event.Event{
		EventType: "sensor_reading",
		EventTime: obs,
		Entities:  cq.EntitySet{{Type: "well", ID: "w1"}},
		Attrs:     cq.MapValue(map[string]cq.Value{"pressure": cq.Int(42)}),
	}
	ctx := newTestContext(obs, ctxEvent)

	v := evalStr(t, "pressure", ctx)
	assert.Equal(t, int64(42), v.AsInt())

	v = evalStr(t, "@entities.well", ctx)
	assert.Equal(t, "w1", v.AsString())

	v = evalStr(t, "@pressure", ctx)
	assert.Equal(t, int64(42), v.AsInt())
}

func TestEvalContextAttrStoredVariableTakesPriority(t *testing.T) {
	obs := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctxEvent := &event.Event{
		EventType: "sensor_reading",
		EventTime: obs,
		Attrs:     cq.MapValue(map[string]cq.Value{"score": cq.Int(1)}),
	}
	ctx := newTestContext(obs, ctxEvent)
	ctx.SetVariable("score", cq.Int(99))

	v := evalStr(t, "@score", ctx)
	assert.Equal(t, int64(99), v.AsInt())
}

func TestEvalStrictAndOr(t *testing.T) {
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	v := evalStr(t, "true and 5", ctx)
	assert.False(t, v.AsBool())

	v = evalStr(t, "true or 5", ctx)
	assert.True(t, v.AsBool())

	v = evalStr(t, "true and false", ctx)
	assert.False(t, v.AsBool())
}

func TestEvalInVector(t *testing.T) {
	ctxEvent := &event.Event{
		Attrs: cq.MapValue(map[string]cq.Value{"type": cq.Str("b")}),
	}
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ctxEvent)

	v := evalStr(t, "type in ('a', 'b', 'c')", ctx)
	assert.True(t, v.AsBool())

	v = evalStr(t, "type not in ('a', 'c')", ctx)
	assert.True(t, v.AsBool())
}

func TestEvalDottedAttribute(t *testing.T) {
	ctxEvent := &event.Event{
		Attrs: cq.MapValue(map[string]cq.Value{
			"dict": cq.MapValue(map[string]cq.Value{"m": cq.Float(1.0)}),
		}),
	}
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ctxEvent)
	v := evalStr(t, "dict.m", ctx)
	assert.Equal(t, float64(1.0), v.AsFloat())
}

func TestEvalReferentialTransparency(t *testing.T) {
	ctxEvent := &event.Event{
		Attrs: cq.MapValue(map[string]cq.Value{"pressure": cq.Int(7)}),
	}
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ctxEvent)

	e, err := parser.ParseExpr("pressure * 2 + 1")
	require.NoError(t, err)

	v1, err := Eval(e, ctx)
	require.NoError(t, err)
	v2, err := Eval(e, ctx)
	require.NoError(t, err)
	assert.True(t, cq.Equal(v1, v2))
}
