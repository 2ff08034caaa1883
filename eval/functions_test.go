package eval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvalStringFunctions(t *testing.T) {
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	assert.Equal(t, "hello", evalStr(t, "lower('HELLO')", ctx).AsString())
	assert.Equal(t, "HELLO", evalStr(t, "upper('hello')", ctx).AsString())
	assert.Equal(t, "hi", evalStr(t, "trim('  hi  ')", ctx).AsString())
	assert.Equal(t, "ab", evalStr(t, "concat('a', 'b')", ctx).AsString())
	assert.True(t, evalStr(t, "contains('hello', 'ell')", ctx).AsBool())
	assert.True(t, evalStr(t, "starts_with('hello', 'he')", ctx).AsBool())
	assert.True(t, evalStr(t, "ends_with('hello', 'lo')", ctx).AsBool())
	assert.Equal(t, int64(5), evalStr(t, "str_len('hello')", ctx).AsInt())
}

func TestEvalMathFunctions(t *testing.T) {
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	assert.Equal(t, float64(3), evalStr(t, "abs(-3)", ctx).AsFloat())
	assert.Equal(t, float64(3), evalStr(t, "floor(3.7)", ctx).AsFloat())
	assert.Equal(t, float64(4), evalStr(t, "ceil(3.2)", ctx).AsFloat())
	assert.Equal(t, float64(2), evalStr(t, "sqrt(4)", ctx).AsFloat())
	assert.Equal(t, float64(8), evalStr(t, "pow(2, 3)", ctx).AsFloat())
	assert.Equal(t, float64(5), evalStr(t, "clamp(10, 0, 5)", ctx).AsFloat())
}

func TestEvalNullHandlingFunctions(t *testing.T) {
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	v := evalStr(t, "coalesce(null, null, 7)", ctx)
	assert.Equal(t, int64(7), v.Unwrap().AsInt())

	assert.True(t, evalStr(t, "is_null(null)", ctx).AsBool())
	assert.False(t, evalStr(t, "is_null(1)", ctx).AsBool())

	v = evalStr(t, "if_null(null, 9)", ctx)
	assert.Equal(t, int64(9), v.Unwrap().AsInt())
}

func TestEvalControlFlowFunctions(t *testing.T) {
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	v := evalStr(t, "if(1 > 0, 'yes', 'no')", ctx)
	assert.Equal(t, "yes", v.AsString())

	v = evalStr(t, "case_when(1 > 2, 'a', 2 > 1, 'b', 'c')", ctx)
	assert.Equal(t, "b", v.AsString())
}

func TestEvalDateFunctions(t *testing.T) {
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	v := evalStr(t, "year(date('2024-03-15'))", ctx)
	assert.Equal(t, int64(2024), v.AsInt())

	v = evalStr(t, "month(date('2024-03-15'))", ctx)
	assert.Equal(t, int64(3), v.AsInt())

	v = evalStr(t, "day(date('2024-03-15'))", ctx)
	assert.Equal(t, int64(15), v.AsInt())

	v = evalStr(t, "date_diff_days(date('2024-03-15'), date('2024-03-10'))", ctx)
	assert.Equal(t, int64(5), v.AsInt())
}

func TestEvalScalarMinMaxDistinctFromAggregate(t *testing.T) {
	ctx := newTestContext(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	v := evalStr(t, "min(3, 1)", ctx)
	assert.Equal(t, int64(1), v.Unwrap().AsInt())
	v = evalStr(t, "max(3, 1)", ctx)
	assert.Equal(t, int64(3), v.Unwrap().AsInt())
}
