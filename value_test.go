package chronoquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareNumericWidening(t *testing.T) {
	c, err := Compare(Int(3), Float(3.0))
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	c, err = Compare(Int(2), Float(3.5))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(Float(4.5), Int(2))
	require.NoError(t, err)
	assert.Equal(t, 1, c)
}

func TestCompareIncompatibleTypesErrors(t *testing.T) {
	_, err := Compare(Int(1), Str("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrType)
	assert.Contains(t, err.Error(), "int")
	assert.Contains(t, err.Error(), "string")
}

func TestEqualFloatEpsilon(t *testing.T) {
	a := Float(0.1 + 0.2)
	b := Float(0.3)
	assert.True(t, Equal(a, b))
}

func TestEqualNullOnlyEqualsNull(t *testing.T) {
	assert.True(t, Equal(Null(), Null()))
	assert.False(t, Equal(Null(), Int(0)))
}

func TestArithWidening(t *testing.T) {
	v, err := Add(Int(2), Int(3))
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())
	assert.Equal(t, int64(5), v.AsInt())

	v, err = Add(Int(2), Float(3.5))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())
	assert.Equal(t, 5.5, v.AsFloat())
}

func TestArithTypeError(t *testing.T) {
	_, err := Add(Int(1), Str("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrType)
}

func TestDivByZeroYieldsNull(t *testing.T) {
	v, err := Div(Int(1), Int(0))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestGetDottedPath(t *testing.T) {
	inner := MapValue(map[string]Value{"m": Float(1.0)})
	outer := MapValue(map[string]Value{"dict": inner})

	got := outer.Get("dict.m")
	assert.Equal(t, KindFloat, got.Kind())
	assert.Equal(t, 1.0, got.AsFloat())

	assert.True(t, outer.Get("dict.missing").IsNull())
	assert.True(t, outer.Get("missing.x").IsNull())
}

func TestInVectorMembership(t *testing.T) {
	vec := VecString([]string{"a", "b", "c", "d"})

	ok, err := In(Str("b"), vec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = In(Str("z"), vec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestToFloatCoercion(t *testing.T) {
	f, err := Bool(true).ToFloat()
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	f, err = Bool(false).ToFloat()
	require.NoError(t, err)
	assert.Equal(t, 0.0, f)

	_, err = Str("x").ToFloat()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrType)
}

func TestDateTimeCompare(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c, err := Compare(DateTime(t1), DateTime(t2))
	require.NoError(t, err)
	assert.Equal(t, -1, c)
}

func TestEntitySetGet(t *testing.T) {
	es := EntitySet{{Type: "user", ID: "u1"}, {Type: "device", ID: "d1"}}
	id, ok := es.Get("device")
	assert.True(t, ok)
	assert.Equal(t, EntityId("d1"), id)

	_, ok = es.Get("missing")
	assert.False(t, ok)
}
