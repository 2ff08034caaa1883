package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cq "github.com/wbrown/chronoquery"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func mkEvent(eventType string, t time.Time, ents cq.EntitySet, attrs map[string]cq.Value, id, exp *string) Event {
	a := cq.Null()
	if attrs != nil {
		a = cq.MapValue(attrs)
	}
	return Event{EventType: eventType, EventTime: t, Entities: ents, EventID: id, ExperimentID: exp, Attrs: a}
}

func strp(s string) *string { return &s }

func TestInsertDuplicateEventIDFails(t *testing.T) {
	s := New()
	id := strp("e1")
	require.NoError(t, s.Insert(mkEvent("sensor", day(1), nil, nil, id, nil)))
	err := s.Insert(mkEvent("sensor", day(2), nil, nil, id, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, cq.ErrDuplicateEventID)
}

func TestInsertSchemaConflictLeavesStoreUnchanged(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(mkEvent("sensor", day(1), nil, map[string]cq.Value{"pressure": cq.Float(1.0)}, nil, nil)))
	err := s.Insert(mkEvent("sensor", day(2), nil, map[string]cq.Value{"pressure": cq.Str("oops")}, nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, cq.ErrSchemaConflict)

	all := s.QueryByInterval(Unbounded, nil)
	assert.Len(t, all, 1)
}

func TestEntityIntersectionANDSemantics(t *testing.T) {
	s := New()
	user := cq.Entity{Type: "user", ID: "u1"}
	device := cq.Entity{Type: "device", ID: "d1"}
	other := cq.Entity{Type: "device", ID: "d2"}

	require.NoError(t, s.Insert(mkEvent("ping", day(1), cq.EntitySet{user, device}, nil, nil, nil)))
	require.NoError(t, s.Insert(mkEvent("ping", day(2), cq.EntitySet{user, other}, nil, nil, nil)))

	got := s.QueryEntityScoped([]cq.Entity{user, device}, nil, Unbounded, nil)
	assert.Len(t, got, 1)
	assert.True(t, got[0].EventTime.Equal(day(1)))
}

func TestExperimentLayering(t *testing.T) {
	s := New()
	user := cq.Entity{Type: "user", ID: "u1"}
	expA := "A"
	expB := "B"

	require.NoError(t, s.Insert(mkEvent("click", day(1), cq.EntitySet{user}, nil, nil, nil)))
	require.NoError(t, s.Insert(mkEvent("click", day(2), cq.EntitySet{user}, nil, nil, &expA)))
	require.NoError(t, s.Insert(mkEvent("click", day(3), cq.EntitySet{user}, nil, nil, &expB)))

	base := s.QueryEntityScoped([]cq.Entity{user}, nil, Unbounded, nil)
	assert.Len(t, base, 1, "base query must not see any experiment-tagged event")

	withA := s.QueryEntityScoped([]cq.Entity{user}, nil, Unbounded, &expA)
	assert.Len(t, withA, 2, "experiment A query sees base union A, not B")
	for _, e := range withA {
		if e.ExperimentID != nil {
			assert.Equal(t, expA, *e.ExperimentID)
		}
	}
}

func TestInsertionOrderCommutativity(t *testing.T) {
	user := cq.Entity{Type: "user", ID: "u1"}
	e1 := mkEvent("a", day(1), cq.EntitySet{user}, nil, nil, nil)
	e2 := mkEvent("a", day(1), cq.EntitySet{user}, nil, nil, nil)
	e3 := mkEvent("a", day(2), cq.EntitySet{user}, nil, nil, nil)

	s1 := New()
	require.NoError(t, s1.Insert(e1))
	require.NoError(t, s1.Insert(e2))
	require.NoError(t, s1.Insert(e3))

	s2 := New()
	require.NoError(t, s2.Insert(e3))
	require.NoError(t, s2.Insert(e2))
	require.NoError(t, s2.Insert(e1))

	got1 := s1.QueryEntityScoped([]cq.Entity{user}, nil, Unbounded, nil)
	got2 := s2.QueryEntityScoped([]cq.Entity{user}, nil, Unbounded, nil)
	assert.Equal(t, len(got1), len(got2))
}

func TestRangeInclusivity(t *testing.T) {
	s := New()
	user := cq.Entity{Type: "user", ID: "u1"}
	require.NoError(t, s.Insert(mkEvent("a", day(5), cq.EntitySet{user}, nil, nil, nil)))

	start, end := day(5), day(10)
	exclusive := s.QueryEntityScoped([]cq.Entity{user}, nil, Range{Start: &start, End: &end, InclusiveStart: false, InclusiveEnd: false}, nil)
	assert.Len(t, exclusive, 0)

	inclusive := s.QueryEntityScoped([]cq.Entity{user}, nil, Range{Start: &start, End: &end, InclusiveStart: true, InclusiveEnd: false}, nil)
	assert.Len(t, inclusive, 1)
}

func TestGlobalEventsVisibleAcrossEntities(t *testing.T) {
	s := New()
	user := cq.Entity{Type: "user", ID: "u1"}
	require.NoError(t, s.Insert(mkEvent("holiday", day(1), nil, nil, nil, nil)))

	got := s.QueryEntityScoped([]cq.Entity{user}, nil, Unbounded, nil)
	assert.Len(t, got, 1)
}

func TestResolveUntypedAttributeAmbiguous(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(mkEvent("a", day(1), nil, map[string]cq.Value{"x": cq.Int(1)}, nil, nil)))
	require.NoError(t, s.Insert(mkEvent("b", day(2), nil, map[string]cq.Value{"x": cq.Str("y")}, nil, nil)))

	_, err := s.Schema().ResolveUntyped("x")
	require.Error(t, err)
	var ambErr *cq.AmbiguousAttributeError
	assert.ErrorAs(t, err, &ambErr)
}

func TestDottedAttributeSchema(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(mkEvent("a", day(1), nil, map[string]cq.Value{
		"dict": cq.MapValue(map[string]cq.Value{"m": cq.Float(1.0)}),
	}, nil, nil)))

	k, ok := s.Schema().KindFor("a", "dict.m")
	require.True(t, ok)
	assert.Equal(t, cq.KindFloat, k)
}
