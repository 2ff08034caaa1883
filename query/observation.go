package query

import (
	"fmt"
	"sort"
	"time"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/ast"
	"github.com/wbrown/chronoquery/event"
	"github.com/wbrown/chronoquery/eval"
)

// ObsDateConfig is the sealed set of observation-date materialization
// strategies of spec.md §6.4. Each variant resolves, for a given set
// of candidate entities, the datetimes at which features are computed.
type ObsDateConfig interface {
	observations(st *event.Store, entities []cq.Entity, experimentID *string) (map[cq.Entity][]time.Time, error)
}

// Interval samples one observation per date_part boundary (day/week/
// month/year) between an entity's first and last event, taking the
// nth event within that period (1-indexed; negative counts from the
// end, as with nth() aggregation). This is the regular-sampling
// variant of spec.md §6.4.
type Interval struct {
	EntityTypes []string
	DatePart    string // "day" | "week" | "month" | "year"
	Nth         int
}

func (c Interval) observations(st *event.Store, entities []cq.Entity, experimentID *string) (map[cq.Entity][]time.Time, error) {
	out := make(map[cq.Entity][]time.Time, len(entities))
	for _, ent := range entities {
		if !typeIn(ent.Type, c.EntityTypes) {
			continue
		}
		evs := st.QueryEntityScoped([]cq.Entity{ent}, nil, event.Unbounded, experimentID)
		buckets := bucketByPeriod(evs, c.DatePart)
		var times []time.Time
		for _, key := range sortedKeys(buckets) {
			bucket := buckets[key]
			idx := c.Nth
			if idx >= 0 {
				idx--
			} else {
				idx = len(bucket) + idx
			}
			if idx < 0 || idx >= len(bucket) {
				continue
			}
			times = append(times, bucket[idx].EventTime)
		}
		if len(times) > 0 {
			out[ent] = times
		}
	}
	return out, nil
}

// Fixed applies the same literal list of dates to every entity of the
// given types, regardless of whether any event exists at that time.
type Fixed struct {
	EntityTypes []string
	Dates       []time.Time
}

func (c Fixed) observations(_ *event.Store, entities []cq.Entity, _ *string) (map[cq.Entity][]time.Time, error) {
	out := make(map[cq.Entity][]time.Time, len(entities))
	for _, ent := range entities {
		if typeIn(ent.Type, c.EntityTypes) {
			out[ent] = append([]time.Time(nil), c.Dates...)
		}
	}
	return out, nil
}

// EntitySpecific supplies an explicit, caller-computed list of
// observation dates per entity.
type EntitySpecific struct {
	Dates map[cq.Entity][]time.Time
}

func (c EntitySpecific) observations(_ *event.Store, entities []cq.Entity, _ *string) (map[cq.Entity][]time.Time, error) {
	out := make(map[cq.Entity][]time.Time, len(entities))
	wanted := toEntitySet(entities)
	for ent, dates := range c.Dates {
		if _, ok := wanted[ent]; ok {
			out[ent] = dates
		}
	}
	return out, nil
}

// EntitiesEventSpecific is shaped like EntitySpecific but names dates
// anchored to specific events (e.g. timestamps the caller pulled from
// a prior query), rather than arbitrary computed datetimes. The
// materialization is identical; the distinction is only in how the
// caller derived the dates (spec.md §6.4 lists both as separate
// variants without further differentiating semantics).
type EntitiesEventSpecific struct {
	Dates map[cq.Entity][]time.Time
}

func (c EntitiesEventSpecific) observations(st *event.Store, entities []cq.Entity, expID *string) (map[cq.Entity][]time.Time, error) {
	return EntitySpecific(c).observations(st, entities, expID)
}

// AllEvents observes once per event touching each candidate entity.
type AllEvents struct{}

func (AllEvents) observations(st *event.Store, entities []cq.Entity, experimentID *string) (map[cq.Entity][]time.Time, error) {
	out := make(map[cq.Entity][]time.Time, len(entities))
	for _, ent := range entities {
		evs := st.QueryEntityScoped([]cq.Entity{ent}, nil, event.Unbounded, experimentID)
		times := make([]time.Time, len(evs))
		for i, e := range evs {
			times[i] = e.EventTime
		}
		if len(times) > 0 {
			out[ent] = times
		}
	}
	return out, nil
}

// AllEventsByEntity is AllEvents restricted to entities of the given
// types.
type AllEventsByEntity struct {
	EntityTypes []string
}

func (c AllEventsByEntity) observations(st *event.Store, entities []cq.Entity, experimentID *string) (map[cq.Entity][]time.Time, error) {
	var filtered []cq.Entity
	for _, ent := range entities {
		if typeIn(ent.Type, c.EntityTypes) {
			filtered = append(filtered, ent)
		}
	}
	return AllEvents{}.observations(st, filtered, experimentID)
}

// ConditionalEvents observes at every event (of an entity of the given
// types) where Condition evaluates to strict-true against that event
// as context.
type ConditionalEvents struct {
	EntityTypes []string
	Condition   ast.Expr
}

func (c ConditionalEvents) observations(st *event.Store, entities []cq.Entity, experimentID *string) (map[cq.Entity][]time.Time, error) {
	out := make(map[cq.Entity][]time.Time, len(entities))
	for _, ent := range entities {
		if !typeIn(ent.Type, c.EntityTypes) {
			continue
		}
		evs := st.QueryEntityScoped([]cq.Entity{ent}, nil, event.Unbounded, experimentID)
		var times []time.Time
		for i := range evs {
			ctx := &eval.Context{
				Store: st, Entities: cq.EntitySet{ent}, ObsTime: evs[i].EventTime,
				ContextEvent: &evs[i], ExperimentID: experimentID,
			}
			v, err := eval.Eval(c.Condition, ctx)
			if err != nil {
				return nil, fmt.Errorf("observation condition: %w", err)
			}
			if b := v.Unwrap(); b.Kind() == cq.KindBool && b.AsBool() {
				times = append(times, evs[i].EventTime)
			}
		}
		if len(times) > 0 {
			out[ent] = times
		}
	}
	return out, nil
}

func typeIn(typ cq.EntityType, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if string(typ) == t {
			return true
		}
	}
	return false
}

func toEntitySet(entities []cq.Entity) map[cq.Entity]struct{} {
	out := make(map[cq.Entity]struct{}, len(entities))
	for _, e := range entities {
		out[e] = struct{}{}
	}
	return out
}

func bucketByPeriod(evs []event.Event, datePart string) map[string][]event.Event {
	buckets := make(map[string][]event.Event)
	for _, e := range evs {
		key := periodKey(e.EventTime, datePart)
		buckets[key] = append(buckets[key], e)
	}
	return buckets
}

func periodKey(t time.Time, datePart string) string {
	switch datePart {
	case "year":
		return fmt.Sprintf("%04d", t.Year())
	case "month":
		return fmt.Sprintf("%04d-%02d", t.Year(), t.Month())
	case "week":
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	default: // "day"
		return t.Format("2006-01-02")
	}
}

func sortedKeys(m map[string][]event.Event) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
