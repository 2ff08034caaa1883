// Package event implements the append-only event store: insertion-
// ordered storage with multi-way secondary indices (by entity, by
// event-type, by experiment), schema inference, and interval-range
// queries with experiment-layering semantics (spec.md §3, §4.E).
package event

import (
	"fmt"
	"strings"
	"time"

	cq "github.com/wbrown/chronoquery"
)

// Event is an immutable fact attached to zero or more entities at a
// point in time. Once inserted, an Event is never mutated (spec.md §3
// "Lifecycle").
type Event struct {
	EventType    string
	EventTime    time.Time
	Entities     cq.EntitySet
	EventID      *string
	ExperimentID *string
	Attrs        cq.Value // KindMapValue, or KindNull when absent
}

// Input is the JSON wire shape of an event payload (spec.md §6.2).
type Input struct {
	EventType    string                 `json:"event_type"`
	EventTime    string                 `json:"event_time"`
	Entities     map[string]string      `json:"entities"`
	EntityOrder  []string               `json:"-"`
	EventID      *string                `json:"event_id,omitempty"`
	ExperimentID *string                `json:"experiment_id,omitempty"`
	Attrs        map[string]interface{} `json:"attrs,omitempty"`
}

// knownTimeLayouts covers the documented datetime formats: ISO-8601
// with or without 'T' or seconds, and date-only.
var knownTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseEventTime parses the documented datetime string formats.
func ParseEventTime(s string) (time.Time, error) {
	for _, layout := range knownTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized event_time format %q", cq.ErrType, s)
}

// FromInput converts a wire Input into an Event, inferring the Value
// tree for Attrs from raw JSON-decoded interface{} (scalar, []interface{},
// or nested map[string]interface{}).
func FromInput(in Input) (Event, error) {
	t, err := ParseEventTime(in.EventTime)
	if err != nil {
		return Event{}, err
	}
	if in.EventType == "" {
		return Event{}, fmt.Errorf("%w: event_type must not be empty", cq.ErrType)
	}

	var entities cq.EntitySet
	order := in.EntityOrder
	if len(order) == 0 {
		for k := range in.Entities {
			order = append(order, k)
		}
	}
	for _, k := range order {
		id, ok := in.Entities[k]
		if !ok {
			continue
		}
		entities = append(entities, cq.Entity{Type: cq.EntityType(k), ID: cq.EntityId(id)})
	}

	attrs := cq.Null()
	if in.Attrs != nil {
		attrs = attrsToValue(in.Attrs)
	}

	return Event{
		EventType:    in.EventType,
		EventTime:    t,
		Entities:     entities,
		EventID:      in.EventID,
		ExperimentID: in.ExperimentID,
		Attrs:        attrs,
	}, nil
}

func attrsToValue(m map[string]interface{}) cq.Value {
	out := make(map[string]cq.Value, len(m))
	for k, v := range m {
		out[k] = anyToValue(v)
	}
	return cq.MapValue(out)
}

func anyToValue(v interface{}) cq.Value {
	switch x := v.(type) {
	case nil:
		return cq.Null()
	case bool:
		return cq.Bool(x)
	case string:
		return cq.Str(x)
	case float64:
		if x == float64(int64(x)) {
			return cq.Int(int64(x))
		}
		return cq.Float(x)
	case int:
		return cq.Int(int64(x))
	case int64:
		return cq.Int(x)
	case map[string]interface{}:
		return attrsToValue(x)
	case []interface{}:
		return sliceToValue(x)
	default:
		return cq.Str(fmt.Sprintf("%v", x))
	}
}

// sliceToValue converts a homogeneous JSON array into the matching
// vector Value kind; a mixed/empty array falls back to a string vector
// of rendered elements.
func sliceToValue(xs []interface{}) cq.Value {
	if len(xs) == 0 {
		return cq.VecString(nil)
	}
	allBool, allInt, allFloat, allStr := true, true, true, true
	for _, x := range xs {
		switch v := x.(type) {
		case bool:
			allInt, allFloat, allStr = false, false, false
		case float64:
			allBool, allStr = false, false
			if v != float64(int64(v)) {
				allInt = false
			}
		case string:
			allBool, allInt, allFloat = false, false, false
		default:
			allBool, allInt, allFloat, allStr = false, false, false, false
		}
	}
	switch {
	case allBool:
		out := make([]bool, len(xs))
		for i, x := range xs {
			out[i] = x.(bool)
		}
		return cq.VecBool(out)
	case allInt:
		out := make([]int64, len(xs))
		for i, x := range xs {
			out[i] = int64(x.(float64))
		}
		return cq.VecInt(out)
	case allFloat:
		out := make([]float64, len(xs))
		for i, x := range xs {
			out[i] = x.(float64)
		}
		return cq.VecFloat(out)
	case allStr:
		out := make([]string, len(xs))
		for i, x := range xs {
			out[i] = x.(string)
		}
		return cq.VecString(out)
	default:
		out := make([]string, len(xs))
		for i, x := range xs {
			out[i] = fmt.Sprintf("%v", x)
		}
		return cq.VecString(out)
	}
}

// AttrPath fetches a dotted attribute path off the event's Attrs.
func (e Event) AttrPath(path string) cq.Value {
	return e.Attrs.Get(path)
}

// reserved symbol accessors used by the evaluator for event_type,
// event_time, event_id, and entities.<type>.
func (e Event) Reserved(name string) (cq.Value, bool) {
	switch {
	case name == "event_type":
		return cq.Str(e.EventType), true
	case name == "event_time":
		return cq.DateTime(e.EventTime), true
	case name == "event_id":
		if e.EventID == nil {
			return cq.Null(), true
		}
		return cq.Str(*e.EventID), true
	case strings.HasPrefix(name, "entities."):
		typ := cq.EntityType(strings.TrimPrefix(name, "entities."))
		if id, ok := e.Entities.Get(typ); ok {
			return cq.Str(string(id)), true
		}
		return cq.Null(), true
	}
	return cq.Null(), false
}

// idKey renders an *string event id into a map key, or "" when absent.
func idKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
