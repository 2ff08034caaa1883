// Package trace provides a low-overhead event collector and a
// human-readable renderer for query execution, generalized from the
// teacher's datalog/annotations package (datom-match tracing) to
// chronoquery's domain: parse/plan/observation/window/aggregation
// events instead of join/pattern events.
package trace

import (
	"sync"
	"time"
)

// Event name constants, following the teacher's hierarchical
// "noun/verb" naming.
const (
	QueryParsed          = "query/parsed"
	FeaturePlanCreated   = "query/plan.created"
	QueryComplete        = "query/completed"
	EntitiesResolved     = "entities/resolved"
	ObservationsResolved = "observations/resolved"
	EntityBegin          = "entity/begin"
	EntityComplete       = "entity/complete"
	IntervalMaterialized = "window/materialized"
	SlidingReset         = "window/sliding.reset"
	SlidingAdvance       = "window/sliding.advance"
	AggregationEvaluated = "feature/aggregation.evaluated"
	FeatureEvaluated     = "feature/evaluated"
	ErrorQuery           = "error/query"
)

// Event is a single traced occurrence during query execution.
type Event struct {
	Name    string
	Start   time.Time
	End     time.Time
	Latency time.Duration
	Data    map[string]interface{}
}

// Handler processes events as they occur.
type Handler func(Event)

// Collector accumulates events for later inspection, and forwards each
// one to an optional Handler as it is added. Safe for concurrent use —
// query.Run may evaluate entities from multiple goroutines.
type Collector struct {
	enabled bool
	handler Handler

	mu     sync.Mutex
	events []Event
}

// NewCollector creates a Collector. A nil handler disables tracing
// entirely (Add becomes a no-op), matching the teacher's
// enabled-iff-handler-present pattern.
func NewCollector(handler Handler) *Collector {
	return &Collector{enabled: handler != nil, handler: handler}
}

// Add records event and forwards it to the handler, if any.
func (c *Collector) Add(event Event) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	if c.handler != nil {
		c.handler(event)
	}
}

// Timed records name with Start/End/Latency set from start to now.
func (c *Collector) Timed(name string, start time.Time, data map[string]interface{}) {
	if !c.enabled {
		return
	}
	end := time.Now()
	c.Add(Event{Name: name, Start: start, End: end, Latency: end.Sub(start), Data: data})
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Enabled reports whether this collector forwards events anywhere.
func (c *Collector) Enabled() bool { return c.enabled }
